// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// PackageFileHeader is the PFS index's top-level record, anchored at its own
// position immediately after the FramedHeader (spec §6 "PFS index").
type PackageFileHeader struct {
	NameCount  uint32
	FileCount  uint32
	PkgsCount  uint32
	_       uint32
	NameOffset RelOffset
	FileOffset RelOffset
	PkgsOffset RelOffset
}

const packageFileHeaderSize = 4 + 4 + 4 + 4 + 8 + 8 + 8

// onDiskPackageFileName is the on-disk layout of one entry in the PFS names
// array (spec §3 "PFS.Name/PackageFileName"): a ResourceId id, a string
// pointer anchored at this entry's own position, and the id of its parent
// in the name forest. The id space matches PackageFile.ID (both ResourceId)
// so a file's own id indexes directly into the name forest.
type onDiskPackageFileName struct {
	ID       uint64
	Pointer  onDiskStrPtr
	ParentID uint64
}

const onDiskPackageFileNameSize = 8 + onDiskStrPtrSize + 8

// PackageFileName is the decoded form of onDiskPackageFileName: a resolved
// string plus the parent link used to reconstruct full paths (spec §3).
type PackageFileName struct {
	ID       uint64
	ParentID uint64
	Name     string
}

// onDiskPackageFile is the raw on-disk layout of a PFS.PackageFile record
// (spec §3).
type onDiskPackageFile struct {
	ID               uint64
	PackageID        uint64
	Offset           uint64
	CompressionType  uint32
	CompressionFlags uint32
	CompressedSize   uint32
	CRC32            uint32
	UncompressedSize uint64
}

const onDiskPackageFileSize = 8 + 8 + 8 + 4 + 4 + 4 + 4 + 8

// PackageFile describes one file's placement within a memory-mapped blob
// package (spec §3 "PFS.PackageFile"). Compression is treated as None
// regardless of CompressionType whenever CompressionFlags == 0.
type PackageFile struct {
	ID               uint64
	PackageID        uint64
	Offset           uint64
	CompressionType  CompressionType
	CompressionFlags uint32
	CompressedSize   uint32
	CRC32            uint32
	UncompressedSize uint64
}

func (f PackageFile) effectiveCompression() CompressionType {
	if f.CompressionFlags == 0 {
		return CompressionNone
	}
	return f.CompressionType
}

// onDiskPackageName is a package-name array entry: a string pointer plus the
// package's ResourceId (spec §3 "PFS.PackageFile" package_id; grounded on
// the original's format/pfs.rs, which types package_id as a full
// ResourceId/u64 rather than a small sequential id).
type onDiskPackageName struct {
	Pointer onDiskStrPtr
	ID      uint64
}

const onDiskPackageNameSize = onDiskStrPtrSize + 8
