// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// pfsNameEntry is the test-side description of one PFS.Name/PackageFileName
// record used by buildPFSIndex.
type pfsNameEntry struct {
	id       uint64
	parentID uint64
	name     string
}

// pfsFileEntry is the test-side description of one PFS.PackageFile record.
type pfsFileEntry struct {
	id               uint64
	packageID        uint64
	offset           uint64
	compType         CompressionType
	compFlags        uint32
	compressedSize   uint32
	crc32            uint32
	uncompressedSize uint64
}

// buildPFSIndex encodes a synthetic `.idx` manifest matching OpenPFS's
// expected layout: FramedHeader, PackageFileHeader, packages array, names
// array, files array, then a trailing string blob referenced by each
// section's RelOffset fields (since no real `.idx` fixture was retrieved
// alongside the teacher, fixtures here are synthesized in-process).
func buildPFSIndex(t *testing.T, pkgNames []string, names []pfsNameEntry, files []pfsFileEntry, validate bool) []byte {
	t.Helper()

	const headerAnchor = FrameSize
	pkgsSectionStart := uint32(headerAnchor + packageFileHeaderSize)
	namesSectionStart := pkgsSectionStart + uint32(len(pkgNames))*onDiskPackageNameSize
	filesSectionStart := namesSectionStart + uint32(len(names))*onDiskPackageFileNameSize
	stringsStart := filesSectionStart + uint32(len(files))*onDiskPackageFileSize

	var strs bytes.Buffer
	pkgStrOff := make([]uint32, len(pkgNames))
	for i, n := range pkgNames {
		pkgStrOff[i] = stringsStart + uint32(strs.Len())
		strs.WriteString(n)
		strs.WriteByte(0)
	}
	nameStrOff := make([]uint32, len(names))
	for i, n := range names {
		nameStrOff[i] = stringsStart + uint32(strs.Len())
		strs.WriteString(n.name)
		strs.WriteByte(0)
	}

	var payload bytes.Buffer

	hdr := PackageFileHeader{
		NameCount:  uint32(len(names)),
		FileCount:  uint32(len(files)),
		PkgsCount:  uint32(len(pkgNames)),
		NameOffset: RelOffset(uint64(namesSectionStart) - uint64(headerAnchor)),
		FileOffset: RelOffset(uint64(filesSectionStart) - uint64(headerAnchor)),
		PkgsOffset: RelOffset(uint64(pkgsSectionStart) - uint64(headerAnchor)),
	}
	binary.Write(&payload, binary.LittleEndian, hdr.NameCount)
	binary.Write(&payload, binary.LittleEndian, hdr.FileCount)
	binary.Write(&payload, binary.LittleEndian, hdr.PkgsCount)
	binary.Write(&payload, binary.LittleEndian, uint32(0))
	binary.Write(&payload, binary.LittleEndian, uint64(hdr.NameOffset))
	binary.Write(&payload, binary.LittleEndian, uint64(hdr.FileOffset))
	binary.Write(&payload, binary.LittleEndian, uint64(hdr.PkgsOffset))

	for i, n := range pkgNames {
		_ = n
		entryAnchor := pkgsSectionStart + uint32(i)*onDiskPackageNameSize
		rel := uint64(pkgStrOff[i] - entryAnchor)
		binary.Write(&payload, binary.LittleEndian, uint32(len(pkgNames[i])))
		binary.Write(&payload, binary.LittleEndian, rel)
		binary.Write(&payload, binary.LittleEndian, uint64(i+1)) // package ids are 1-based
	}

	for i, n := range names {
		entryAnchor := namesSectionStart + uint32(i)*onDiskPackageFileNameSize
		rel := uint64(nameStrOff[i] - entryAnchor)
		binary.Write(&payload, binary.LittleEndian, n.id)
		binary.Write(&payload, binary.LittleEndian, uint32(len(n.name)))
		binary.Write(&payload, binary.LittleEndian, rel)
		binary.Write(&payload, binary.LittleEndian, n.parentID)
	}

	for _, f := range files {
		binary.Write(&payload, binary.LittleEndian, f.id)
		binary.Write(&payload, binary.LittleEndian, f.packageID)
		binary.Write(&payload, binary.LittleEndian, f.offset)
		binary.Write(&payload, binary.LittleEndian, uint32(f.compType))
		binary.Write(&payload, binary.LittleEndian, f.compFlags)
		binary.Write(&payload, binary.LittleEndian, f.compressedSize)
		binary.Write(&payload, binary.LittleEndian, f.crc32)
		binary.Write(&payload, binary.LittleEndian, f.uncompressedSize)
	}

	payload.Write(strs.Bytes())

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, magicPFSI)
	binary.Write(&out, binary.LittleEndian, swap32(PFSIndexVersion))
	hash := uint32(0)
	if validate {
		hash = mmh3_32(payload.Bytes())
	}
	binary.Write(&out, binary.LittleEndian, hash)
	binary.Write(&out, binary.LittleEndian, uint32(ExpectedPointerSize))
	out.Write(payload.Bytes())
	return out.Bytes()
}

// TestOpenPFSUncompressedFiles covers scenario S6: a PFS `.idx` referencing
// one blob package with three uncompressed files yields three successful
// open() calls whose CRC32 matches info.hash when validate=true.
func TestOpenPFSUncompressedFiles(t *testing.T) {
	dir := t.TempDir()

	contents := [][]byte{
		[]byte("hello from file zero"),
		[]byte("second file's content"),
		[]byte("the third and final payload"),
	}

	var blob bytes.Buffer
	offsets := make([]uint64, len(contents))
	for i, c := range contents {
		offsets[i] = uint64(blob.Len())
		blob.Write(c)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkg0.bin"), blob.Bytes(), 0o644); err != nil {
		t.Fatalf("write package blob: %v", err)
	}

	fileIDs := []uint64{100, 200, 300}
	names := make([]pfsNameEntry, len(fileIDs))
	files := make([]pfsFileEntry, len(fileIDs))
	for i, id := range fileIDs {
		names[i] = pfsNameEntry{id: id, parentID: invalidResourceParentAll, name: "file" + string(rune('0'+i)) + ".bin"}
		files[i] = pfsFileEntry{
			id:               id,
			packageID:        1,
			offset:           offsets[i],
			compType:         CompressionNone,
			compFlags:        0,
			compressedSize:   uint32(len(contents[i])),
			crc32:            crc32ISOHDLC(contents[i]),
			uncompressedSize: uint64(len(contents[i])),
		}
	}

	idxBytes := buildPFSIndex(t, []string{"pkg0.bin"}, names, files, true)
	idxPath := filepath.Join(dir, "shard.idx")
	if err := os.WriteFile(idxPath, idxBytes, 0o644); err != nil {
		t.Fatalf("write idx: %v", err)
	}

	pfs, err := OpenPFS(dir, idxPath, PFSOptions{Validate: true})
	if err != nil {
		t.Fatalf("OpenPFS: %v", err)
	}
	defer pfs.Close()

	for i, id := range fileIDs {
		if !pfs.Has(id) {
			t.Errorf("Has(%d) = false, want true", id)
		}
		got, err := pfs.Open(id)
		if err != nil {
			t.Fatalf("Open(%d): %v", id, err)
		}
		if !bytes.Equal(got, contents[i]) {
			t.Errorf("Open(%d) = %q, want %q", id, got, contents[i])
		}
		if path, ok := Resources.Lookup(id); !ok || path == "" {
			t.Errorf("Resources.Lookup(%d) = (%q, %v), want a composed path", id, path, ok)
		}
	}

	if pfs.Has(999) {
		t.Error("Has(999) = true, want false for an unknown id")
	}
	if _, err := pfs.Open(999); err != ErrAssetNotFound {
		t.Errorf("Open(999) err = %v, want ErrAssetNotFound", err)
	}
}

// TestOpenPFSChecksumMismatch corrupts one file's bytes after computing its
// CRC32 and checks that Open rejects it when validate=true.
func TestOpenPFSChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	content := []byte("original content")
	if err := os.WriteFile(filepath.Join(dir, "pkg0.bin"), content, 0o644); err != nil {
		t.Fatalf("write package blob: %v", err)
	}

	names := []pfsNameEntry{{id: 42, parentID: invalidResourceParentAll, name: "f.bin"}}
	files := []pfsFileEntry{{
		id:               42,
		packageID:        1,
		offset:           0,
		compType:         CompressionNone,
		compFlags:        0,
		compressedSize:   uint32(len(content)),
		crc32:            crc32ISOHDLC([]byte("different content")),
		uncompressedSize: uint64(len(content)),
	}}

	idxBytes := buildPFSIndex(t, []string{"pkg0.bin"}, names, files, true)
	idxPath := filepath.Join(dir, "shard.idx")
	if err := os.WriteFile(idxPath, idxBytes, 0o644); err != nil {
		t.Fatalf("write idx: %v", err)
	}

	pfs, err := OpenPFS(dir, idxPath, PFSOptions{Validate: true})
	if err != nil {
		t.Fatalf("OpenPFS: %v", err)
	}
	defer pfs.Close()

	if _, err := pfs.Open(42); err != ErrChecksumMismatch {
		t.Errorf("Open(42) err = %v, want ErrChecksumMismatch", err)
	}
}
