// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"fmt"
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/go-bwfs/bwpak/log"
)

// PFSOptions configures PFS construction, mirroring the teacher's
// pe.Options shape (spec §2 AMBIENT STACK "Configuration").
type PFSOptions struct {
	// Validate enables CRC32 verification in Open (spec §4.6).
	Validate bool

	// Logger receives non-fatal diagnostics (a package blob that cannot be
	// opened or mapped). Defaults to a filtered stdout logger at
	// LevelError, same default as the teacher's pe.New.
	Logger log.Logger
}

// PFS is one decoded `.idx` shard: its file/name/package tables plus the
// memory-mapped blob packages it references (spec §2 item 6, §4.6). It owns
// its memory maps for its lifetime; Close releases them.
type PFS struct {
	idxPath string

	names   map[uint64]PackageFileName
	files   map[uint64]PackageFile
	pkgByID map[uint64]string

	packages map[uint64]mmap.MMap
	pkgFiles map[uint64]*os.File

	opts   PFSOptions
	logger *log.Helper
}

func defaultPFSLogger(opts PFSOptions) *log.Helper {
	if opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}

// OpenPFS parses idxPath (an `.idx` manifest) and memory-maps every package
// blob it references, resolved relative to pkgDir (spec §4.6 "Construction
// from (pkg_directory, idx_path, validate)").
func OpenPFS(pkgDir, idxPath string, opts PFSOptions) (*PFS, error) {
	raw, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, fmt.Errorf("bwpak: read idx: %w", err)
	}

	r := newBinReader(raw)
	if _, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, opts.Validate); err != nil {
		return nil, fmt.Errorf("bwpak: %s: %w", idxPath, err)
	}

	const headerAnchor = FrameSize
	var hdr PackageFileHeader
	if err := r.structUnpack(&hdr, headerAnchor, packageFileHeaderSize); err != nil {
		return nil, err
	}

	p := &PFS{
		idxPath:  idxPath,
		names:    make(map[uint64]PackageFileName, hdr.NameCount),
		files:    make(map[uint64]PackageFile, hdr.FileCount),
		pkgByID:  make(map[uint64]string, hdr.PkgsCount),
		packages: make(map[uint64]mmap.MMap, hdr.PkgsCount),
		pkgFiles: make(map[uint64]*os.File, hdr.PkgsCount),
		opts:     opts,
		logger:   defaultPFSLogger(opts),
	}

	if err := p.readNames(r, headerAnchor, hdr); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.readFiles(r, headerAnchor, hdr); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.readPackages(r, headerAnchor, hdr, pkgDir); err != nil {
		p.Close()
		return nil, err
	}

	p.reconstructPaths()

	return p, nil
}

// readNames decodes the names section: array of PackageFileName, each an
// inner (anchor, length, offset, id) quad plus a parent_id (spec §4.6 step
// 3 "Names").
func (p *PFS) readNames(r *binReader, headerAnchor uint32, hdr PackageFileHeader) error {
	base := hdr.NameOffset.Resolve(headerAnchor)
	for i := uint32(0); i < hdr.NameCount; i++ {
		entryAnchor := base + i*onDiskPackageFileNameSize
		var raw onDiskPackageFileName
		if err := r.structUnpack(&raw, entryAnchor, onDiskPackageFileNameSize); err != nil {
			return err
		}
		str, err := r.cstring(raw.Pointer.Offset.Resolve(entryAnchor))
		if err != nil {
			return err
		}
		p.names[raw.ID] = PackageFileName{
			ID:       raw.ID,
			ParentID: raw.ParentID,
			Name:     str,
		}
	}
	return nil
}

// readFiles decodes the file records (spec §3 "PFS.PackageFile"), hash-
// mapped by id.
func (p *PFS) readFiles(r *binReader, headerAnchor uint32, hdr PackageFileHeader) error {
	base := hdr.FileOffset.Resolve(headerAnchor)
	raw, err := readPODArray[onDiskPackageFile](r, base, hdr.FileCount)
	if err != nil {
		return err
	}
	for _, f := range raw {
		p.files[f.ID] = PackageFile{
			ID:               f.ID,
			PackageID:        f.PackageID,
			Offset:           f.Offset,
			CompressionType:  CompressionType(f.CompressionType),
			CompressionFlags: f.CompressionFlags,
			CompressedSize:   f.CompressedSize,
			CRC32:            f.CRC32,
			UncompressedSize: f.UncompressedSize,
		}
	}
	return nil
}

// readPackages decodes the package-name array, interns id->name in the
// 64-bit interner, and memory-maps each referenced blob (spec §4.6 step 3
// "Packages").
func (p *PFS) readPackages(r *binReader, headerAnchor uint32, hdr PackageFileHeader, pkgDir string) error {
	base := hdr.PkgsOffset.Resolve(headerAnchor)
	for i := uint32(0); i < hdr.PkgsCount; i++ {
		entryAnchor := base + i*onDiskPackageNameSize
		var raw onDiskPackageName
		if err := r.structUnpack(&raw, entryAnchor, onDiskPackageNameSize); err != nil {
			return err
		}
		name, err := r.cstring(raw.Pointer.Offset.Resolve(entryAnchor))
		if err != nil {
			return err
		}
		p.pkgByID[raw.ID] = name
		Resources.Insert(raw.ID, name)

		path := filepath.Join(pkgDir, name)
		f, err := os.Open(path)
		if err != nil {
			p.logger.Warnf("bwpak: cannot open package %q: %v", path, err)
			continue
		}
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			p.logger.Warnf("bwpak: cannot map package %q: %v", path, err)
			continue
		}
		p.pkgFiles[raw.ID] = f
		p.packages[raw.ID] = m
	}
	return nil
}

// maxParentChainWalk bounds the parent-chain traversal so a corrupted,
// cyclic name forest cannot hang path reconstruction (spec §9 "must be
// bounded... and must not recurse").
const maxParentChainWalk = 4096

// reconstructPaths walks every file id's parent chain in the name forest
// and interns the composed path into the 64-bit interner (spec §4.6 step
// 4). A file's own id indexes directly into the name forest since both
// share the ResourceId space.
func (p *PFS) reconstructPaths() {
	for id := range p.files {
		path, ok := p.composePath(id)
		if !ok {
			continue
		}
		Resources.Insert(id, path)
	}
}

// composePath walks the name forest from nameID, prepending segments, and
// returns the composed path. It reports false if nameID has no entry in the
// name forest at all.
func (p *PFS) composePath(nameID uint64) (string, bool) {
	n, ok := p.names[nameID]
	if !ok {
		return "", false
	}

	segments := []string{n.Name}
	visited := map[uint64]bool{nameID: true}
	parent := n.ParentID
	for i := 0; resourceParentValid(parent) && i < maxParentChainWalk; i++ {
		if visited[parent] {
			break
		}
		visited[parent] = true
		pn, ok := p.names[parent]
		if !ok {
			break
		}
		segments = append([]string{pn.Name}, segments...)
		parent = pn.ParentID
	}
	return filepath.Join(segments...), true
}

// Open looks up the PackageFile for resourceID, decompresses it from its
// package's memory map, and optionally validates its CRC32 (spec §4.6
// "Operation open").
func (p *PFS) Open(resourceID uint64) ([]byte, error) {
	return p.open(resourceID, p.opts.Validate)
}

func (p *PFS) open(resourceID uint64, validate bool) ([]byte, error) {
	f, ok := p.files[resourceID]
	if !ok {
		return nil, ErrAssetNotFound
	}
	pkg, ok := p.packages[f.PackageID]
	if !ok {
		return nil, ErrAssetNotFound
	}

	comp := f.effectiveCompression()
	var src []byte
	if comp == CompressionNone {
		end := f.Offset + f.UncompressedSize
		if end > uint64(len(pkg)) {
			return nil, ErrOutsideBoundary
		}
		src = pkg[f.Offset:end]
	} else {
		end := f.Offset + uint64(f.CompressedSize)
		if end > uint64(len(pkg)) {
			return nil, ErrOutsideBoundary
		}
		src = pkg[f.Offset:end]
	}

	out, err := decompress(src, f.UncompressedSize, comp, f.CompressionFlags)
	if err != nil {
		return nil, err
	}

	if validate {
		if crc32ISOHDLC(out) != f.CRC32 {
			return nil, ErrChecksumMismatch
		}
	}

	return out, nil
}

// Has reports whether resourceID has a known file record.
func (p *PFS) Has(resourceID uint64) bool {
	_, ok := p.files[resourceID]
	return ok
}

// Close releases every memory-mapped package blob owned by p.
func (p *PFS) Close() error {
	var firstErr error
	for id, m := range p.packages {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.packages, id)
	}
	for id, f := range p.pkgFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.pkgFiles, id)
	}
	return firstErr
}
