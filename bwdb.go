// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-bwfs/bwpak/log"
)

// BWDBOptions configures BigWorldDatabase construction (spec §2 AMBIENT
// STACK "Configuration"). ExpectedVersion defaults to DefaultBWDBVersion
// when zero, per spec §9's note that the expected version should be a
// parameter, not hard-coded.
type BWDBOptions struct {
	Validate        bool
	ExpectedVersion uint32
	Logger          log.Logger
}

func defaultBWDBLogger(opts BWDBOptions) *log.Helper {
	if opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	return log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
}

// BigWorldDatabase is the decoded form of content/assets.bin (spec §2 item
// 7, §4.7): interned strings and paths, the resource-id->prototype lookup,
// and the versioned record tables.
type BigWorldDatabase struct {
	prototypes map[uint64]PrototypeRef
	paths      map[uint64]string
	tables     []tableSlot

	opts   BWDBOptions
	logger *log.Helper
}

// OpenBigWorldDatabase decodes blob as a BWDB (spec §4.7 "Construction from
// (blob, validate)").
func OpenBigWorldDatabase(blob []byte, opts BWDBOptions) (*BigWorldDatabase, error) {
	if opts.ExpectedVersion == 0 {
		opts.ExpectedVersion = DefaultBWDBVersion
	}

	r := newBinReader(blob)
	if _, err := readFramedHeader(r, magicBWDB, opts.ExpectedVersion, opts.Validate); err != nil {
		return nil, err
	}

	const headerAnchor = FrameSize
	var hdr bigWorldDatabaseHeader
	if err := r.structUnpack(&hdr, headerAnchor, bigWorldDatabaseHeaderSize); err != nil {
		return nil, err
	}

	db := &BigWorldDatabase{
		prototypes: make(map[uint64]PrototypeRef),
		paths:      make(map[uint64]string),
		opts:       opts,
		logger:     defaultBWDBLogger(opts),
	}

	if err := db.readStrings(r, headerAnchor, hdr); err != nil {
		return nil, err
	}
	if err := db.readPaths(r, headerAnchor, hdr); err != nil {
		return nil, err
	}
	if err := db.readPrototypes(r, headerAnchor, hdr); err != nil {
		return nil, err
	}
	if err := db.readTables(r, headerAnchor, hdr); err != nil {
		return nil, err
	}

	return db, nil
}

// readStrings interns every active key's string into the 32-bit interner
// (spec §4.7 step 3 "Strings").
func (db *BigWorldDatabase) readStrings(r *binReader, headerAnchor uint32, hdr bigWorldDatabaseHeader) error {
	keys, err := readMapKeys32(r, headerAnchor, hdr.Strings)
	if err != nil {
		return err
	}
	values, err := readMapValues[uint32](r, headerAnchor, hdr.Strings)
	if err != nil {
		return err
	}

	base := hdr.StringData.Offset.Resolve(headerAnchor)
	for i, k := range keys {
		if !active(k.Bucket) {
			continue
		}
		str, err := r.cstring(base + values[i])
		if err != nil {
			return err
		}
		Strings.Insert(k.ID, str)
	}
	return nil
}

// readPaths decodes the names/paths pointer array, then composes full
// paths by walking each entry's parent chain (spec §4.7 step 4 "Paths
// (names)").
func (db *BigWorldDatabase) readPaths(r *binReader, headerAnchor uint32, hdr bigWorldDatabaseHeader) error {
	type segment struct {
		name   string
		parent uint64
	}
	segments := make(map[uint64]segment, hdr.Paths.Count)

	base := hdr.Paths.Offset.Resolve(headerAnchor)
	for i := uint64(0); i < hdr.Paths.Count; i++ {
		entryAnchor := base + uint32(i)*onDiskBigWorldNameSize
		var raw onDiskBigWorldName
		if err := r.structUnpack(&raw, entryAnchor, onDiskBigWorldNameSize); err != nil {
			return err
		}
		str, err := r.cstring(raw.Pointer.Offset.Resolve(entryAnchor))
		if err != nil {
			return err
		}
		segments[raw.ID] = segment{name: str, parent: raw.ParentID}
	}

	for id, s := range segments {
		parts := []string{s.name}
		visited := map[uint64]bool{id: true}
		parent := s.parent
		for i := 0; resourceParentValid(parent) && i < maxParentChainWalk; i++ {
			if visited[parent] {
				break
			}
			visited[parent] = true
			p, ok := segments[parent]
			if !ok {
				break
			}
			parts = append([]string{p.name}, parts...)
			parent = p.parent
		}
		full := filepath.Join(parts...)
		db.paths[id] = full
		Resources.Insert(id, full)
	}
	return nil
}

func resourceParentValid(id uint64) bool {
	return id != invalidResourceParent0 && id != invalidResourceParentAll
}

// readPrototypes decodes the prototype-ref map. Inclusion only requires the
// bucket's high bit to be set; PrototypeRef.State is interpreted later by
// Open, not filtered here, so that a deleted asset's ref remains lookupable
// and Open can report ErrDeletedAsset for it (spec §4.7 "Operation open",
// §8 invariant 10 — see DESIGN.md's Open Question decision).
func (db *BigWorldDatabase) readPrototypes(r *binReader, headerAnchor uint32, hdr bigWorldDatabaseHeader) error {
	keys, err := readMapKeys64(r, headerAnchor, hdr.Prototypes)
	if err != nil {
		return err
	}
	values, err := readMapValues[uint32](r, headerAnchor, hdr.Prototypes)
	if err != nil {
		return err
	}
	for i, k := range keys {
		if !active(k.Bucket) {
			continue
		}
		db.prototypes[k.ID] = PrototypeRef(values[i])
	}
	return nil
}

// readTables decodes the tables pointer array, dispatching each header to
// its registered decoder and recording a per-table status rather than
// aborting on an individual table's failure (spec §4.7 step 6, §4.9).
func (db *BigWorldDatabase) readTables(r *binReader, headerAnchor uint32, hdr bigWorldDatabaseHeader) error {
	base := hdr.Tables.Offset.Resolve(headerAnchor)
	for i := uint64(0); i < hdr.Tables.Count; i++ {
		entryAnchor := base + uint32(i)*onDiskTableHeaderSize
		var raw onDiskTableHeader
		if err := r.structUnpack(&raw, entryAnchor, onDiskTableHeaderSize); err != nil {
			return err
		}

		tableID := StringId(raw.ID)
		info := TableHeaderInfo{ID: tableID, Version: raw.Version}

		desc, err := dispatchTableDecoder(tableID, raw.Version)
		if err != nil {
			db.logger.Warnf("bwpak: table %s: %v", tableID, err)
			db.tables = append(db.tables, tableSlot{Header: info, Status: err})
			continue
		}

		records, err := db.decodeTableRecords(r, entryAnchor, raw.Body, raw.Version, desc)
		if err != nil {
			db.logger.Warnf("bwpak: table %s v%d: %v", tableID, raw.Version, err)
			db.tables = append(db.tables, tableSlot{Header: info, Status: err})
			continue
		}
		db.tables = append(db.tables, tableSlot{Header: info, Records: records})
	}
	return nil
}

// decodeTableRecords resolves a table's body (a pointer to a nested
// pointer, which in turn locates the packed record array, spec §3
// "BWDB.TableHeader") and decodes every record in it.
func (db *BigWorldDatabase) decodeTableRecords(r *binReader, tableAnchor uint32, body PointerSection, version uint32, desc tableDescriptor) ([]Record, error) {
	innerAnchor := body.Offset.Resolve(tableAnchor)
	var inner PointerSection
	if err := r.structUnpack(&inner, innerAnchor, pointerSectionSize); err != nil {
		return nil, err
	}
	recordsBase := inner.Offset.Resolve(innerAnchor)

	records := make([]Record, 0, inner.Count)
	for i := uint64(0); i < inner.Count; i++ {
		recAnchor := recordsBase + uint32(i)*desc.recordSize
		rec, err := desc.decode(r, recAnchor, version)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Open resolves resourceID to its prototype ref and returns the typed
// record it locates (spec §4.7 "Operation open").
func (db *BigWorldDatabase) Open(resourceID uint64) (Record, error) {
	ref, ok := db.prototypes[resourceID]
	if !ok {
		return nil, ErrAssetNotFound
	}
	if ref.State() != 0 {
		return nil, ErrDeletedAsset
	}

	tableIdx := int(ref.TableIndex())
	if tableIdx < 0 || tableIdx >= len(db.tables) {
		return nil, ErrInvalidTable
	}
	slot := db.tables[tableIdx]
	if slot.Status != nil {
		return nil, slot.Status
	}

	recIdx := int(ref.RecordIndex())
	if recIdx < 0 || recIdx >= len(slot.Records) {
		return nil, ErrInvalidRecord
	}
	return slot.Records[recIdx], nil
}

// Path returns the composed path interned for resourceID, if any.
func (db *BigWorldDatabase) Path(resourceID uint64) (string, bool) {
	p, ok := db.paths[resourceID]
	return p, ok
}

// Tables returns the decoded header/status for every table, in on-disk
// order, for diagnostics and the unpack CLI.
func (db *BigWorldDatabase) Tables() []TableHeaderInfo {
	out := make([]TableHeaderInfo, len(db.tables))
	for i, t := range db.tables {
		out[i] = t.Header
	}
	return out
}

// TableStatus returns the recorded status for the table at index i (spec
// §4.9).
func (db *BigWorldDatabase) TableStatus(i int) error {
	if i < 0 || i >= len(db.tables) {
		return fmt.Errorf("bwpak: table index %d out of range", i)
	}
	return db.tables[i].Status
}
