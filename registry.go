// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// Record is the common interface satisfied by every versioned prototype
// record decoded from a BWDB table (spec §3 "Typed prototype records",
// §4.8 "Record variant is tagged by (table_category, version)").
type Record interface {
	// TableID returns the StringId of the table this record was decoded
	// from.
	TableID() StringId
	// Version returns the table version this record was decoded under.
	Version() uint32
}

// tableDecodeFunc decodes one fixed-size record at anchor. anchor is the
// record's own position in the packed array; all of the record's
// relocatable sub-offsets are resolved against it (spec §4.4, §4.8).
type tableDecodeFunc func(r *binReader, anchor uint32, version uint32) (Record, error)

// tableDescriptor pairs a decoder with the on-disk size of one record of
// its type, needed to stride through the packed record array (spec §4.8
// "reads a compact prototype header... then reads each array at its own
// anchor+offset").
type tableDescriptor struct {
	decode     tableDecodeFunc
	recordSize uint32
}

type tableKey struct {
	ID      StringId
	Version uint32
}

// registry is the dispatch table keyed on (table id, version), generalizing
// the teacher's funcMaps-style data-directory dispatch (see DESIGN.md) to a
// map keyed on a StringId/version pair instead of an enum.
var registry = map[tableKey]tableDescriptor{}

// knownTableIDs records every table id that has at least one registered
// version, so dispatch can distinguish "unsupported table" (id never
// registered) from "unsupported table version" (id known, version isn't)
// per spec §4.7 step 6 / §4.9.
var knownTableIDs = map[StringId]bool{}

// registerTableDecoder registers fn as the decoder for (id, version).
// recordSize is the fixed on-disk size of one record of this type.
func registerTableDecoder(id StringId, version uint32, recordSize uint32, fn tableDecodeFunc) {
	registry[tableKey{ID: id, Version: version}] = tableDescriptor{decode: fn, recordSize: recordSize}
	knownTableIDs[id] = true
}

// dispatchTableDecoder looks up the decoder for (id, version), returning the
// distinct error kinds spec §4.7/§4.9 require.
func dispatchTableDecoder(id StringId, version uint32) (tableDescriptor, error) {
	d, ok := registry[tableKey{ID: id, Version: version}]
	if ok {
		return d, nil
	}
	if knownTableIDs[id] {
		return tableDescriptor{}, &UnsupportedTableVersionError{TableID: id, Version: version}
	}
	return tableDescriptor{}, &UnsupportedTableError{TableID: id}
}

// Known table id hashes (spec §4.8). VisualPrototype and ModelPrototype are
// given as literal mmh3_32 vectors in the spec; MaterialPrototype is not
// given a literal hash, so its StringId is computed with NewStringId at
// package initialization, by naming convention with the other two prototype
// table ids.
var (
	visualPrototypeID   = StringId(0x3167064b) // mmh3_32("VisualPrototype"), spec §4.8
	modelPrototypeID    = StringId(0xd6b11569) // mmh3_32("ModelPrototype"), spec §4.8
	materialPrototypeID = NewStringId("MaterialPrototype")
)

func init() {
	registerTableDecoder(visualPrototypeID, 14, visualHeaderV14Size, decodeVisualV14)
	registerTableDecoder(modelPrototypeID, 14, modelHeaderV14Size, decodeModelV14)
	registerTableDecoder(materialPrototypeID, 14, materialHeaderV14Size, decodeMaterialV14)
}
