// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// bigWorldDatabaseHeader is the BWDB's top-level record, anchored at its own
// position immediately after the FramedHeader (spec §3 "BWDB.DatabaseHeader",
// §6). Field order mirrors spec §4.7's construction steps: strings map,
// string_data pointer, prototypes map, paths pointer, tables pointer.
type bigWorldDatabaseHeader struct {
	Strings    MapSection
	StringData PointerSection
	Prototypes MapSection
	Paths      PointerSection
	Tables     PointerSection
}

const bigWorldDatabaseHeaderSize = 24 + 16 + 24 + 16 + 16

// onDiskStrPtr is a (length, offset) pair resolved against its enclosing
// record's own anchor, the same micro-pattern as the PFS names section.
type onDiskStrPtr struct {
	Length uint32
	Offset RelOffset
}

const onDiskStrPtrSize = 4 + 8

// onDiskBigWorldName is one entry in the BWDB paths/names pointer array
// (spec §3 "BWDB.Name" via §4.7 step 4 "Paths (names)"): a ResourceId id, a
// ResourceId parent link, and a name pointer anchored at this entry's own
// position. The name pointer reuses the same (count, offset) shape as every
// other BWDB pointer section (count doubling as the string length), not the
// narrower length/offset pair PFS uses for its own names.
type onDiskBigWorldName struct {
	ID       uint64
	ParentID uint64
	Pointer  PointerSection
}

const onDiskBigWorldNameSize = 8 + 8 + pointerSectionSize

// invalidResourceParent values terminate a BigWorldName/PackageFileName
// parent-chain walk ("until it becomes invalid (0 or all-ones)").
const invalidResourceParent0 = 0
const invalidResourceParentAll = 0xFFFFFFFFFFFFFFFF

// onDiskTableHeader is one entry in the BWDB tables pointer array (spec §3
// "BWDB.TableHeader"). Body is itself a pointer to a second, nested pointer
// section which in turn locates the packed record array (spec §4.7 step 6
// "body points at a nested pointer which in turn points to the packed
// record array").
type onDiskTableHeader struct {
	ID      uint32
	Version uint32
	Body    PointerSection
}

const onDiskTableHeaderSize = 4 + 4 + pointerSectionSize

// PrototypeRef is the packed 32-bit prototype→record locator (spec §3
// "BWDB.PrototypeRef"): bits 0-1 are the state, bits 2-7 the table index
// (max 63), bits 8-31 the record index.
type PrototypeRef uint32

// State returns the 2-bit state field. 0 means normal, 3 means deleted; 1
// and 2 are observed on disk with unknown semantics (spec §9 Open
// Questions) and are treated the same as any other non-zero state by
// Open: deleted.
func (r PrototypeRef) State() uint8 { return uint8(r & 0x3) }

// TableIndex returns the 6-bit table index field.
func (r PrototypeRef) TableIndex() uint8 { return uint8((r >> 2) & 0x3F) }

// RecordIndex returns the 24-bit record index field.
func (r PrototypeRef) RecordIndex() uint32 { return uint32(r>>8) & 0xFFFFFF }

// Valid reports whether the ref's state is the normal (non-deleted) state.
func (r PrototypeRef) Valid() bool { return r.State() == 0 }

// TableHeaderInfo is the decoded, caller-visible form of onDiskTableHeader:
// just the identity (id, version), without the raw pointer plumbing.
type TableHeaderInfo struct {
	ID      StringId
	Version uint32
}

// tableSlot holds one decoded table's records, the parallel per-table
// status slot (spec §4.9), and its original header.
type tableSlot struct {
	Header  TableHeaderInfo
	Records []Record
	Status  error
}
