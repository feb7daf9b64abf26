// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// bwdbFixture carries every value buildBWDBBlob baked into the synthesized
// blob, so TestOpenBigWorldDatabase can assert against them instead of
// magic literals.
type bwdbFixture struct {
	liveID, deletedID, visualID uint64

	modelVisualResource uint64
	dyeMatterID         uint32
	dyeReplacesID       uint32
	dyeTintNameID       uint32
	dyeTintMaterialID   uint64

	visualNodeNameID  uint32
	visualParentID    uint16
	visualMergedGeo   uint64
	visualMatrixFirst float32
}

// buildBWDBBlob synthesizes a minimal BWDB blob in-process (no binary
// fixture was retrieved alongside the teacher): one interned string, three
// prototype refs (a live Model, a deleted asset per scenario S5, and a live
// Visual), one path, and two tables: a ModelPrototype v14 table whose single
// record carries one dye with one tint, and a VisualPrototype v14 table
// whose single record carries one skeleton node (non-empty name/matrix/
// parent arrays), exercising decodeVisualV14 and the dye-tint zip end to
// end per spec §8 S5.
func buildBWDBBlob(t *testing.T, validate bool) (blob []byte, fx bwdbFixture) {
	t.Helper()

	const headerAnchor = FrameSize
	sectionsStart := uint32(headerAnchor + bigWorldDatabaseHeaderSize)

	var sections bytes.Buffer
	off := func() uint32 { return sectionsStart + uint32(sections.Len()) }

	// 1. strings map: one active key "Test".
	stringsKeysOff := off()
	binary.Write(&sections, binary.LittleEndian, mapKey32{ID: NewStringId("Test").Value(), Bucket: mapBucketActive})
	stringsValuesOff := off()
	binary.Write(&sections, binary.LittleEndian, uint32(0))
	stringDataOff := off()
	sections.WriteString("Test")
	sections.WriteByte(0)

	// 2. prototypes map: one live Model ref (table 0, record 0), one
	// deleted ref, one live Visual ref (table 1, record 0).
	fx.liveID = 0xAAA1
	fx.deletedID = 0xAAA2
	fx.visualID = 0xAAA3
	prototypesKeysOff := off()
	binary.Write(&sections, binary.LittleEndian, mapKey64{ID: fx.liveID, Bucket: mapBucketActive})
	binary.Write(&sections, binary.LittleEndian, mapKey64{ID: fx.deletedID, Bucket: mapBucketActive})
	binary.Write(&sections, binary.LittleEndian, mapKey64{ID: fx.visualID, Bucket: mapBucketActive})
	prototypesValuesOff := off()
	liveRef := PrototypeRef(0)    // state=0, table=0, record=0
	deletedRef := PrototypeRef(3) // state=3 (deleted)
	visualRef := PrototypeRef(1 << 2) // state=0, table=1, record=0
	binary.Write(&sections, binary.LittleEndian, uint32(liveRef))
	binary.Write(&sections, binary.LittleEndian, uint32(deletedRef))
	binary.Write(&sections, binary.LittleEndian, uint32(visualRef))

	// 3. paths: one entry for liveID. The name pointer reuses the full
	// (count, offset) pointer-section shape, count doubling as the string
	// length.
	pathsOff := off()
	pathEntryAnchor := off()
	const pathName = "model/ship.model"
	binary.Write(&sections, binary.LittleEndian, fx.liveID)
	binary.Write(&sections, binary.LittleEndian, uint64(invalidResourceParentAll))
	binary.Write(&sections, binary.LittleEndian, uint64(len(pathName))) // Pointer.Count (length)
	pathNameRelOffsetPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // Pointer.Offset, patched below
	pathNameOff := off()
	sections.WriteString(pathName)
	sections.WriteByte(0)
	patchUint64(&sections, pathNameRelOffsetPos, uint64(pathNameOff-pathEntryAnchor))

	// 4a. tables[0]: ModelPrototype v14, one record with one dye/tint.
	fx.modelVisualResource = 0x1234567890
	fx.dyeMatterID = 0x1111
	fx.dyeReplacesID = 0x2222
	fx.dyeTintNameID = 0xBEEF
	fx.dyeTintMaterialID = 0xCAFEF00D

	// Both table headers must sit contiguously in the tables pointer array
	// (readTables indexes entryAnchor = base + i*onDiskTableHeaderSize), so
	// write the two fixed-size headers first and back-patch each Body.Offset
	// once its table's inner pointer/record data has been written below.
	tablesOff := off()

	modelTableAnchor := off()
	binary.Write(&sections, binary.LittleEndian, uint32(modelPrototypeID))
	binary.Write(&sections, binary.LittleEndian, uint32(14))
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // Body.Count, unused
	modelBodyRelOffsetPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // Body.Offset, patched below

	visualTableAnchor := off()
	binary.Write(&sections, binary.LittleEndian, uint32(visualPrototypeID))
	binary.Write(&sections, binary.LittleEndian, uint32(14))
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // Body.Count, unused
	visualBodyRelOffsetPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // Body.Offset, patched below

	modelInnerPtrOff := off()
	binary.Write(&sections, binary.LittleEndian, uint64(1))  // inner.Count
	modelInnerOffsetPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // inner.Offset, patched below

	modelRecordAnchor := off()
	binary.Write(&sections, binary.LittleEndian, fx.modelVisualResource)
	binary.Write(&sections, binary.LittleEndian, uint8(0)) // MiscType: structural
	binary.Write(&sections, binary.LittleEndian, uint8(0)) // AnimationCount
	binary.Write(&sections, binary.LittleEndian, uint8(1)) // DyeCount
	sections.Write(make([]byte, 5))                        // pad
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // AnimationsOff, unused (count 0)
	modelDyesOffPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // DyesOff, patched below

	dyeAnchor := off()
	binary.Write(&sections, binary.LittleEndian, fx.dyeMatterID)
	binary.Write(&sections, binary.LittleEndian, fx.dyeReplacesID)
	binary.Write(&sections, binary.LittleEndian, uint32(1)) // TintCount
	binary.Write(&sections, binary.LittleEndian, uint32(0)) // pad
	tintNamesOffPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // TintNameIDsOff, patched below
	tintMaterialsOffPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // TintMaterialIDsOff, patched below

	tintNamesOff := off()
	binary.Write(&sections, binary.LittleEndian, fx.dyeTintNameID)
	tintMaterialsOff := off()
	binary.Write(&sections, binary.LittleEndian, fx.dyeTintMaterialID)

	patchUint64(&sections, modelBodyRelOffsetPos, uint64(modelInnerPtrOff-modelTableAnchor))
	patchUint64(&sections, modelInnerOffsetPos, uint64(modelRecordAnchor-modelInnerPtrOff))
	patchUint64(&sections, modelDyesOffPos, uint64(dyeAnchor-modelRecordAnchor))
	patchUint64(&sections, tintNamesOffPos, uint64(tintNamesOff-dyeAnchor))
	patchUint64(&sections, tintMaterialsOffPos, uint64(tintMaterialsOff-dyeAnchor))

	// 4b. tables[1]: VisualPrototype v14, one record with one skeleton node.
	fx.visualNodeNameID = 0x5050
	fx.visualParentID = 0xFFFF // sentinel "no parent" node, still a concrete value to decode
	fx.visualMergedGeo = 0x9999000099990000
	fx.visualMatrixFirst = 1.0

	visualInnerPtrOff := off()
	binary.Write(&sections, binary.LittleEndian, uint64(1)) // inner.Count
	visualInnerOffsetPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // inner.Offset, patched below

	visualRecordAnchor := off()
	// skeletonHeaderV14
	binary.Write(&sections, binary.LittleEndian, uint32(1)) // NodeCount
	binary.Write(&sections, binary.LittleEndian, uint32(0)) // pad
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // NameMapIDOff, unused by decoder
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // NameMapNodeOff, unused by decoder
	nameIDsOffPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // NameIDsOff, patched below
	matricesOffPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // MatricesOff, patched below
	parentIDsOffPos := sections.Len()
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // ParentIDsOff, patched below
	// visualHeaderV14 tail
	binary.Write(&sections, binary.LittleEndian, fx.visualMergedGeo)
	binary.Write(&sections, binary.LittleEndian, uint8(1)) // IsUnderwaterModel
	binary.Write(&sections, binary.LittleEndian, uint8(0)) // IsAbovewaterModel
	binary.Write(&sections, binary.LittleEndian, uint16(0)) // RenderSetsCount
	binary.Write(&sections, binary.LittleEndian, uint8(0))  // LODCount
	sections.Write(make([]byte, 3))                         // pad
	bbox := BoundingBox{
		Min: Vec4{X: -1, Y: -1, Z: -1, W: 0},
		Max: Vec4{X: 1, Y: 1, Z: 1, W: 0},
	}
	binary.Write(&sections, binary.LittleEndian, bbox)
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // RenderSetsOff, unused (count 0)
	binary.Write(&sections, binary.LittleEndian, uint64(0)) // LODsOff, unused (count 0)

	nameIDsOff := off()
	binary.Write(&sections, binary.LittleEndian, fx.visualNodeNameID)
	matricesOff := off()
	mat := Mat4{}
	mat.M[0] = fx.visualMatrixFirst
	binary.Write(&sections, binary.LittleEndian, mat)
	parentIDsOff := off()
	binary.Write(&sections, binary.LittleEndian, fx.visualParentID)

	patchUint64(&sections, visualBodyRelOffsetPos, uint64(visualInnerPtrOff-visualTableAnchor))
	patchUint64(&sections, visualInnerOffsetPos, uint64(visualRecordAnchor-visualInnerPtrOff))
	patchUint64(&sections, nameIDsOffPos, uint64(nameIDsOff-visualRecordAnchor))
	patchUint64(&sections, matricesOffPos, uint64(matricesOff-visualRecordAnchor))
	patchUint64(&sections, parentIDsOffPos, uint64(parentIDsOff-visualRecordAnchor))

	var hdrBuf bytes.Buffer
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(1))                               // Strings.Count
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(stringsKeysOff-headerAnchor))     // Strings.KeyOffset
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(stringsValuesOff-headerAnchor))   // Strings.ValueOffset
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(0))                               // StringData.Count (unused)
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(stringDataOff-headerAnchor))      // StringData.Offset
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(3))                               // Prototypes.Count
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(prototypesKeysOff-headerAnchor))  // Prototypes.KeyOffset
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(prototypesValuesOff-headerAnchor))
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(1))                     // Paths.Count
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(pathsOff-headerAnchor)) // Paths.Offset
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(2))                     // Tables.Count
	binary.Write(&hdrBuf, binary.LittleEndian, uint64(tablesOff-headerAnchor)) // Tables.Offset

	var payload bytes.Buffer
	payload.Write(hdrBuf.Bytes())
	payload.Write(sections.Bytes())

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, magicBWDB)
	binary.Write(&out, binary.LittleEndian, swap32(DefaultBWDBVersion))
	hash := uint32(0)
	if validate {
		hash = mmh3_32(payload.Bytes())
	}
	binary.Write(&out, binary.LittleEndian, hash)
	binary.Write(&out, binary.LittleEndian, uint32(ExpectedPointerSize))
	out.Write(payload.Bytes())
	return out.Bytes(), fx
}

// patchUint64 overwrites 8 bytes within buf's already-written backing array
// at byte offset pos, used to back-patch a RelOffset once the target
// position it must point to becomes known.
func patchUint64(buf *bytes.Buffer, pos int, v uint64) {
	b := buf.Bytes()
	binary.LittleEndian.PutUint64(b[pos:pos+8], v)
}

func TestOpenBigWorldDatabase(t *testing.T) {
	blob, fx := buildBWDBBlob(t, true)

	db, err := OpenBigWorldDatabase(blob, BWDBOptions{Validate: true})
	if err != nil {
		t.Fatalf("OpenBigWorldDatabase: %v", err)
	}

	rec, err := db.Open(fx.liveID)
	if err != nil {
		t.Fatalf("Open(live) = %v", err)
	}
	model, ok := rec.(*ModelRecord)
	if !ok {
		t.Fatalf("Open(live) returned %T, want *ModelRecord", rec)
	}
	if uint64(model.VisualResource) != fx.modelVisualResource {
		t.Errorf("VisualResource = %#x, want %#x", uint64(model.VisualResource), fx.modelVisualResource)
	}
	if model.Version() != 14 {
		t.Errorf("Version() = %d, want 14", model.Version())
	}
	if model.TableID() != modelPrototypeID {
		t.Errorf("TableID() = %v, want %v", model.TableID(), modelPrototypeID)
	}
	if len(model.Dyes) != 1 {
		t.Fatalf("len(Dyes) = %d, want 1", len(model.Dyes))
	}
	dye := model.Dyes[0]
	if dye.MatterID != StringId(fx.dyeMatterID) {
		t.Errorf("Dyes[0].MatterID = %v, want %v", dye.MatterID, StringId(fx.dyeMatterID))
	}
	if dye.ReplacesID != StringId(fx.dyeReplacesID) {
		t.Errorf("Dyes[0].ReplacesID = %v, want %v", dye.ReplacesID, StringId(fx.dyeReplacesID))
	}
	if len(dye.Tints) != 1 {
		t.Fatalf("len(Dyes[0].Tints) = %d, want 1", len(dye.Tints))
	}
	if got, ok := dye.Tints[StringId(fx.dyeTintNameID)]; !ok || got != ResourceId(fx.dyeTintMaterialID) {
		t.Errorf("Dyes[0].Tints[%v] = (%v, %v), want (%v, true)", StringId(fx.dyeTintNameID), got, ok, ResourceId(fx.dyeTintMaterialID))
	}

	if _, err := db.Open(fx.deletedID); err != ErrDeletedAsset {
		t.Errorf("Open(deleted) = %v, want ErrDeletedAsset", err)
	}

	if _, err := db.Open(0xdeadbeef); err != ErrAssetNotFound {
		t.Errorf("Open(unknown) = %v, want ErrAssetNotFound", err)
	}

	visRec, err := db.Open(fx.visualID)
	if err != nil {
		t.Fatalf("Open(visual) = %v", err)
	}
	visual, ok := visRec.(*VisualRecord)
	if !ok {
		t.Fatalf("Open(visual) returned %T, want *VisualRecord", visRec)
	}
	if visual.TableID() != visualPrototypeID {
		t.Errorf("TableID() = %v, want %v", visual.TableID(), visualPrototypeID)
	}
	if uint64(visual.MergedGeometry) != fx.visualMergedGeo {
		t.Errorf("MergedGeometry = %#x, want %#x", uint64(visual.MergedGeometry), fx.visualMergedGeo)
	}
	if !visual.IsUnderwaterModel || visual.IsAbovewaterModel {
		t.Errorf("IsUnderwaterModel/IsAbovewaterModel = %v/%v, want true/false", visual.IsUnderwaterModel, visual.IsAbovewaterModel)
	}
	if len(visual.NodeNames) != 1 || visual.NodeNames[0] != StringId(fx.visualNodeNameID) {
		t.Errorf("NodeNames = %v, want [%v]", visual.NodeNames, StringId(fx.visualNodeNameID))
	}
	if len(visual.NodeParents) != 1 || visual.NodeParents[0] != fx.visualParentID {
		t.Errorf("NodeParents = %v, want [%d]", visual.NodeParents, fx.visualParentID)
	}
	if len(visual.NodeMatrices) != 1 || visual.NodeMatrices[0].M[0] != fx.visualMatrixFirst {
		t.Errorf("NodeMatrices = %v, want a single matrix with M[0] = %v", visual.NodeMatrices, fx.visualMatrixFirst)
	}

	path, ok := db.Path(fx.liveID)
	if !ok || path != "model/ship.model" {
		t.Errorf("Path(live) = (%q, %v), want (\"model/ship.model\", true)", path, ok)
	}

	tables := db.Tables()
	if len(tables) != 2 {
		t.Fatalf("len(Tables()) = %d, want 2", len(tables))
	}
	if tables[0].ID != modelPrototypeID || tables[0].Version != 14 {
		t.Errorf("Tables()[0] = %+v, want a ModelPrototype v14 entry", tables[0])
	}
	if tables[1].ID != visualPrototypeID || tables[1].Version != 14 {
		t.Errorf("Tables()[1] = %+v, want a VisualPrototype v14 entry", tables[1])
	}
	if err := db.TableStatus(0); err != nil {
		t.Errorf("TableStatus(0) = %v, want nil", err)
	}
	if err := db.TableStatus(1); err != nil {
		t.Errorf("TableStatus(1) = %v, want nil", err)
	}

	if got, ok := Strings.Lookup(NewStringId("Test").Value()); !ok || got != "Test" {
		t.Errorf("Strings.Lookup(Test) = (%q, %v), want (\"Test\", true)", got, ok)
	}
}

func TestOpenBigWorldDatabaseChecksumMismatch(t *testing.T) {
	blob, _ := buildBWDBBlob(t, false)
	if _, err := OpenBigWorldDatabase(blob, BWDBOptions{Validate: true}); err == nil {
		t.Fatal("OpenBigWorldDatabase with unvalidated hash and Validate=true should fail")
	}
}
