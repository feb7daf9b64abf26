// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// Material property type tags, packed into the low 4 bits of each
// property_ids entry (spec §4.8 "Material v14").
const (
	matPropBool    = 0
	matPropInt     = 1
	matPropUint    = 2
	matPropFloat   = 3
	matPropTexture = 4
	matPropVec2    = 5
	matPropVec3    = 6
	matPropVec4    = 7
	matPropMatrix  = 8
)

// materialHeaderV14 is the fixed-size "prototype header" for a
// MaterialPrototype v14 record (spec §4.8 "Material v14"): a u16 property
// count followed by nine single-byte per-type element counts, then the
// eleven bare relocatable offsets in the same order, and the trailing
// scalar fields.
type materialHeaderV14 struct {
	PropertyCount uint16
	BoolCount     uint8
	IntCount      uint8
	UintCount     uint8
	FloatCount    uint8
	TextureCount  uint8
	Vec2Count     uint8
	Vec3Count     uint8
	Vec4Count     uint8
	MatrixCount   uint8
	_          [5]byte

	PropertyNamesOff RelOffset
	PropertyIDsOff   RelOffset
	BoolOff          RelOffset
	IntOff           RelOffset
	UintOff          RelOffset
	FloatOff         RelOffset
	TextureOff       RelOffset
	Vec2Off          RelOffset
	Vec3Off          RelOffset
	Vec4Off          RelOffset
	MatrixOff        RelOffset

	FxPath         uint64
	CollisionFlags uint32
	SortOrder      int32
}

const materialHeaderV14Size = 2 + 9 + 5 + 11*8 + 8 + 4 + 4

// MaterialRecord is a decoded MaterialPrototype v14 record (spec §4.8, §3
// "Typed prototype records"): nine name->value property maps assembled from
// the typed arrays and the packed property id/type tags.
type MaterialRecord struct {
	version int

	BoolProps    map[StringId]bool
	IntProps     map[StringId]int32
	UintProps    map[StringId]uint32
	FloatProps   map[StringId]float32
	TextureProps map[StringId]ResourceId
	Vec2Props    map[StringId]Vec2
	Vec3Props    map[StringId]Vec3
	Vec4Props    map[StringId]Vec4
	MatrixProps  map[StringId]Mat4

	FxPath         ResourceId
	CollisionFlags uint32
	SortOrder      int32
}

// TableID implements Record.
func (*MaterialRecord) TableID() StringId { return materialPrototypeID }

// Version implements Record.
func (m *MaterialRecord) Version() uint32 { return uint32(m.version) }

// decodeMaterialV14 decodes one MaterialPrototype v14 record at anchor
// (spec §4.8).
func decodeMaterialV14(r *binReader, anchor uint32, version uint32) (Record, error) {
	var hdr materialHeaderV14
	if err := r.structUnpack(&hdr, anchor, materialHeaderV14Size); err != nil {
		return nil, err
	}

	bools, err := readPODArray[uint8](r, hdr.BoolOff.Resolve(anchor), uint32(hdr.BoolCount))
	if err != nil {
		return nil, err
	}
	ints, err := readPODArray[int32](r, hdr.IntOff.Resolve(anchor), uint32(hdr.IntCount))
	if err != nil {
		return nil, err
	}
	uints, err := readPODArray[uint32](r, hdr.UintOff.Resolve(anchor), uint32(hdr.UintCount))
	if err != nil {
		return nil, err
	}
	floats, err := readPODArray[float32](r, hdr.FloatOff.Resolve(anchor), uint32(hdr.FloatCount))
	if err != nil {
		return nil, err
	}
	textures, err := readPODArray[uint64](r, hdr.TextureOff.Resolve(anchor), uint32(hdr.TextureCount))
	if err != nil {
		return nil, err
	}
	vec2s, err := readPODArray[Vec2](r, hdr.Vec2Off.Resolve(anchor), uint32(hdr.Vec2Count))
	if err != nil {
		return nil, err
	}
	vec3s, err := readPODArray[Vec3](r, hdr.Vec3Off.Resolve(anchor), uint32(hdr.Vec3Count))
	if err != nil {
		return nil, err
	}
	vec4s, err := readPODArray[Vec4](r, hdr.Vec4Off.Resolve(anchor), uint32(hdr.Vec4Count))
	if err != nil {
		return nil, err
	}
	matrices, err := readPODArray[Mat4](r, hdr.MatrixOff.Resolve(anchor), uint32(hdr.MatrixCount))
	if err != nil {
		return nil, err
	}
	names, err := readPODArray[uint32](r, hdr.PropertyNamesOff.Resolve(anchor), uint32(hdr.PropertyCount))
	if err != nil {
		return nil, err
	}
	ids, err := readPODArray[uint16](r, hdr.PropertyIDsOff.Resolve(anchor), uint32(hdr.PropertyCount))
	if err != nil {
		return nil, err
	}

	rec := &MaterialRecord{
		version:        int(version),
		BoolProps:      map[StringId]bool{},
		IntProps:       map[StringId]int32{},
		UintProps:      map[StringId]uint32{},
		FloatProps:     map[StringId]float32{},
		TextureProps:   map[StringId]ResourceId{},
		Vec2Props:      map[StringId]Vec2{},
		Vec3Props:      map[StringId]Vec3{},
		Vec4Props:      map[StringId]Vec4{},
		MatrixProps:    map[StringId]Mat4{},
		FxPath:         ResourceId(hdr.FxPath),
		CollisionFlags: hdr.CollisionFlags,
		SortOrder:      hdr.SortOrder,
	}

	for i := uint32(0); i < uint32(hdr.PropertyCount); i++ {
		name := StringId(names[i])
		packed := ids[i]
		typeTag := packed & 0xF
		idx := packed >> 4

		switch typeTag {
		case matPropBool:
			if int(idx) < len(bools) {
				rec.BoolProps[name] = bools[idx] != 0
			}
		case matPropInt:
			if int(idx) < len(ints) {
				rec.IntProps[name] = ints[idx]
			}
		case matPropUint:
			if int(idx) < len(uints) {
				rec.UintProps[name] = uints[idx]
			}
		case matPropFloat:
			if int(idx) < len(floats) {
				rec.FloatProps[name] = floats[idx]
			}
		case matPropTexture:
			if int(idx) < len(textures) {
				rec.TextureProps[name] = ResourceId(textures[idx])
			}
		case matPropVec2:
			if int(idx) < len(vec2s) {
				rec.Vec2Props[name] = vec2s[idx]
			}
		case matPropVec3:
			if int(idx) < len(vec3s) {
				rec.Vec3Props[name] = vec3s[idx]
			}
		case matPropVec4:
			if int(idx) < len(vec4s) {
				rec.Vec4Props[name] = vec4s[idx]
			}
		case matPropMatrix:
			if int(idx) < len(matrices) {
				rec.MatrixProps[name] = matrices[idx]
			}
		}
	}

	return rec, nil
}
