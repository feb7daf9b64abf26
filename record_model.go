// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// ModelMiscType enumerates a Model v14's misc_type byte (spec §4.8 "Model
// v14").
type ModelMiscType uint8

// Misc type values, in the order spec §4.8 lists them.
const (
	ModelMiscStructural ModelMiscType = iota
	ModelMiscNecessary
	ModelMiscOptional
	ModelMiscRedundant
	ModelMiscUndefined
)

func (t ModelMiscType) String() string {
	switch t {
	case ModelMiscStructural:
		return "structural"
	case ModelMiscNecessary:
		return "necessary"
	case ModelMiscOptional:
		return "optional"
	case ModelMiscRedundant:
		return "redundant"
	case ModelMiscUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// modelHeaderV14 is the fixed-size "prototype header" for a ModelPrototype
// v14 record (spec §4.8 "Model v14"): the animation/dye element counts sit
// as separate bytes ahead of the padding, not packed alongside their bare
// relocatable offsets.
type modelHeaderV14 struct {
	VisualResource uint64
	MiscType       uint8
	AnimationCount uint8
	DyeCount       uint8
	_           [5]byte
	AnimationsOff  RelOffset
	DyesOff        RelOffset
}

const modelHeaderV14Size = 8 + 1 + 1 + 1 + 5 + 8 + 8

// dyePrototypeV14 is one entry of a Model's dye array (spec §4.8 "Dye:
// (matter_id, replaces_id, tints: map<StringId,ResourceId>)"); tints are
// read as two parallel arrays of TintCount length anchored at this dye's own
// position and zipped into a map.
type dyePrototypeV14 struct {
	MatterID           uint32
	ReplacesID         uint32
	TintCount          uint32
	_               uint32
	TintNameIDsOff     RelOffset
	TintMaterialIDsOff RelOffset
}

const dyePrototypeV14Size = 4 + 4 + 4 + 4 + 8 + 8

// ModelDye is the decoded form of dyePrototypeV14.
type ModelDye struct {
	MatterID   StringId
	ReplacesID StringId
	Tints      map[StringId]ResourceId
}

// ModelRecord is a decoded ModelPrototype v14 record (spec §4.8, §3 "Typed
// prototype records").
type ModelRecord struct {
	version int

	VisualResource ResourceId
	MiscType       ModelMiscType
	Animations     []ResourceId
	Dyes           []ModelDye
}

// TableID implements Record.
func (*ModelRecord) TableID() StringId { return modelPrototypeID }

// Version implements Record.
func (m *ModelRecord) Version() uint32 { return uint32(m.version) }

// decodeModelV14 decodes one ModelPrototype v14 record at anchor (spec
// §4.8).
func decodeModelV14(r *binReader, anchor uint32, version uint32) (Record, error) {
	var hdr modelHeaderV14
	if err := r.structUnpack(&hdr, anchor, modelHeaderV14Size); err != nil {
		return nil, err
	}

	rawAnims, err := readPODArray[uint64](r, hdr.AnimationsOff.Resolve(anchor), uint32(hdr.AnimationCount))
	if err != nil {
		return nil, err
	}
	anims := make([]ResourceId, len(rawAnims))
	for i, a := range rawAnims {
		anims[i] = ResourceId(a)
	}

	dyes, err := decodeModelDyes(r, anchor, hdr.DyesOff, hdr.DyeCount)
	if err != nil {
		return nil, err
	}

	return &ModelRecord{
		version:        int(version),
		VisualResource: ResourceId(hdr.VisualResource),
		MiscType:       ModelMiscType(hdr.MiscType),
		Animations:     anims,
		Dyes:           dyes,
	}, nil
}

func decodeModelDyes(r *binReader, anchor uint32, offset RelOffset, count uint8) ([]ModelDye, error) {
	if count == 0 {
		return nil, nil
	}
	base := offset.Resolve(anchor)
	out := make([]ModelDye, count)
	for i := uint32(0); i < uint32(count); i++ {
		dyeAnchor := base + i*dyePrototypeV14Size
		var raw dyePrototypeV14
		if err := r.structUnpack(&raw, dyeAnchor, dyePrototypeV14Size); err != nil {
			return nil, err
		}
		names, err := readPODArray[uint32](r, raw.TintNameIDsOff.Resolve(dyeAnchor), raw.TintCount)
		if err != nil {
			return nil, err
		}
		materials, err := readPODArray[uint64](r, raw.TintMaterialIDsOff.Resolve(dyeAnchor), raw.TintCount)
		if err != nil {
			return nil, err
		}
		tints := make(map[StringId]ResourceId, raw.TintCount)
		for j := uint32(0); j < raw.TintCount; j++ {
			tints[StringId(names[j])] = ResourceId(materials[j])
		}
		out[i] = ModelDye{
			MatterID:   StringId(raw.MatterID),
			ReplacesID: StringId(raw.ReplacesID),
			Tints:      tints,
		}
	}
	return out, nil
}
