// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// skeletonHeaderV14 is the embedded skeleton sub-header of a VisualPrototype
// v14 record (spec §4.8 "Visual v14"): a node count plus five relocatable
// offset arrays. Only NameIDsOff, MatricesOff, and ParentIDsOff are read by
// the skeleton decoder; NameMapIDOff/NameMapNodeOff locate a separate
// name->node index this decoder does not need, but both offsets still occupy
// their on-disk slot and must be skipped over to keep the trailing fields
// aligned.
type skeletonHeaderV14 struct {
	NodeCount      uint32
	_           uint32
	NameMapIDOff   RelOffset
	NameMapNodeOff RelOffset
	NameIDsOff     RelOffset
	MatricesOff    RelOffset
	ParentIDsOff   RelOffset
}

const skeletonHeaderV14Size = 4 + 4 + 8 + 8 + 8 + 8 + 8

// visualHeaderV14 is the fixed-size "prototype header" for a VisualPrototype
// v14 record (spec §4.8 "Visual v14"): skeleton sub-header, merged-geometry
// resource id, two boolean-byte flags, the render-set/LOD element counts,
// a padded bounding box, and the render-set/LOD arrays' bare relocatable
// offsets (their counts sit earlier in the header, not packed alongside the
// offset).
type visualHeaderV14 struct {
	Skeleton          skeletonHeaderV14
	MergedGeometry    uint64
	IsUnderwaterModel uint8
	IsAbovewaterModel uint8
	RenderSetsCount   uint16
	LODCount          uint8
	_              [3]byte
	BBox              BoundingBox
	RenderSetsOff     RelOffset
	LODsOff           RelOffset
}

const visualHeaderV14Size = skeletonHeaderV14Size + 8 + 1 + 1 + 2 + 1 + 3 + 32 + 8 + 8

// lodHeaderV14 is one entry of a Visual's LOD array (spec §4.8 "LOD header
// yields (extent: f32, cast_shadows: bool, render_sets: StringId[])"). Its
// render-set id array is anchored at this header's own position.
type lodHeaderV14 struct {
	Extent         float32
	CastShadows    uint8
	_           [1]byte
	RenderSetCount uint16
	RenderSetsOff  RelOffset
}

const lodHeaderV14Size = 4 + 1 + 1 + 2 + 8

// renderSetHeaderV14 is one entry of a Visual's render-set array (spec
// §4.8 "Render-set header yields (name, material_name, vertices_name,
// indices_name, material_resource, is_skinned, nodes: StringId[])"). Its
// node id array is anchored at this header's own position.
type renderSetHeaderV14 struct {
	Name             uint32
	MaterialName     uint32
	VerticesName     uint32
	IndicesName      uint32
	MaterialResource uint64
	IsSkinned        uint8
	NodeCount        uint8
	_             [6]byte
	NodesOff         RelOffset
}

const renderSetHeaderV14Size = 4*4 + 8 + 1 + 1 + 6 + 8

// VisualLOD is the decoded form of lodHeaderV14.
type VisualLOD struct {
	Extent      float32
	CastShadows bool
	RenderSets  []StringId
}

// VisualRenderSet is the decoded form of renderSetHeaderV14.
type VisualRenderSet struct {
	Name             StringId
	MaterialName     StringId
	VerticesName     StringId
	IndicesName      StringId
	MaterialResource ResourceId
	IsSkinned        bool
	Nodes            []StringId
}

// VisualRecord is a decoded VisualPrototype v14 record (spec §4.8, §3
// "Typed prototype records").
type VisualRecord struct {
	version int

	NodeNames         []StringId
	NodeMatrices      []Mat4
	NodeParents       []uint16
	MergedGeometry    ResourceId
	IsUnderwaterModel bool
	IsAbovewaterModel bool
	BoundingBox       BoundingBox
	LODs              []VisualLOD
	RenderSets        []VisualRenderSet
}

// TableID implements Record.
func (*VisualRecord) TableID() StringId { return visualPrototypeID }

// Version implements Record.
func (v *VisualRecord) Version() uint32 { return uint32(v.version) }

// decodeVisualV14 decodes one VisualPrototype v14 record at anchor,
// following the "header-with-relocatable-offsets" micro-pattern: read the
// fixed header, then read each sub-array at its own anchor+offset (spec
// §4.8).
func decodeVisualV14(r *binReader, anchor uint32, version uint32) (Record, error) {
	var hdr visualHeaderV14
	if err := r.structUnpack(&hdr, anchor, visualHeaderV14Size); err != nil {
		return nil, err
	}

	rawNames, err := readPODArray[uint32](r, hdr.Skeleton.NameIDsOff.Resolve(anchor), hdr.Skeleton.NodeCount)
	if err != nil {
		return nil, err
	}
	matrices, err := readPODArray[Mat4](r, hdr.Skeleton.MatricesOff.Resolve(anchor), hdr.Skeleton.NodeCount)
	if err != nil {
		return nil, err
	}
	parents, err := readPODArray[uint16](r, hdr.Skeleton.ParentIDsOff.Resolve(anchor), hdr.Skeleton.NodeCount)
	if err != nil {
		return nil, err
	}

	lods, err := decodeVisualLODs(r, anchor, hdr.LODsOff, hdr.LODCount)
	if err != nil {
		return nil, err
	}
	renderSets, err := decodeVisualRenderSets(r, anchor, hdr.RenderSetsOff, hdr.RenderSetsCount)
	if err != nil {
		return nil, err
	}

	names := make([]StringId, len(rawNames))
	for i, n := range rawNames {
		names[i] = StringId(n)
	}

	return &VisualRecord{
		version:           int(version),
		NodeNames:         names,
		NodeMatrices:      matrices,
		NodeParents:       parents,
		MergedGeometry:    ResourceId(hdr.MergedGeometry),
		IsUnderwaterModel: hdr.IsUnderwaterModel != 0,
		IsAbovewaterModel: hdr.IsAbovewaterModel != 0,
		BoundingBox:       hdr.BBox,
		LODs:              lods,
		RenderSets:        renderSets,
	}, nil
}

func decodeVisualLODs(r *binReader, anchor uint32, offset RelOffset, count uint8) ([]VisualLOD, error) {
	if count == 0 {
		return nil, nil
	}
	base := offset.Resolve(anchor)
	out := make([]VisualLOD, count)
	for i := uint32(0); i < uint32(count); i++ {
		lodAnchor := base + i*lodHeaderV14Size
		var raw lodHeaderV14
		if err := r.structUnpack(&raw, lodAnchor, lodHeaderV14Size); err != nil {
			return nil, err
		}
		rawIDs, err := readPODArray[uint32](r, raw.RenderSetsOff.Resolve(lodAnchor), uint32(raw.RenderSetCount))
		if err != nil {
			return nil, err
		}
		ids := make([]StringId, len(rawIDs))
		for j, id := range rawIDs {
			ids[j] = StringId(id)
		}
		out[i] = VisualLOD{
			Extent:      raw.Extent,
			CastShadows: raw.CastShadows != 0,
			RenderSets:  ids,
		}
	}
	return out, nil
}

func decodeVisualRenderSets(r *binReader, anchor uint32, offset RelOffset, count uint16) ([]VisualRenderSet, error) {
	if count == 0 {
		return nil, nil
	}
	base := offset.Resolve(anchor)
	out := make([]VisualRenderSet, count)
	for i := uint32(0); i < uint32(count); i++ {
		rsAnchor := base + i*renderSetHeaderV14Size
		var raw renderSetHeaderV14
		if err := r.structUnpack(&raw, rsAnchor, renderSetHeaderV14Size); err != nil {
			return nil, err
		}
		rawNodes, err := readPODArray[uint32](r, raw.NodesOff.Resolve(rsAnchor), uint32(raw.NodeCount))
		if err != nil {
			return nil, err
		}
		nodes := make([]StringId, len(rawNodes))
		for j, n := range rawNodes {
			nodes[j] = StringId(n)
		}
		out[i] = VisualRenderSet{
			Name:             StringId(raw.Name),
			MaterialName:     StringId(raw.MaterialName),
			VerticesName:     StringId(raw.VerticesName),
			IndicesName:      StringId(raw.IndicesName),
			MaterialResource: ResourceId(raw.MaterialResource),
			IsSkinned:        raw.IsSkinned != 0,
			Nodes:            nodes,
		}
	}
	return out, nil
}
