// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"bytes"
	"encoding/binary"
)

// binReader is the binary primitive layer shared by the PFS index decoder
// and the BWDB decoder: fixed-width little-endian POD reads, null-terminated
// strings, and packed array reads, all bounds-checked against the backing
// buffer. It generalizes the single bounds-checked ReadUintNN/structUnpack
// family the teacher binds directly to its File type (see DESIGN.md) into a
// standalone component, since here two independent containers need it.
type binReader struct {
	data []byte
}

func newBinReader(data []byte) *binReader {
	return &binReader{data: data}
}

func (r *binReader) size() uint32 { return uint32(len(r.data)) }

func (r *binReader) u8(offset uint32) (uint8, error) {
	if offset+1 > r.size() {
		return 0, ErrOutsideBoundary
	}
	return r.data[offset], nil
}

func (r *binReader) u16(offset uint32) (uint16, error) {
	if offset+2 > r.size() {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint16(r.data[offset:]), nil
}

func (r *binReader) u32(offset uint32) (uint32, error) {
	if offset+4 > r.size() {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint32(r.data[offset:]), nil
}

func (r *binReader) u64(offset uint32) (uint64, error) {
	if offset+8 > r.size() {
		return 0, ErrOutsideBoundary
	}
	return binary.LittleEndian.Uint64(r.data[offset:]), nil
}

// bytesAt returns a sub-slice of the backing buffer, bounds-checked.
func (r *binReader) bytesAt(offset, size uint32) ([]byte, error) {
	totalSize := offset + size
	// Integer overflow check, same idiom as structUnpack.
	if (totalSize > offset) != (size > 0) {
		return nil, ErrOutsideBoundary
	}
	if offset > r.size() || totalSize > r.size() {
		return nil, ErrOutsideBoundary
	}
	return r.data[offset:totalSize], nil
}

// cstring reads a null-terminated string starting at offset. If no NUL byte
// is found before the end of the buffer, the remainder of the buffer is
// returned.
func (r *binReader) cstring(offset uint32) (string, error) {
	if offset > r.size() {
		return "", ErrOutsideBoundary
	}
	end := offset
	for end < r.size() && r.data[end] != 0 {
		end++
	}
	return string(r.data[offset:end]), nil
}

// structUnpack decodes a fixed-size little-endian POD value from offset.
func (r *binReader) structUnpack(v interface{}, offset, size uint32) error {
	b, err := r.bytesAt(offset, size)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}

// readPOD decodes a single fixed-size little-endian value of type T at
// offset.
func readPOD[T any](r *binReader, offset uint32) (T, error) {
	var v T
	size := uint32(binary.Size(v))
	err := r.structUnpack(&v, offset, size)
	return v, err
}

// readPODArray decodes count consecutive fixed-size little-endian values of
// type T starting at offset.
func readPODArray[T any](r *binReader, offset uint32, count uint32) ([]T, error) {
	var zero T
	elemSize := uint32(binary.Size(zero))
	out := make([]T, count)
	for i := uint32(0); i < count; i++ {
		v, err := readPOD[T](r, offset+i*elemSize)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// RelOffset is a stored relative byte offset that must be resolved against
// the anchor position captured when its enclosing record began decoding
// (spec §3 "RelOffset(T)", §4.4). It carries no anchor of its own.
type RelOffset uint64

// Resolve returns the absolute offset anchor+o.
func (o RelOffset) Resolve(anchor uint32) uint32 {
	return anchor + uint32(o)
}

// PointerSection is a (count, offset) pair anchored externally: a packed
// array of T lives at anchor+Offset (spec §3 "Pointer section"). Both fields
// are 64-bit on disk (BigWorldDatabasePointer in the original implementation),
// even though no real table holds anywhere near 2^32 entries.
type PointerSection struct {
	Count  uint64
	Offset RelOffset
}

// pointerSectionSize is PointerSection's fixed on-disk size (count:u64 +
// offset:u64), used when a PointerSection itself must be read as a nested
// record rather than via the generic helpers (spec §3 "BWDB.TableHeader"'s
// doubly-indirected body field).
const pointerSectionSize = 8 + 8

// readPointerArray reads a PointerSection's packed array of T, anchored at
// anchor.
func readPointerArray[T any](r *binReader, anchor uint32, sec PointerSection) ([]T, error) {
	if sec.Count == 0 {
		return nil, nil
	}
	return readPODArray[T](r, sec.Offset.Resolve(anchor), uint32(sec.Count))
}

// MapSection is a (count, key_offset, value_offset) triple anchored
// externally (spec §3 "Map<K,V> section"). Count is 64-bit on disk
// (BigWorldDatabaseMap in the original implementation).
type MapSection struct {
	Count       uint64
	KeyOffset   RelOffset
	ValueOffset RelOffset
}

// mapKey32 is the on-disk layout of a map key when sizeof(K) == 4: no
// padding is inserted before the bucket field.
type mapKey32 struct {
	ID     uint32
	Bucket uint32
}

// mapKey64 is the on-disk layout of a map key when sizeof(K) == 8: a 4-byte
// alignment pad is inserted before the bucket field (spec §4.4).
type mapKey64 struct {
	ID     uint64
	_      uint32
	Bucket uint32
}

const mapBucketActive = 0x80000000

// active reports whether a map key's bucket field marks it as participating
// in the map (spec §3, §8 invariant 3).
func active(bucket uint32) bool {
	return bucket&mapBucketActive != 0
}

// readMapKeys32 reads a MapSection's 4-byte-keyed key array.
func readMapKeys32(r *binReader, anchor uint32, sec MapSection) ([]mapKey32, error) {
	return readPODArray[mapKey32](r, sec.KeyOffset.Resolve(anchor), uint32(sec.Count))
}

// readMapKeys64 reads a MapSection's 8-byte-keyed key array.
func readMapKeys64(r *binReader, anchor uint32, sec MapSection) ([]mapKey64, error) {
	return readPODArray[mapKey64](r, sec.KeyOffset.Resolve(anchor), uint32(sec.Count))
}

// readMapValues reads a MapSection's packed value array.
func readMapValues[V any](r *binReader, anchor uint32, sec MapSection) ([]V, error) {
	return readPODArray[V](r, sec.ValueOffset.Resolve(anchor), uint32(sec.Count))
}
