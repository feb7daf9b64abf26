// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import "encoding/binary"

// FrameSize is the size in bytes of a FramedHeader on disk (spec §6).
const FrameSize = 16

// ExpectedPointerSize is the only pointer_size a FramedHeader may declare.
const ExpectedPointerSize = 64

// FramedHeader is the 16-byte magic-tagged, endian-discriminated,
// integrity-checked wrapper present at offset 0 of both PFS and BWDB files
// (spec §3 "FramedHeader", §6).
type FramedHeader struct {
	Magic       uint32
	VersionBE   uint32
	Hash        uint32
	PointerSize uint32
}

func swap32(v uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return binary.BigEndian.Uint32(b[:])
}

// readFramedHeader decodes and validates the 16-byte framed header at the
// start of r, per spec §4.3's ordered validation:
//
//  1. endian mismatch if the byte-swapped version is larger than the raw
//     stored value (the file was produced on the opposite-endian host);
//  2. version mismatch against expectedVersion;
//  3. identifier mismatch against expectedMagic;
//  4. pointer size must be 64;
//  5. if validate, mmh3_32 over the payload (everything from offset 0x10)
//     must equal the stored hash.
//
// On success it returns the decoded header; the caller may then continue
// reading from offset FrameSize.
func readFramedHeader(r *binReader, expectedMagic uint32, expectedVersion uint32, validate bool) (FramedHeader, error) {
	var h FramedHeader
	if err := r.structUnpack(&h, 0, FrameSize); err != nil {
		return h, err
	}

	swapped := swap32(h.VersionBE)
	if swapped > h.VersionBE {
		return h, ErrInvalidEndianness
	}
	if swapped != expectedVersion {
		return h, &VersionMismatchError{Expected: expectedVersion, Observed: swapped}
	}
	if h.Magic != expectedMagic {
		return h, ErrInvalidIdentifier
	}
	if h.PointerSize != ExpectedPointerSize {
		return h, ErrInvalidPointerSize
	}

	if validate {
		payload, err := r.bytesAt(FrameSize, r.size()-FrameSize)
		if err != nil {
			return h, err
		}
		if mmh3_32(payload) != h.Hash {
			return h, ErrChecksumMismatch
		}
	}

	return h, nil
}

// fourCC packs a 4-character ASCII tag into a little-endian uint32 the way
// the on-disk magic fields are stored, e.g. fourCC('P', 'F', 'S', 'I').
func fourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Magic tags (spec §6).
var (
	magicPFSI = fourCC('P', 'F', 'S', 'I')
	magicBWDB = fourCC('B', 'W', 'D', 'B')
)

// DefaultBWDBVersion is the expected BWDB framed-header version used when a
// caller does not override it explicitly. The spec notes the source mixes
// both 1 and 257 across revisions of the reader (§9); this module exposes
// the expected version as a constructor parameter and defaults to 257
// rather than hard-coding a single value.
const DefaultBWDBVersion = 257

// PFSIndexVersion is the expected framed-header version for a PFS .idx.
const PFSIndexVersion = 2
