// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildFramedHeader encodes a 16-byte FramedHeader followed by payload,
// computing the integrity hash over payload the way readFramedHeader
// expects (spec §4.3 step 5).
func buildFramedHeader(magic, version uint32, payload []byte, withHash bool) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, magic)
	binary.Write(&buf, binary.LittleEndian, swap32(version))
	hash := uint32(0)
	if withHash {
		hash = mmh3_32(payload)
	}
	binary.Write(&buf, binary.LittleEndian, hash)
	binary.Write(&buf, binary.LittleEndian, uint32(ExpectedPointerSize))
	buf.Write(payload)
	return buf.Bytes()
}

func TestReadFramedHeaderSucceeds(t *testing.T) {
	payload := []byte("hello, pfs")
	raw := buildFramedHeader(magicPFSI, PFSIndexVersion, payload, true)

	r := newBinReader(raw)
	hdr, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, true)
	if err != nil {
		t.Fatalf("readFramedHeader: %v", err)
	}
	if hdr.PointerSize != ExpectedPointerSize {
		t.Errorf("PointerSize = %d, want 64", hdr.PointerSize)
	}
}

func TestReadFramedHeaderVersionMismatch(t *testing.T) {
	raw := buildFramedHeader(magicPFSI, 3, []byte{}, false)
	r := newBinReader(raw)
	_, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, false)

	var verr *VersionMismatchError
	if !asVersionMismatch(err, &verr) {
		t.Fatalf("readFramedHeader err = %v, want *VersionMismatchError", err)
	}
	if verr.Expected != PFSIndexVersion || verr.Observed != 3 {
		t.Errorf("got expected=%d observed=%d, want expected=%d observed=3", verr.Expected, verr.Observed, PFSIndexVersion)
	}
}

func asVersionMismatch(err error, target **VersionMismatchError) bool {
	e, ok := err.(*VersionMismatchError)
	if ok {
		*target = e
	}
	return ok
}

func TestReadFramedHeaderIdentifierMismatch(t *testing.T) {
	raw := buildFramedHeader(magicBWDB, PFSIndexVersion, []byte{}, false)
	r := newBinReader(raw)
	_, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, false)
	if err != ErrInvalidIdentifier {
		t.Errorf("err = %v, want ErrInvalidIdentifier", err)
	}
}

func TestReadFramedHeaderPointerSizeMismatch(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, magicPFSI)
	binary.Write(&buf, binary.LittleEndian, swap32(PFSIndexVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(32))

	r := newBinReader(buf.Bytes())
	_, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, false)
	if err != ErrInvalidPointerSize {
		t.Errorf("err = %v, want ErrInvalidPointerSize", err)
	}
}

func TestReadFramedHeaderEndianMismatch(t *testing.T) {
	// A version stored byte-swapped such that the swapped value is larger
	// than the raw stored value indicates an opposite-endian producer
	// (spec §4.3 step 1).
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, magicPFSI)
	binary.Write(&buf, binary.LittleEndian, uint32(2)) // not byte-swapped at all
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(ExpectedPointerSize))

	r := newBinReader(buf.Bytes())
	_, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, false)
	if err != ErrInvalidEndianness {
		t.Errorf("err = %v, want ErrInvalidEndianness", err)
	}
}

func TestReadFramedHeaderChecksumMismatch(t *testing.T) {
	payload := []byte("some payload bytes")
	raw := buildFramedHeader(magicPFSI, PFSIndexVersion, payload, true)
	raw[len(raw)-1] ^= 0xFF // corrupt the payload after the hash was computed

	r := newBinReader(raw)
	_, err := readFramedHeader(r, magicPFSI, PFSIndexVersion, true)
	if err != ErrChecksumMismatch {
		t.Errorf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestReadFramedHeaderPalindromicVersion(t *testing.T) {
	// Boundary case 12: a version whose bytes are identical when swapped
	// must still pass the endian check iff it equals the expected value
	// exactly. 0x00000000 and 0x01010101 are both palindromic under
	// byte-swap.
	raw := buildFramedHeader(magicPFSI, 0x01010101, []byte{}, false)
	r := newBinReader(raw)
	if _, err := readFramedHeader(r, magicPFSI, 0x01010101, false); err != nil {
		t.Errorf("palindromic version matching expected failed: %v", err)
	}

	raw2 := buildFramedHeader(magicPFSI, 0x01010101, []byte{}, false)
	r2 := newBinReader(raw2)
	if _, err := readFramedHeader(r2, magicPFSI, 0x02020202, false); err == nil {
		t.Errorf("palindromic version not matching expected should fail")
	}
}
