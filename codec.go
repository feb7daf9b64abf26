// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// CompressionType enumerates the package payload codecs a PackageFile may
// declare (spec §3). The source mixes two spellings for a deflate-blocks
// variant across revisions ("DeflateBlocks" vs "Oodle = 6"); per spec §9
// this module fixes the canonical enumeration below and does not attempt to
// reconstruct the other spelling's semantics.
type CompressionType uint32

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone CompressionType = 0
	// CompressionDeflate stores the payload as raw zlib-deflated data.
	CompressionDeflate CompressionType = 5
	// CompressionOodle stores the payload as an Oodle block stream.
	CompressionOodle CompressionType = 6
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	case CompressionOodle:
		return "oodle"
	default:
		return fmt.Sprintf("CompressionType(%d)", uint32(c))
	}
}

// decompress dispatches src to the codec named by compType, matching spec
// §4.5. When flags == 0 the record is treated as uncompressed regardless of
// the declared type (spec §3's PackageFile invariant); the returned slice in
// that case aliases src and must be copied by the caller if it needs to
// outlive src's backing memory map.
func decompress(src []byte, uncompressedSize uint64, compType CompressionType, flags uint32) ([]byte, error) {
	if flags == 0 {
		return src, nil
	}

	switch compType {
	case CompressionNone:
		return src, nil
	case CompressionDeflate:
		return inflateDeflate(src, uncompressedSize)
	case CompressionOodle:
		return decompressOodleStream(src, uncompressedSize)
	default:
		return nil, fmt.Errorf("bwpak: unknown compression type %d", uint32(compType))
	}
}

// inflateDeflate decodes a raw zlib stream into a buffer sized to
// uncompressedSize, per spec §4.5.
func inflateDeflate(src []byte, uncompressedSize uint64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("bwpak: deflate error: %w", err)
	}
	defer zr.Close()

	dst := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, dst); err != nil {
		return nil, fmt.Errorf("bwpak: deflate error: %w", err)
	}
	return dst, nil
}
