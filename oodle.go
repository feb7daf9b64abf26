// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// PackageDataStreamHeader precedes an Oodle-compressed package payload
// (spec §3). Blocks decompress into fixed-size chunks except the final one,
// which is min(remaining, BlockSize).
type PackageDataStreamHeader struct {
	DataOffset       uint64
	Anchor           uint64
	CompressionType  uint32
	CompressionFlags uint32
	UncompressedSize uint64
	DecompressedSize uint64
	BlockCount       uint32
	BlockSize        uint32
	Reserved         uint32
}

const packageDataStreamHeaderSize = 8 + 8 + 4 + 4 + 8 + 8 + 4 + 4 + 4

// oodleDecompressFunc mirrors OodleLZ_Decompress's calling convention
// closely enough to drive a block-oriented decode: pointers to the
// compressed/raw buffers, their lengths, and a handful of tuning flags the
// library ignores for our purposes (0 is always passed).
type oodleDecompressFunc func(
	compressed uintptr, compressedSize int64,
	raw uintptr, rawSize int64,
	fuzzSafe int32, checkCRC int32, verbosity int32,
	decBufBase uintptr, decBufSize int64,
	fpCallback uintptr, callbackUserData uintptr,
	decoderMemory uintptr, decoderMemorySize int64,
	threadPhase int32,
) int64

type oodleLibrary struct {
	once       sync.Once
	handle     uintptr
	decompress oodleDecompressFunc
	err        error
}

var theOodleLibrary oodleLibrary

// oodleCandidateNames returns the platform-specific shared library names
// bwpak will look for in the process working directory (spec §6
// "Environment").
func oodleCandidateNames() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"oo2core_9_win64.dll", "oo2core_8_win64.dll", "oo2core_win64.dll"}
	case "darwin":
		return []string{"liboo2coremac64.dylib", "liboo2core.dylib"}
	default:
		return []string{"liboo2corelinux64.so", "liboo2core.so"}
	}
}

// load resolves the process-wide Oodle handle, trying each
// candidate filename in the working directory in turn. It is safe to call
// repeatedly; resolution happens once.
func (l *oodleLibrary) load() error {
	l.once.Do(func() {
		var handle uintptr
		var openErr error
		found := false
		for _, name := range oodleCandidateNames() {
			path, absErr := filepath.Abs(name)
			if absErr != nil {
				continue
			}
			h, dlErr := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if dlErr == nil {
				handle = h
				found = true
				break
			}
			openErr = dlErr
		}
		if !found {
			l.err = fmt.Errorf("%w: %v", ErrOodleUnavailable, openErr)
			return
		}

		var fn oodleDecompressFunc
		purego.RegisterLibFunc(&fn, handle, "OodleLZ_Decompress")

		l.handle = handle
		l.decompress = fn
	})
	return l.err
}

// decompressOodleStream implements the Oodle block-oriented codec (spec
// §4.5). src begins with a PackageDataStreamHeader; Anchor+DataOffset (both
// relative to src, per the usual anchor-capture convention) is where the
// first compressed block starts.
func decompressOodleStream(src []byte, uncompressedSize uint64) ([]byte, error) {
	if err := theOodleLibrary.load(); err != nil {
		return nil, err
	}

	r := newBinReader(src)
	var hdr PackageDataStreamHeader
	if err := r.structUnpack(&hdr, 0, packageDataStreamHeaderSize); err != nil {
		return nil, err
	}
	if hdr.Reserved != 0 {
		return nil, fmt.Errorf("bwpak: oodle stream header reserved field non-zero")
	}

	blocks, err := readPODArray[uint32](r, packageDataStreamHeaderSize, hdr.BlockCount)
	if err != nil {
		return nil, err
	}

	out := make([]byte, hdr.DecompressedSize)
	if len(out) == 0 && uncompressedSize > 0 {
		out = make([]byte, uncompressedSize)
	}

	runningOffset := uint32(hdr.Anchor) + uint32(hdr.DataOffset)
	outPos := uint32(0)
	for _, blockLen := range blocks {
		remaining := uint32(len(out)) - outPos
		chunkSize := remaining
		if hdr.BlockSize < chunkSize {
			chunkSize = hdr.BlockSize
		}
		if chunkSize == 0 {
			break
		}

		compressed, err := r.bytesAt(runningOffset, blockLen)
		if err != nil {
			return nil, err
		}

		n, err := callOodleDecompress(compressed, out[outPos:outPos+chunkSize])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, &OodleInternalError{Code: n}
		}

		runningOffset += blockLen
		outPos += chunkSize
	}

	if outPos != uint32(len(out)) {
		return nil, ErrOodleInvalidData
	}

	return out, nil
}

func callOodleDecompress(compressed []byte, dst []byte) (int64, error) {
	if theOodleLibrary.decompress == nil {
		return 0, ErrOodleUnavailable
	}

	n := theOodleLibrary.decompress(
		sliceAddr(compressed), int64(len(compressed)),
		sliceAddr(dst), int64(len(dst)),
		0, 0, 0,
		0, 0,
		0, 0,
		0, 0,
		0,
	)
	return n, nil
}

// sliceAddr returns the address of a byte slice's backing array, or 0 for an
// empty slice, suitable for passing across the purego call boundary.
func sliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
