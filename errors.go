// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import (
	"errors"
	"fmt"
)

// Sentinel errors. Each failure mode named in the design has exactly one
// Err* value, following the same convention the decoder's call sites use to
// distinguish failures with errors.Is.
var (
	// ErrInvalidInstall is returned when an install directory is missing or
	// does not contain any numbered build folder.
	ErrInvalidInstall = errors.New("bwpak: invalid install directory")

	// ErrInvalidEndianness is returned when a framed header was produced on
	// the opposite-endian host.
	ErrInvalidEndianness = errors.New("bwpak: invalid endianness")

	// ErrInvalidIdentifier is returned when a framed header's magic tag does
	// not match the expected value.
	ErrInvalidIdentifier = errors.New("bwpak: invalid identifier")

	// ErrInvalidPointerSize is returned when a framed header's pointer_size
	// is not 64.
	ErrInvalidPointerSize = errors.New("bwpak: invalid pointer size")

	// ErrChecksumMismatch is returned for framed-header integrity failures
	// and per-file CRC32 mismatches.
	ErrChecksumMismatch = errors.New("bwpak: checksum mismatch")

	// ErrAssetNotFound is returned when a resource id has no known mapping.
	ErrAssetNotFound = errors.New("bwpak: asset not found")

	// ErrDeletedAsset is returned when a prototype ref's state marks the
	// asset as deleted.
	ErrDeletedAsset = errors.New("bwpak: deleted asset")

	// ErrInvalidTable is returned when a prototype ref's table_index is out
	// of range of the decoded table array.
	ErrInvalidTable = errors.New("bwpak: invalid table")

	// ErrInvalidRecord is returned when a prototype ref's record_index is
	// out of range of a table's decoded records.
	ErrInvalidRecord = errors.New("bwpak: invalid record")

	// ErrOutsideBoundary is returned when a read would extend past the end
	// of the backing buffer.
	ErrOutsideBoundary = errors.New("bwpak: read outside boundary")

	// ErrOodleUnavailable is returned when the Oodle shared library could
	// not be located or loaded.
	ErrOodleUnavailable = errors.New("bwpak: oodle library unavailable")

	// ErrOodleInvalidData is returned when the blocks of an Oodle stream do
	// not fill the whole output buffer.
	ErrOodleInvalidData = errors.New("bwpak: oodle invalid data")
)

// VersionMismatchError carries the expected and observed framed-header
// versions.
type VersionMismatchError struct {
	Expected uint32
	Observed uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("bwpak: version mismatch: expected %#x, got %#x", e.Expected, e.Observed)
}

// UnsupportedTableError is recorded in a BigWorldDatabase's per-table status
// array when a table id has no registered decoder at all.
type UnsupportedTableError struct {
	TableID StringId
}

func (e *UnsupportedTableError) Error() string {
	return fmt.Sprintf("bwpak: unsupported table %s", e.TableID)
}

// UnsupportedTableVersionError is recorded when a table id is known but the
// version it declares has no registered decoder.
type UnsupportedTableVersionError struct {
	TableID StringId
	Version uint32
}

func (e *UnsupportedTableVersionError) Error() string {
	return fmt.Sprintf("bwpak: unsupported table version %s v%d", e.TableID, e.Version)
}

// OodleInternalError wraps the non-positive output byte count returned by
// the Oodle decompression call for a block.
type OodleInternalError struct {
	Code int64
}

func (e *OodleInternalError) Error() string {
	return fmt.Sprintf("bwpak: oodle internal error(%d)", e.Code)
}

// OodleInsufficientSizeError reports that a decompress call needs more
// scratch memory than it was given. No decode path in this package returns
// it: the Oodle decoder neither queries nor passes a scratch buffer.
type OodleInsufficientSizeError struct {
	Needed int64
}

func (e *OodleInsufficientSizeError) Error() string {
	return fmt.Sprintf("bwpak: oodle insufficient size, needed %d bytes", e.Needed)
}
