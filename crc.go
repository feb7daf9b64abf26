// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import "hash/crc32"

// crc32ISOHDLC computes the ISO-HDLC (IEEE) polynomial CRC32 of data, used
// by PFS.Open to validate a decompressed file against its PackageFile.CRC32
// (spec §4.6). Go's crc32.IEEETable is this same polynomial, so no
// third-party package is needed here (see DESIGN.md).
func crc32ISOHDLC(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
