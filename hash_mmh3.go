// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import "github.com/spaolacci/murmur3"

// mmh3_32 computes the 32-bit little-endian x86 variant of MurmurHash3 over
// b. It is the canonical hash behind StringId and is otherwise a pure
// function with no relation to host endianness.
//
// Known vectors (spec §4.1, §8 S1/S3):
//
//	mmh3_32("Akizuki")            == 0x8d949450
//	mmh3_32("Akizuki_")           == 0xe344aed1
//	mmh3_32([0xff,0xff,0xff,0xff]) == 0x76293b50
//	mmh3_32([0x21,0x43,0x65,0x87]) == 0xf55b516b
//	mmh3_32([0x21,0x43])           == 0xa0f7b07a
//	mmh3_32([0x21])                == 0x72661cf4
func mmh3_32(b []byte) uint32 {
	return murmur3.Sum32(b)
}
