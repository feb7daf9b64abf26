// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import "fmt"

// StringId is an opaque 32-bit content-addressed identifier. The valid range
// is (0, 0xFFFFFFFF); the zero value is never a valid id. Equal strings hash
// to equal ids; a collision between two distinct strings is a data error,
// not something this package attempts to detect or resolve.
type StringId uint32

// NewStringId hashes name with mmh3_32 to produce its canonical StringId.
func NewStringId(name string) StringId {
	return StringId(mmh3_32([]byte(name)))
}

// Valid reports whether id lies in the valid range (0, 0xFFFFFFFF).
func (id StringId) Valid() bool {
	return id != 0 && id != 0xFFFFFFFF
}

// Value returns the underlying uint32.
func (id StringId) Value() uint32 { return uint32(id) }

// Text resolves id against the process-wide string interner, returning ""
// if no name has been bound to it.
func (id StringId) Text() string {
	name, _ := Strings.Lookup(uint32(id))
	return name
}

func (id StringId) String() string {
	if name, ok := Strings.Lookup(uint32(id)); ok {
		return name
	}
	return fmt.Sprintf("StringId(%#08x)", uint32(id))
}
