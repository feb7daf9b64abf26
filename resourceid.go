// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import "fmt"

// ResourceId is an opaque 64-bit content-addressed identifier. The valid
// range is (0, 0xFFFFFFFFFFFFFFFF); the zero value is never a valid id.
type ResourceId uint64

// NewResourceId hashes name with cityhash64 to produce its canonical
// ResourceId.
func NewResourceId(name string) ResourceId {
	return ResourceId(cityhash64([]byte(name)))
}

// Valid reports whether id lies in the valid range (0, 0xFFFFFFFFFFFFFFFF).
func (id ResourceId) Valid() bool {
	return id != 0 && id != 0xFFFFFFFFFFFFFFFF
}

// Value returns the underlying uint64.
func (id ResourceId) Value() uint64 { return uint64(id) }

// Text resolves id against the process-wide resource-id interner, returning
// "" if no name has been bound to it.
func (id ResourceId) Text() string {
	name, _ := Resources.Lookup(uint64(id))
	return name
}

func (id ResourceId) String() string {
	if name, ok := Resources.Lookup(uint64(id)); ok {
		return name
	}
	return fmt.Sprintf("ResourceId(%#016x)", uint64(id))
}
