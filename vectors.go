// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

// Vec2 is a 2-component little-endian float32 vector.
type Vec2 struct {
	X, Y float32
}

// Vec3 is a 3-component little-endian float32 vector.
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 is a 4-component little-endian float32 vector, also used to hold a
// Vec3 padded out to 16 bytes (spec §4.8 bounding box storage).
type Vec4 struct {
	X, Y, Z, W float32
}

// ToVec3 drops the padding component.
func (v Vec4) ToVec3() Vec3 { return Vec3{v.X, v.Y, v.Z} }

// Mat4 is a row-major 4x4 float32 matrix.
type Mat4 struct {
	M [16]float32
}

// BoundingBox is an axis-aligned box stored as two Vec3 each padded to Vec4
// (spec §4.8 "a bounding box (two Vec3 padded to Vec4)").
type BoundingBox struct {
	Min Vec4
	Max Vec4
}

// Bool8 is a boolean stored as a single byte, non-zero meaning true (spec
// §3 "boolean-as-byte").
type Bool8 uint8

// Bool returns the boolean value.
func (b Bool8) Bool() bool { return b != 0 }
