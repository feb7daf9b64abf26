// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package bwpak

import "encoding/binary"

// cityhash64 implements Google's CityHash64 (the reference v1.1 algorithm),
// always reading multi-byte fields little-endian, matching the original C++
// implementation's behavior on a little-endian host. No pack dependency
// implements this algorithm (see DESIGN.md); it is hand-rolled from the
// public reference algorithm because the spec pins an exact output
// (spec §4.1 S2) that only the literal algorithm reproduces.
//
// Known vector (spec §8 S2):
//
//	cityhash64("content/gameplay/japan/ship/destroyer/JSD011_Akizuki_1944/JSD011_Akizuki_1944.model")
//	    == 0x0df5a921212a899e
func cityhash64(s []byte) uint64 {
	n := len(s)
	switch {
	case n <= 32:
		if n <= 16 {
			return cityHashLen0to16(s)
		}
		return cityHashLen17to32(s)
	case n <= 64:
		return cityHashLen33to64(s)
	}
	return cityHashLong(s)
}

const (
	cityK0 = 0xc3a5c85c97cb3127
	cityK1 = 0xb492b66fbe98f273
	cityK2 = 0x9ae16a3b2f90404f
)

func cityFetch64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
func cityFetch32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func cityRotate(val uint64, shift uint) uint64 {
	if shift == 0 {
		return val
	}
	return (val >> shift) | (val << (64 - shift))
}

func cityShiftMix(val uint64) uint64 {
	return val ^ (val >> 47)
}

func cityBswap64(x uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	return binary.BigEndian.Uint64(b[:])
}

func cityHash128to64(u, v uint64) uint64 {
	const mul = 0x9ddfea08eb382d69
	a := (u ^ v) * mul
	a ^= a >> 47
	b := (v ^ a) * mul
	b ^= b >> 47
	b *= mul
	return b
}

func cityHashLen16(u, v uint64) uint64 {
	return cityHash128to64(u, v)
}

func cityHashLen16Mul(u, v, mul uint64) uint64 {
	a := (u ^ v) * mul
	a ^= a >> 47
	b := (v ^ a) * mul
	b ^= b >> 47
	b *= mul
	return b
}

func cityHashLen0to16(s []byte) uint64 {
	n := uint64(len(s))
	if n >= 8 {
		mul := cityK2 + n*2
		a := cityFetch64(s) + cityK2
		b := cityFetch64(s[n-8:])
		c := cityRotate(b, 37)*mul + a
		d := (cityRotate(a, 25) + b) * mul
		return cityHashLen16Mul(c, d, mul)
	}
	if n >= 4 {
		mul := cityK2 + n*2
		a := uint64(cityFetch32(s))
		return cityHashLen16Mul(n+(a<<3), uint64(cityFetch32(s[n-4:])), mul)
	}
	if n > 0 {
		a := uint32(s[0])
		b := uint32(s[n>>1])
		c := uint32(s[n-1])
		y := a + (b << 8)
		z := uint32(n) + (c << 2)
		return cityShiftMix(uint64(y)*cityK2^uint64(z)*cityK0) * cityK2
	}
	return cityK2
}

func cityHashLen17to32(s []byte) uint64 {
	n := uint64(len(s))
	mul := cityK2 + n*2
	a := cityFetch64(s) * cityK1
	b := cityFetch64(s[8:])
	c := cityFetch64(s[n-8:]) * mul
	d := cityFetch64(s[n-16:]) * cityK2
	return cityHashLen16Mul(
		cityRotate(a+b, 43)+cityRotate(c, 30)+d,
		a+cityRotate(b+cityK2, 18)+c,
		mul)
}

type cityPair struct{ first, second uint64 }

func cityWeakHashLen32WithSeeds6(w, x, y, z, a, b uint64) cityPair {
	a += w
	b = cityRotate(b+a+z, 21)
	c := a
	a += x
	a += y
	b += cityRotate(a, 44)
	return cityPair{a + z, b + c}
}

func cityWeakHashLen32WithSeeds(s []byte, a, b uint64) cityPair {
	return cityWeakHashLen32WithSeeds6(
		cityFetch64(s), cityFetch64(s[8:]), cityFetch64(s[16:]), cityFetch64(s[24:]), a, b)
}

func cityHashLen33to64(s []byte) uint64 {
	n := uint64(len(s))
	mul := cityK2 + n*2
	a := cityFetch64(s) * cityK2
	b := cityFetch64(s[8:])
	c := cityFetch64(s[n-24:])
	d := cityFetch64(s[n-32:])
	e := cityFetch64(s[16:]) * cityK2
	f := cityFetch64(s[24:]) * 9
	g := cityFetch64(s[n-8:])
	h := cityFetch64(s[n-16:]) * mul

	u := cityRotate(a+g, 43) + (cityRotate(b, 30)+c)*9
	v := ((a + g) ^ d) + f + 1
	w := cityBswap64((u+v)*mul) + h
	x := cityRotate(e+f, 42) + c
	y := (cityBswap64((v+w)*mul) + g) * mul
	z := e + f + c
	a = cityBswap64((x+z)*mul+y) + b
	b = cityShiftMix((z+a)*mul+d+h) * mul
	return b + x
}

func cityHashLong(s []byte) uint64 {
	n := len(s)
	x := cityFetch64(s[n-40:])
	y := cityFetch64(s[n-16:]) + cityFetch64(s[n-56:])
	z := cityHashLen16(cityFetch64(s[n-48:])+uint64(n), cityFetch64(s[n-24:]))

	v := cityWeakHashLen32WithSeeds(s[n-64:], uint64(n), z)
	w := cityWeakHashLen32WithSeeds(s[n-32:], y+cityK1, x)
	x = x*cityK1 + cityFetch64(s)

	rem := (n - 1) &^ 63
	p := s
	for {
		x = cityRotate(x+y+v.first+cityFetch64(p[8:]), 37) * cityK1
		y = cityRotate(y+v.second+cityFetch64(p[48:]), 42) * cityK1
		x ^= w.second
		y += v.first + cityFetch64(p[40:])
		z = cityRotate(z+w.first, 33) * cityK1
		v = cityWeakHashLen32WithSeeds(p, v.second*cityK1, x+w.first)
		w = cityWeakHashLen32WithSeeds(p[32:], z+w.second, y+cityFetch64(p[16:]))
		z, x = x, z
		p = p[64:]
		rem -= 64
		if rem == 0 {
			break
		}
	}
	return cityHashLen16(
		cityHashLen16(v.first, w.first)+cityShiftMix(y)*cityK1+z,
		cityHashLen16(v.second, w.second)+x)
}
