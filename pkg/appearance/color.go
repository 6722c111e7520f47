package appearance

import "github.com/metaverse-go/region-session/pkg/bakehash"

// ColorOp is the accumulation operator applied when folding a color param
// into the running tint.
type ColorOp int

const (
	ColorOpAdd ColorOp = iota
	ColorOpMultiply
	ColorOpBlend
)

// Color is an RGBA tint in [0,1].
type Color [4]float64

// PaletteEntry is one breakpoint of a color param's palette.
type PaletteEntry struct {
	Value Color
}

// ColorParamInfo is one gathered color-contributing visual parameter.
type ColorParamInfo struct {
	Param        int
	ColorParam   int
	Value        float64
	Min, Max     float64
	Palette      []PaletteEntry
	Op           ColorOp
	WearableType bakehash.WearableType
}

// colorWhitelists are the exact per-wearable-type param-ID whitelists; any
// wearable type not listed here uses all of its color params.
var colorWhitelists = map[bakehash.WearableType]map[int]struct{}{
	bakehash.WearableTattoo: set(1062, 1063, 1064),
	bakehash.WearableJacket: set(809, 810, 811),
	bakehash.WearableHair:   set(112, 113, 114, 115),
	bakehash.WearableSkin:   set(108, 110, 111),
}

func set(ids ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// allowedColorParam reports whether param is permitted to contribute color
// for wearableType, per the exact whitelists above (all other types allow
// every gathered color param).
func allowedColorParam(wearableType bakehash.WearableType, param int) bool {
	whitelist, restricted := colorWhitelists[wearableType]
	if !restricted {
		return true
	}
	_, ok := whitelist[param]
	return ok
}

// paletteColor resolves a single ColorParamInfo's palette lookup at its
// current Value:
//
//	one entry -> use it.
//	multiple entries -> step = (max-min)/(n-1); walk to the largest index
//	whose breakpoint <= value; exact hit (within 1e-5) or last index uses
//	that entry outright; otherwise linearly interpolate to the next entry.
func paletteColor(info ColorParamInfo) Color {
	n := len(info.Palette)
	if n == 0 {
		return Color{}
	}
	if n == 1 {
		return info.Palette[0].Value
	}

	step := (info.Max - info.Min) / float64(n-1)
	idx := 0
	for i := 0; i < n; i++ {
		breakpoint := info.Min + step*float64(i)
		if breakpoint <= info.Value {
			idx = i
		}
	}

	breakpoint := info.Min + step*float64(idx)
	const epsilon = 1e-5
	if idx == n-1 || abs(info.Value-breakpoint) < epsilon {
		return info.Palette[idx].Value
	}

	a := info.Palette[idx].Value
	b := info.Palette[idx+1].Value
	frac := (info.Value - breakpoint) / step
	return lerp(a, b, frac)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func lerp(a, b Color, t float64) Color {
	var out Color
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
	return out
}

// DeriveColor folds every gathered ColorParamInfo that allowedColorParam
// permits (others are skipped) into a single accumulator starting at
// (0,0,0,0), applying each entry's operator in order.
func DeriveColor(infos []ColorParamInfo) Color {
	acc := Color{}
	for _, info := range infos {
		if !allowedColorParam(info.WearableType, info.ColorParam) {
			continue
		}
		c := paletteColor(info)
		switch info.Op {
		case ColorOpAdd:
			for i := range acc {
				acc[i] += c[i]
			}
		case ColorOpMultiply:
			for i := range acc {
				acc[i] *= c[i]
			}
		case ColorOpBlend:
			acc = lerp(acc, c, info.Value)
		}
	}
	return acc
}
