package geo

import (
	"fmt"
	"math"
)

const (
	IconPrefix    = "/static/img/"
	DefaultIcon   = IconPrefix + "center.png"
	StationIcon   = IconPrefix + "station.jpg"
	colorMinMag   = 3.5
	colorMaxMag   = 9.5
	energyOffsetK = 4.8
)

var magnitudeIcons = []struct {
	upTo float64
	name string
}{
	{1, "w"},
	{2, "a"},
	{3, "t"},
	{4, "l"},
	{5, "y"},
	{6, "o"},
	{7, "r"},
	{8, "m"},
}

// MagnitudeIcon picks the marker image for a magnitude bucket.
func MagnitudeIcon(mag *float64) string {
	if mag == nil {
		return DefaultIcon
	}
	for _, b := range magnitudeIcons {
		if *mag <= b.upTo {
			return IconPrefix + b.name + ".png"
		}
	}
	return IconPrefix + "b.png"
}

// MagnitudeToEnergy converts a magnitude to radiated energy in joules.
func MagnitudeToEnergy(mag float64) float64 {
	return math.Pow(10, 1.5*mag+energyOffsetK)
}

// MagnitudeColor maps log energy between M3.5 and M9.5 onto a red to blue
// ramp and returns it as #rrggbb.
func MagnitudeColor(mag float64) string {
	lo := math.Log10(MagnitudeToEnergy(colorMinMag))
	hi := math.Log10(MagnitudeToEnergy(colorMaxMag))
	norm := (math.Log10(MagnitudeToEnergy(mag)) - lo) / (hi - lo)
	norm = math.Max(0, math.Min(1, norm))

	r := uint8(math.Round((1 - norm) * 255))
	g := uint8(math.Round(0.5 * 255))
	b := uint8(math.Round(norm * 255))
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
