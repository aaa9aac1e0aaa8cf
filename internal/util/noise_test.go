package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerrainNoiseDeterministic(t *testing.T) {
	a := NewTerrainNoise(42)
	b := NewTerrainNoise(42)

	for i := 0; i < 50; i++ {
		x, z := float64(i)*0.37, float64(i)*-0.91
		assert.Equal(t, a.Continentalness(x, z), b.Continentalness(x, z))
		assert.Equal(t, a.Erosion(x, z), b.Erosion(x, z))
		assert.Equal(t, a.PeaksValleys(x, z), b.PeaksValleys(x, z))
	}
}

func TestTerrainNoiseRanges(t *testing.T) {
	n := NewTerrainNoise(7)

	for x := -20; x <= 20; x++ {
		for z := -20; z <= 20; z++ {
			fx, fz := float64(x)*0.13, float64(z)*0.13
			c := n.Continentalness(fx, fz)
			e := n.Erosion(fx, fz)
			pv := n.PeaksValleys(fx, fz)

			assert.True(t, c >= -1 && c <= 1, "continentalness %f", c)
			assert.True(t, e >= 0 && e <= 1, "erosion %f", e)
			assert.True(t, pv >= -1 && pv <= 1, "peaks %f", pv)
		}
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(-1))
	assert.Equal(t, 0.5, Normalize(0))
	assert.Equal(t, 1.0, Normalize(1))
}
