package util

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Параметры шума Перлина
const (
	perlinAlpha   = 2.0 // Сглаживание шума
	perlinBeta    = 2.0 // Частота шума
	perlinOctaves = 3   // Количество октав
)

// Смещения сида для независимых полей
const (
	erosionSeedOffset = 7919
	peaksSeedOffset   = 104729
)

// TerrainNoise - три независимых двумерных поля шума для рельефа.
// Генераторы только читают свои таблицы перестановок, поэтому экземпляр
// можно использовать из нескольких горутин одновременно.
type TerrainNoise struct {
	continentalness *perlin.Perlin
	erosion         *perlin.Perlin
	peaks           opensimplex.Noise
}

// NewTerrainNoise создаёт поля шума для указанного сида
func NewTerrainNoise(seed int64) *TerrainNoise {
	return &TerrainNoise{
		continentalness: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed),
		erosion:         perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed+erosionSeedOffset),
		peaks:           opensimplex.New(seed + peaksSeedOffset),
	}
}

// Continentalness возвращает удалённость от океана в диапазоне [-1, 1]
func (n *TerrainNoise) Continentalness(x, z float64) float64 {
	return clamp(n.continentalness.Noise2D(x, z)*2, -1, 1)
}

// Erosion возвращает степень эрозии в диапазоне [0, 1]
func (n *TerrainNoise) Erosion(x, z float64) float64 {
	return clamp(n.erosion.Noise2D(x, z)+0.5, 0, 1)
}

// PeaksValleys возвращает гребневой шум пиков и долин в диапазоне [-1, 1]:
// 1 на гребнях, -1 в долинах.
func (n *TerrainNoise) PeaksValleys(x, z float64) float64 {
	return clamp(1-2*math.Abs(n.peaks.Eval2(x, z)), -1, 1)
}

// Normalize переводит значение из [-1, 1] в [0, 1]
func Normalize(v float64) float64 {
	return (v + 1.0) / 2.0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
