package world

import (
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Generator заполняет чанк по его координате. Реализация обязана быть
// чистой функцией координаты и не обращаться к соседним чанкам.
type Generator interface {
	Generate(coord vec.Vec3) *Chunk
}

// GeneratorConfig - параметры рельефа
type GeneratorConfig struct {
	Seed              int64
	Height            int     // высота мира в чанках
	SeaLevel          int     // уровень моря в вокселях
	BaseHeight        int     // средняя высота поверхности
	HeightScale       float64 // амплитуда рельефа в вокселях
	NoiseScale        float64 // масштаб координат для шума
	ContinentalWeight float64
	PeaksWeight       float64
	DirtDepth         int // число слоёв земли под поверхностью
}

// DefaultGeneratorConfig возвращает параметры по умолчанию
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:              1,
		Height:            8,
		SeaLevel:          48,
		BaseHeight:        52,
		HeightScale:       24,
		NoiseScale:        0.01,
		ContinentalWeight: 0.6,
		PeaksWeight:       0.4,
		DirtDepth:         3,
	}
}

// NoiseGenerator генерирует рельеф из трёх полей шума.
//
// Высота поверхности:
//
//	h = BaseHeight + round((cw·C + pw·PV·(1−E)) · HeightScale)
//
// где C - континентальность, E - эрозия, PV - пики и долины. Эрозия
// сглаживает пики, не затрагивая континентальный уклон. Результат
// ограничивается диапазоном [1, верх мира − 1].
type NoiseGenerator struct {
	cfg   GeneratorConfig
	noise *util.TerrainNoise

	air, grass, dirt, stone, sand, water block.BlockID
	waterInfinite                        bool
}

// NewNoiseGenerator создаёт генератор. Блоки поверхности ищутся в таблице
// по именам grass, dirt, stone, sand, water.
func NewNoiseGenerator(cfg GeneratorConfig, table *block.Table) (*NoiseGenerator, error) {
	if cfg.Height <= 0 || cfg.HeightScale < 0 || cfg.NoiseScale <= 0 || cfg.DirtDepth < 0 {
		return nil, fmt.Errorf("generator config %+v: %w", cfg, ErrInvalidConfiguration)
	}

	g := &NoiseGenerator{
		cfg:   cfg,
		noise: util.NewTerrainNoise(cfg.Seed),
		air:   block.AirBlockID,
	}
	for name, dst := range map[string]*block.BlockID{
		"grass": &g.grass,
		"dirt":  &g.dirt,
		"stone": &g.stone,
		"sand":  &g.sand,
		"water": &g.water,
	} {
		id, ok := table.ByName(name)
		if !ok {
			return nil, fmt.Errorf("block %q missing from table: %w", name, ErrInvalidConfiguration)
		}
		*dst = id
	}
	g.waterInfinite = table.Get(g.water).InfiniteSource
	return g, nil
}

// SurfaceHeight возвращает высоту поверхности в колонке вокселей (x, z)
func (g *NoiseGenerator) SurfaceHeight(x, z int) int {
	fx := float64(x) * g.cfg.NoiseScale
	fz := float64(z) * g.cfg.NoiseScale

	c := g.noise.Continentalness(fx, fz)
	e := g.noise.Erosion(fx*2, fz*2)
	pv := g.noise.PeaksValleys(fx*4, fz*4)

	blend := g.cfg.ContinentalWeight*c + g.cfg.PeaksWeight*pv*(1-e)
	h := g.cfg.BaseHeight + int(math.Round(blend*g.cfg.HeightScale))

	top := g.cfg.Height*Size - 1
	if h < 1 {
		h = 1
	}
	if h > top-1 {
		h = top - 1
	}
	return h
}

// BlockAt выбирает блок для вокселя на высоте y при высоте поверхности h
func (g *NoiseGenerator) BlockAt(y, h int) block.BlockID {
	switch {
	case y > h:
		if y <= g.cfg.SeaLevel {
			return g.water
		}
		return g.air
	case y == h:
		if h < g.cfg.SeaLevel {
			return g.sand
		}
		return g.grass
	case y >= h-g.cfg.DirtDepth:
		if h < g.cfg.SeaLevel {
			return g.sand
		}
		return g.dirt
	default:
		return g.stone
	}
}

// Generate заполняет чанк по координате
func (g *NoiseGenerator) Generate(coord vec.Vec3) *Chunk {
	ch := NewChunk(coord)
	if coord.Y < 0 || coord.Y >= g.cfg.Height {
		return ch
	}

	origin := ch.Origin()
	for z := 0; z < Size; z++ {
		for x := 0; x < Size; x++ {
			h := g.SurfaceHeight(origin.X+x, origin.Z+z)
			for y := 0; y < Size; y++ {
				id := g.BlockAt(origin.Y+y, h)
				if id == g.air {
					continue
				}
				i := Index(x, y, z)
				ch.SetBlockAt(i, id)
				if id == g.water {
					ch.Liquid.Set(i, LiquidCell{Type: id, Amount: block.MaxLevel, Source: g.waterInfinite})
				}
			}
		}
	}
	ch.ChangeCounter = 0
	return ch
}
