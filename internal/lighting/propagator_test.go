package lighting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

type fixture struct {
	t     *testing.T
	w     *world.Window
	table *block.Table
	p     *Propagator
}

// newFixture строит окно 3x3 колонок вокруг (0,0), заполненное функцией fill
func newFixture(t *testing.T, height int, fill func(pos vec.Vec3) block.BlockID) *fixture {
	t.Helper()
	w, err := world.NewWindow(height)
	require.NoError(t, err)
	d, err := w.Recenter(vec.Vec2{}, 1)
	require.NoError(t, err)

	for _, coord := range d.Load {
		ch := world.NewChunk(coord)
		origin := ch.Origin()
		for i := 0; i < world.Volume; i++ {
			x, y, z := world.Unindex(i)
			ch.SetBlockAt(i, fill(origin.Add(vec.Vec3{X: x, Y: y, Z: z})))
		}
		require.NoError(t, w.Install(coord, d.Sequence, ch))
	}

	table := block.DefaultTable()
	return &fixture{t: t, w: w, table: table, p: NewPropagator(table)}
}

func (f *fixture) relight(col vec.Vec2) Stats {
	cl := f.w.Cluster(col)
	defer cl.Release()
	cl.Lock()
	defer cl.Unlock()
	return f.p.Recalculate(cl)
}

func (f *fixture) relightAll() {
	for _, c := range f.w.Columns() {
		f.relight(c)
	}
}

func (f *fixture) chunkAt(pos vec.Vec3) (*world.Chunk, int) {
	coord := vec.ToChunk(pos)
	ch, err := f.w.Chunk(coord)
	require.NoError(f.t, err)
	l := vec.ToLocal(coord, pos)
	return ch, world.Index(l.X, l.Y, l.Z)
}

func (f *fixture) light(pos vec.Vec3, c world.Channel) uint8 {
	ch, i := f.chunkAt(pos)
	return ch.LightAt(i).Get(c)
}

func (f *fixture) set(pos vec.Vec3, id block.BlockID) {
	ch, i := f.chunkAt(pos)
	ch.SetBlockAt(i, id)
}

func air(vec.Vec3) block.BlockID { return block.AirBlockID }

func TestSkyLightOnExposedTopFace(t *testing.T) {
	stone := vec.Vec3{X: 8, Y: 5, Z: 8}
	f := newFixture(t, 1, func(pos vec.Vec3) block.BlockID {
		if pos == stone {
			return block.StoneBlockID
		}
		return block.AirBlockID
	})
	f.relightAll()

	assert.Equal(t, uint8(block.MaxLevel), f.light(stone.Add(vec.Vec3{Y: 1}), world.ChannelSky), "верхняя грань под открытым небом")
	assert.Equal(t, uint8(0), f.light(stone, world.ChannelSky), "внутри камня света нет")
	assert.Equal(t, uint8(block.MaxLevel-1), f.light(stone.Add(vec.Vec3{Y: -1}), world.ChannelSky), "под блоком свет приходит сбоку")
	assert.Equal(t, uint8(block.MaxLevel), f.light(vec.Vec3{X: -10, Y: 0, Z: 12}, world.ChannelSky))
}

func TestSkyLightUnderNewCeiling(t *testing.T) {
	f := newFixture(t, 1, air)
	f.relightAll()
	require.Equal(t, uint8(block.MaxLevel), f.light(vec.Vec3{X: 8, Y: 5, Z: 8}, world.ChannelSky))

	// перекрытие над всей центральной колонкой
	for x := 0; x < world.Size; x++ {
		for z := 0; z < world.Size; z++ {
			f.set(vec.Vec3{X: x, Y: 10, Z: z}, block.StoneBlockID)
		}
	}
	st := f.relight(vec.Vec2{})
	assert.Positive(t, st.Added)

	// ближайший открытый край в 8 шагах: x = 16
	assert.Equal(t, uint8(7), f.light(vec.Vec3{X: 8, Y: 5, Z: 8}, world.ChannelSky))
	assert.Equal(t, uint8(block.MaxLevel), f.light(vec.Vec3{X: 8, Y: 11, Z: 8}, world.ChannelSky))
}

func TestBlockLightDecaysWithDistance(t *testing.T) {
	torch := vec.Vec3{X: 8, Y: 8, Z: 8}
	f := newFixture(t, 1, func(pos vec.Vec3) block.BlockID {
		if pos == torch {
			return block.TorchBlockID
		}
		return block.AirBlockID
	})
	f.relightAll()

	emission := f.table.Get(block.TorchBlockID).Emission
	red := int(emission[0])
	for k := 0; k < red; k++ {
		got := f.light(torch.Add(vec.Vec3{X: k}), world.ChannelRed)
		assert.Equal(t, uint8(red-k), got, "шаг %d", k)
	}
	assert.Equal(t, uint8(0), f.light(torch.Add(vec.Vec3{X: red}), world.ChannelRed))
	assert.Equal(t, uint8(emission[2]-3), f.light(torch.Add(vec.Vec3{Z: -3}), world.ChannelBlue))
}

func TestOpaqueWallStopsLight(t *testing.T) {
	inRoom := func(p vec.Vec3, x0, x1 int) bool {
		return p.X >= x0 && p.X <= x1 && p.Y >= 2 && p.Y <= 6 && p.Z >= 2 && p.Z <= 6
	}
	glow := vec.Vec3{X: 4, Y: 4, Z: 4}
	f := newFixture(t, 1, func(pos vec.Vec3) block.BlockID {
		switch {
		case pos == glow:
			return block.GlowstoneBlockID
		case inRoom(pos, 2, 6), inRoom(pos, 9, 13):
			return block.AirBlockID
		default:
			return block.StoneBlockID
		}
	})
	f.relightAll()

	assert.Equal(t, uint8(15), f.light(glow, world.ChannelRed))
	assert.Equal(t, uint8(14), f.light(glow.Add(vec.Vec3{X: 1}), world.ChannelRed))
	assert.Equal(t, uint8(12), f.light(vec.Vec3{X: 6, Y: 5, Z: 4}, world.ChannelRed))

	for x := 7; x <= 13; x++ {
		for y := 2; y <= 6; y++ {
			for z := 2; z <= 6; z++ {
				pos := vec.Vec3{X: x, Y: y, Z: z}
				require.Equal(t, uint8(0), f.light(pos, world.ChannelRed), "за стеной %v", pos)
			}
		}
	}
	assert.Equal(t, uint8(0), f.light(glow, world.ChannelSky), "под камнем неба нет")
}

func TestRemovingEmitterClearsVoid(t *testing.T) {
	// пустота 5x5x5 в сплошном камне, источник в центре
	center := vec.Vec3{X: 8, Y: 8, Z: 8}
	inVoid := func(p vec.Vec3) bool {
		d := p.Sub(center)
		return d.X >= -2 && d.X <= 2 && d.Y >= -2 && d.Y <= 2 && d.Z >= -2 && d.Z <= 2
	}
	f := newFixture(t, 1, func(pos vec.Vec3) block.BlockID {
		switch {
		case pos == center:
			return block.TorchBlockID
		case inVoid(pos):
			return block.AirBlockID
		default:
			return block.StoneBlockID
		}
	})
	f.relightAll()
	require.Positive(t, f.light(center.Add(vec.Vec3{X: 2, Y: 2, Z: 2}), world.ChannelRed))

	f.set(center, block.AirBlockID)
	st := f.relight(vec.Vec2{})
	assert.Positive(t, st.Removed)

	for x := -2; x <= 2; x++ {
		for y := -2; y <= 2; y++ {
			for z := -2; z <= 2; z++ {
				pos := center.Add(vec.Vec3{X: x, Y: y, Z: z})
				for _, ch := range world.BlockChannels {
					require.Equal(t, uint8(0), f.light(pos, ch), "%v %s", pos, ch)
				}
			}
		}
	}
}

func TestRemovingEmitterClearsNeighborColumn(t *testing.T) {
	torch := vec.Vec3{X: 15, Y: 8, Z: 8}
	f := newFixture(t, 1, func(pos vec.Vec3) block.BlockID {
		if pos == torch {
			return block.TorchBlockID
		}
		return block.AirBlockID
	})
	f.relightAll()
	require.Equal(t, uint8(11), f.light(vec.Vec3{X: 18, Y: 8, Z: 8}, world.ChannelRed))

	f.set(torch, block.AirBlockID)
	f.relight(vec.Vec2{})

	for x := 10; x <= 28; x++ {
		assert.Equal(t, uint8(0), f.light(vec.Vec3{X: x, Y: 8, Z: 8}, world.ChannelRed), "x=%d", x)
	}
	assert.Equal(t, uint8(block.MaxLevel), f.light(vec.Vec3{X: 18, Y: 8, Z: 8}, world.ChannelSky), "небо не затронуто")
}

func TestSecondSourceSurvivesRemoval(t *testing.T) {
	a := vec.Vec3{X: 4, Y: 8, Z: 8}
	b := vec.Vec3{X: 10, Y: 8, Z: 8}
	f := newFixture(t, 1, func(pos vec.Vec3) block.BlockID {
		if pos == a || pos == b {
			return block.TorchBlockID
		}
		return block.AirBlockID
	})
	f.relightAll()

	f.set(a, block.AirBlockID)
	f.relight(vec.Vec2{})

	red := f.table.Get(block.TorchBlockID).Emission[0]
	assert.Equal(t, red, f.light(b, world.ChannelRed))
	assert.Equal(t, red-6, f.light(a, world.ChannelRed), "свет второго источника")
	assert.Equal(t, red-1, f.light(b.Add(vec.Vec3{X: -1}), world.ChannelRed))
}
