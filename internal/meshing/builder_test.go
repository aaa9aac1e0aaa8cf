package meshing

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// newWorld строит окно 3x3 колонок высотой в один чанк и заполняет его
func newWorld(t *testing.T, blocks map[vec.Vec3]block.BlockID) *world.Window {
	t.Helper()
	w, err := world.NewWindow(1)
	require.NoError(t, err)
	d, err := w.Recenter(vec.Vec2{}, 1)
	require.NoError(t, err)
	for _, c := range d.Load {
		require.NoError(t, w.Install(c, d.Sequence, world.NewChunk(c)))
	}
	for pos, id := range blocks {
		coord := vec.ToChunk(pos)
		ch, err := w.Chunk(coord)
		require.NoError(t, err)
		l := vec.ToLocal(coord, pos)
		ch.SetBlockAt(world.Index(l.X, l.Y, l.Z), id)
	}
	return w
}

func build(t *testing.T, w *world.Window, coord vec.Vec3) *Mesh {
	t.Helper()
	ch, err := w.Chunk(coord)
	require.NoError(t, err)
	cl := w.Cluster(coord.Column())
	defer cl.Release()
	cl.RLock()
	defer cl.RUnlock()
	return BuildMesh(ch, cl, block.DefaultTable())
}

func TestIsolatedVoxelHasSixFaces(t *testing.T) {
	w := newWorld(t, map[vec.Vec3]block.BlockID{{X: 5, Y: 5, Z: 5}: block.StoneBlockID})
	m := build(t, w, vec.Vec3{})

	assert.Equal(t, 6, m.Faces())
	assert.Len(t, m.Vertices, 24)
	assert.Len(t, m.Opaque, 36)
	assert.Empty(t, m.Transparent)
}

func TestSurroundedVoxelHasNoFaces(t *testing.T) {
	center := vec.Vec3{X: 5, Y: 5, Z: 5}
	blocks := map[vec.Vec3]block.BlockID{center: block.GlowstoneBlockID}
	for _, d := range vec.Directions {
		blocks[center.Add(d)] = block.StoneBlockID
	}
	w := newWorld(t, blocks)
	m := build(t, w, vec.Vec3{})

	// 6 соседей по 5 открытых граней, у центра ни одной
	assert.Equal(t, 6*5, m.Faces())
	box := func(p mgl32.Vec3) bool {
		return p.X() >= 5 && p.X() <= 6 && p.Y() >= 5 && p.Y() <= 6 && p.Z() >= 5 && p.Z() <= 6
	}
	for f := 0; f < m.Faces(); f++ {
		quad := m.Vertices[f*4 : f*4+4]
		own := box(quad[0].Position) && box(quad[1].Position) && box(quad[2].Position) && box(quad[3].Position)
		assert.False(t, own, "грань центрального вокселя")
	}
}

func TestCrossChunkCulling(t *testing.T) {
	w := newWorld(t, map[vec.Vec3]block.BlockID{
		{X: 15, Y: 3, Z: 3}: block.StoneBlockID,
		{X: 16, Y: 3, Z: 3}: block.StoneBlockID,
	})
	assert.Equal(t, 5, build(t, w, vec.Vec3{}).Faces())
	assert.Equal(t, 5, build(t, w, vec.Vec3{X: 1}).Faces())
}

func TestUnloadedNeighborIsExposed(t *testing.T) {
	// у колонки (1,0) нет соседа справа: окно заканчивается на x = 31
	w := newWorld(t, map[vec.Vec3]block.BlockID{{X: 31, Y: 0, Z: 3}: block.StoneBlockID})
	m := build(t, w, vec.Vec3{X: 1})
	assert.Equal(t, 6, m.Faces(), "граней наружу и вниз из мира не отсекаем")
}

func TestTransparentFacesSplit(t *testing.T) {
	w := newWorld(t, map[vec.Vec3]block.BlockID{
		{X: 2, Y: 2, Z: 2}: block.GlassBlockID,
		{X: 3, Y: 2, Z: 2}: block.GlassBlockID,
		{X: 8, Y: 2, Z: 2}: block.StoneBlockID,
		{X: 9, Y: 2, Z: 2}: block.GlassBlockID,
	})
	m := build(t, w, vec.Vec3{})

	// два стекла сливаются: 10 граней; стекло у камня: 5 граней; камень виден через стекло: 6
	assert.Len(t, m.Transparent, (10+5)*6)
	assert.Len(t, m.Opaque, 6*6)
}

func TestFaceUVsAndLight(t *testing.T) {
	pos := vec.Vec3{X: 4, Y: 4, Z: 4}
	w := newWorld(t, map[vec.Vec3]block.BlockID{pos: block.GrassBlockID})
	ch, err := w.Chunk(vec.Vec3{})
	require.NoError(t, err)
	above := world.Index(4, 5, 4)
	ch.SetLightAt(above, world.LightValue(0).With(world.ChannelSky, 15))

	m := build(t, w, vec.Vec3{})
	table := block.DefaultTable()
	atlas := float32(table.AtlasSize())
	top := table.Get(block.GrassBlockID).Textures[block.FaceTop]

	// первая грань - верхняя
	for _, v := range m.Vertices[:4] {
		assert.Equal(t, float32(5), v.Position.Y())
		assert.True(t, v.UV.X() >= float32(top[0])/atlas && v.UV.X() <= float32(top[0]+1)/atlas)
		// из четырёх соседей угла освещён один
		assert.InDelta(t, 0.25, v.Light.W(), 1e-6)
	}
	assert.Equal(t, mgl32.Vec3{16, 0, -16}, build(t, w, vec.Vec3{X: 1, Z: -1}).Origin)
}
