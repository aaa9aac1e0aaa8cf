package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func filledWindow(t *testing.T, height, distance int) *Window {
	t.Helper()
	w, err := NewWindow(height)
	require.NoError(t, err)
	d, err := w.Recenter(vec.Vec2{}, distance)
	require.NoError(t, err)
	for _, c := range d.Load {
		require.NoError(t, w.Install(c, d.Sequence, NewChunk(c)))
	}
	return w
}

func TestClusterCrossesChunkBoundaries(t *testing.T) {
	w := filledWindow(t, 2, 1)
	cl := w.Cluster(vec.Vec2{})
	defer cl.Release()

	assert.Len(t, cl.Chunks(), 9*2)

	// воксель (-1, 17, 16) лежит в чанке (-1, 1, 1)
	pos := vec.Vec3{X: -1, Y: 17, Z: 16}
	ch, i, ok := cl.Locate(pos)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: -1, Y: 1, Z: 1}, ch.Coord)
	assert.Equal(t, Index(15, 1, 0), i)

	ch.SetBlockAt(i, block.StoneBlockID)
	id, ok := cl.Block(pos)
	require.True(t, ok)
	assert.Equal(t, block.StoneBlockID, id)

	assert.True(t, cl.SetLight(pos, LightValue(0).With(ChannelRed, 7)))
	l, _ := cl.Light(pos)
	assert.Equal(t, uint8(7), l.Get(ChannelRed))
}

func TestClusterAbsentNeighbors(t *testing.T) {
	w := filledWindow(t, 1, 1)
	// кластер на краю окна: правая колонка отсутствует
	cl := w.Cluster(vec.Vec2{X: 1})
	defer cl.Release()

	assert.Len(t, cl.Chunks(), 6)
	outside := vec.Vec3{X: 2*Size + 1, Y: 3, Z: 0}
	assert.False(t, cl.Contains(outside))
	assert.False(t, cl.SetLight(outside, 15), "запись вне кластера ничего не делает")
	_, ok := cl.Block(vec.Vec3{X: 0, Y: -1, Z: 0})
	assert.False(t, ok, "под миром соседей нет")
	_, ok = cl.Block(vec.Vec3{X: 0, Y: Size, Z: 0})
	assert.False(t, ok, "над миром соседей нет")
}

func TestClusterLockOrder(t *testing.T) {
	w := filledWindow(t, 2, 2)
	cl := w.Cluster(vec.Vec2{X: 1, Z: -1})
	defer cl.Release()

	chunks := cl.Chunks()
	for i := 1; i < len(chunks); i++ {
		assert.True(t, chunks[i-1].Coord.Less(chunks[i].Coord))
	}

	cl.Lock()
	cl.Unlock()
	cl.RLock()
	cl.RUnlock()
}

func TestClusterRetainsChunks(t *testing.T) {
	w := filledWindow(t, 1, 1)
	center, err := w.Chunk(vec.Vec3{})
	require.NoError(t, err)

	cl := w.Cluster(vec.Vec2{})
	assert.Equal(t, int32(2), center.Refs())
	cl.Release()
	assert.Equal(t, int32(1), center.Refs())
	assert.Nil(t, cl.Chunk(vec.Vec3{}))
}
