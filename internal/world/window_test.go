package world

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
)

func sortedCoords(in []vec.Vec3) []vec.Vec3 {
	out := append([]vec.Vec3(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func columnsOf(coords []vec.Vec3) map[vec.Vec2]int {
	out := make(map[vec.Vec2]int)
	for _, c := range coords {
		out[c.Column()]++
	}
	return out
}

func TestWindowRejectsBadDistance(t *testing.T) {
	w, err := NewWindow(2)
	require.NoError(t, err)

	for _, d := range []int{0, -1} {
		_, err := w.Recenter(vec.Vec2{}, d)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration), "distance %d", d)
	}
	assert.Equal(t, uint64(0), w.Sequence(), "отклонённый вызов не меняет последовательность")

	_, err = NewWindow(0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestWindowInitialLoad(t *testing.T) {
	w, _ := NewWindow(2)
	d, err := w.Recenter(vec.Vec2{}, 2)
	require.NoError(t, err)

	assert.Len(t, d.Load, 25*2)
	assert.Empty(t, d.Unload)
	assert.Equal(t, uint64(1), d.Sequence)
	assert.Len(t, w.Columns(), 25)
	assert.True(t, w.InRange(vec.Vec3{X: 2, Y: 1, Z: -2}))
	assert.False(t, w.InRange(vec.Vec3{X: 3, Y: 0, Z: 0}))
	assert.False(t, w.InRange(vec.Vec3{X: 0, Y: 2, Z: 0}), "выше колонки")
}

func TestWindowSameCenterIsIdempotent(t *testing.T) {
	w, _ := NewWindow(1)
	_, _ = w.Recenter(vec.Vec2{X: 4, Z: 4}, 3)
	before := w.Coords()

	d, err := w.Recenter(vec.Vec2{X: 4, Z: 4}, 3)
	require.NoError(t, err)
	assert.True(t, d.Empty())
	assert.Equal(t, uint64(2), d.Sequence, "последовательность растёт на каждый вызов")
	assert.Equal(t, before, w.Coords())
}

func TestWindowShiftTouchesOnlyRim(t *testing.T) {
	w, _ := NewWindow(3)
	_, _ = w.Recenter(vec.Vec2{}, 2)

	d, err := w.Recenter(vec.Vec2{X: 1}, 2)
	require.NoError(t, err)

	load := columnsOf(d.Load)
	unload := columnsOf(d.Unload)
	assert.Len(t, load, 5)
	assert.Len(t, unload, 5)
	for c, n := range load {
		assert.Equal(t, 3, c.X)
		assert.Equal(t, 3, n, "все чанки колонки")
	}
	for c := range unload {
		assert.Equal(t, -2, c.X)
	}
}

func TestWindowDiagonalShift(t *testing.T) {
	w, _ := NewWindow(1)
	_, _ = w.Recenter(vec.Vec2{}, 2)

	d, _ := w.Recenter(vec.Vec2{X: 1, Z: -1}, 2)
	// 5 + 5 - 1 колонок на новой границе
	assert.Len(t, d.Load, 9)
	assert.Len(t, d.Unload, 9)
	for _, c := range d.Load {
		assert.Equal(t, 2, c.Column().Chebyshev(vec.Vec2{X: 1, Z: -1}))
		assert.Equal(t, 3, c.Column().Chebyshev(vec.Vec2{}))
	}
}

func TestWindowFarJump(t *testing.T) {
	w, _ := NewWindow(1)
	_, _ = w.Recenter(vec.Vec2{}, 1)

	d, _ := w.Recenter(vec.Vec2{X: 10, Z: 10}, 1)
	assert.Len(t, d.Load, 9)
	assert.Len(t, d.Unload, 9)
	assert.Len(t, w.Columns(), 9)
}

func TestWindowDistanceChangeRecomputes(t *testing.T) {
	w, _ := NewWindow(1)
	_, _ = w.Recenter(vec.Vec2{}, 2)

	d, err := w.Recenter(vec.Vec2{}, 1)
	require.NoError(t, err)
	assert.Empty(t, d.Load)
	assert.Len(t, d.Unload, 16)
	assert.Len(t, w.Columns(), 9)

	d, _ = w.Recenter(vec.Vec2{X: 1}, 2)
	assert.Len(t, d.Load, 16)
	assert.Empty(t, d.Unload, "старый квадрат целиком внутри нового")
}

func TestWindowRoundTripKeepsChunks(t *testing.T) {
	w, _ := NewWindow(1)
	first, _ := w.Recenter(vec.Vec2{}, 2)
	original := sortedCoords(w.Coords())

	// заполняем окно чанками
	for _, c := range first.Load {
		require.NoError(t, w.Install(c, first.Sequence, NewChunk(c)))
	}
	kept, err := w.Chunk(vec.Vec3{})
	require.NoError(t, err)

	_, _ = w.Recenter(vec.Vec2{X: 1}, 2)
	back, _ := w.Recenter(vec.Vec2{}, 2)

	assert.Equal(t, original, sortedCoords(w.Coords()))
	again, err := w.Chunk(vec.Vec3{})
	require.NoError(t, err)
	assert.Same(t, kept, again, "чанк в пересечении не перезагружается")

	// вернувшаяся колонка пуста и требует генерации
	require.Len(t, back.Load, 5)
	for _, c := range back.Load {
		assert.Equal(t, -2, c.X)
		_, err := w.Chunk(c)
		assert.ErrorIs(t, err, ErrOutOfRange)
	}
}

func TestWindowRejectsStaleInstall(t *testing.T) {
	w, _ := NewWindow(1)
	d, _ := w.Recenter(vec.Vec2{}, 1)

	c := vec.Vec3{X: -1, Z: 0}
	_, _ = w.Recenter(vec.Vec2{X: 1}, 1)

	ch := NewChunk(c)
	assert.ErrorIs(t, w.Install(c, d.Sequence, ch), ErrStaleWork, "старая последовательность")
	assert.ErrorIs(t, w.Install(c, w.Sequence(), ch), ErrStaleWork, "вне окна")
	ch.Release()
	assert.NoError(t, w.Install(vec.Vec3{X: 1}, w.Sequence(), NewChunk(vec.Vec3{X: 1})))
}

func TestWindowUnloadReleasesStorage(t *testing.T) {
	w, _ := NewWindow(1)
	d, _ := w.Recenter(vec.Vec2{}, 1)

	c := vec.Vec3{X: -1}
	ch := NewChunk(c)
	require.NoError(t, w.Install(c, d.Sequence, ch))

	// задача мешинга удерживает кластер
	cl := w.Cluster(vec.Vec2{})
	_, _ = w.Recenter(vec.Vec2{X: 1}, 1)

	assert.False(t, ch.Released(), "кластер ещё держит ссылку")
	cl.Release()
	assert.True(t, ch.Released())
}

func TestWindowColumnComplete(t *testing.T) {
	w, _ := NewWindow(2)
	d, _ := w.Recenter(vec.Vec2{}, 1)

	col := vec.Vec2{}
	assert.False(t, w.ColumnComplete(col))
	require.NoError(t, w.Install(vec.Vec3{Y: 0}, d.Sequence, NewChunk(vec.Vec3{Y: 0})))
	assert.False(t, w.ColumnComplete(col))
	require.NoError(t, w.Install(vec.Vec3{Y: 1}, d.Sequence, NewChunk(vec.Vec3{Y: 1})))
	assert.True(t, w.ColumnComplete(col))
	assert.Len(t, w.Chunks(), 2)
}

func TestWindowRetainAndClose(t *testing.T) {
	w, _ := NewWindow(1)
	d, _ := w.Recenter(vec.Vec2{}, 1)

	_, err := w.Retain(vec.Vec3{})
	assert.ErrorIs(t, err, ErrOutOfRange)

	ch := NewChunk(vec.Vec3{})
	require.NoError(t, w.Install(vec.Vec3{}, d.Sequence, ch))
	held, err := w.Retain(vec.Vec3{})
	require.NoError(t, err)
	assert.Same(t, ch, held)

	unload := w.Close()
	assert.Len(t, unload, 9)
	assert.Greater(t, w.Sequence(), d.Sequence)
	assert.False(t, w.InRange(vec.Vec3{}))
	assert.False(t, ch.Released(), "удержанный чанк живёт до Release")
	held.Release()
	assert.True(t, ch.Released())
}
