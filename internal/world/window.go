package world

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Delta - результат перецентровки окна
type Delta struct {
	Load     []vec.Vec3 // координаты чанков, вошедших в окно
	Unload   []vec.Vec3 // координаты чанков, покинувших окно
	Sequence uint64     // номер последовательности после перецентровки
}

// Empty возвращает true, если набор координат не изменился
func (d Delta) Empty() bool {
	return len(d.Load) == 0 && len(d.Unload) == 0
}

// Window - буфер окна чанков вокруг наблюдателя.
//
// Окно хранит колонки с расстоянием Чебышёва не больше D от центра.
// Колонки, оставшиеся в диапазоне, не перемещаются. Вторая карта (scratch)
// используется при полном пересчёте и после обмена очищается.
type Window struct {
	mu       sync.RWMutex
	height   int
	center   vec.Vec2
	distance int
	ready    bool

	active  map[vec.Vec2]*Column
	scratch map[vec.Vec2]*Column

	sequence atomic.Uint64
}

// NewWindow создаёт пустое окно с колонками высотой height чанков
func NewWindow(height int) (*Window, error) {
	if height <= 0 {
		return nil, fmt.Errorf("window height %d: %w", height, ErrInvalidConfiguration)
	}
	return &Window{
		height:  height,
		active:  make(map[vec.Vec2]*Column),
		scratch: make(map[vec.Vec2]*Column),
	}, nil
}

// Sequence возвращает текущий номер последовательности
func (w *Window) Sequence() uint64 {
	return w.sequence.Load()
}

// Height возвращает высоту колонки в чанках
func (w *Window) Height() int {
	return w.height
}

// Center возвращает центральную колонку
func (w *Window) Center() vec.Vec2 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.center
}

// Distance возвращает текущую дальность прорисовки
func (w *Window) Distance() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.distance
}

// Recenter перемещает окно к новому центру и дальности.
// При неизменной дальности обходятся только полосы на границе,
// при изменении дальности (или первом вызове) выполняется полный пересчёт.
// Номер последовательности увеличивается ровно один раз.
func (w *Window) Recenter(center vec.Vec2, distance int) (Delta, error) {
	if distance <= 0 {
		return Delta{}, fmt.Errorf("draw distance %d: %w", distance, ErrInvalidConfiguration)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var d Delta
	switch {
	case !w.ready || distance != w.distance:
		d = w.rebuild(center, distance)
	case center != w.center:
		d = w.shift(center)
	}

	w.center = center
	w.distance = distance
	w.ready = true
	d.Sequence = w.sequence.Add(1)
	return d, nil
}

// shift обходит только разность квадратов старого и нового окна
func (w *Window) shift(center vec.Vec2) Delta {
	var d Delta
	oldR := square(w.center, w.distance)
	newR := square(center, w.distance)

	oldR.minus(newR, func(c vec.Vec2) {
		if col, ok := w.active[c]; ok {
			delete(w.active, c)
			col.Dispose()
			d.Unload = w.appendColumn(d.Unload, c)
		}
	})
	newR.minus(oldR, func(c vec.Vec2) {
		if _, ok := w.active[c]; !ok {
			w.active[c] = newColumn(c, w.height)
			d.Load = w.appendColumn(d.Load, c)
		}
	})
	return d
}

// rebuild полностью пересчитывает набор колонок через вторую карту
func (w *Window) rebuild(center vec.Vec2, distance int) Delta {
	var d Delta
	r := square(center, distance)
	r.each(func(c vec.Vec2) {
		if col, ok := w.active[c]; ok {
			w.scratch[c] = col
			delete(w.active, c)
			return
		}
		w.scratch[c] = newColumn(c, w.height)
		d.Load = w.appendColumn(d.Load, c)
	})

	leaving := make([]vec.Vec2, 0, len(w.active))
	for c := range w.active {
		leaving = append(leaving, c)
	}
	sort.Slice(leaving, func(i, j int) bool { return leaving[i].Less(leaving[j]) })
	for _, c := range leaving {
		w.active[c].Dispose()
		d.Unload = w.appendColumn(d.Unload, c)
	}

	w.active, w.scratch = w.scratch, w.active
	clear(w.scratch)
	return d
}

func (w *Window) appendColumn(dst []vec.Vec3, c vec.Vec2) []vec.Vec3 {
	for y := 0; y < w.height; y++ {
		dst = append(dst, vec.Vec3{X: c.X, Y: y, Z: c.Z})
	}
	return dst
}

// InRange проверяет, входит ли координата чанка в окно
func (w *Window) InRange(coord vec.Vec3) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.inRange(coord)
}

func (w *Window) inRange(coord vec.Vec3) bool {
	if !w.ready || coord.Y < 0 || coord.Y >= w.height {
		return false
	}
	return coord.Column().Chebyshev(w.center) <= w.distance
}

// Install помещает сгенерированный чанк в слот окна.
// Возвращает ErrStaleWork, если номер последовательности устарел
// или координата уже вне окна; в этом случае чанк остаётся у вызывающего.
func (w *Window) Install(coord vec.Vec3, sequence uint64, ch *Chunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if sequence != w.sequence.Load() || !w.inRange(coord) {
		return ErrStaleWork
	}
	col, ok := w.active[coord.Column()]
	if !ok {
		return ErrStaleWork
	}
	col.install(coord.Y, ch)
	return nil
}

// Column возвращает колонку окна
func (w *Window) Column(c vec.Vec2) (*Column, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.active[c]
	if !ok {
		return nil, fmt.Errorf("column %v: %w", c, ErrOutOfRange)
	}
	return col, nil
}

// Chunk возвращает загруженный чанк окна
func (w *Window) Chunk(coord vec.Vec3) (*Chunk, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.active[coord.Column()]
	if !ok {
		return nil, fmt.Errorf("chunk %v: %w", coord, ErrOutOfRange)
	}
	ch := col.Chunk(coord.Y)
	if ch == nil {
		return nil, fmt.Errorf("chunk %v not loaded: %w", coord, ErrOutOfRange)
	}
	return ch, nil
}

// Retain возвращает удержанный чанк окна. Чанк нужно отпустить через Release.
func (w *Window) Retain(coord vec.Vec3) (*Chunk, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.active[coord.Column()]
	if !ok {
		return nil, fmt.Errorf("chunk %v: %w", coord, ErrOutOfRange)
	}
	ch := col.Chunk(coord.Y)
	if ch == nil {
		return nil, fmt.Errorf("chunk %v not loaded: %w", coord, ErrOutOfRange)
	}
	ch.Retain()
	return ch, nil
}

// ColumnLit сообщает, освещена ли колонка
func (w *Window) ColumnLit(c vec.Vec2) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.active[c]
	return ok && col.Lit()
}

// Close выгружает все колонки. Последовательность увеличивается,
// чтобы незавершённая работа стала устаревшей.
func (w *Window) Close() []vec.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()

	var unload []vec.Vec3
	for c, col := range w.active {
		col.Dispose()
		unload = w.appendColumn(unload, c)
		delete(w.active, c)
	}
	w.ready = false
	w.sequence.Add(1)
	sort.Slice(unload, func(i, j int) bool { return unload[i].Less(unload[j]) })
	return unload
}

// ColumnComplete сообщает, сгенерированы ли все чанки колонки
func (w *Window) ColumnComplete(c vec.Vec2) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	col, ok := w.active[c]
	return ok && col.Complete()
}

// Columns возвращает снимок координат колонок в стабильном порядке
func (w *Window) Columns() []vec.Vec2 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]vec.Vec2, 0, len(w.active))
	for c := range w.active {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Coords возвращает все координаты чанков окна (загруженные и нет)
func (w *Window) Coords() []vec.Vec3 {
	cols := w.Columns()
	out := make([]vec.Vec3, 0, len(cols)*w.height)
	for _, c := range cols {
		out = w.appendColumn(out, c)
	}
	return out
}

// Chunks возвращает загруженные чанки в стабильном порядке
func (w *Window) Chunks() []*Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]*Chunk, 0, len(w.active)*w.height)
	for _, col := range w.active {
		for _, ch := range col.chunks {
			if ch != nil {
				out = append(out, ch)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}

// Acquire возвращает удержанные загруженные чанки в порядке захвата
// блокировок. Каждый чанк нужно отпустить через Release.
func (w *Window) Acquire() []*Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]*Chunk, 0, len(w.active)*w.height)
	for _, col := range w.active {
		for _, ch := range col.chunks {
			if ch != nil {
				ch.Retain()
				out = append(out, ch)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}

// Cluster собирает окрестность 3x3 колонок вокруг c.
// Все чанки кластера удерживаются до вызова Cluster.Release.
func (w *Window) Cluster(c vec.Vec2) *Cluster {
	w.mu.RLock()
	defer w.mu.RUnlock()

	cl := &Cluster{Center: c, Height: w.height}
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			col, ok := w.active[vec.Vec2{X: c.X + dx, Z: c.Z + dz}]
			if !ok {
				continue
			}
			slot := make([]*Chunk, w.height)
			for y, ch := range col.chunks {
				if ch != nil {
					ch.Retain()
					slot[y] = ch
					cl.held = append(cl.held, ch)
				}
			}
			cl.columns[dx+1][dz+1] = slot
		}
	}
	sort.Slice(cl.held, func(i, j int) bool { return cl.held[i].Coord.Less(cl.held[j].Coord) })
	return cl
}

// rect - квадрат колонок [minX, maxX] x [minZ, maxZ]
type rect struct {
	minX, maxX, minZ, maxZ int
}

func square(c vec.Vec2, d int) rect {
	return rect{minX: c.X - d, maxX: c.X + d, minZ: c.Z - d, maxZ: c.Z + d}
}

func (r rect) each(fn func(vec.Vec2)) {
	for x := r.minX; x <= r.maxX; x++ {
		for z := r.minZ; z <= r.maxZ; z++ {
			fn(vec.Vec2{X: x, Z: z})
		}
	}
}

// minus обходит колонки r, не входящие в o. Стоимость пропорциональна
// размеру разности, а не площади квадрата.
func (r rect) minus(o rect, fn func(vec.Vec2)) {
	// полосы по X целиком вне o
	for _, xs := range outside(r.minX, r.maxX, o.minX, o.maxX) {
		rect{minX: xs[0], maxX: xs[1], minZ: r.minZ, maxZ: r.maxZ}.each(fn)
	}
	lo, hi := max(r.minX, o.minX), min(r.maxX, o.maxX)
	if lo > hi {
		return
	}
	// в пересечении по X остаются полосы по Z
	for _, zs := range outside(r.minZ, r.maxZ, o.minZ, o.maxZ) {
		rect{minX: lo, maxX: hi, minZ: zs[0], maxZ: zs[1]}.each(fn)
	}
}

// outside возвращает части отрезка [lo, hi], не покрытые [olo, ohi]
func outside(lo, hi, olo, ohi int) [][2]int {
	if ohi < lo || olo > hi {
		return [][2]int{{lo, hi}}
	}
	var out [][2]int
	if lo < olo {
		out = append(out, [2]int{lo, olo - 1})
	}
	if ohi < hi {
		out = append(out, [2]int{ohi + 1, hi})
	}
	return out
}
