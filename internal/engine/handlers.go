package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/meshing"
	"github.com/annel0/voxel-engine/internal/scheduler"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// generate строит чанк и накладывает сохранённые правки.
// Выполняется в пуле воркеров; чанк ещё никому не виден.
func (e *Engine) generate(ctx context.Context, d scheduler.Descriptor) (*world.Chunk, error) {
	ch := e.gen.Generate(d.Coord)

	delta, err := e.store.LoadChunk(ctx, d.Coord)
	if err != nil {
		// рельеф без правок лучше, чем дыра в мире
		e.storageError("load edits %v: %v", d.Coord, err)
		return ch, nil
	}
	for _, local := range delta.Apply(ch) {
		e.syncLiquid(ch, world.Index(local.X, local.Y, local.Z))
	}
	return ch, nil
}

// install кладёт чанк в окно; ErrStaleWork разбирает планировщик
func (e *Engine) install(d scheduler.Descriptor, ch *world.Chunk) error {
	return e.window.Install(d.Coord, d.Sequence, ch)
}

// lightColumn освещает колонку чанка, когда она сгенерирована целиком.
// Колонка освещается один раз; остальные чанки колонки сразу идут дальше.
func (e *Engine) lightColumn(d scheduler.Descriptor) (bool, error) {
	c := d.Coord.Column()
	if !e.window.ColumnComplete(c) {
		return false, nil
	}
	if e.window.ColumnLit(c) {
		return true, nil
	}
	col, err := e.window.Column(c)
	if err != nil {
		// колонка ушла из окна, запись отменится при следующей проверке
		return false, nil
	}

	e.recalculate(c, false)
	col.SetLit(true)

	// соседи могли получить свет через границу, а их грани на границе
	// строились как открытые
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			e.remeshColumn(vec.Vec2{X: c.X + dx, Z: c.Z + dz})
		}
	}
	return true, nil
}

// recalculate пересчитывает освещение колонки под блокировкой кластера.
// С remesh перестраиваются меши чанков кластера, у которых сменился свет.
func (e *Engine) recalculate(c vec.Vec2, remesh bool) lighting.Stats {
	cl := e.window.Cluster(c)
	defer cl.Release()
	start := time.Now()

	cl.Lock()
	e.lightMu.Lock()
	st := e.light.Recalculate(cl)
	e.lightMu.Unlock()
	cl.Unlock()

	e.observeLight(st, time.Since(start))
	if remesh {
		for _, ch := range cl.Chunks() {
			if ch.IsDirty() {
				e.sched.Remesh(ch.Coord)
			}
		}
	}
	return st
}

func (e *Engine) observeLight(st lighting.Stats, took time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.LightVoxels.WithLabelValues("add").Add(float64(st.Added))
	e.metrics.LightVoxels.WithLabelValues("remove").Add(float64(st.Removed))
	e.metrics.LightDuration.Observe(took.Seconds())
}

// mesh строит меш по кластеру под блокировкой на чтение
func (e *Engine) mesh(ctx context.Context, d scheduler.Descriptor) (*meshing.Mesh, error) {
	cl := e.window.Cluster(d.Coord.Column())
	defer cl.Release()

	ch := cl.Chunk(d.Coord)
	if ch == nil {
		return nil, fmt.Errorf("mesh %v: %w", d.Coord, world.ErrOutOfRange)
	}

	start := time.Now()
	cl.RLock()
	ch.TakeDirty()
	m := meshing.BuildMesh(ch, cl, e.table)
	cl.RUnlock()

	if e.metrics != nil {
		e.metrics.MeshFaces.Add(float64(m.Faces()))
		e.metrics.MeshDuration.Observe(time.Since(start).Seconds())
	}
	return m, nil
}

// upload передаёт меш рендереру, предварительно освобождая прежний.
// Вызывается планировщиком под его мьютексом.
func (e *Engine) upload(d scheduler.Descriptor, m *meshing.Mesh) {
	e.uploadMu.Lock()
	defer e.uploadMu.Unlock()

	if _, ok := e.uploaded[d.Coord]; ok {
		e.renderer.Release(d.Coord)
	}
	e.renderer.Upload(d.Coord, m)
	e.uploaded[d.Coord] = struct{}{}
}

// releaseMesh освобождает меш выгруженного чанка
func (e *Engine) releaseMesh(c vec.Vec3) {
	e.uploadMu.Lock()
	defer e.uploadMu.Unlock()

	if _, ok := e.uploaded[c]; ok {
		e.renderer.Release(c)
		delete(e.uploaded, c)
	}
}

// remeshColumn просит перестроить меши всех чанков колонки
func (e *Engine) remeshColumn(c vec.Vec2) {
	for y := 0; y < e.window.Height(); y++ {
		e.sched.Remesh(vec.Vec3{X: c.X, Y: y, Z: c.Z})
	}
}

func (e *Engine) storageError(format string, args ...interface{}) {
	e.log.Error(format, args...)
	if e.metrics != nil {
		e.metrics.StorageErrors.Inc()
	}
}
