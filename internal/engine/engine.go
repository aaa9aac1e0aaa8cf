package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/liquid"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/meshing"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/scheduler"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Renderer принимает готовые меши. Буфер переходит во владение рендерера;
// Release вызывается, когда меш чанка заменён или чанк выгружен.
type Renderer interface {
	Upload(coord vec.Vec3, m *meshing.Mesh)
	Release(coord vec.Vec3)
}

type nopRenderer struct{}

func (nopRenderer) Upload(vec.Vec3, *meshing.Mesh) {}
func (nopRenderer) Release(vec.Vec3)               {}

// ChunkBufferingRequest перемещает окно и меняет дальность прорисовки
type ChunkBufferingRequest struct {
	Center   vec.Vec2
	Distance int
}

// ChunkLoadingRequest перемещает окно, сохраняя дальность
type ChunkLoadingRequest struct {
	Center vec.Vec2
}

// Stats - снимок состояния движка
type Stats struct {
	Scheduler scheduler.Stats
	Loaded    int // сгенерированных чанков в окне
	Relight   int // колонок в очереди пересчёта освещения
	Backlog   int // запросов, не вошедших в очередь планировщика
	Uploaded  int // мешей у рендерера
}

// Option настраивает движок
type Option func(*Engine)

// WithMetrics подключает метрики
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTracer задаёт трассировщик тиков
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine связывает окно чанков, планировщик, освещение, жидкость и мешинг.
//
// Движение наблюдателя (Buffer, Load) и правки (SetBlock) можно вызывать
// из любых горутин. Tick и TickLiquid рассчитаны на одну горутину цикла,
// её запускает Run.
type Engine struct {
	cfg      *config.Config
	table    *block.Table
	gen      world.Generator
	store    storage.EditStore
	renderer Renderer

	window *world.Window
	sched  *scheduler.Scheduler

	lightMu sync.Mutex
	light   *lighting.Propagator

	liquidMu sync.Mutex
	liquid   *liquid.Simulator

	// moveMu делает перецентровку, Rebase и постановку в очередь одной операцией
	moveMu  sync.Mutex
	backlog []scheduler.Descriptor

	relightMu sync.Mutex
	relight   []lighting.Request
	pending   map[vec.Vec2]struct{}

	uploadMu sync.Mutex
	uploaded map[vec.Vec3]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	metrics *metrics.Metrics
	log     *logging.Logger
	tracer  trace.Tracer
}

// New собирает движок. gen, store и renderer могут быть nil: тогда
// используются шумовой генератор, хранилище в памяти и пустой рендерер.
func New(cfg *config.Config, table *block.Table, gen world.Generator, store storage.EditStore, renderer Renderer, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("block table is required: %w", world.ErrInvalidConfiguration)
	}
	if gen == nil {
		g, err := world.NewNoiseGenerator(cfg.Generator(), table)
		if err != nil {
			return nil, err
		}
		gen = g
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if renderer == nil {
		renderer = nopRenderer{}
	}

	window, err := world.NewWindow(cfg.World.Height)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		table:    table,
		gen:      gen,
		store:    store,
		renderer: renderer,
		window:   window,
		light:    lighting.NewPropagator(table),
		liquid:   liquid.NewSimulator(table),
		pending:  make(map[vec.Vec2]struct{}),
		uploaded: make(map[vec.Vec3]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.GetEngineLogger()
	}
	if e.tracer == nil {
		e.tracer = observability.Tracer()
	}

	handlers := scheduler.Handlers{
		Generate: e.generate,
		Install:  e.install,
		Light:    e.lightColumn,
		Mesh:     e.mesh,
		Upload:   e.upload,
		Release:  e.releaseMesh,
	}
	schedOpts := []scheduler.Option{scheduler.WithLogger(logging.GetSchedulerLogger())}
	if e.metrics != nil {
		schedOpts = append(schedOpts, scheduler.WithMetrics(e.metrics))
	}
	e.sched, err = scheduler.New(ctx, cfg.SchedulerConfig(), window, handlers, schedOpts...)
	if err != nil {
		cancel()
		return nil, err
	}
	return e, nil
}

// Window возвращает окно чанков
func (e *Engine) Window() *world.Window {
	return e.window
}

// Scheduler возвращает планировщик загрузки
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.sched
}

// Buffer перецентрирует окно с новой дальностью и ставит вошедшие
// координаты в очередь. Повтор с тем же центром ничего не загружает.
func (e *Engine) Buffer(req ChunkBufferingRequest) (world.Delta, error) {
	e.moveMu.Lock()
	defer e.moveMu.Unlock()

	delta, err := e.window.Recenter(req.Center, req.Distance)
	if err != nil {
		return world.Delta{}, err
	}
	e.sched.Rebase(e.rendered)
	e.rebaseBacklog(delta.Sequence)

	for _, c := range delta.Unload {
		e.sched.Forget(c)
		e.releaseMesh(c)
	}
	for _, c := range delta.Load {
		e.submit(scheduler.Descriptor{Coord: c, Rendered: e.rendered(c), Sequence: delta.Sequence})
	}

	if e.metrics != nil {
		e.metrics.Recenters.Inc()
	}
	if !delta.Empty() {
		e.log.Debug("recenter to %v d=%d: +%d -%d seq=%d",
			req.Center, req.Distance, len(delta.Load), len(delta.Unload), delta.Sequence)
	}
	return delta, nil
}

// Load перецентрирует окно с текущей дальностью (до первого Buffer -
// с дальностью из конфигурации)
func (e *Engine) Load(req ChunkLoadingRequest) (world.Delta, error) {
	distance := e.window.Distance()
	if distance <= 0 {
		distance = e.cfg.World.Distance
	}
	return e.Buffer(ChunkBufferingRequest{Center: req.Center, Distance: distance})
}

// rendered решает, нужен ли чанку меш
func (e *Engine) rendered(c vec.Vec3) bool {
	d := e.cfg.World.RenderDistance
	return d <= 0 || c.Column().Chebyshev(e.window.Center()) <= d
}

// submit ставит дескриптор в очередь; при переполнении откладывает его
func (e *Engine) submit(d scheduler.Descriptor) {
	err := e.sched.Submit(d)
	if errors.Is(err, scheduler.ErrQueueFull) {
		e.backlog = append(e.backlog, d)
		return
	}
	if err != nil {
		e.log.Error("submit %v: %v", d.Coord, err)
	}
}

// rebaseBacklog перештамповывает отложенные дескрипторы после перецентровки
func (e *Engine) rebaseBacklog(seq uint64) {
	kept := e.backlog[:0]
	for _, d := range e.backlog {
		if !e.window.InRange(d.Coord) {
			continue
		}
		d.Sequence = seq
		d.Rendered = e.rendered(d.Coord)
		kept = append(kept, d)
	}
	e.backlog = kept
}

// retryBacklog повторяет отложенные дескрипторы, пока очередь принимает
func (e *Engine) retryBacklog() {
	e.moveMu.Lock()
	defer e.moveMu.Unlock()

	for len(e.backlog) > 0 {
		err := e.sched.Submit(e.backlog[0])
		if errors.Is(err, scheduler.ErrQueueFull) {
			return
		}
		e.backlog = e.backlog[1:]
	}
}

// Stats возвращает снимок состояния
func (e *Engine) Stats() Stats {
	e.moveMu.Lock()
	backlog := len(e.backlog)
	e.moveMu.Unlock()

	e.relightMu.Lock()
	relight := len(e.relight)
	e.relightMu.Unlock()

	e.uploadMu.Lock()
	uploaded := len(e.uploaded)
	e.uploadMu.Unlock()

	return Stats{
		Scheduler: e.sched.Stats(),
		Loaded:    len(e.window.Chunks()),
		Relight:   relight,
		Backlog:   backlog,
		Uploaded:  uploaded,
	}
}

// Close останавливает планировщик, выгружает окно и закрывает хранилище
func (e *Engine) Close() error {
	e.moveMu.Lock()
	if e.closed {
		e.moveMu.Unlock()
		return nil
	}
	e.closed = true
	e.backlog = nil
	e.moveMu.Unlock()

	e.cancel()
	e.sched.Close()
	for _, c := range e.window.Close() {
		e.releaseMesh(c)
	}
	return e.store.Close()
}
