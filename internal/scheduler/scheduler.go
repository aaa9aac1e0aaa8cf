package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/meshing"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// ErrQueueFull возвращается Submit, когда очередь заполнена
var ErrQueueFull = errors.New("scheduler queue is full")

// Window - то, что планировщику нужно знать об окне чанков
type Window interface {
	Sequence() uint64
	Center() vec.Vec2
	InRange(coord vec.Vec3) bool
}

// Handlers - обработчики стадий. Generate и Mesh выполняются в пуле
// воркеров, Install, Light и Upload - в горутине тика.
type Handlers struct {
	// Generate строит чанк; функция чистая и может выполняться параллельно
	Generate func(ctx context.Context, d Descriptor) (*world.Chunk, error)
	// Install кладёт чанк в окно; при ошибке чанк остаётся у планировщика
	Install func(d Descriptor, ch *world.Chunk) error
	// Light освещает колонку; false - колонка ещё не готова
	Light func(d Descriptor) (bool, error)
	// Mesh строит меш чанка
	Mesh func(ctx context.Context, d Descriptor) (*meshing.Mesh, error)
	// Upload передаёт готовый меш рендереру
	Upload func(d Descriptor, m *meshing.Mesh)
	// Release освобождает меш чанка, вышедшего за дальность отрисовки.
	// Может быть nil. Как и Upload, вызывается под мьютексом планировщика.
	Release func(coord vec.Vec3)
}

// Config - параметры планировщика
type Config struct {
	Budget               int     // записей, продвигаемых за тик
	Capacity             int     // максимум записей в очереди
	Workers              int     // размер пула воркеров
	GenerationsPerSecond float64 // 0 - без ограничения
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Budget:   64,
		Capacity: 8192,
		Workers:  4,
	}
}

// Option настраивает планировщик
type Option func(*Scheduler)

// WithMetrics подключает метрики
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithLimiter ограничивает запуск генерации корзиной токенов
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// record - состояние одной координаты
type record struct {
	desc     Descriptor
	stage    Stage
	priority int
	order    uint64
	index    int // позиция в куче, -1 - вне кучи

	busy   bool // задача в пуле или действие тика
	parked bool // ждёт соседей для освещения
	lit    bool // освещена; для Rendered=false это конечное состояние
	remesh bool // меш нужно перестроить после текущей задачи

	chunk *world.Chunk // сгенерирован, ещё не установлен
}

// result - завершённая задача пула
type result struct {
	rec   *record
	desc  Descriptor
	mesh  bool
	chunk *world.Chunk
	built *meshing.Mesh
	err   error
}

// action - шаг, выполняемый в тике вне мьютекса
type action struct {
	rec   *record
	desc  Descriptor
	stage Stage
	chunk *world.Chunk

	done bool
	err  error
}

// Scheduler - планировщик загрузки: очередь с приоритетом по расстоянию
// до центра окна и конечный автомат стадий для каждой координаты.
//
// Перед каждым переходом номер последовательности записи сверяется
// с окном; устаревшая запись отменяется. Задача в пуле не прерывается,
// её результат отбрасывается при следующей проверке.
type Scheduler struct {
	mu       sync.Mutex
	ctx      context.Context
	cfg      Config
	window   Window
	handlers Handlers
	pool     *Pool

	seq      uint64              // последний номер окна, под который перештампованы записи
	rendered func(vec.Vec3) bool // nil - признак Rendered не пересчитывается
	records  map[vec.Vec3]*record
	queue    priorityQueue
	parked   []*record
	order    uint64

	doneMu sync.Mutex
	done   []result

	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *logging.Logger
}

// New создаёт планировщик и его пул воркеров
func New(ctx context.Context, cfg Config, window Window, handlers Handlers, opts ...Option) (*Scheduler, error) {
	if cfg.Budget <= 0 || cfg.Capacity <= 0 || cfg.Workers <= 0 {
		return nil, fmt.Errorf("scheduler config %+v: %w", cfg, world.ErrInvalidConfiguration)
	}
	if handlers.Generate == nil || handlers.Install == nil || handlers.Light == nil || handlers.Mesh == nil || handlers.Upload == nil {
		return nil, fmt.Errorf("scheduler handlers incomplete: %w", world.ErrInvalidConfiguration)
	}

	s := &Scheduler{
		ctx:      ctx,
		cfg:      cfg,
		window:   window,
		handlers: handlers,
		pool:     NewPool(ctx, cfg.Workers),
		seq:      window.Sequence(),
		records:  make(map[vec.Vec3]*record),
	}
	if cfg.GenerationsPerSecond > 0 {
		burst := max(1, int(cfg.GenerationsPerSecond))
		s.limiter = rate.NewLimiter(rate.Limit(cfg.GenerationsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.GetSchedulerLogger()
	}
	return s, nil
}

// Submit ставит координату в очередь. Если запись уже есть, её дескриптор
// заменяется без повторной генерации.
func (s *Scheduler) Submit(d Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sync()
	if d.Sequence != s.seq {
		s.log.Debug("stale submit %v seq=%d", d.Coord, d.Sequence)
		s.stale("submit")
		return nil
	}

	if r, ok := s.records[d.Coord]; ok && r.stage != StageCancelled {
		wasRendered := r.desc.Rendered
		r.desc = d
		r.priority = s.priorityOf(d.Coord)
		s.queue.fix(r)
		switch {
		case d.Rendered && !wasRendered:
			s.requestMesh(r)
		case !d.Rendered && wasRendered:
			s.demote(r)
		}
		return nil
	}

	if s.queue.Len() >= s.cfg.Capacity {
		return ErrQueueFull
	}
	r := &record{desc: d, stage: StageRequested, index: -1}
	s.records[d.Coord] = r
	s.enqueue(r)
	s.transition(r, StageRequested)
	return nil
}

// Tick продвигает до Budget записей на одну стадию и возвращает
// координаты, завершённые в этом тике.
func (s *Scheduler) Tick() []vec.Vec3 {
	s.mu.Lock()
	s.sync()
	completed := s.drain(nil)
	s.unpark()
	batch := s.take()
	s.mu.Unlock()

	for i := range batch {
		s.run(&batch[i])
	}

	s.mu.Lock()
	s.sync()
	for i := range batch {
		completed = s.apply(&batch[i], completed)
	}
	s.updateGauges()
	s.mu.Unlock()
	return completed
}

// take снимает записи с кучи. Генерация и мешинг сразу уходят в пул,
// установка и освещение возвращаются для выполнения вне мьютекса.
func (s *Scheduler) take() []action {
	var deferred, unexpected []*record
	var out []action
	taken := 0

	for taken < s.cfg.Budget && s.queue.Len() > 0 {
		r := s.queue.pop()
		if r.desc.Sequence != s.seq {
			s.cancel(r, r.stage.String())
			continue
		}
		if !r.desc.Rendered && (r.stage == StageMeshed || (r.stage == StageLighting && r.lit)) {
			// перестройка меша больше не нужна: чанк вне дальности отрисовки
			continue
		}
		taken++

		switch r.stage {
		case StageRequested:
			if s.limiter != nil && !s.limiter.Allow() {
				deferred = append(deferred, r)
				continue
			}
			s.dispatchGenerate(r)
		case StageGenerated:
			// чанк переходит к действию, чтобы отмена не освободила его во время установки
			r.busy = true
			out = append(out, action{rec: r, desc: r.desc, stage: StageGenerated, chunk: r.chunk})
			r.chunk = nil
		case StageLighting:
			if r.lit {
				s.dispatchMesh(r)
				continue
			}
			r.busy = true
			out = append(out, action{rec: r, desc: r.desc, stage: StageLighting})
		case StageMeshed:
			s.dispatchMesh(r)
		default:
			unexpected = append(unexpected, r)
		}
	}
	for _, r := range deferred {
		s.queue.push(r)
	}
	for _, r := range unexpected {
		s.log.Warn("record %v in unexpected stage %s", r.desc.Coord, r.stage)
	}
	return out
}

// run выполняет обработчик стадии вне мьютекса
func (s *Scheduler) run(a *action) {
	switch a.stage {
	case StageGenerated:
		a.err = s.handlers.Install(a.desc, a.chunk)
	case StageLighting:
		a.done, a.err = s.handlers.Light(a.desc)
	}
}

// apply применяет итог действия тика
func (s *Scheduler) apply(a *action, completed []vec.Vec3) []vec.Vec3 {
	r := a.rec
	r.busy = false

	if r.stage == StageCancelled {
		if a.stage == StageGenerated && a.err != nil {
			a.chunk.Release()
		}
		s.finishCancelled(r)
		return completed
	}

	switch a.stage {
	case StageGenerated:
		if a.err != nil {
			if errors.Is(a.err, world.ErrStaleWork) && r.desc.Sequence == s.seq {
				// окно перецентровано, но запись ещё не перештампована: повторяем
				r.chunk = a.chunk
				s.enqueue(r)
				return completed
			}
			if errors.Is(a.err, world.ErrStaleWork) {
				a.chunk.Release()
				s.cancel(r, "install")
				return completed
			}
			s.log.Error("install %v: %v", r.desc.Coord, a.err)
			a.chunk.Release()
			r.stage = StageRequested
			s.enqueue(r)
			return completed
		}
		s.transition(r, StageLighting)
		s.enqueue(r)

	case StageLighting:
		if r.desc.Sequence != s.seq {
			s.cancel(r, "lighting")
			return completed
		}
		if a.err != nil {
			s.log.Error("lighting %v: %v", r.desc.Coord, a.err)
		}
		if !a.done {
			r.parked = true
			s.parked = append(s.parked, r)
			return completed
		}
		r.lit = true
		if r.desc.Rendered {
			s.dispatchMesh(r)
			return completed
		}
		completed = append(completed, r.desc.Coord)
	}
	return completed
}

// drain забирает результаты задач пула
func (s *Scheduler) drain(completed []vec.Vec3) []vec.Vec3 {
	s.doneMu.Lock()
	results := s.done
	s.done = nil
	s.doneMu.Unlock()

	for _, res := range results {
		r := res.rec
		r.busy = false

		if r.stage == StageCancelled {
			if res.chunk != nil {
				res.chunk.Release()
			}
			s.finishCancelled(r)
			continue
		}
		if r.desc.Sequence != s.seq {
			if res.chunk != nil {
				res.chunk.Release()
			}
			s.cancel(r, r.stage.String())
			continue
		}

		if !res.mesh {
			if res.err != nil {
				s.log.Error("generate %v: %v", r.desc.Coord, res.err)
				r.stage = StageRequested
				s.enqueue(r)
				continue
			}
			r.chunk = res.chunk
			s.transition(r, StageGenerated)
			s.enqueue(r)
			continue
		}

		if !r.desc.Rendered {
			// чанк вышел за дальность отрисовки, пока строился меш
			if r.stage == StageMeshed {
				r.stage = StageLighting
			}
			r.remesh = false
			continue
		}
		if res.err != nil {
			if errors.Is(res.err, world.ErrOutOfRange) {
				s.log.Debug("mesh %v: %v", r.desc.Coord, res.err)
			} else {
				s.log.Error("mesh %v: %v", r.desc.Coord, res.err)
			}
			s.cancel(r, "mesh")
			continue
		}
		s.handlers.Upload(r.desc, res.built)
		s.transition(r, StageMeshed)
		completed = append(completed, r.desc.Coord)
		if r.remesh {
			r.remesh = false
			s.enqueue(r)
		}
	}
	return completed
}

// unpark возвращает ожидающие освещения записи в очередь
func (s *Scheduler) unpark() {
	for _, r := range s.parked {
		r.parked = false
		if r.stage == StageLighting && !r.busy && r.index < 0 {
			s.enqueue(r)
		}
	}
	s.parked = s.parked[:0]
}

func (s *Scheduler) dispatchGenerate(r *record) {
	r.busy = true
	s.transition(r, StageGenerating)
	d := r.desc
	s.pool.Go(func() {
		ch, err := s.handlers.Generate(s.ctx, d)
		s.complete(result{rec: r, desc: d, chunk: ch, err: err})
	})
}

func (s *Scheduler) dispatchMesh(r *record) {
	r.busy = true
	d := r.desc
	s.pool.Go(func() {
		m, err := s.handlers.Mesh(s.ctx, d)
		s.complete(result{rec: r, desc: d, mesh: true, built: m, err: err})
	})
}

func (s *Scheduler) complete(res result) {
	s.doneMu.Lock()
	s.done = append(s.done, res)
	s.doneMu.Unlock()
}

// requestMesh ставит уже освещённую запись на построение меша
func (s *Scheduler) requestMesh(r *record) {
	switch {
	case r.busy:
		r.remesh = true
	case r.stage == StageMeshed || (r.stage == StageLighting && r.lit):
		if r.index < 0 && !r.parked {
			s.enqueue(r)
		}
	}
}

// Remesh просит перестроить меш чанка. Возвращает false для неизвестной координаты.
func (s *Scheduler) Remesh(coord vec.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sync()
	r, ok := s.records[coord]
	if !ok || r.stage == StageCancelled {
		return false
	}
	if r.desc.Rendered {
		s.requestMesh(r)
	}
	return true
}

// Rebase вызывается после перецентровки окна и задаёт правило rendered
// для пересчёта признака Rendered. Записи в пределах окна получают номер
// последовательности окна и новый приоритет, остальные отменяются.
// Если Rebase не вызван, Submit и Tick перештамповывают записи сами,
// как только номер окна сменился.
func (s *Scheduler) Rebase(rendered func(vec.Vec3) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rendered != nil {
		s.rendered = rendered
	}
	s.rebase(s.window.Sequence())
}

// sync сверяет номер последовательности с окном. Вызывается под мьютексом.
func (s *Scheduler) sync() {
	if seq := s.window.Sequence(); seq != s.seq {
		s.rebase(seq)
	}
}

func (s *Scheduler) rebase(seq uint64) {
	s.seq = seq
	for coord, r := range s.records {
		if r.stage == StageCancelled {
			continue
		}
		if !s.window.InRange(coord) {
			s.cancel(r, "rebase")
			continue
		}
		r.desc.Sequence = seq
		r.priority = s.priorityOf(coord)
		if s.rendered == nil {
			continue
		}
		wasRendered := r.desc.Rendered
		r.desc.Rendered = s.rendered(coord)
		switch {
		case r.desc.Rendered && !wasRendered:
			s.requestMesh(r)
		case !r.desc.Rendered && wasRendered:
			s.demote(r)
		}
	}
	heap.Init(&s.queue)
}

// demote снимает с записи признак отрисовки: освещённый чанк снова
// заканчивается на Lighting, а его меш освобождается
func (s *Scheduler) demote(r *record) {
	r.remesh = false
	if r.stage == StageMeshed {
		r.stage = StageLighting
	}
	if s.handlers.Release != nil {
		s.handlers.Release(r.desc.Coord)
	}
}

// Forget удаляет запись о координате
func (s *Scheduler) Forget(coord vec.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.records[coord]; ok {
		s.cancel(r, "forget")
	}
}

// Stage возвращает текущую стадию координаты
func (s *Scheduler) Stage(coord vec.Vec3) (Stage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[coord]
	if !ok {
		return StageCancelled, false
	}
	return r.stage, true
}

// Stats возвращает число записей по стадиям
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Queued:  s.queue.Len(),
		Waiting: len(s.parked),
		ByStage: make(map[Stage]int),
	}
	for _, r := range s.records {
		st.ByStage[r.stage]++
		if r.busy {
			st.InFlight++
		}
	}
	return st
}

// Idle возвращает true, когда работы нет: очередь пуста и пул свободен
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() > 0 || len(s.parked) > 0 {
		return false
	}
	for _, r := range s.records {
		if r.busy {
			return false
		}
	}
	s.doneMu.Lock()
	defer s.doneMu.Unlock()
	return len(s.done) == 0
}

// Close останавливает пул и освобождает неустановленные чанки
func (s *Scheduler) Close() {
	s.pool.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doneMu.Lock()
	for _, res := range s.done {
		if res.chunk != nil {
			res.chunk.Release()
		}
	}
	s.done = nil
	s.doneMu.Unlock()

	for coord, r := range s.records {
		if r.chunk != nil {
			r.chunk.Release()
			r.chunk = nil
		}
		delete(s.records, coord)
	}
	s.queue = s.queue[:0]
	s.parked = s.parked[:0]
}

// cancel переводит запись в Cancelled. Занятая запись удаляется,
// когда её задача вернётся.
func (s *Scheduler) cancel(r *record, where string) {
	s.queue.remove(r)
	if r.chunk != nil {
		r.chunk.Release()
		r.chunk = nil
	}
	r.stage = StageCancelled
	r.remesh = false
	s.stale(where)
	s.log.Debug("stale work dropped: %v at %s", r.desc.Coord, where)
	if !r.busy {
		s.finishCancelled(r)
	}
}

func (s *Scheduler) finishCancelled(r *record) {
	if cur, ok := s.records[r.desc.Coord]; ok && cur == r {
		delete(s.records, r.desc.Coord)
	}
}

func (s *Scheduler) enqueue(r *record) {
	r.priority = s.priorityOf(r.desc.Coord)
	r.order = s.order
	s.order++
	s.queue.push(r)
}

func (s *Scheduler) priorityOf(coord vec.Vec3) int {
	return coord.Column().Chebyshev(s.window.Center())
}

func (s *Scheduler) transition(r *record, stage Stage) {
	r.stage = stage
	if s.metrics != nil {
		s.metrics.StageTransitions.WithLabelValues(stage.String()).Inc()
	}
}

func (s *Scheduler) stale(where string) {
	if s.metrics != nil {
		s.metrics.StaleDropped.WithLabelValues(where).Inc()
	}
}

func (s *Scheduler) updateGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.QueueDepth.Set(float64(s.queue.Len()))
	s.metrics.InFlight.Set(float64(s.pool.Running()) + float64(s.pool.Waiting()))
}
