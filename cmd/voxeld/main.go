package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/meshing"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// countingRenderer держит только счётчики: отрисовка вне движка
type countingRenderer struct {
	meshes   atomic.Int64
	faces    atomic.Int64
	released atomic.Int64
}

func (r *countingRenderer) Upload(_ vec.Vec3, m *meshing.Mesh) {
	r.meshes.Add(1)
	r.faces.Add(int64(m.Faces()))
}

func (r *countingRenderer) Release(vec.Vec3) {
	r.released.Add(1)
}

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (default: $VOXEL_CONFIG)")
		speed      = flag.Float64("speed", 8, "observer speed along +X in blocks per second (0 = stand still)")
		startX     = flag.Int("x", 0, "initial observer column X")
		startZ     = flag.Int("z", 0, "initial observer column Z")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.Configure(cfg.LogOptions())
	if err := logging.InitDefaultLogger("voxeld"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.CloseComponentLoggers()

	if err := run(cfg, vec.Vec2{X: *startX, Z: *startZ}, *speed); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 voxeld остановлен")
}

func run(cfg *config.Config, start vec.Vec2, speed float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table := block.DefaultTable()
	if cfg.World.Blocks != "" {
		t, err := block.LoadTable(cfg.World.Blocks)
		if err != nil {
			return fmt.Errorf("block table: %w", err)
		}
		table = t
	}
	logging.Info("Таблица блоков: %d типов", table.Len())

	shutdownTracing, err := observability.InitTelemetry(ctx, observability.Options{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logging.Warn("telemetry shutdown: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		srv := metrics.StartHTTP(fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort()), reg)
		defer srv.Close()
	}

	store, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	logging.Info("Хранилище правок: %s", cfg.Storage.Backend)

	renderer := &countingRenderer{}
	eng, err := engine.New(cfg, table, nil, store, renderer, engine.WithMetrics(m))
	if err != nil {
		store.Close()
		return err
	}
	defer eng.Close()

	if _, err := eng.Buffer(engine.ChunkBufferingRequest{Center: start, Distance: cfg.World.Distance}); err != nil {
		return err
	}
	logging.Info("✅ Окно %v, дальность %d, высота %d чанков", start, cfg.World.Distance, cfg.World.Height)

	go walk(ctx, eng, start, speed)
	go report(ctx, eng, renderer)

	return eng.Run(ctx)
}

// walk двигает наблюдателя по +X и перестраивает окно при смене колонки
func walk(ctx context.Context, eng *engine.Engine, start vec.Vec2, speed float64) {
	if speed <= 0 {
		return
	}
	const step = 100 * time.Millisecond

	pos := vec.Vec2Float{
		X: float64(start.X*vec.ChunkSize) + vec.ChunkSize/2,
		Z: float64(start.Z*vec.ChunkSize) + vec.ChunkSize/2,
	}
	delta := vec.Vec2Float{X: 1}.Mul(speed * step.Seconds())
	column := pos.Column()

	t := time.NewTicker(step)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pos = pos.Add(delta)
			if c := pos.Column(); c != column {
				column = c
				if _, err := eng.Load(engine.ChunkLoadingRequest{Center: column}); err != nil {
					logging.Error("recenter %v: %v", column, err)
				}
			}
		}
	}
}

// report периодически пишет состояние движка
func report(ctx context.Context, eng *engine.Engine, r *countingRenderer) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := eng.Stats()
			logging.Info("📊 loaded=%d queued=%d in_flight=%d waiting=%d backlog=%d relight=%d meshes=%d faces=%d released=%d",
				st.Loaded, st.Scheduler.Queued, st.Scheduler.InFlight, st.Scheduler.Waiting,
				st.Backlog, st.Relight, r.meshes.Load(), r.faces.Load(), r.released.Load())
		}
	}
}
