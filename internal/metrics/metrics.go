package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxel-engine/internal/logging"
)

const namespace = "voxel"

// Metrics инкапсулирует Prometheus-метрики движка.
// Регистрируются в переданном реестре, чтобы тесты не делили глобальный.
type Metrics struct {
	StageTransitions *prometheus.CounterVec
	StaleDropped     *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	InFlight         prometheus.Gauge

	Recenters    prometheus.Counter
	LoadedChunks prometheus.Gauge

	LightVoxels   *prometheus.CounterVec
	LightDuration prometheus.Histogram

	LiquidProcessed prometheus.Counter
	LiquidMoved     prometheus.Counter

	MeshFaces     prometheus.Counter
	MeshDuration  prometheus.Histogram
	TickDuration  prometheus.Histogram
	Edits         prometheus.Counter
	StorageErrors prometheus.Counter
}

// New создаёт метрики и регистрирует их в reg (nil - без регистрации)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "stage_transitions_total",
			Help:      "Переходы записей планировщика по стадиям.",
		}, []string{"stage"}),
		StaleDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "stale_dropped_total",
			Help:      "Задачи, отброшенные из-за устаревшего номера последовательности.",
		}, []string{"stage"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Записей в очереди с приоритетом.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "in_flight",
			Help:      "Задач генерации и мешинга в пуле воркеров.",
		}),
		Recenters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "recenters_total",
			Help:      "Перецентровки окна чанков.",
		}),
		LoadedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "window",
			Name:      "loaded_chunks",
			Help:      "Сгенерированных чанков в окне.",
		}),
		LightVoxels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lighting",
			Name:      "voxels_total",
			Help:      "Вокселей, изменённых проходами освещения.",
		}, []string{"pass"}),
		LightDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lighting",
			Name:      "column_seconds",
			Help:      "Время освещения одной колонки.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		LiquidProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquid",
			Name:      "cells_processed_total",
			Help:      "Обработанных активных ячеек жидкости.",
		}),
		LiquidMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquid",
			Name:      "cells_moved_total",
			Help:      "Ячеек, передавших жидкость соседям.",
		}),
		MeshFaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "meshing",
			Name:      "faces_total",
			Help:      "Граней в построенных мешах.",
		}),
		MeshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "meshing",
			Name:      "build_seconds",
			Help:      "Время построения меша чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_seconds",
			Help:      "Длительность тика движка.",
			Buckets:   prometheus.DefBuckets,
		}),
		Edits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "edits_total",
			Help:      "Правок блоков.",
		}),
		StorageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Ошибок хранилища правок.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.StageTransitions, m.StaleDropped, m.QueueDepth, m.InFlight,
			m.Recenters, m.LoadedChunks,
			m.LightVoxels, m.LightDuration,
			m.LiquidProcessed, m.LiquidMoved,
			m.MeshFaces, m.MeshDuration, m.TickDuration,
			m.Edits, m.StorageErrors,
		)
	}
	return m
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: HTTP-сервер стартует в отдельной горутине.
func StartHTTP(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
