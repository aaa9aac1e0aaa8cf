package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/scheduler"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/world"
)

// Config корневая структура конфигурации движка
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type WorldConfig struct {
	Height            int     `yaml:"height"`          // чанков в колонке
	Distance          int     `yaml:"distance"`        // радиус окна в колонках
	RenderDistance    int     `yaml:"render_distance"` // радиус мешинга; 0 - как distance
	Blocks            string  `yaml:"blocks"`          // YAML таблицы блоков; пусто - встроенная
	Seed              int64   `yaml:"seed"`
	SeaLevel          int     `yaml:"sea_level"`
	BaseHeight        int     `yaml:"base_height"`
	HeightScale       float64 `yaml:"height_scale"`
	NoiseScale        float64 `yaml:"noise_scale"`
	ContinentalWeight float64 `yaml:"continental_weight"`
	PeaksWeight       float64 `yaml:"peaks_weight"`
	DirtDepth         int     `yaml:"dirt_depth"`
}

type SchedulerConfig struct {
	Budget               int     `yaml:"budget"`
	Capacity             int     `yaml:"capacity"`
	Workers              int     `yaml:"workers"`
	GenerationsPerSecond float64 `yaml:"generations_per_second"`
}

type EngineConfig struct {
	TickMs       int `yaml:"tick_ms"`
	LiquidTickMs int `yaml:"liquid_tick_ms"`
	LightBudget  int `yaml:"light_budget"` // пересчётов освещения за тик
}

type StorageConfig struct {
	Backend string              `yaml:"backend"` // memory, badger, redis
	Path    string              `yaml:"path"`
	Redis   storage.RedisConfig `yaml:"redis"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LogConfig struct {
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	Dir          string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	gen := world.DefaultGeneratorConfig()
	sch := scheduler.DefaultConfig()
	return &Config{
		World: WorldConfig{
			Height:            gen.Height,
			Distance:          8,
			Seed:              gen.Seed,
			SeaLevel:          gen.SeaLevel,
			BaseHeight:        gen.BaseHeight,
			HeightScale:       gen.HeightScale,
			NoiseScale:        gen.NoiseScale,
			ContinentalWeight: gen.ContinentalWeight,
			PeaksWeight:       gen.PeaksWeight,
			DirtDepth:         gen.DirtDepth,
		},
		Scheduler: SchedulerConfig{
			Budget:   sch.Budget,
			Capacity: sch.Capacity,
			Workers:  sch.Workers,
		},
		Engine: EngineConfig{
			TickMs:       50,
			LiquidTickMs: 250,
			LightBudget:  16,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Path:    "data",
			Redis:   *storage.DefaultRedisConfig(),
		},
		Metrics:   MetricsConfig{Enabled: true},
		Telemetry: TelemetryConfig{ServiceName: "voxeld"},
		Log:       LogConfig{ConsoleLevel: "INFO", FileLevel: "DEBUG"},
	}
}

// Load читает YAML файл поверх значений по умолчанию.
// Если path == "", берёт путь из ENV VOXEL_CONFIG; если и он пуст - дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, без которых движок не стартует
func (c *Config) Validate() error {
	switch {
	case c.World.Height <= 0:
		return invalid("world.height must be positive, got %d", c.World.Height)
	case c.World.Distance <= 0:
		return invalid("world.distance must be positive, got %d", c.World.Distance)
	case c.World.RenderDistance < 0:
		return invalid("world.render_distance must not be negative, got %d", c.World.RenderDistance)
	case c.Scheduler.Budget <= 0 || c.Scheduler.Capacity <= 0 || c.Scheduler.Workers <= 0:
		return invalid("scheduler budget, capacity and workers must be positive")
	case c.Scheduler.GenerationsPerSecond < 0:
		return invalid("scheduler.generations_per_second must not be negative")
	case c.Engine.TickMs <= 0 || c.Engine.LiquidTickMs <= 0:
		return invalid("engine tick intervals must be positive")
	case c.Engine.LightBudget <= 0:
		return invalid("engine.light_budget must be positive")
	}
	switch c.Storage.Backend {
	case "memory", "badger", "redis":
	default:
		return invalid("unknown storage.backend %q", c.Storage.Backend)
	}
	if _, err := logging.ParseLevel(c.Log.ConsoleLevel); err != nil {
		return invalid("log.console_level: %v", err)
	}
	if _, err := logging.ParseLevel(c.Log.FileLevel); err != nil {
		return invalid("log.file_level: %v", err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), world.ErrInvalidConfiguration)
}

// Generator возвращает параметры генератора рельефа
func (c *Config) Generator() world.GeneratorConfig {
	w := c.World
	return world.GeneratorConfig{
		Seed:              w.Seed,
		Height:            w.Height,
		SeaLevel:          w.SeaLevel,
		BaseHeight:        w.BaseHeight,
		HeightScale:       w.HeightScale,
		NoiseScale:        w.NoiseScale,
		ContinentalWeight: w.ContinentalWeight,
		PeaksWeight:       w.PeaksWeight,
		DirtDepth:         w.DirtDepth,
	}
}

// SchedulerConfig возвращает параметры планировщика
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		Budget:               c.Scheduler.Budget,
		Capacity:             c.Scheduler.Capacity,
		Workers:              c.Scheduler.Workers,
		GenerationsPerSecond: c.Scheduler.GenerationsPerSecond,
	}
}

// StorageOptions возвращает настройки хранилища правок
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend: c.Storage.Backend,
		Path:    c.Storage.Path,
		Redis:   c.Storage.Redis,
	}
}

// LogOptions возвращает настройки логгеров. Уровни проверены в Validate.
func (c *Config) LogOptions() logging.Options {
	console, _ := logging.ParseLevel(c.Log.ConsoleLevel)
	file, _ := logging.ParseLevel(c.Log.FileLevel)
	return logging.Options{ConsoleLevel: console, FileLevel: file, Dir: c.Log.Dir}
}

// TickInterval - период основного тика
func (e EngineConfig) TickInterval() time.Duration {
	return time.Duration(e.TickMs) * time.Millisecond
}

// LiquidInterval - период тика жидкостей
func (e EngineConfig) LiquidInterval() time.Duration {
	return time.Duration(e.LiquidTickMs) * time.Millisecond
}

// GetMetricsPort возвращает порт метрик с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "VOXEL_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}
