package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/annel0/voxel-engine/internal/liquid"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Tick выполняет один шаг: отложенные запросы, пересчёт освещения по
// правкам и продвижение планировщика. Возвращает координаты, завершённые
// в этом тике.
func (e *Engine) Tick(ctx context.Context) []vec.Vec3 {
	_, span := e.tracer.Start(ctx, "engine.tick")
	defer span.End()
	start := time.Now()

	e.retryBacklog()
	relit := e.processRelight(e.cfg.Engine.LightBudget)
	completed := e.sched.Tick()

	span.SetAttributes(
		attribute.Int("relit", relit),
		attribute.Int("completed", len(completed)),
	)
	if e.metrics != nil {
		e.metrics.TickDuration.Observe(time.Since(start).Seconds())
		e.metrics.LoadedChunks.Set(float64(len(e.window.Chunks())))
	}
	return completed
}

// TickLiquid выполняет шаг жидкости по всем освещённым колонкам окна.
// Неосвещённые колонки считаются отсутствующими: жидкость на их границе ждёт.
func (e *Engine) TickLiquid(ctx context.Context) liquid.Result {
	_, span := e.tracer.Start(ctx, "engine.liquid")
	defer span.End()

	held := e.window.Acquire()
	defer func() {
		for _, ch := range held {
			ch.Release()
		}
	}()

	lit := make([]*world.Chunk, 0, len(held))
	for _, ch := range held {
		if e.window.ColumnLit(ch.Coord.Column()) {
			lit = append(lit, ch)
		}
	}

	// порядок Acquire общий с кластерами
	for _, ch := range lit {
		ch.Mu.Lock()
	}
	e.liquidMu.Lock()
	res := e.liquid.Tick(liquid.NewSpace(lit))
	e.liquidMu.Unlock()
	for i := len(lit) - 1; i >= 0; i-- {
		lit[i].Mu.Unlock()
	}

	for _, c := range res.Dirty {
		e.sched.Remesh(c)
	}
	for _, c := range res.Relight {
		e.enqueueRelight(c)
	}

	span.SetAttributes(
		attribute.Int("processed", res.Processed),
		attribute.Int("moved", res.Moved),
	)
	if e.metrics != nil {
		e.metrics.LiquidProcessed.Add(float64(res.Processed))
		e.metrics.LiquidMoved.Add(float64(res.Moved))
	}
	return res
}

// Run крутит тики до отмены ctx или Close
func (e *Engine) Run(ctx context.Context) error {
	tick := time.NewTicker(e.cfg.Engine.TickInterval())
	defer tick.Stop()
	flow := time.NewTicker(e.cfg.Engine.LiquidInterval())
	defer flow.Stop()

	e.log.Info("engine loop started: tick=%s liquid=%s", e.cfg.Engine.TickInterval(), e.cfg.Engine.LiquidInterval())
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine loop stopped")
			return nil
		case <-e.ctx.Done():
			return nil
		case <-tick.C:
			e.Tick(ctx)
		case <-flow.C:
			e.TickLiquid(ctx)
		}
	}
}
