package scheduler

import (
	"context"

	"github.com/alitto/pond/v2"
)

// Pool - пул воркеров фиксированного размера для генерации и мешинга
type Pool struct {
	pool pond.Pool
}

// NewPool создаёт пул из workers горутин. Отмена ctx останавливает приём задач.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{pool: pond.NewPool(workers, pond.WithContext(ctx))}
}

// Go ставит задачу в очередь пула
func (p *Pool) Go(task func()) {
	p.pool.Submit(task)
}

// Running возвращает число занятых воркеров
func (p *Pool) Running() int64 {
	return p.pool.RunningWorkers()
}

// Waiting возвращает число задач в очереди пула
func (p *Pool) Waiting() uint64 {
	return p.pool.WaitingTasks()
}

// Stop дожидается завершения поставленных задач
func (p *Pool) Stop() {
	p.pool.StopAndWait()
}
