package logging

import (
	"errors"
	"os"
	"sync"
)

// registry хранит по одному логгеру на компонент движка
type registry struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}

var components = &registry{loggers: make(map[string]*Logger)}

// get возвращает логгер компонента, создавая его при первом обращении.
// Если файл логов открыть не удалось, компонент пишет только в консоль.
func (r *registry) get(component string) *Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[component]; ok {
		return l
	}
	l, err := NewLogger(component)
	if err != nil {
		l = NewWriterLogger(component, os.Stdout, currentOptions().ConsoleLevel)
		l.Warn("file log disabled: %v", err)
	}
	r.loggers[component] = l
	return l
}

func (r *registry) closeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, l := range r.loggers {
		errs = append(errs, l.Close())
	}
	clear(r.loggers)
	return errors.Join(errs...)
}

// CloseComponentLoggers закрывает файлы логгеров компонентов
func CloseComponentLoggers() error {
	return components.closeAll()
}

func GetSchedulerLogger() *Logger {
	return components.get("scheduler")
}

func GetEngineLogger() *Logger {
	return components.get("engine")
}

func GetStorageLogger() *Logger {
	return components.get("storage")
}
