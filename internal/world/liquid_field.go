package world

import (
	"sort"

	"github.com/annel0/voxel-engine/internal/world/block"
)

// LiquidCell - жидкость в одном вокселе
type LiquidCell struct {
	Type   block.BlockID
	Amount uint8
	Source bool // бесконечный источник: количество не убывает
}

// LiquidField - разреженное поле жидкости чанка (локальный индекс -> ячейка).
// Отсутствующая запись означает количество 0.
type LiquidField struct {
	cells  map[int]LiquidCell
	active map[int]struct{}
}

// NewLiquidField создаёт пустое поле
func NewLiquidField() *LiquidField {
	return &LiquidField{
		cells:  make(map[int]LiquidCell),
		active: make(map[int]struct{}),
	}
}

// Get возвращает ячейку по локальному индексу
func (f *LiquidField) Get(index int) (LiquidCell, bool) {
	c, ok := f.cells[index]
	return c, ok
}

// Amount возвращает количество жидкости (0 для пустой ячейки)
func (f *LiquidField) Amount(index int) uint8 {
	return f.cells[index].Amount
}

// Set записывает ячейку. Нулевое количество удаляет запись.
func (f *LiquidField) Set(index int, cell LiquidCell) {
	if cell.Amount > block.MaxLevel {
		cell.Amount = block.MaxLevel
	}
	if cell.Amount == 0 {
		delete(f.cells, index)
		delete(f.active, index)
		return
	}
	f.cells[index] = cell
}

// Delete удаляет ячейку
func (f *LiquidField) Delete(index int) {
	delete(f.cells, index)
	delete(f.active, index)
}

// Activate помечает ячейку для обработки в следующем тике
func (f *LiquidField) Activate(index int) {
	if _, ok := f.cells[index]; ok {
		f.active[index] = struct{}{}
	}
}

// Deactivate снимает ячейку с обработки
func (f *LiquidField) Deactivate(index int) {
	delete(f.active, index)
}

// Active возвращает активные ячейки в порядке возрастания индекса
func (f *LiquidField) Active() []int {
	out := make([]int, 0, len(f.active))
	for i := range f.active {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Len возвращает число непустых ячеек
func (f *LiquidField) Len() int {
	return len(f.cells)
}

// ActiveLen возвращает число активных ячеек
func (f *LiquidField) ActiveLen() int {
	return len(f.active)
}
