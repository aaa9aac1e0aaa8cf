package scheduler

import "github.com/annel0/voxel-engine/internal/vec"

// Stage - стадия записи планировщика
type Stage int

const (
	StageRequested Stage = iota
	StageGenerating
	StageGenerated
	StageLighting
	StageMeshed
	StageCancelled
)

// String возвращает имя стадии
func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageGenerating:
		return "generating"
	case StageGenerated:
		return "generated"
	case StageLighting:
		return "lighting"
	case StageMeshed:
		return "meshed"
	case StageCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Descriptor - запрос на загрузку чанка
type Descriptor struct {
	Coord    vec.Vec3
	Rendered bool   // нужен ли меш
	Sequence uint64 // номер последовательности окна на момент запроса
}

// Stats - число записей по стадиям
type Stats struct {
	Queued   int
	InFlight int
	Waiting  int // ждут соседей для освещения
	ByStage  map[Stage]int
}
