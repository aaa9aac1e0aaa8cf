package vec

import "math"

// Vec2 представляет колонку чанков на плоскости (X, Z)
type Vec2 struct {
	X, Z int
}

// Add складывает две колонки
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Z: v.Z + other.Z}
}

// Chebyshev возвращает расстояние Чебышёва до другой колонки
func (v Vec2) Chebyshev(other Vec2) int {
	dx := abs(v.X - other.X)
	dz := abs(v.Z - other.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// DistanceTo вычисляет евклидово расстояние до другой колонки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

// Less задаёт стабильный порядок колонок (сначала X, затем Z)
func (v Vec2) Less(other Vec2) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	return v.Z < other.Z
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
