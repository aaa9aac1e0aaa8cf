package vec

import "math"

// Vec2Float представляет позицию наблюдателя на плоскости (в вокселях)
type Vec2Float struct {
	X, Z float64
}

// Column возвращает колонку чанков, в которой находится позиция
func (v Vec2Float) Column() Vec2 {
	return Vec2{
		X: FloorDiv(int(math.Floor(v.X)), ChunkSize),
		Z: FloorDiv(int(math.Floor(v.Z)), ChunkSize),
	}
}

// Add складывает два вектора
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Z: v.Z + other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec2Float) Mul(k float64) Vec2Float {
	return Vec2Float{X: v.X * k, Z: v.Z * k}
}
