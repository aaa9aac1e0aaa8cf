package vec

// ChunkSize - длина ребра чанка в вокселях
const ChunkSize = 16

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Используется и для вокселей, и для координат чанков.
type Vec3 struct {
	X int
	Y int
	Z int
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Scale умножает все компоненты на скаляр
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Column возвращает колонку (X, Z), которой принадлежит координата чанка
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// Less задаёт стабильный порядок (X, затем Z, затем Y).
// Порядок совпадает с порядком захвата блокировок кластера.
func (v Vec3) Less(other Vec3) bool {
	if v.X != other.X {
		return v.X < other.X
	}
	if v.Z != other.Z {
		return v.Z < other.Z
	}
	return v.Y < other.Y
}

// FloorDiv делит с округлением к минус бесконечности
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ToChunk преобразует координаты вокселя в координаты чанка
func ToChunk(voxel Vec3) Vec3 {
	return Vec3{
		X: FloorDiv(voxel.X, ChunkSize),
		Y: FloorDiv(voxel.Y, ChunkSize),
		Z: FloorDiv(voxel.Z, ChunkSize),
	}
}

// ToLocal возвращает локальные координаты вокселя внутри чанка chunk
func ToLocal(chunk, voxel Vec3) Vec3 {
	return voxel.Sub(chunk.Scale(ChunkSize))
}

// ToGlobal восстанавливает глобальные координаты вокселя
func ToGlobal(chunk, local Vec3) Vec3 {
	return chunk.Scale(ChunkSize).Add(local)
}

// Directions - шесть соседей по граням: +X, -X, +Y, -Y, +Z, -Z
var Directions = [6]Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}
