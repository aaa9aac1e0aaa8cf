package meshing

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// faceDef - нормаль и углы грани единичного куба против часовой стрелки,
// если смотреть снаружи
type faceDef struct {
	normal  vec.Vec3
	corners [4]vec.Vec3
}

var faces = [block.FaceCount]faceDef{
	block.FaceTop: {
		normal:  vec.Vec3{Y: 1},
		corners: [4]vec.Vec3{{X: 0, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}},
	},
	block.FaceBottom: {
		normal:  vec.Vec3{Y: -1},
		corners: [4]vec.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 0, Z: 1}},
	},
	block.FaceFront: {
		normal:  vec.Vec3{Z: 1},
		corners: [4]vec.Vec3{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1}},
	},
	block.FaceBack: {
		normal:  vec.Vec3{Z: -1},
		corners: [4]vec.Vec3{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}},
	},
	block.FaceLeft: {
		normal:  vec.Vec3{X: -1},
		corners: [4]vec.Vec3{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 0}},
	},
	block.FaceRight: {
		normal:  vec.Vec3{X: 1},
		corners: [4]vec.Vec3{{X: 1, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 1}},
	},
}

// два треугольника на грань
var quadIndices = [6]uint32{0, 1, 2, 2, 3, 0}

// BuildMesh строит меш чанка. Соседние воксели берутся из кластера;
// грань на границе с незагруженным чанком считается открытой и будет
// перестроена, когда сосед загрузится. Вызывающий держит кластер
// заблокированным на чтение.
func BuildMesh(ch *world.Chunk, cl *world.Cluster, table *block.Table) *Mesh {
	origin := ch.Origin()
	m := &Mesh{
		Coord:  ch.Coord,
		Origin: mgl32.Vec3{float32(origin.X), float32(origin.Y), float32(origin.Z)},
	}

	atlas := float32(table.AtlasSize())
	for i := 0; i < world.Volume; i++ {
		id := ch.BlockAt(i)
		if id == block.AirBlockID {
			continue
		}
		d := table.Get(id)
		x, y, z := world.Unindex(i)
		local := vec.Vec3{X: x, Y: y, Z: z}
		pos := origin.Add(local)

		for f := block.Face(0); f < block.FaceCount; f++ {
			if !visible(id, pos.Add(faces[f].normal), cl, table) {
				continue
			}
			base := uint32(len(m.Vertices))
			m.appendFace(f, local, pos, d.Textures[f], atlas, cl, table)
			if d.Transparent {
				for _, k := range quadIndices {
					m.Transparent = append(m.Transparent, base+k)
				}
			} else {
				for _, k := range quadIndices {
					m.Opaque = append(m.Opaque, base+k)
				}
			}
		}
	}
	return m
}

// visible решает, видна ли грань блока id со стороны соседа npos
func visible(id block.BlockID, npos vec.Vec3, cl *world.Cluster, table *block.Table) bool {
	nid, ok := cl.Block(npos)
	if !ok || nid == block.AirBlockID {
		return true
	}
	nd := table.Get(nid)
	if nd.Opaque() {
		return false
	}
	// одинаковые прозрачные блоки сливаются (вода к воде, стекло к стеклу)
	return nid != id
}

func (m *Mesh) appendFace(f block.Face, local, pos vec.Vec3, tile block.AtlasCoord, atlas float32, cl *world.Cluster, table *block.Table) {
	def := faces[f]
	u0 := float32(tile[0]) / atlas
	v0 := float32(tile[1]) / atlas
	u1 := float32(tile[0]+1) / atlas
	v1 := float32(tile[1]+1) / atlas
	uvs := [4]mgl32.Vec2{{u0, v1}, {u1, v1}, {u1, v0}, {u0, v0}}

	out := pos.Add(def.normal)
	for k, c := range def.corners {
		p := local.Add(c)
		m.Vertices = append(m.Vertices, Vertex{
			Position: mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)},
			UV:       uvs[k],
			Light:    cornerLight(out, def.normal, c, cl, table),
		})
	}
}

// cornerLight усредняет свет пропускающих свет вокселей снаружи грани,
// касающихся угла: соседа по нормали, двух по рёбрам и диагонального.
func cornerLight(out, normal, corner vec.Vec3, cl *world.Cluster, table *block.Table) mgl32.Vec4 {
	var s1, s2 vec.Vec3
	switch {
	case normal.X != 0:
		s1 = vec.Vec3{Y: sign(corner.Y)}
		s2 = vec.Vec3{Z: sign(corner.Z)}
	case normal.Y != 0:
		s1 = vec.Vec3{X: sign(corner.X)}
		s2 = vec.Vec3{Z: sign(corner.Z)}
	default:
		s1 = vec.Vec3{X: sign(corner.X)}
		s2 = vec.Vec3{Y: sign(corner.Y)}
	}

	var sum mgl32.Vec4
	n := 0
	for _, p := range [4]vec.Vec3{out, out.Add(s1), out.Add(s2), out.Add(s1).Add(s2)} {
		id, ok := cl.Block(p)
		if !ok || table.Get(id).Opaque() {
			continue
		}
		l, _ := cl.Light(p)
		sum = sum.Add(lightVec(l))
		n++
	}
	if n == 0 {
		// снаружи только незагруженные или непрозрачные соседи
		if _, ok := cl.Block(out); !ok {
			return mgl32.Vec4{0, 0, 0, 1}
		}
		return mgl32.Vec4{}
	}
	return sum.Mul(1 / float32(n))
}

func lightVec(l world.LightValue) mgl32.Vec4 {
	const full = float32(block.MaxLevel)
	return mgl32.Vec4{
		float32(l.Get(world.ChannelRed)) / full,
		float32(l.Get(world.ChannelGreen)) / full,
		float32(l.Get(world.ChannelBlue)) / full,
		float32(l.Sky()) / full,
	}
}

func sign(c int) int {
	if c > 0 {
		return 1
	}
	return -1
}
