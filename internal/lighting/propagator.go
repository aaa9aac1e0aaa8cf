package lighting

import (
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Request - запрос на пересчёт освещения колонки после правки
type Request struct {
	Column vec.Vec2
}

// Stats - счётчики одного прохода
type Stats struct {
	Added   int // вокселей, получивших больше света
	Removed int // вокселей, потерявших свет
}

// Propagator пересчитывает небесный и блочный свет заливкой в ширину.
//
// Все проходы работают внутри кластера 3x3 колонок; соседи вне кластера
// считаются отсутствующими. Вызывающий держит кластер заблокированным
// на запись на всё время прохода. Экземпляр не потокобезопасен: очереди
// переиспользуются между вызовами.
type Propagator struct {
	table *block.Table

	add    queue
	remove queue
}

// NewPropagator создаёт распространитель света
func NewPropagator(table *block.Table) *Propagator {
	return &Propagator{table: table}
}

// Recalculate заново освещает центральную колонку кластера.
//
// Свет колонки обнуляется и запоминается как старые значения, проход
// удаления гасит зависимый от них свет соседей, после чего небо,
// излучатели колонки и свет на границе с соседями снова разливаются
// проходом добавления. Для только что сгенерированной колонки проход
// удаления пуст.
func (p *Propagator) Recalculate(cl *world.Cluster) Stats {
	var st Stats
	for ch := world.ChannelSky; ch < world.ChannelCount; ch++ {
		p.add.reset()
		p.remove.reset()

		st.Removed += p.clearColumn(cl, ch)
		st.Removed += p.propagateRemoval(cl, ch)

		if ch == world.ChannelSky {
			p.seedSky(cl)
		} else {
			p.seedEmitters(cl, ch)
		}
		p.seedBorder(cl, ch)
		st.Added += p.propagateAddition(cl, ch)
	}
	return st
}

// columnBounds возвращает диапазон вокселей центральной колонки
func columnBounds(cl *world.Cluster) (vec.Vec3, vec.Vec3) {
	lo := vec.Vec3{X: cl.Center.X * world.Size, Y: 0, Z: cl.Center.Z * world.Size}
	hi := vec.Vec3{X: lo.X + world.Size - 1, Y: cl.Height*world.Size - 1, Z: lo.Z + world.Size - 1}
	return lo, hi
}

// clearColumn обнуляет канал в колонке, ставя старые значения в очередь удаления
func (p *Propagator) clearColumn(cl *world.Cluster, ch world.Channel) int {
	cleared := 0
	for _, c := range cl.ColumnChunks(0, 0) {
		if c == nil {
			continue
		}
		origin := c.Origin()
		for i := 0; i < world.Volume; i++ {
			l := c.LightAt(i)
			old := l.Get(ch)
			if old == 0 {
				continue
			}
			c.SetLightAt(i, l.With(ch, 0))
			x, y, z := world.Unindex(i)
			p.remove.push(origin.Add(vec.Vec3{X: x, Y: y, Z: z}), old)
			cleared++
		}
	}
	return cleared
}

// propagateRemoval гасит свет, который мог прийти из удалённых значений.
// Соседи с не меньшим светом освещены другим источником и попадают
// в очередь добавления.
func (p *Propagator) propagateRemoval(cl *world.Cluster, ch world.Channel) int {
	removed := 0
	for {
		n, ok := p.remove.pop()
		if !ok {
			break
		}
		for _, d := range vec.Directions {
			npos := n.pos.Add(d)
			c, i, ok := cl.Locate(npos)
			if !ok {
				continue
			}
			l := c.LightAt(i)
			nl := l.Get(ch)
			switch {
			case nl != 0 && nl < n.value:
				c.SetLightAt(i, l.With(ch, 0))
				p.remove.push(npos, nl)
				removed++
				// излучатель сохраняет собственный свет
				if e := ch.Emission(p.table.Get(c.BlockAt(i))); e > 0 {
					c.SetLightAt(i, l.With(ch, int(e)))
					p.add.push(npos, e)
				}
			case nl >= n.value:
				p.add.push(npos, nl)
			}
		}
	}
	return removed
}

// seedSky выполняет вертикальный проход неба по колонке: свет MAX
// опускается сверху без затухания в пустоте, теряет поглощение блока
// в полупрозрачных блоках и останавливается на непрозрачных.
func (p *Propagator) seedSky(cl *world.Cluster) {
	lo, hi := columnBounds(cl)
	for x := lo.X; x <= hi.X; x++ {
		for z := lo.Z; z <= hi.Z; z++ {
			value := block.MaxLevel
			for y := hi.Y; y >= 0 && value > 0; y-- {
				pos := vec.Vec3{X: x, Y: y, Z: z}
				c, i, ok := cl.Locate(pos)
				if !ok {
					// незагруженный чанк прерывает столб
					break
				}
				d := p.table.Get(c.BlockAt(i))
				if d.Opaque() {
					break
				}
				value -= int(d.Absorption)
				if value <= 0 {
					break
				}
				l := c.LightAt(i)
				if int(l.Sky()) < value {
					c.SetLightAt(i, l.With(world.ChannelSky, value))
				}
				p.add.push(pos, uint8(value))
			}
		}
	}
}

// seedEmitters ставит в очередь светящиеся блоки колонки
func (p *Propagator) seedEmitters(cl *world.Cluster, ch world.Channel) {
	for _, c := range cl.ColumnChunks(0, 0) {
		if c == nil {
			continue
		}
		origin := c.Origin()
		for i := 0; i < world.Volume; i++ {
			e := ch.Emission(p.table.Get(c.BlockAt(i)))
			if e == 0 {
				continue
			}
			l := c.LightAt(i)
			if l.Get(ch) < e {
				c.SetLightAt(i, l.With(ch, int(e)))
			}
			x, y, z := world.Unindex(i)
			p.add.push(origin.Add(vec.Vec3{X: x, Y: y, Z: z}), e)
		}
	}
}

// seedBorder ставит в очередь освещённые воксели соседних колонок,
// примыкающие к центральной, чтобы их свет затёк внутрь.
func (p *Propagator) seedBorder(cl *world.Cluster, ch world.Channel) {
	lo, hi := columnBounds(cl)
	push := func(pos vec.Vec3) {
		c, i, ok := cl.Locate(pos)
		if !ok {
			return
		}
		if v := c.LightAt(i).Get(ch); v > 1 {
			p.add.push(pos, v)
		}
	}
	for y := lo.Y; y <= hi.Y; y++ {
		for k := 0; k < world.Size; k++ {
			push(vec.Vec3{X: lo.X - 1, Y: y, Z: lo.Z + k})
			push(vec.Vec3{X: hi.X + 1, Y: y, Z: lo.Z + k})
			push(vec.Vec3{X: lo.X + k, Y: y, Z: lo.Z - 1})
			push(vec.Vec3{X: lo.X + k, Y: y, Z: hi.Z + 1})
		}
	}
}

// propagateAddition разливает свет из очереди добавления.
// Значение у соседа: текущее - max(1, поглощение соседа). Небесный свет
// MAX идёт вниз без потерь через блоки с нулевым поглощением.
func (p *Propagator) propagateAddition(cl *world.Cluster, ch world.Channel) int {
	added := 0
	for {
		n, ok := p.add.pop()
		if !ok {
			break
		}
		// значение могло устареть, если воксель погашен позже
		c, i, ok := cl.Locate(n.pos)
		if !ok {
			continue
		}
		cur := c.LightAt(i).Get(ch)
		if cur <= 1 {
			continue
		}
		for dir, d := range vec.Directions {
			npos := n.pos.Add(d)
			nc, ni, ok := cl.Locate(npos)
			if !ok {
				continue
			}
			nd := p.table.Get(nc.BlockAt(ni))
			if nd.Opaque() {
				continue
			}
			absorption := int(nd.Absorption)
			candidate := int(cur) - max(1, absorption)
			if ch == world.ChannelSky && dir == down && cur == block.MaxLevel && absorption == 0 {
				candidate = block.MaxLevel
			}
			if candidate <= 0 {
				continue
			}
			l := nc.LightAt(ni)
			if candidate > int(l.Get(ch)) {
				nc.SetLightAt(ni, l.With(ch, candidate))
				p.add.push(npos, uint8(candidate))
				added++
			}
		}
	}
	return added
}

// down - индекс направления -Y в vec.Directions
const down = 3
