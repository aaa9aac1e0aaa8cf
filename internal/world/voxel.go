package world

import "github.com/annel0/voxel-engine/internal/world/block"

// Channel - канал освещения
type Channel uint8

const (
	ChannelSky Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue

	ChannelCount
)

// BlockChannels - цветные каналы блочного света
var BlockChannels = [3]Channel{ChannelRed, ChannelGreen, ChannelBlue}

// String возвращает имя канала
func (c Channel) String() string {
	switch c {
	case ChannelSky:
		return "sky"
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	default:
		return "unknown"
	}
}

// Emission возвращает излучение блока в канале (для неба всегда 0)
func (c Channel) Emission(d *block.Descriptor) uint8 {
	if c == ChannelSky {
		return 0
	}
	return d.Emission[c-ChannelRed]
}

// LightValue упаковывает небесный свет и три цветных канала по 4 бита.
// Биты 0-3 - небо, 4-7 - красный, 8-11 - зелёный, 12-15 - синий.
type LightValue uint16

// Get возвращает значение канала
func (l LightValue) Get(ch Channel) uint8 {
	return uint8(l>>(4*ch)) & 0xF
}

// With возвращает копию со значением канала, обрезанным до [0, MaxLevel]
func (l LightValue) With(ch Channel, v int) LightValue {
	if v < 0 {
		v = 0
	}
	if v > block.MaxLevel {
		v = block.MaxLevel
	}
	shift := 4 * ch
	return l&^(0xF<<shift) | LightValue(v)<<shift
}

// Sky возвращает небесный свет
func (l LightValue) Sky() uint8 {
	return l.Get(ChannelSky)
}

// BlockMax возвращает максимум среди цветных каналов
func (l LightValue) BlockMax() uint8 {
	m := l.Get(ChannelRed)
	if g := l.Get(ChannelGreen); g > m {
		m = g
	}
	if b := l.Get(ChannelBlue); b > m {
		m = b
	}
	return m
}

// Voxel - содержимое одной ячейки чанка
type Voxel struct {
	Block block.BlockID
	Light LightValue
}
