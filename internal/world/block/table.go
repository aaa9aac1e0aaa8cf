package block

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков встроенной таблицы
const (
	AirBlockID       BlockID = iota // 0
	StoneBlockID                    // 1
	GrassBlockID                    // 2
	WaterBlockID                    // 3
	SandBlockID                     // 4
	DirtBlockID                     // 5
	GlassBlockID                    // 6
	GlowstoneBlockID                // 7
	LeavesBlockID                   // 8
	TorchBlockID                    // 9
)

// MaxLevel - максимум для света и количества жидкости
const MaxLevel = 15

// Face определяет грань вокселя
type Face uint8

const (
	FaceTop    Face = iota // +Y
	FaceBottom             // -Y
	FaceFront              // +Z
	FaceBack               // -Z
	FaceLeft               // -X
	FaceRight              // +X

	FaceCount
)

// String возвращает имя грани
func (f Face) String() string {
	switch f {
	case FaceTop:
		return "top"
	case FaceBottom:
		return "bottom"
	case FaceFront:
		return "front"
	case FaceBack:
		return "back"
	case FaceLeft:
		return "left"
	case FaceRight:
		return "right"
	default:
		return "unknown"
	}
}

// AtlasCoord - координаты тайла в текстурном атласе (столбец, строка)
type AtlasCoord [2]int

// Emission - излучение блока по каналам R, G, B (0-15)
type Emission [3]uint8

// Emits возвращает true, если блок светится хотя бы в одном канале
func (e Emission) Emits() bool {
	return e[0] > 0 || e[1] > 0 || e[2] > 0
}

// Descriptor описывает свойства типа блока
type Descriptor struct {
	ID             BlockID
	Name           string
	Textures       [FaceCount]AtlasCoord
	Solid          bool
	Transparent    bool
	Absorption     uint8
	Emission       Emission
	Liquid         bool
	InfiniteSource bool
}

// Opaque возвращает true для твёрдых непрозрачных блоков
func (d *Descriptor) Opaque() bool {
	return d.Solid && !d.Transparent
}

// Table - таблица описаний блоков, индексируемая по BlockID.
// Заполняется один раз до начала генерации и дальше только читается.
type Table struct {
	descriptors []Descriptor
	atlasSize   int
}

// NewTable проверяет описания и строит таблицу.
// ID должны идти подряд начиная с 0, блок 0 - пустой (воздух).
func NewTable(descriptors []Descriptor, atlasSize int) (*Table, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: empty block table", ErrInvalidConfiguration)
	}
	if atlasSize <= 0 {
		return nil, fmt.Errorf("%w: atlas size must be positive, got %d", ErrInvalidConfiguration, atlasSize)
	}

	sorted := make([]Descriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		d := &sorted[i]
		if int(d.ID) != i {
			return nil, fmt.Errorf("%w: block ids must be contiguous from 0, missing %d", ErrInvalidConfiguration, i)
		}
		if d.Absorption > MaxLevel {
			return nil, fmt.Errorf("%w: block %q absorption %d > %d", ErrInvalidConfiguration, d.Name, d.Absorption, MaxLevel)
		}
		for _, c := range d.Emission {
			if c > MaxLevel {
				return nil, fmt.Errorf("%w: block %q emission %d > %d", ErrInvalidConfiguration, d.Name, c, MaxLevel)
			}
		}
		for f, tc := range d.Textures {
			if tc[0] < 0 || tc[1] < 0 || tc[0] >= atlasSize || tc[1] >= atlasSize {
				return nil, fmt.Errorf("%w: block %q %s texture %v outside atlas", ErrInvalidConfiguration, d.Name, Face(f), tc)
			}
		}
	}

	air := &sorted[AirBlockID]
	if air.Solid || air.Absorption != 0 || air.Liquid {
		return nil, fmt.Errorf("%w: block 0 must be empty", ErrInvalidConfiguration)
	}

	return &Table{descriptors: sorted, atlasSize: atlasSize}, nil
}

// Get возвращает описание блока. Неизвестный ID считается непрозрачным камнем.
func (t *Table) Get(id BlockID) *Descriptor {
	if int(id) < len(t.descriptors) {
		return &t.descriptors[id]
	}
	return &unknownDescriptor
}

// Lookup возвращает описание блока и признак его наличия в таблице
func (t *Table) Lookup(id BlockID) (Descriptor, bool) {
	if int(id) < len(t.descriptors) {
		return t.descriptors[id], true
	}
	return Descriptor{}, false
}

// Absorption возвращает поглощение света блоком
func (t *Table) Absorption(id BlockID) uint8 {
	return t.Get(id).Absorption
}

// Len возвращает количество описанных блоков
func (t *Table) Len() int {
	return len(t.descriptors)
}

// AtlasSize возвращает количество тайлов по стороне атласа
func (t *Table) AtlasSize() int {
	return t.atlasSize
}

// ByName ищет блок по имени
func (t *Table) ByName(name string) (BlockID, bool) {
	for i := range t.descriptors {
		if t.descriptors[i].Name == name {
			return t.descriptors[i].ID, true
		}
	}
	return 0, false
}

var unknownDescriptor = Descriptor{
	Name:       "unknown",
	Solid:      true,
	Absorption: MaxLevel,
}

// textureSpec - компактная запись текстур в YAML: all/side перекрываются конкретными гранями
type textureSpec struct {
	All    *AtlasCoord `yaml:"all"`
	Side   *AtlasCoord `yaml:"side"`
	Top    *AtlasCoord `yaml:"top"`
	Bottom *AtlasCoord `yaml:"bottom"`
	Front  *AtlasCoord `yaml:"front"`
	Back   *AtlasCoord `yaml:"back"`
	Left   *AtlasCoord `yaml:"left"`
	Right  *AtlasCoord `yaml:"right"`
}

type descriptorSpec struct {
	ID             BlockID     `yaml:"id"`
	Name           string      `yaml:"name"`
	Textures       textureSpec `yaml:"textures"`
	Solid          bool        `yaml:"solid"`
	Transparent    bool        `yaml:"transparent"`
	Absorption     uint8       `yaml:"absorption"`
	Emission       Emission    `yaml:"emission"`
	Liquid         bool        `yaml:"liquid"`
	InfiniteSource bool        `yaml:"infinite_source"`
}

type tableSpec struct {
	AtlasSize int              `yaml:"atlas_size"`
	Blocks    []descriptorSpec `yaml:"blocks"`
}

func (s textureSpec) resolve() [FaceCount]AtlasCoord {
	var out [FaceCount]AtlasCoord
	set := func(faces []Face, c *AtlasCoord) {
		if c == nil {
			return
		}
		for _, f := range faces {
			out[f] = *c
		}
	}
	set([]Face{FaceTop, FaceBottom, FaceFront, FaceBack, FaceLeft, FaceRight}, s.All)
	set([]Face{FaceFront, FaceBack, FaceLeft, FaceRight}, s.Side)
	set([]Face{FaceTop}, s.Top)
	set([]Face{FaceBottom}, s.Bottom)
	set([]Face{FaceFront}, s.Front)
	set([]Face{FaceBack}, s.Back)
	set([]Face{FaceLeft}, s.Left)
	set([]Face{FaceRight}, s.Right)
	return out
}

// ParseTable разбирает YAML-описание таблицы блоков
func ParseTable(data []byte) (*Table, error) {
	var spec tableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	descriptors := make([]Descriptor, 0, len(spec.Blocks))
	for _, b := range spec.Blocks {
		descriptors = append(descriptors, Descriptor{
			ID:             b.ID,
			Name:           b.Name,
			Textures:       b.Textures.resolve(),
			Solid:          b.Solid,
			Transparent:    b.Transparent,
			Absorption:     b.Absorption,
			Emission:       b.Emission,
			Liquid:         b.Liquid,
			InfiniteSource: b.InfiniteSource,
		})
	}
	return NewTable(descriptors, spec.AtlasSize)
}

// LoadTable читает таблицу блоков из YAML-файла
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таблицы блоков: %w", err)
	}
	return ParseTable(data)
}

// DefaultTable возвращает встроенную таблицу блоков
func DefaultTable() *Table {
	all := func(u, v int) [FaceCount]AtlasCoord {
		var out [FaceCount]AtlasCoord
		for i := range out {
			out[i] = AtlasCoord{u, v}
		}
		return out
	}
	grass := all(3, 0)
	grass[FaceTop] = AtlasCoord{0, 0}
	grass[FaceBottom] = AtlasCoord{2, 0}

	t, err := NewTable([]Descriptor{
		{ID: AirBlockID, Name: "air"},
		{ID: StoneBlockID, Name: "stone", Textures: all(1, 0), Solid: true, Absorption: MaxLevel},
		{ID: GrassBlockID, Name: "grass", Textures: grass, Solid: true, Absorption: MaxLevel},
		{ID: WaterBlockID, Name: "water", Textures: all(13, 12), Transparent: true, Absorption: 2, Liquid: true, InfiniteSource: true},
		{ID: SandBlockID, Name: "sand", Textures: all(2, 1), Solid: true, Absorption: MaxLevel},
		{ID: DirtBlockID, Name: "dirt", Textures: all(2, 0), Solid: true, Absorption: MaxLevel},
		{ID: GlassBlockID, Name: "glass", Textures: all(1, 3), Solid: true, Transparent: true},
		{ID: GlowstoneBlockID, Name: "glowstone", Textures: all(9, 6), Solid: true, Absorption: MaxLevel, Emission: Emission{15, 13, 9}},
		{ID: LeavesBlockID, Name: "leaves", Textures: all(4, 3), Solid: true, Transparent: true, Absorption: 1},
		{ID: TorchBlockID, Name: "torch", Textures: all(0, 5), Transparent: true, Emission: Emission{14, 12, 6}},
	}, 16)
	if err != nil {
		// встроенная таблица всегда корректна
		panic(err)
	}
	return t
}
