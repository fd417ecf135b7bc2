// Package tile packs one grid cell into two bytes: the low byte is the terrain
// id, the high byte carries presentation and bookkeeping flags.
package tile

// TerrainID indexes the terrain catalog. Zero is the empty terrain.
type TerrainID uint8

// Flags is the mutable high byte of a cell.
type Flags uint8

const (
	FlagFog Flags = 1 << iota
	FlagAltTexture
	FlagRot0
	FlagRot1
	FlagBlend
	FlagBaseBlend
)

const rotMask = FlagRot0 | FlagRot1

type Cell uint16

// Empty is returned for reads outside the grid.
const Empty Cell = 0

func Make(t TerrainID, f Flags) Cell { return Cell(uint16(f)<<8 | uint16(t)) }

func (c Cell) Terrain() TerrainID { return TerrainID(c & 0xFF) }

func (c Cell) Flags() Flags { return Flags(c >> 8) }

func (c Cell) Has(f Flags) bool { return c.Flags()&f == f }

func (c Cell) WithTerrain(t TerrainID) Cell { return Make(t, c.Flags()) }

func (c Cell) WithFlags(f Flags) Cell { return Make(c.Terrain(), f) }

func (c Cell) Set(f Flags, on bool) Cell {
	if on {
		return c.WithFlags(c.Flags() | f)
	}
	return c.WithFlags(c.Flags() &^ f)
}

// Rotation returns the 0..3 texture rotation selector.
func (c Cell) Rotation() int { return int(c.Flags()&rotMask) >> 2 }

func (c Cell) WithRotation(r int) Cell {
	f := c.Flags()&^rotMask | Flags((r&3)<<2)
	return c.WithFlags(f)
}
