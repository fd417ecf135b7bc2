package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"tilefactory.io/internal/sim/world/kernel/model"
	"tilefactory.io/internal/sim/world/tile"
)

// Chunk is a square block of the tile grid plus the structures whose origin
// lies inside it. Tiles and indexes are allocated on activation, so chunks
// nobody touched cost a pointer.
type Chunk struct {
	CX, CY int
	size   int
	x0, y0 int

	active bool
	tiles  []tile.Cell

	// Every covered cell, keyed by layer grid index. Cells of a structure
	// overhanging the chunk edge are indexed here too.
	structures map[int32]*Structure
	cables     map[int32]*Structure

	// Structures anchored here, ordered by grid index.
	list []*Structure
	// Belts and routers, run in the item pass.
	conveyors []*Structure

	box Bounds

	dirty bool
	hash  [32]byte
	hashd bool
}

func newChunk(cx, cy, size int) *Chunk {
	return &Chunk{CX: cx, CY: cy, size: size, x0: cx * size, y0: cy * size}
}

func (c *Chunk) activate(fill tile.Cell) {
	if c.active {
		return
	}
	c.active = true
	c.tiles = make([]tile.Cell, c.size*c.size)
	for i := range c.tiles {
		c.tiles[i] = fill
	}
	c.structures = map[int32]*Structure{}
	c.cables = map[int32]*Structure{}
	c.box = model.RectBounds(c.x0, c.y0, c.size, c.size, 0)
}

func (c *Chunk) Active() bool { return c.active }

func (c *Chunk) local(x, y int) int { return (x - c.x0) + (y-c.y0)*c.size }

func (c *Chunk) cell(x, y int) tile.Cell { return c.tiles[c.local(x, y)] }

func (c *Chunk) setCell(x, y int, v tile.Cell) bool {
	i := c.local(x, y)
	if c.tiles[i] == v {
		return false
	}
	c.tiles[i] = v
	c.hashd = false
	return true
}

// Tiles returns a copy of the tile array, or nil for an inactive chunk.
func (c *Chunk) Tiles() []tile.Cell {
	if !c.active {
		return nil
	}
	return append([]tile.Cell(nil), c.tiles...)
}

// Structures returns the anchored structures in grid index order.
func (c *Chunk) Structures() []*Structure { return c.list }

func (c *Chunk) insert(s *Structure, width int) {
	idx := s.Index(width)
	pos := sort.Search(len(c.list), func(i int) bool { return c.list[i].Index(width) >= idx })
	c.list = append(c.list, nil)
	copy(c.list[pos+1:], c.list[pos:])
	c.list[pos] = s

	m := c.structures
	if s.Kind().IsCable() {
		m = c.cables
	}
	s.eachCell(func(x, y int) { m[int32(y*width+x)] = s })
	if s.isConveyorLike() {
		c.conveyors = append(c.conveyors, s)
		sort.Slice(c.conveyors, func(i, j int) bool { return c.conveyors[i].Index(width) < c.conveyors[j].Index(width) })
	}
	c.box = c.box.Union(model.RectBounds(s.X, s.Y, s.W, s.H, 0))
}

func (c *Chunk) remove(s *Structure, width int) {
	for i, o := range c.list {
		if o == s {
			c.list = append(c.list[:i], c.list[i+1:]...)
			break
		}
	}
	for i, o := range c.conveyors {
		if o == s {
			c.conveyors = append(c.conveyors[:i], c.conveyors[i+1:]...)
			break
		}
	}
	m := c.structures
	if s.Kind().IsCable() {
		m = c.cables
	}
	s.eachCell(func(x, y int) { delete(m, int32(y*width+x)) })

	c.box = model.RectBounds(c.x0, c.y0, c.size, c.size, 0)
	for _, o := range c.list {
		c.box = c.box.Union(model.RectBounds(o.X, o.Y, o.W, o.H, 0))
	}
}

// Digest hashes the tile cells.
func (c *Chunk) Digest() [32]byte {
	if !c.hashd {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.tiles {
			binary.LittleEndian.PutUint16(tmp[:], uint16(v))
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.hashd = true
	}
	return c.hash
}
