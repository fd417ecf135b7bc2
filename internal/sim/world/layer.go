package world

import (
	"math/rand"

	"tilefactory.io/internal/sim/world/kernel/model"
	"tilefactory.io/internal/sim/world/tile"
)

// CollisionFlags mirrors placed footprints and dock partner cells per grid cell.
type CollisionFlags uint8

const (
	CollStructure CollisionFlags = 1 << iota
	CollTube
	CollItemDock
	CollStackDock
	CollFluidDock
	CollPowerDock
)

const (
	refItem = iota
	refStack
	refFluid
	refPower
)

var refFlags = [4]CollisionFlags{CollItemDock, CollStackDock, CollFluidDock, CollPowerDock}

func dockRef(t DockType) int {
	switch {
	case t.IsItem():
		return refItem
	case t.IsStack():
		return refStack
	case t.IsFluid():
		return refFluid
	}
	return refPower
}

// Layer is one full world level. It is only touched by the world loop.
type Layer struct {
	w     *World
	Index int

	Width, Height int
	chunkSize     int
	cw, ch        int
	chunks        []*Chunk
	// How many chunks west/north a footprint can overhang from.
	reach int

	flags    []CollisionFlags
	dockRefs map[int32]*[4]uint16

	defaultTerrain tile.TerrainID
	rng            *rand.Rand

	// Power nodes by grid index, for range links.
	nodes map[int32]*Structure

	pending Bounds
	current Bounds
	last    Bounds

	lastChunks []Point
}

func newLayer(w *World, index int, defaultTerrain tile.TerrainID) *Layer {
	cfg := w.cfg
	size := cfg.ChunkSize
	l := &Layer{
		w:              w,
		Index:          index,
		Width:          cfg.Width,
		Height:         cfg.Height,
		chunkSize:      size,
		cw:             (cfg.Width + size - 1) / size,
		ch:             (cfg.Height + size - 1) / size,
		flags:          make([]CollisionFlags, cfg.Width*cfg.Height),
		dockRefs:       map[int32]*[4]uint16{},
		defaultTerrain: defaultTerrain,
		rng:            rand.New(rand.NewSource(cfg.TileSeed + int64(index)*7919)),
		nodes:          map[int32]*Structure{},
	}
	l.chunks = make([]*Chunk, l.cw*l.ch)
	maxFoot := 1
	for _, s := range w.cats.Structures.ByIndex {
		maxFoot = max(maxFoot, s.Width(), s.Height())
	}
	l.reach = (maxFoot - 1 + size - 1) / size
	return l
}

func (l *Layer) InRange(x, y int) bool { return x >= 0 && y >= 0 && x < l.Width && y < l.Height }

func (l *Layer) index(x, y int) int32 { return int32(y*l.Width + x) }

func (l *Layer) coords(idx int32) (int, int) { return int(idx) % l.Width, int(idx) / l.Width }

// chunk returns the chunk holding x,y, creating it on first access.
func (l *Layer) chunk(x, y int) *Chunk {
	cx, cy := x/l.chunkSize, y/l.chunkSize
	i := cy*l.cw + cx
	c := l.chunks[i]
	if c == nil {
		c = newChunk(cx, cy, l.chunkSize)
		l.chunks[i] = c
	}
	return c
}

func (l *Layer) chunkXY(cx, cy int) *Chunk {
	if cx < 0 || cy < 0 || cx >= l.cw || cy >= l.ch {
		return nil
	}
	return l.chunks[cy*l.cw+cx]
}

// Chunks returns the active chunks in row-major order.
func (l *Layer) Chunks() []*Chunk {
	out := make([]*Chunk, 0, len(l.chunks))
	for _, c := range l.chunks {
		if c != nil && c.active {
			out = append(out, c)
		}
	}
	return out
}

func (l *Layer) ChunkSize() int { return l.chunkSize }

func (l *Layer) DefaultTerrain() tile.TerrainID { return l.defaultTerrain }

// Cell returns the packed cell; outside the grid it is tile.Empty.
func (l *Layer) Cell(x, y int) tile.Cell {
	if !l.InRange(x, y) {
		return tile.Empty
	}
	c := l.chunk(x, y)
	if !c.active {
		return tile.Make(l.defaultTerrain, 0)
	}
	return c.cell(x, y)
}

func (l *Layer) Tile(x, y int) tile.TerrainID { return l.Cell(x, y).Terrain() }

func (l *Layer) Meta(x, y int) tile.Flags { return l.Cell(x, y).Flags() }

// SetTile writes a terrain id and rolls its alternate texture and rotation.
// The owning chunk and its four neighbours are marked dirty.
func (l *Layer) SetTile(x, y int, t tile.TerrainID) bool {
	if !l.InRange(x, y) {
		return false
	}
	def, ok := l.w.cats.Terrain.Def(t)
	if !ok {
		return false
	}
	cfg := l.w.cfg
	cell := tile.Make(t, l.Meta(x, y)&tile.FlagFog)
	if def.AltTextures && l.rng.Intn(1000) < cfg.AltTexturePermille {
		cell = cell.Set(tile.FlagAltTexture, true)
	}
	if l.rng.Intn(1000) < cfg.RotationPermille {
		cell = cell.WithRotation(l.rng.Intn(4))
	}
	cell = cell.Set(tile.FlagBlend, def.Blend)

	c := l.chunk(x, y)
	c.activate(tile.Make(l.defaultTerrain, 0))
	if !c.setCell(x, y, cell) {
		return true
	}
	l.touchChunk(c.CX, c.CY)
	for _, d := range model.Dirs {
		l.touchChunk(c.CX+d.DX(), c.CY+d.DY())
	}
	return true
}

// SetMeta toggles flags on a cell without touching its terrain.
func (l *Layer) SetMeta(x, y int, f tile.Flags, on bool) bool {
	if !l.InRange(x, y) {
		return false
	}
	c := l.chunk(x, y)
	c.activate(tile.Make(l.defaultTerrain, 0))
	if c.setCell(x, y, c.cell(x, y).Set(f, on)) {
		l.touchChunk(c.CX, c.CY)
	}
	return true
}

func (l *Layer) touchChunk(cx, cy int) {
	if cx < 0 || cy < 0 || cx >= l.cw || cy >= l.ch {
		return
	}
	c := l.chunkXY(cx, cy)
	if c == nil {
		c = l.chunk(cx*l.chunkSize, cy*l.chunkSize)
	}
	c.dirty = true
	l.markDirty(model.RectBounds(c.x0, c.y0, l.chunkSize, l.chunkSize, model.DirtyTerrain))
}

func (l *Layer) markDirty(b Bounds) { l.pending = l.pending.Union(b) }

// DirtySinceLastFrame is the region reconciled by the last finished tick.
func (l *Layer) DirtySinceLastFrame() Bounds { return l.last }

// DirtyChunks lists the chunks whose tiles changed during the last finished tick.
func (l *Layer) DirtyChunks() []Point { return l.lastChunks }

// touched reports whether x,y or a neighbour changed this tick.
func (l *Layer) touched(x, y int) bool { return l.current.Grow(1).Contains(x, y) }

func (l *Layer) beginTick() {
	l.current = l.pending
	l.pending = Bounds{}
}

func (l *Layer) postUpdate() {
	l.last = l.current
	l.current = Bounds{}
	l.lastChunks = l.lastChunks[:0]
	for _, c := range l.chunks {
		if c != nil && c.dirty {
			l.lastChunks = append(l.lastChunks, Point{X: c.CX, Y: c.CY})
			c.dirty = false
		}
	}
}

// Flags returns the collision flags of a cell; zero outside the grid.
func (l *Layer) Flags(x, y int) CollisionFlags {
	if !l.InRange(x, y) {
		return 0
	}
	return l.flags[l.index(x, y)]
}

// CanPlace reports whether schema fits at x,y rotated to up. With strictDocks
// the footprint must also stay clear of other structures' item and fluid docks.
func (l *Layer) CanPlace(schema *Schema, x, y int, up Dir, strictDocks bool) bool {
	turns := 0
	if schema.Def.Rotatable && up.Valid() {
		turns = int(up)
	}
	w, h := model.RotatedSize(schema.Width(), schema.Height(), turns)
	if !l.InRange(x, y) || !l.InRange(x+w-1, y+h-1) {
		return false
	}
	block := CollStructure | CollTube
	if strictDocks {
		block |= CollItemDock | CollFluidDock
	}
	for cy := y; cy < y+h; cy++ {
		for cx := x; cx < x+w; cx++ {
			if l.flags[l.index(cx, cy)]&block != 0 {
				return false
			}
		}
	}
	return true
}

// StructureAt returns the non-cable structure covering x,y.
func (l *Layer) StructureAt(x, y int) *Structure {
	if !l.InRange(x, y) {
		return nil
	}
	idx := l.index(x, y)
	if l.flags[idx]&CollStructure == 0 {
		return nil
	}
	return l.lookup(x, y, idx, false)
}

// CableAt returns the cable, big cable or shaft at x,y.
func (l *Layer) CableAt(x, y int) *Structure {
	if !l.InRange(x, y) {
		return nil
	}
	idx := l.index(x, y)
	if l.flags[idx]&CollTube == 0 {
		return nil
	}
	return l.lookup(x, y, idx, true)
}

func (l *Layer) lookup(x, y int, idx int32, cable bool) *Structure {
	cx, cy := x/l.chunkSize, y/l.chunkSize
	for dy := 0; dy <= l.reach; dy++ {
		for dx := 0; dx <= l.reach; dx++ {
			c := l.chunkXY(cx-dx, cy-dy)
			if c == nil || !c.active || !c.box.Contains(x, y) {
				continue
			}
			m := c.structures
			if cable {
				m = c.cables
			}
			if s := m[idx]; s != nil {
				return s
			}
		}
	}
	return nil
}

// structureByIndex resolves a stored back-reference: the structure or cable
// whose origin is idx, or nil when it no longer exists.
func (l *Layer) structureByIndex(idx int32) *Structure {
	if idx < 0 || int(idx) >= len(l.flags) {
		return nil
	}
	x, y := l.coords(idx)
	if s := l.StructureAt(x, y); s != nil && s.Index(l.Width) == idx {
		return s
	}
	if s := l.CableAt(x, y); s != nil && s.Index(l.Width) == idx {
		return s
	}
	return nil
}

// Structures returns every placed structure and cable in chunk order.
func (l *Layer) Structures() []*Structure {
	var out []*Structure
	for _, c := range l.Chunks() {
		out = append(out, c.list...)
	}
	return out
}
