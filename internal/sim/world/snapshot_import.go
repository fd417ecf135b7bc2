package world

import (
	"fmt"

	"go.uber.org/zap"

	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/world/feature/conveyor/runtime"
	"tilefactory.io/internal/sim/world/logic/powergrid"
	"tilefactory.io/internal/sim/world/tile"
)

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// Entries that are malformed, unknown or newer than this build are skipped
// and logged; the rest of the world still loads. Back-references that no
// longer resolve after loading are dropped.
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version <= 0 || s.Header.Version > snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if len(s.Layers) == 0 {
		return fmt.Errorf("snapshot has no layers")
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("snapshot chunk size %d", s.ChunkSize)
	}
	w.applySnapshotConfig(s)

	def, ok := w.cats.Terrain.Index[w.cfg.DefaultTerrain]
	if !ok {
		return fmt.Errorf("missing terrain id in palette: %s", w.cfg.DefaultTerrain)
	}
	w.layout = runtime.NewLayout(w.cfg.BeltArmSlots)
	w.grid = powergrid.New(w.cfg.Strengths)
	w.layers = w.layers[:0]
	for i := 0; i < w.cfg.Layers; i++ {
		w.layers = append(w.layers, newLayer(w, i, def))
	}

	remap := w.terrainRemap(s.TerrainPalette)
	for _, lv := range s.Layers {
		l := w.Layer(lv.Index)
		if l == nil {
			w.log.Warn("snapshot layer out of range, skipped", zap.Int("layer", lv.Index))
			continue
		}
		if id, ok := w.cats.Terrain.Index[lv.DefaultTerrain]; ok {
			l.defaultTerrain = id
		}
		for _, cv := range lv.Chunks {
			l.importChunkTiles(cv, remap)
		}
	}
	for _, lv := range s.Layers {
		l := w.Layer(lv.Index)
		if l == nil {
			continue
		}
		for _, cv := range lv.Chunks {
			for _, sv := range cv.Structures {
				l.importStructure(sv)
			}
			for _, sv := range cv.Cables {
				l.importStructure(sv)
			}
		}
	}
	w.grid.Commit()
	for _, l := range w.layers {
		l.resolveReferences()
		// Loading is not an edit: belts keep their saved caches and flags.
		l.pending = Bounds{}
	}
	w.tick.Store(s.Header.Tick)
	w.history.reset(s.Header.Tick)
	w.frame.Store(&Frame{Tick: s.Header.Tick})
	return nil
}

// applySnapshotConfig takes the world geometry from the snapshot; operational
// settings stay as configured.
func (w *World) applySnapshotConfig(s snapshot.SnapshotV1) {
	if s.Header.WorldID != "" {
		w.cfg.ID = s.Header.WorldID
	}
	maxIndex := 0
	for _, l := range s.Layers {
		maxIndex = max(maxIndex, l.Index)
	}
	w.cfg.Layers = maxIndex + 1
	w.cfg.Width = s.Layers[0].Width
	w.cfg.Height = s.Layers[0].Height
	w.cfg.ChunkSize = s.ChunkSize
	if s.Layers[0].DefaultTerrain != "" {
		w.cfg.DefaultTerrain = s.Layers[0].DefaultTerrain
	}
	w.cfg.TileSeed = s.TileSeed
	if s.TickRate > 0 {
		w.cfg.TickRateHz = s.TickRate
	}
	if s.BeltArmSlots > 0 {
		w.cfg.BeltArmSlots = s.BeltArmSlots
	}
}

// terrainRemap maps the snapshot's terrain ids onto the loaded catalog by name.
// Names the catalog no longer knows fall back to the default terrain.
func (w *World) terrainRemap(palette []string) []tile.TerrainID {
	out := make([]tile.TerrainID, 256)
	fallback := w.cats.Terrain.Index[w.cfg.DefaultTerrain]
	for i := range out {
		out[i] = fallback
	}
	for i, name := range palette {
		if i >= len(out) {
			break
		}
		id, ok := w.cats.Terrain.Index[name]
		if !ok {
			w.log.Warn("unknown terrain in snapshot, using default", zap.String("terrain", name))
			continue
		}
		out[i] = id
	}
	return out
}

func (l *Layer) importChunkTiles(cv snapshot.ChunkV1, remap []tile.TerrainID) {
	if cv.CX < 0 || cv.CY < 0 || cv.CX >= l.cw || cv.CY >= l.ch {
		l.w.log.Warn("snapshot chunk out of range, skipped",
			zap.Int("layer", l.Index), zap.Int("cx", cv.CX), zap.Int("cy", cv.CY))
		return
	}
	if len(cv.Tiles) != l.chunkSize*l.chunkSize {
		l.w.log.Warn("snapshot chunk has wrong tile count, skipped",
			zap.Int("layer", l.Index), zap.Int("cx", cv.CX), zap.Int("cy", cv.CY), zap.Int("tiles", len(cv.Tiles)))
		return
	}
	c := l.chunk(cv.CX*l.chunkSize, cv.CY*l.chunkSize)
	c.activate(tile.Make(l.defaultTerrain, 0))
	for i, raw := range cv.Tiles {
		cell := tile.Cell(raw)
		c.tiles[i] = cell.WithTerrain(remap[cell.Terrain()])
	}
	c.hashd = false
	c.dirty = true
}

func (l *Layer) importStructure(sv snapshot.StructureV1) {
	warn := func(msg string, extra ...zap.Field) {
		fields := append([]zap.Field{
			zap.Int("layer", l.Index), zap.Int("x", sv.X), zap.Int("y", sv.Y),
			zap.String("type", sv.Type), zap.Int("version", sv.Version),
		}, extra...)
		l.w.log.Warn(msg, fields...)
	}
	schema, ok := l.w.cats.Schema(sv.Type)
	if !ok {
		warn("unknown structure type in snapshot, skipped")
		return
	}
	if sv.Version <= 0 || sv.Version > StructureVersion {
		warn("unsupported structure version in snapshot, skipped")
		return
	}
	up := Dir(sv.Rotation)
	if sv.Rotation < 0 || !up.Valid() {
		warn("bad rotation in snapshot, skipped", zap.Int("rotation", sv.Rotation))
		return
	}
	s := NewStructure(schema, sv.X, sv.Y, up)
	if !l.AddStructure(s, true) {
		warn("structure does not fit, skipped")
		return
	}
	items := &l.w.cats.Items
	if s.Inv != nil {
		l.importStacks(s.Inv, sv.Inventory, warn)
	}
	if s.Out != nil {
		l.importStacks(s.Out, sv.Output, warn)
	}
	if t := s.Tank; t != nil && sv.Tank != nil {
		if id, ok := items.Index[sv.Tank.Fluid]; ok && sv.Tank.Amount > 0 {
			t.Fill(id, sv.Tank.Amount)
		}
		t.carry = sv.Tank.Carry
	}
	if p := s.Power; p != nil && sv.Power != nil {
		p.Stored = max(0, sv.Power.Stored)
		if schema.Def.Capacity > 0 {
			p.Stored = min(p.Stored, schema.Def.Capacity)
		}
		p.Burn = max(0, sv.Power.Burn)
		if st := PowerStatus(sv.Power.Status); st <= Powered {
			p.Status = st
		}
	}

	switch b := s.b.(type) {
	case *conveyor:
		if sv.Conveyor != nil {
			b.load(sv.Conveyor, warn)
		}
	case *router:
		if rv := sv.Router; rv != nil {
			b.next = rv.Next
			b.progress = rv.Progress
			if id, ok := items.Index[rv.Item]; ok && rv.Item != "" {
				heading, _ := snapshotDir(rv.Heading)
				b.cur = &Item{Item: id, Dir: heading, Heading: heading, Source: rv.Source}
				if !b.cur.Heading.Valid() {
					warn("router item without heading dropped")
					b.cur = nil
				}
			}
		}
	case *producer:
		if pv := sv.Producer; pv != nil && pv.Recipe != "" {
			for _, r := range schema.Recipes {
				if r.ID == pv.Recipe {
					b.active = r
					b.progress = max(0, pv.Progress)
					break
				}
			}
			if b.active == nil {
				warn("unknown recipe in snapshot, dropped", zap.String("recipe", pv.Recipe))
			}
		}
	}
}

func (l *Layer) importStacks(inv *Inventory, st []snapshot.StackV1, warn func(string, ...zap.Field)) {
	for _, s := range st {
		id, ok := l.w.cats.Items.Index[s.Item]
		if !ok || s.Count <= 0 {
			warn("bad inventory stack in snapshot, skipped", zap.String("item", s.Item))
			continue
		}
		if left := inv.Add(id, s.Count); left > 0 {
			warn("inventory overflow in snapshot", zap.String("item", s.Item), zap.Int("lost", left))
		}
	}
}

func (c *conveyor) load(cv *snapshot.ConveyorV1, warn func(string, ...zap.Field)) {
	for i := 0; i < len(c.neighbors) && i < len(cv.Neighbors); i++ {
		c.neighbors[i] = cv.Neighbors[i]
	}
	c.notify = cv.Notify
	for _, iv := range cv.Items {
		id, ok := c.l.w.cats.Items.Index[iv.Item]
		if !ok || iv.Slot < 0 || iv.Slot >= len(c.slots) || c.slots[iv.Slot] != nil {
			warn("bad belt item in snapshot, skipped", zap.String("item", iv.Item), zap.Int("slot", iv.Slot))
			continue
		}
		dir, okDir := snapshotDir(iv.Dir)
		heading, okHeading := snapshotDir(iv.Heading)
		if !okDir || !okHeading {
			warn("bad belt item direction in snapshot, skipped", zap.String("item", iv.Item), zap.Int("dir", iv.Dir), zap.Int("heading", iv.Heading))
			continue
		}
		c.slots[iv.Slot] = &Item{
			Item:    id,
			Slot:    iv.Slot,
			Interp:  min(1, max(0, iv.Interp)),
			Dir:     dir,
			Heading: heading,
			Source:  iv.Source,
		}
	}
}

// snapshotDir accepts the four directions and DirNone.
func snapshotDir(v int) (Dir, bool) {
	if v >= int(North) && v <= int(West) || v == int(DirNone) {
		return Dir(v), true
	}
	return DirNone, false
}

// resolveReferences drops grid-index references that do not point at a
// structure any more.
func (l *Layer) resolveReferences() {
	stale := 0
	for _, c := range l.Chunks() {
		for _, s := range c.conveyors {
			h, ok := s.b.(itemHolder)
			if !ok {
				continue
			}
			if b, ok := s.b.(*conveyor); ok {
				for d, idx := range b.neighbors {
					if idx != NoSource && l.structureByIndex(idx) == nil {
						b.neighbors[d] = NoSource
						stale++
					}
				}
			}
			for _, it := range h.items() {
				if it.Source != NoSource && l.structureByIndex(it.Source) == nil {
					it.Source = NoSource
					stale++
				}
			}
		}
	}
	if stale > 0 {
		l.w.log.Debug("dropped stale references after load", zap.Int("layer", l.Index), zap.Int("count", stale))
	}
}
