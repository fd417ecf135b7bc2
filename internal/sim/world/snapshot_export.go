package world

import (
	"github.com/google/uuid"

	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/catalogs"
)

// ExportSnapshot captures the whole world. It must run on the world goroutine.
// A world without an id is given a fresh one so snapshots can be told apart.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	if w.cfg.ID == "" {
		w.cfg.ID = uuid.NewString()
	}
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		TileSeed:       w.cfg.TileSeed,
		TickRate:       w.cfg.TickRateHz,
		ChunkSize:      w.cfg.ChunkSize,
		BeltArmSlots:   w.cfg.BeltArmSlots,
		TerrainPalette: append([]string(nil), w.cats.Terrain.Palette...),
		Digests: snapshot.DigestsV1{
			Terrain:    w.cats.Terrain.Digest,
			Items:      w.cats.Items.Digest,
			Recipes:    w.cats.Recipes.Digest,
			Structures: w.cats.Structures.Digest,
		},
	}
	for _, l := range w.layers {
		snap.Layers = append(snap.Layers, l.export())
	}
	for _, n := range w.grid.Networks() {
		snap.Networks = append(snap.Networks, snapshot.NetworkV1{
			ID:        n.ID,
			Members:   n.Members.Size(),
			Offered:   n.Offered,
			Delivered: n.Delivered,
		})
	}
	return snap
}

func (l *Layer) export() snapshot.LayerV1 {
	out := snapshot.LayerV1{
		Index:          l.Index,
		Width:          l.Width,
		Height:         l.Height,
		DefaultTerrain: l.w.cats.Terrain.Palette[l.defaultTerrain],
	}
	for _, c := range l.Chunks() {
		cv := snapshot.ChunkV1{CX: c.CX, CY: c.CY, Tiles: make([]uint16, len(c.tiles))}
		for i, v := range c.tiles {
			cv.Tiles[i] = uint16(v)
		}
		for _, s := range c.list {
			sv := l.exportStructure(s)
			if s.Kind().IsCable() {
				cv.Cables = append(cv.Cables, sv)
			} else {
				cv.Structures = append(cv.Structures, sv)
			}
		}
		out.Chunks = append(out.Chunks, cv)
	}
	return out
}

func (l *Layer) exportStructure(s *Structure) snapshot.StructureV1 {
	items := &l.w.cats.Items
	sv := snapshot.StructureV1{
		Type:     s.ID(),
		X:        s.X,
		Y:        s.Y,
		Rotation: int(s.Up),
		Version:  StructureVersion,
	}
	if s.Inv != nil {
		sv.Inventory = exportStacks(items, s.Inv.Stacks())
	}
	if s.Out != nil {
		sv.Output = exportStacks(items, s.Out.Stacks())
	}
	if t := s.Tank; t != nil {
		sv.Tank = &snapshot.TankV1{Amount: t.Amount, Carry: t.carry}
		if t.Amount > 0 {
			sv.Tank.Fluid = items.Name(t.Fluid)
		}
	}
	if p := s.Power; p != nil {
		sv.Power = &snapshot.PowerV1{Stored: p.Stored, Burn: p.Burn, Status: int(p.Status)}
	}

	switch b := s.b.(type) {
	case *conveyor:
		cv := &snapshot.ConveyorV1{Dir: int(s.Up), Neighbors: append([]int32(nil), b.neighbors[:]...), Notify: b.notify}
		for _, it := range b.items() {
			cv.Items = append(cv.Items, snapshot.ItemV1{
				Item:    items.Name(it.Item),
				Slot:    it.Slot,
				Interp:  it.Interp,
				Dir:     int(it.Dir),
				Heading: int(it.Heading),
				Source:  it.Source,
			})
		}
		sv.Conveyor = cv
	case *router:
		rv := &snapshot.RouterV1{Source: NoSource, Next: b.next, Progress: b.progress}
		if b.cur != nil {
			rv.Item = items.Name(b.cur.Item)
			rv.Heading = int(b.cur.Heading)
			rv.Source = b.cur.Source
		}
		sv.Router = rv
	case *producer:
		pv := &snapshot.ProducerV1{Progress: b.progress}
		if b.active != nil {
			pv.Recipe = b.active.ID
		}
		sv.Producer = pv
	}
	if s.Kind().IsCable() {
		sv.Cable = &snapshot.CableV1{Connections: l.CableConnections(s.X, s.Y)}
	}
	return sv
}

func exportStacks(items *catalogs.ItemCatalog, st []catalogs.Stack) []snapshot.StackV1 {
	out := make([]snapshot.StackV1, 0, len(st))
	for _, s := range st {
		out = append(out, snapshot.StackV1{Item: items.Name(s.Item), Count: s.Count})
	}
	return out
}
