package model

// DirtyKind tags what changed inside a dirty region.
type DirtyKind uint8

const (
	DirtyTerrain DirtyKind = 1 << iota
	DirtyConstruction
	DirtyDestruction
	DirtyCable
	DirtyPowerNode
	DirtyConveyor
)

func (k DirtyKind) Has(o DirtyKind) bool { return k&o != 0 }

// Bounds is an inclusive cell rectangle plus the kinds of change it covers.
// The zero value is empty.
type Bounds struct {
	MinX, MinY int
	MaxX, MaxY int
	Kinds      DirtyKind
	Valid      bool
}

func RectBounds(x, y, w, h int, kind DirtyKind) Bounds {
	return Bounds{MinX: x, MinY: y, MaxX: x + w - 1, MaxY: y + h - 1, Kinds: kind, Valid: w > 0 && h > 0}
}

func (b Bounds) Empty() bool { return !b.Valid }

func (b Bounds) Union(o Bounds) Bounds {
	if !o.Valid {
		return b
	}
	if !b.Valid {
		return o
	}
	return Bounds{
		MinX:  min(b.MinX, o.MinX),
		MinY:  min(b.MinY, o.MinY),
		MaxX:  max(b.MaxX, o.MaxX),
		MaxY:  max(b.MaxY, o.MaxY),
		Kinds: b.Kinds | o.Kinds,
		Valid: true,
	}
}

func (b Bounds) Contains(x, y int) bool {
	return b.Valid && x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Intersects reports whether the rectangle x,y,w,h overlaps b.
func (b Bounds) Intersects(x, y, w, h int) bool {
	if !b.Valid || w <= 0 || h <= 0 {
		return false
	}
	return x <= b.MaxX && x+w-1 >= b.MinX && y <= b.MaxY && y+h-1 >= b.MinY
}

// Grow expands the rectangle by n cells on every side.
func (b Bounds) Grow(n int) Bounds {
	if !b.Valid {
		return b
	}
	b.MinX -= n
	b.MinY -= n
	b.MaxX += n
	b.MaxY += n
	return b
}
