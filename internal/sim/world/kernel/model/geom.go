package model

// Dir is one of the four grid directions. North is -Y.
type Dir uint8

const (
	North Dir = iota
	East
	South
	West

	DirNone Dir = 0xFF
)

var dirDX = [4]int{0, 1, 0, -1}
var dirDY = [4]int{-1, 0, 1, 0}

func (d Dir) Valid() bool { return d <= West }

func (d Dir) DX() int {
	if !d.Valid() {
		return 0
	}
	return dirDX[d]
}

func (d Dir) DY() int {
	if !d.Valid() {
		return 0
	}
	return dirDY[d]
}

func (d Dir) Opposite() Dir {
	if !d.Valid() {
		return DirNone
	}
	return (d + 2) & 3
}

// Rotate turns d clockwise by quarter turns (negative turns go counter-clockwise).
func (d Dir) Rotate(turns int) Dir {
	if !d.Valid() {
		return DirNone
	}
	return Dir((int(d) + turns%4 + 4) & 3)
}

// Horizontal reports whether d lies on the east-west axis.
func (d Dir) Horizontal() bool { return d == East || d == West }

func (d Dir) String() string {
	switch d {
	case North:
		return "N"
	case East:
		return "E"
	case South:
		return "S"
	case West:
		return "W"
	}
	return "-"
}

// Dirs lists the four directions in clockwise order starting at North.
var Dirs = [4]Dir{North, East, South, West}

// DirTo returns the direction from a to the orthogonally adjacent b, or DirNone.
func DirTo(ax, ay, bx, by int) Dir {
	for _, d := range Dirs {
		if ax+d.DX() == bx && ay+d.DY() == by {
			return d
		}
	}
	return DirNone
}

type Point struct {
	X int
	Y int
}

func (p Point) Step(d Dir) Point { return Point{X: p.X + d.DX(), Y: p.Y + d.DY()} }

func (p Point) ToArray() [2]int { return [2]int{p.X, p.Y} }

// RotateOffset maps a local offset inside a w x h footprint to the footprint
// rotated clockwise by turns quarter turns.
func RotateOffset(lx, ly, w, h, turns int) (int, int) {
	switch ((turns % 4) + 4) % 4 {
	case 1:
		return h - 1 - ly, lx
	case 2:
		return w - 1 - lx, h - 1 - ly
	case 3:
		return ly, w - 1 - lx
	}
	return lx, ly
}

// RotatedSize returns the footprint dimensions after rotation.
func RotatedSize(w, h, turns int) (int, int) {
	if turns%2 != 0 {
		return h, w
	}
	return w, h
}
