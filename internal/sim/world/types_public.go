package world

import (
	"tilefactory.io/internal/sim/catalogs"
	modelpkg "tilefactory.io/internal/sim/world/kernel/model"
)

type Dir = modelpkg.Dir
type Point = modelpkg.Point
type Bounds = modelpkg.Bounds
type DirtyKind = modelpkg.DirtyKind
type Kind = modelpkg.Kind
type DockType = modelpkg.DockType
type PowerStatus = modelpkg.PowerStatus
type ItemID = catalogs.ItemID
type Schema = catalogs.Schema

const (
	North   = modelpkg.North
	East    = modelpkg.East
	South   = modelpkg.South
	West    = modelpkg.West
	DirNone = modelpkg.DirNone
)

const (
	Unpowered = modelpkg.Unpowered
	Starved   = modelpkg.Starved
	Powered   = modelpkg.Powered
)

const NoItem = catalogs.NoItem

// NoSource marks an item with no originating structure.
const NoSource int32 = -1
