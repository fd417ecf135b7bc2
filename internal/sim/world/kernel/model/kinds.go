package model

import "fmt"

// Kind is the closed set of structure variants the simulation knows how to run.
type Kind uint8

const (
	KindNone Kind = iota
	KindConveyor
	KindPoweredConveyor
	KindBridge
	KindRouter
	KindSorter
	KindBeltCore
	KindProducer
	KindContainer
	KindGenerator
	KindBattery
	KindPowerNode
	KindCable
	KindBigCable
	KindCableShaft
	KindPump
	KindTank
	KindConsumer
)

var kindNames = map[Kind]string{
	KindConveyor:        "conveyor",
	KindPoweredConveyor: "powered_conveyor",
	KindBridge:          "bridge",
	KindRouter:          "router",
	KindSorter:          "sorter",
	KindBeltCore:        "belt_core",
	KindProducer:        "producer",
	KindContainer:       "container",
	KindGenerator:       "generator",
	KindBattery:         "battery",
	KindPowerNode:       "power_node",
	KindCable:           "cable",
	KindBigCable:        "big_cable",
	KindCableShaft:      "cable_shaft",
	KindPump:            "pump",
	KindTank:            "tank",
	KindConsumer:        "consumer",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "none"
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown structure kind %q", s)
}

// IsBelt reports whether items travel through the kind's slots.
func (k Kind) IsBelt() bool {
	return k == KindConveyor || k == KindPoweredConveyor || k == KindBridge
}

// IsCable reports whether the kind lives on the tube layer instead of the structure layer.
func (k Kind) IsCable() bool {
	return k == KindCable || k == KindBigCable || k == KindCableShaft
}

// DockType classifies a dock.
type DockType uint8

const (
	DockItemIn DockType = iota + 1
	DockItemOut
	DockFluidIn
	DockFluidOut
	DockPower
	DockBigPower
	DockStackIn
	DockStackOut
)

var dockNames = map[DockType]string{
	DockItemIn:   "item_in",
	DockItemOut:  "item_out",
	DockFluidIn:  "fluid_in",
	DockFluidOut: "fluid_out",
	DockPower:    "power",
	DockBigPower: "big_power",
	DockStackIn:  "stack_in",
	DockStackOut: "stack_out",
}

func (t DockType) String() string {
	if s, ok := dockNames[t]; ok {
		return s
	}
	return "unknown"
}

func ParseDockType(s string) (DockType, error) {
	for t, name := range dockNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown dock type %q", s)
}

func (t DockType) IsItem() bool  { return t == DockItemIn || t == DockItemOut }
func (t DockType) IsStack() bool { return t == DockStackIn || t == DockStackOut }
func (t DockType) IsFluid() bool { return t == DockFluidIn || t == DockFluidOut }
func (t DockType) IsPower() bool { return t == DockPower || t == DockBigPower }

// Input reports whether the dock receives things.
func (t DockType) Input() bool {
	return t == DockItemIn || t == DockFluidIn || t == DockStackIn
}

// PowerClass is the strength class of a power-graph edge.
type PowerClass uint8

const (
	ClassDock PowerClass = iota
	ClassCable
	ClassBigPower
	ClassShaft
)

func (c PowerClass) String() string {
	switch c {
	case ClassCable:
		return "cable"
	case ClassBigPower:
		return "big_power"
	case ClassShaft:
		return "shaft"
	}
	return "dock"
}

// PowerStatus is the per-structure outcome of the last distribution pass.
type PowerStatus uint8

const (
	Unpowered PowerStatus = iota
	Starved
	Powered
)

func (s PowerStatus) String() string {
	switch s {
	case Starved:
		return "starved"
	case Powered:
		return "powered"
	}
	return "unpowered"
}
