package observerproto

// Version is the observer protocol version.
const Version = "1.0"

// CellEncoding names the chunk tile encoding: base64 of uvarint (cell, run) pairs.
const CellEncoding = "RLE_UVARINT_B64"

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion  string      `json:"protocol_version"`
	WorldID          string      `json:"world_id"`
	Tick             uint64      `json:"tick"`
	WorldParams      WorldParams `json:"world_params"`
	TerrainPalette   []string    `json:"terrain_palette"`
	ItemPalette      []string    `json:"item_palette"`
	StructurePalette []string    `json:"structure_palette"`
}

type WorldParams struct {
	TickRateHz   int `json:"tick_rate_hz"`
	Layers       int `json:"layers"`
	Width        int `json:"width"`
	Height       int `json:"height"`
	ChunkSize    int `json:"chunk_size"`
	BeltArmSlots int `json:"belt_arm_slots"`
}

// Client -> Server. First message on the observer WS connection; may be
// re-sent to change the layer filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Layers to stream; empty means all.
	Layers []int `json:"layers,omitempty"`
}

// Server -> Client. Full frames carry every active chunk and structure of
// the subscribed layers; clients replace their state and drop any later
// frame with a smaller tick. Delta frames carry only chunks touched by the
// last tick's dirty region.
type FrameMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Full            bool       `json:"full,omitempty"`
	Stats           StatsMsg   `json:"stats"`
	Layers          []LayerMsg `json:"layers"`
}

type StatsMsg struct {
	Structures     int     `json:"structures"`
	ItemsInTransit int     `json:"items_in_transit"`
	Networks       int     `json:"networks"`
	PowerOffered   float64 `json:"power_offered"`
	PowerDelivered float64 `json:"power_delivered"`
}

type LayerMsg struct {
	Index      int            `json:"index"`
	Dirty      *DirtyRect     `json:"dirty,omitempty"`
	Chunks     []ChunkMsg     `json:"chunks,omitempty"`
	Structures []StructureMsg `json:"structures,omitempty"`
}

// DirtyRect is inclusive; Kinds is the bit set of change kinds.
type DirtyRect struct {
	MinX  int   `json:"min_x"`
	MinY  int   `json:"min_y"`
	MaxX  int   `json:"max_x"`
	MaxY  int   `json:"max_y"`
	Kinds uint8 `json:"kinds"`
}

type ChunkMsg struct {
	CX       int    `json:"cx"`
	CY       int    `json:"cy"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

type StructureMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Up   int    `json:"up"`
}
