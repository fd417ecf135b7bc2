package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TileSeed     int64 `json:"tile_seed"`
	TickRate     int   `json:"tick_rate_hz"`
	ChunkSize    int   `json:"chunk_size"`
	BeltArmSlots int   `json:"belt_arm_slots"`

	// Terrain ids in tile cells index this palette; import remaps them by name.
	TerrainPalette []string    `json:"terrain_palette"`
	Digests        DigestsV1   `json:"digests"`
	Layers         []LayerV1   `json:"layers"`
	Networks       []NetworkV1 `json:"networks,omitempty"`
}

type DigestsV1 struct {
	Terrain    string `json:"terrain"`
	Items      string `json:"items"`
	Recipes    string `json:"recipes"`
	Structures string `json:"structures"`
}

type LayerV1 struct {
	Index          int       `json:"index"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	DefaultTerrain string    `json:"default_terrain"`
	Chunks         []ChunkV1 `json:"chunks"`
}

type ChunkV1 struct {
	CX         int           `json:"cx"`
	CY         int           `json:"cy"`
	Tiles      []uint16      `json:"tiles"`
	Structures []StructureV1 `json:"structures,omitempty"`
	Cables     []StructureV1 `json:"cables,omitempty"`
}

type StructureV1 struct {
	Type     string `json:"type"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Rotation int    `json:"rotation"`
	Version  int    `json:"version"`

	Inventory []StackV1 `json:"inventory,omitempty"`
	Output    []StackV1 `json:"output,omitempty"`

	Conveyor *ConveyorV1 `json:"conveyor,omitempty"`
	Router   *RouterV1   `json:"router,omitempty"`
	Producer *ProducerV1 `json:"producer,omitempty"`
	Power    *PowerV1    `json:"power,omitempty"`
	Cable    *CableV1    `json:"cable,omitempty"`
	Tank     *TankV1     `json:"tank,omitempty"`
}

type StackV1 struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type ItemV1 struct {
	Item    string  `json:"item"`
	Slot    int     `json:"slot"`
	Interp  float64 `json:"interp"`
	Dir     int     `json:"dir"`
	Heading int     `json:"heading"`
	Source  int32   `json:"source"`
}

type ConveyorV1 struct {
	Dir       int      `json:"dir"`
	Neighbors []int32  `json:"neighbors"`
	Items     []ItemV1 `json:"items,omitempty"`
	Notify    bool     `json:"notify,omitempty"`
}

type RouterV1 struct {
	Item     string  `json:"item,omitempty"`
	Heading  int     `json:"heading"`
	Source   int32   `json:"source"`
	Progress float64 `json:"progress"`
	Next     int     `json:"next"`
}

type ProducerV1 struct {
	Recipe   string  `json:"recipe,omitempty"`
	Progress float64 `json:"progress"`
}

type PowerV1 struct {
	Stored float64 `json:"stored,omitempty"`
	Burn   float64 `json:"burn,omitempty"`
	Status int     `json:"status"`
}

type CableV1 struct {
	Connections uint8 `json:"connections"`
}

type TankV1 struct {
	Fluid  string  `json:"fluid,omitempty"`
	Amount int     `json:"amount"`
	Carry  float64 `json:"carry,omitempty"`
}

// NetworkV1 is informational; networks are rebuilt from placement on import.
type NetworkV1 struct {
	ID        uint32  `json:"id"`
	Members   int     `json:"members"`
	Offered   float64 `json:"offered"`
	Delivered float64 `json:"delivered"`
}

// WriteSnapshot writes a JSON header line followed by the gob payload, all zstd compressed.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version > Version {
		return snap, fmt.Errorf("snapshot version %d is newer than %d", snap.Header.Version, Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version == 0 {
		return h, errors.New("missing snapshot version")
	}
	return h, nil
}
