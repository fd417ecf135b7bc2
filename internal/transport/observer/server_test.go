package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tilefactory.io/internal/observerproto"
	"tilefactory.io/internal/sim/catalogs"
	"tilefactory.io/internal/sim/encoding"
	"tilefactory.io/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, *Server, *httptest.Server) {
	t.Helper()
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{
		ID:         "obs",
		Layers:     2,
		Width:      64,
		Height:     64,
		ChunkSize:  16,
		TickRateHz: 50,
		GameSpeed:  1,
	}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	srv := NewServer(w, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	go func() { _ = srv.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", srv.WSHandler())
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)
	return w, srv, hs
}

func dial(t *testing.T, hs *httptest.Server, layers []int) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Layers: layers}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) observerproto.FrameMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg observerproto.FrameMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestBootstrapDescribesWorld(t *testing.T) {
	w, _, hs := startWorld(t)
	resp, err := http.Get(hs.URL + "/observer/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.WorldID != "obs" || boot.WorldParams.Layers != 2 || boot.WorldParams.ChunkSize != 16 {
		t.Fatalf("bootstrap=%+v", boot)
	}
	if len(boot.TerrainPalette) != len(w.Catalogs().Terrain.Palette) || boot.TerrainPalette[0] != "EMPTY" {
		t.Fatalf("terrain palette=%v", boot.TerrainPalette)
	}
}

func TestBootstrapRejectsRemoteClients(t *testing.T) {
	_, srv, _ := startWorld(t)
	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	rec := httptest.NewRecorder()
	srv.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d want 403", rec.Code)
	}
}

func TestObserverGetsFullFrameThenDeltas(t *testing.T) {
	w, _, hs := startWorld(t)
	cats := w.Catalogs()
	stone := cats.Terrain.Index["STONE"]
	if err := w.Call(context.Background(), func(w *world.World) {
		w.Layer(0).PlaceStructure("CHEST", 20, 20, world.North)
	}); err != nil {
		t.Fatalf("call: %v", err)
	}

	conn := dial(t, hs, []int{0})
	full := readFrame(t, conn)
	if !full.Full || len(full.Layers) != 1 || full.Layers[0].Index != 0 {
		t.Fatalf("first frame=%+v", full)
	}
	if len(full.Layers[0].Structures) != 1 || full.Layers[0].Structures[0].Type != "CHEST" {
		t.Fatalf("full structures=%+v", full.Layers[0].Structures)
	}

	if err := w.Submit(context.Background(), func(w *world.World) {
		w.Layer(0).SetTile(3, 3, stone)
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A lagging pump may resync with a full frame instead of the delta.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readFrame(t, conn)
		if msg.Tick < full.Tick {
			continue
		}
		if len(msg.Layers) != 1 {
			t.Fatalf("layer filter ignored: %d layers", len(msg.Layers))
		}
		lm := msg.Layers[0]
		for _, ch := range lm.Chunks {
			if ch.CX != 0 || ch.CY != 0 {
				continue
			}
			if !msg.Full && (lm.Dirty == nil || lm.Dirty.MinX > 3 || lm.Dirty.MaxX < 3) {
				t.Fatalf("dirty=%+v", lm.Dirty)
			}
			if ch.Encoding != observerproto.CellEncoding {
				t.Fatalf("encoding=%s", ch.Encoding)
			}
			tiles, err := encoding.DecodeCells(ch.Data, 16*16)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := tiles[3*16+3].Terrain(); got != stone {
				t.Fatalf("terrain=%d want %d", got, stone)
			}
			return
		}
	}
	t.Fatalf("no frame carried the edited chunk")
}

func TestObserverRejectsBadHandshake(t *testing.T) {
	_, _, hs := startWorld(t)
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestMergeFramesKeepsNewestChunkAndUnionsDirty(t *testing.T) {
	size := 4 * 4
	older := make([]uint16, size)
	newer := make([]uint16, size)
	older[0], newer[0] = 1, 2
	other := make([]uint16, size)
	other[5] = 7

	frames := []*world.Frame{
		{Tick: 10, Layers: []world.LayerFrame{{
			Index:  0,
			Dirty:  world.Bounds{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2, Kinds: 1, Valid: true},
			Chunks: []world.ChunkFrame{{CX: 0, CY: 0, Tiles: older}, {CX: 1, CY: 0, Tiles: other}},
		}}},
		{Tick: 11, Layers: []world.LayerFrame{{Index: 0}}},
		{Tick: 12, Stats: world.TickStats{Structures: 3}, Layers: []world.LayerFrame{{
			Index:  0,
			Dirty:  world.Bounds{MinX: 0, MinY: 3, MaxX: 1, MaxY: 5, Kinds: 2, Valid: true},
			Chunks: []world.ChunkFrame{{CX: 0, CY: 0, Tiles: newer}},
		}}},
	}

	msg := mergeFrames(frames)
	if msg.Full || msg.Tick != 12 || msg.Stats.Structures != 3 {
		t.Fatalf("merged frame header=%+v", msg)
	}
	if len(msg.Layers) != 1 {
		t.Fatalf("layers=%d want 1", len(msg.Layers))
	}
	lm := msg.Layers[0]
	want := observerproto.DirtyRect{MinX: 0, MinY: 1, MaxX: 2, MaxY: 5, Kinds: 3}
	if lm.Dirty == nil || *lm.Dirty != want {
		t.Fatalf("dirty=%+v want %+v", lm.Dirty, want)
	}
	if len(lm.Chunks) != 2 || lm.Chunks[0].CX != 0 || lm.Chunks[1].CX != 1 {
		t.Fatalf("chunks=%+v", lm.Chunks)
	}
	got, err := encoding.DecodeCells(lm.Chunks[0].Data, size)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0] != 2 {
		t.Fatalf("chunk 0,0 cell=%d want the newest tiles", got[0])
	}
}
