package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"tilefactory.io/internal/observerproto"
	"tilefactory.io/internal/sim/encoding"
	"tilefactory.io/internal/sim/world"
	"tilefactory.io/internal/sim/world/tile"
)

// Server streams published world frames to read-only websocket observers.
// Run polls the world's frame history and is the only goroutine that writes
// to session queues, so every session sees frames in tick order.
type Server struct {
	world *world.World
	log   *zap.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       deadlock.Mutex
	sessions map[string]*session
}

type session struct {
	id  string
	out chan []byte

	// Guarded by Server.mu.
	layers map[int]bool

	wantFull atomic.Bool

	// Owned by the pump. next is the first tick the session has not seen.
	stale bool
	next  uint64
}

func NewServer(w *world.World, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		world:    w,
		log:      logger,
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		cfg := s.world.Config()
		cats := s.world.Catalogs()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.Tick(),
			WorldParams: observerproto.WorldParams{
				TickRateHz:   cfg.TickRateHz,
				Layers:       cfg.Layers,
				Width:        cfg.Width,
				Height:       cfg.Height,
				ChunkSize:    cfg.ChunkSize,
				BeltArmSlots: cfg.BeltArmSlots,
			},
			TerrainPalette:   cats.Terrain.Palette,
			ItemPalette:      cats.Items.Palette,
			StructurePalette: cats.Structures.Palette,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sess := &session{
			id:     fmt.Sprintf("O%d", s.nextID.Add(1)),
			out:    make(chan []byte, 64),
			layers: layerSet(sub.Layers),
			stale:  true,
		}
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		s.log.Debug("observer joined", zap.String("session", sess.id), zap.String("remote", r.RemoteAddr))
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
			s.log.Debug("observer left", zap.String("session", sess.id))
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			s.mu.Lock()
			sess.layers = layerSet(sub.Layers)
			s.mu.Unlock()
			sess.wantFull.Store(true)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Run pushes newly published frames to the sessions until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(max(1, s.world.TickRateHz()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.pump(ctx)
		}
	}
}

func (s *Server) pump(ctx context.Context) {
	type target struct {
		sess   *session
		layers map[int]bool
	}
	s.mu.Lock()
	targets := make([]target, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, target{sess: sess, layers: sess.layers})
	}
	s.mu.Unlock()

	var full *observerproto.FrameMsg
	var fullTick uint64
	for _, t := range targets {
		sess := t.sess
		if sess.wantFull.Swap(false) {
			sess.stale = true
		}
		if !sess.stale {
			// Ticks missed between polls are folded into one delta.
			frames, ok := s.world.FramesFrom(sess.next)
			if ok {
				if len(frames) == 0 {
					continue
				}
				if s.send(sess, filterLayers(mergeFrames(frames), t.layers)) {
					sess.next = frames[len(frames)-1].Tick + 1
				} else {
					sess.stale = true
				}
				continue
			}
			sess.stale = true
		}
		if full == nil {
			msg, tick, err := s.fullFrame(ctx)
			if err != nil {
				s.log.Warn("observer resync failed", zap.Error(err))
				return
			}
			full, fullTick = msg, tick
		}
		if s.send(sess, filterLayers(*full, t.layers)) {
			sess.stale = false
			sess.next = fullTick
		}
	}
}

// send queues msg without blocking; false means the session fell behind.
func (s *Server) send(sess *session, msg observerproto.FrameMsg) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("observer encode", zap.Error(err))
		return false
	}
	select {
	case sess.out <- b:
		return true
	default:
		return false
	}
}

// fullFrame copies every active chunk and structure on the world goroutine.
// The returned tick is the first tick whose delta applies on top of it.
func (s *Server) fullFrame(ctx context.Context) (*observerproto.FrameMsg, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var msg observerproto.FrameMsg
	var tick uint64
	err := s.world.Call(ctx, func(w *world.World) {
		tick = w.Tick()
		msg = observerproto.FrameMsg{
			Type:            "FRAME",
			ProtocolVersion: observerproto.Version,
			Tick:            tick,
			Full:            true,
			Stats:           statsMsg(w.LastStats()),
		}
		for _, l := range w.Layers() {
			lm := observerproto.LayerMsg{Index: l.Index}
			for _, c := range l.Chunks() {
				lm.Chunks = append(lm.Chunks, observerproto.ChunkMsg{
					CX:       c.CX,
					CY:       c.CY,
					Encoding: observerproto.CellEncoding,
					Data:     encoding.EncodeCells(c.Tiles()),
				})
				for _, st := range c.Structures() {
					lm.Structures = append(lm.Structures, observerproto.StructureMsg{
						Type: st.ID(), X: st.X, Y: st.Y, Up: int(st.Up),
					})
				}
			}
			msg.Layers = append(msg.Layers, lm)
		}
	})
	return &msg, tick, err
}

// mergeFrames folds consecutive frames into one delta. Dirty rectangles are
// unioned per layer and each chunk carries its newest tiles.
func mergeFrames(frames []*world.Frame) observerproto.FrameMsg {
	last := frames[len(frames)-1]
	msg := observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		Tick:            last.Tick,
		Stats:           statsMsg(last.Stats),
	}
	type chunkKey struct{ layer, cx, cy int }
	var layerOrder []int
	dirty := map[int]world.Bounds{}
	chunkOrder := map[int][]chunkKey{}
	tiles := map[chunkKey][]uint16{}
	for _, f := range frames {
		for _, lf := range f.Layers {
			if _, seen := dirty[lf.Index]; !seen {
				layerOrder = append(layerOrder, lf.Index)
			}
			dirty[lf.Index] = dirty[lf.Index].Union(lf.Dirty)
			for _, cf := range lf.Chunks {
				k := chunkKey{lf.Index, cf.CX, cf.CY}
				if _, seen := tiles[k]; !seen {
					chunkOrder[lf.Index] = append(chunkOrder[lf.Index], k)
				}
				tiles[k] = cf.Tiles
			}
		}
	}
	for _, li := range layerOrder {
		lm := observerproto.LayerMsg{Index: li}
		if d := dirty[li]; !d.Empty() {
			lm.Dirty = &observerproto.DirtyRect{MinX: d.MinX, MinY: d.MinY, MaxX: d.MaxX, MaxY: d.MaxY, Kinds: uint8(d.Kinds)}
		}
		for _, k := range chunkOrder[li] {
			lm.Chunks = append(lm.Chunks, observerproto.ChunkMsg{
				CX:       k.cx,
				CY:       k.cy,
				Encoding: observerproto.CellEncoding,
				Data:     encoding.EncodeCells(cells(tiles[k])),
			})
		}
		msg.Layers = append(msg.Layers, lm)
	}
	return msg
}

func statsMsg(st world.TickStats) observerproto.StatsMsg {
	return observerproto.StatsMsg{
		Structures:     st.Structures,
		ItemsInTransit: st.ItemsInTransit,
		Networks:       st.Networks,
		PowerOffered:   st.PowerOffered,
		PowerDelivered: st.PowerDelivered,
	}
}

func filterLayers(msg observerproto.FrameMsg, layers map[int]bool) observerproto.FrameMsg {
	if layers == nil {
		return msg
	}
	out := make([]observerproto.LayerMsg, 0, len(layers))
	for _, l := range msg.Layers {
		if layers[l.Index] {
			out = append(out, l)
		}
	}
	msg.Layers = out
	return msg
}

func cells(raw []uint16) []tile.Cell {
	out := make([]tile.Cell, len(raw))
	for i, v := range raw {
		out[i] = tile.Cell(v)
	}
	return out
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	return sub, sub.Type == "SUBSCRIBE" && sub.ProtocolVersion == observerproto.Version
}

func layerSet(layers []int) map[int]bool {
	if len(layers) == 0 {
		return nil
	}
	out := make(map[int]bool, len(layers))
	for _, l := range layers {
		out[l] = true
	}
	return out
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
