package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "tilefactory.io/internal/persistence/log"
	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "ticks":
			ticksCmd(os.Args[2:])
			return
		case "events":
			eventsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "speed":
			speedCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type snapshotSummary struct {
	WorldID        string             `json:"world_id"`
	Tick           uint64             `json:"tick"`
	Version        int                `json:"version"`
	ChunkSize      int                `json:"chunk_size"`
	Layers         int                `json:"layers"`
	Chunks         int                `json:"chunks"`
	Structures     map[string]int     `json:"structures"`
	Cables         int                `json:"cables"`
	ItemsInTransit int                `json:"items_in_transit"`
	Networks       int                `json:"networks"`
	PowerOffered   float64            `json:"power_offered"`
	PowerDelivered float64            `json:"power_delivered"`
	Digests        snapshot.DigestsV1 `json:"digests"`
}

func summarizeSnapshot(snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		WorldID:    snap.Header.WorldID,
		Tick:       snap.Header.Tick,
		Version:    snap.Header.Version,
		ChunkSize:  snap.ChunkSize,
		Layers:     len(snap.Layers),
		Structures: map[string]int{},
		Networks:   len(snap.Networks),
		Digests:    snap.Digests,
	}
	for _, l := range snap.Layers {
		s.Chunks += len(l.Chunks)
		for _, c := range l.Chunks {
			s.Cables += len(c.Cables)
			for _, st := range c.Structures {
				s.Structures[st.Type]++
				if st.Conveyor != nil {
					s.ItemsInTransit += len(st.Conveyor.Items)
				}
				if st.Router != nil && st.Router.Item != "" {
					s.ItemsInTransit++
				}
			}
		}
	}
	for _, n := range snap.Networks {
		s.PowerOffered += n.Offered
		s.PowerDelivered += n.Delivered
	}
	return s
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used when -snapshot is empty)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	headerOnly := fs.Bool("header", false, "read only the header line")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = latestSnapshotPath(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshots found")
			os.Exit(2)
		}
	}
	if *headerOnly {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read header:", err)
			os.Exit(1)
		}
		printJSON(h)
		return
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarizeSnapshot(snap))
}

type tickSummary struct {
	Entries           int     `json:"entries"`
	FirstTick         uint64  `json:"first_tick"`
	LastTick          uint64  `json:"last_tick"`
	MaxStructures     int     `json:"max_structures"`
	MaxItemsInTransit int     `json:"max_items_in_transit"`
	AvgSatisfaction   float64 `json:"avg_satisfaction"`
	MaxStepMicros     int64   `json:"max_step_us"`
}

func (s *tickSummary) add(st world.TickStats) {
	if s.Entries == 0 || st.Tick < s.FirstTick {
		s.FirstTick = st.Tick
	}
	s.LastTick = max(s.LastTick, st.Tick)
	s.MaxStructures = max(s.MaxStructures, st.Structures)
	s.MaxItemsInTransit = max(s.MaxItemsInTransit, st.ItemsInTransit)
	s.MaxStepMicros = max(s.MaxStepMicros, st.DurationMicros)
	sat := 1.0
	if st.PowerOffered > 0 {
		sat = min(1, st.PowerDelivered/st.PowerOffered)
	}
	s.AvgSatisfaction += (sat - s.AvgSatisfaction) / float64(s.Entries+1)
	s.Entries++
}

func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	raw := fs.Bool("raw", false, "print every entry instead of a summary")
	_ = fs.Parse(args)
	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := persistlog.TickDir(filepath.Join(*dataDir, "worlds", *worldID))
	files, err := persistlog.Files(dir, "ticks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	var sum tickSummary
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(st world.TickStats) error {
			if *raw {
				printJSON(st)
			}
			sum.add(st)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", f, err)
			os.Exit(1)
		}
	}
	if !*raw {
		printJSON(sum)
	}
}

func eventsCmd(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	dir := persistlog.EventDir(filepath.Join(*dataDir, "worlds", *worldID))
	files, err := persistlog.Files(dir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	counts := map[string]int{}
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(ev persistlog.Event) error {
			counts[ev.Name]++
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", f, err)
			os.Exit(1)
		}
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("%s\t%d\n", n, counts[n])
	}
}

func latestSnapshotPath(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		var tick uint64
		if _, err := fmt.Sscanf(e.Name(), "%d.snap.zst", &tick); err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best, bestTick = filepath.Join(dir, e.Name()), tick
		}
	}
	return best
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
