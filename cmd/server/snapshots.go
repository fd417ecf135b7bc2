package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tilefactory.io/internal/persistence/indexdb"
	"tilefactory.io/internal/persistence/snapshot"
)

type snapshotWriter struct {
	worldDir string
	idx      *indexdb.SQLiteIndex
	log      *zap.Logger
}

func (s *snapshotWriter) run(ctx context.Context, ch <-chan snapshot.SnapshotV1) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			s.write(snap)
		}
	}
}

func (s *snapshotWriter) write(snap snapshot.SnapshotV1) string {
	path := filepath.Join(s.worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		s.log.Error("snapshot write", zap.String("path", path), zap.Error(err))
		return ""
	}
	s.idx.RecordSnapshot(path, snap)
	s.log.Debug("snapshot written", zap.String("path", path), zap.Uint64("tick", snap.Header.Tick))
	return path
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
