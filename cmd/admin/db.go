package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tilefactory.io/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit (ticks)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := runQuery(ctx, idx, q, *worldID, *limit); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

func runQuery(ctx context.Context, idx *indexdb.SQLiteIndex, q, worldID string, limit int) error {
	switch q {
	case "snapshots":
		rows, err := idx.Snapshots(ctx, worldID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "ticks":
		if limit <= 0 {
			limit = 20
		}
		rows, err := idx.RecentTicks(ctx, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "catalogs":
		rows, err := idx.Catalogs(ctx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
	default:
		return fmt.Errorf("unknown query %q (snapshots, ticks, catalogs)", q)
	}
	return nil
}
