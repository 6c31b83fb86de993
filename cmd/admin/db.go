package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"lootsweep.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", envOr("LS_DATA_DIR", "./data"), "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "summary"
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
	if err := runQuery(ctx, os.Stdout, idx, q, *limit); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

type queryIndex interface {
	RecentTransfers(ctx context.Context, limit int) ([]indexdb.TransferRow, error)
	ItemTotals(ctx context.Context) ([]indexdb.ItemTotal, error)
	PassCounts(ctx context.Context) (executed, skipped int64, err error)
	LatestSnapshot(ctx context.Context) (indexdb.SnapshotRow, bool, error)
}

func runQuery(ctx context.Context, w io.Writer, idx queryIndex, q string, limit int) error {
	switch q {
	case "summary":
		executed, skipped, err := idx.PassCounts(ctx)
		if err != nil {
			return err
		}
		totals, err := idx.ItemTotals(ctx)
		if err != nil {
			return err
		}
		var moved int64
		for _, t := range totals {
			moved += t.Count
		}
		fmt.Fprintf(w, "passes executed=%s skipped=%s items_moved=%s kinds=%d\n",
			humanize.Comma(executed), humanize.Comma(skipped), humanize.Comma(moved), len(totals))
		snap, ok, err := idx.LatestSnapshot(ctx)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(w, "latest snapshot tick=%d containers=%d store=%d path=%s\n", snap.Tick, snap.Containers, snap.StoreCount, snap.Path)
		}
		return nil
	case "transfers":
		rows, err := idx.RecentTransfers(ctx, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s x%d\tfrom %s\n", r.Tick, r.SessionID, r.Mode, r.ItemName, r.Count, r.ContainerName)
		}
		return nil
	case "totals":
		rows, err := idx.ItemTotals(ctx)
		if err != nil {
			return err
		}
		if limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%-24s type=%-5d moves=%-6d count=%s\n", r.ItemName, r.TypeID, r.Transfers, humanize.Comma(r.Count))
		}
		return nil
	default:
		return fmt.Errorf("unknown query %q (summary|transfers|totals)", q)
	}
}
