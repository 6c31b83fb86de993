package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"lootsweep.ai/internal/persistence/snapshot"
)

func main() {
	var (
		worldDir = flag.String("world_dir", "", "world data dir containing transfers/ and passes/")
		snapPath = flag.String("snapshot", "", "path to .snap.zst (optional)")
		fromTick = flag.Uint64("from_tick", 0, "ignore entries before tick (optional)")
		toTick   = flag.Uint64("to_tick", 0, "ignore entries after tick (optional)")
		top      = flag.Int("top", 10, "items to list")
	)
	flag.Parse()

	if *worldDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -world_dir or -snapshot")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		var size int64
		if st, err := os.Stat(*snapPath); err == nil {
			size = st.Size()
		}
		storeCount := len(snap.Store.Slots)
		fmt.Printf("snapshot v%d world=%s tick=%d seed=%d containers=%d store=%d/%d unloads=%d size=%s\n",
			snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
			len(snap.Containers), storeCount, snap.Store.Capacity, snap.Unloads, humanize.Bytes(uint64(size)))
	}

	if *worldDir == "" {
		return
	}

	window := tickWindow{From: *fromTick, To: *toTick}
	var sum Summary
	transfers, err := listLogFiles(filepath.Join(*worldDir, "transfers"), "transfers-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list transfers:", err)
		os.Exit(1)
	}
	for _, path := range transfers {
		if err := sum.AddTransferFile(path, window); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	passes, err := listLogFiles(filepath.Join(*worldDir, "passes"), "passes-")
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "list passes:", err)
		os.Exit(1)
	}
	for _, path := range passes {
		if err := sum.AddPassFile(path, window); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	sum.Print(os.Stdout, *top)
	if len(sum.Violations) > 0 {
		os.Exit(1)
	}
}

func listLogFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
