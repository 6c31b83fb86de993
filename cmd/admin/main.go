package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"lootsweep.ai/internal/persistence/snapshot"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state", "scan", "reset", "snapshot", "config", "open", "ready", "teardown":
			httpCmd(os.Args[1], os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints worlds, or the snapshots of one world.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", envOr("LS_DATA_DIR", "./data"), "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID == "" {
		entries, err := os.ReadDir(base)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			fmt.Println(e.Name())
		}
		return
	}

	dir := filepath.Join(base, *worldID, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fmt.Printf("%s\tunreadable: %v\n", e.Name(), err)
			continue
		}
		info, _ := e.Info()
		var size uint64
		var mod string
		if info != nil {
			size = uint64(info.Size())
			mod = humanize.Time(info.ModTime())
		}
		fmt.Printf("%s\ttick=%d\tv%d\t%s\t%s\n", e.Name(), h.Tick, h.Version, humanize.Bytes(size), mod)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
