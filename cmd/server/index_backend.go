package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lootsweep.ai/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is disabled; the config record then lives in memory only.
func openRuntimeIndex(worldDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported LS_INDEX_BACKEND: %s", backend)
	}
}
