package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	persistlog "lootsweep.ai/internal/persistence/log"
	"lootsweep.ai/internal/sim/pickup"
)

type tickWindow struct {
	From uint64
	To   uint64
}

func (w tickWindow) contains(tick uint64) bool {
	if tick < w.From {
		return false
	}
	return w.To == 0 || tick <= w.To
}

type itemTotal struct {
	TypeID  int
	Name    string
	Moves   int
	Count   int
	Bullets bool
}

type deposit struct {
	tick      uint64
	remaining int
}

// Summary aggregates transfer and pass logs and checks them for repeated deposits.
type Summary struct {
	Transfers int
	Moved     int
	ByMode    map[string]int
	Items     map[int]*itemTotal

	Passes    int
	Executed  int
	Skipped   map[string]int
	Blocked   int
	Unloaded  int
	HostErrs  int
	Sessions  map[string]struct{}
	FirstTick uint64
	LastTick  uint64

	seen       map[uint64]deposit
	Violations []string
}

func (s *Summary) init() {
	if s.ByMode == nil {
		s.ByMode = map[string]int{}
		s.Items = map[int]*itemTotal{}
		s.Skipped = map[string]int{}
		s.Sessions = map[string]struct{}{}
		s.seen = map[uint64]deposit{}
	}
}

func (s *Summary) observeTick(t uint64) {
	if s.FirstTick == 0 || t < s.FirstTick {
		s.FirstTick = t
	}
	if t > s.LastTick {
		s.LastTick = t
	}
}

func (s *Summary) AddTransferFile(path string, win tickWindow) error {
	s.init()
	return persistlog.ReadJSONL(path, func(line []byte) error {
		var e pickup.TransferEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !win.contains(e.Tick) {
			return nil
		}
		s.AddTransfer(e)
		return nil
	})
}

// AddTransfer records one deposit. An item id may come back only while a partial deposit left part
// of its stack behind, and never for more than was left.
func (s *Summary) AddTransfer(e pickup.TransferEntry) {
	s.init()
	if prev, ok := s.seen[e.ItemID]; ok {
		switch {
		case prev.remaining == 0:
			s.Violations = append(s.Violations, fmt.Sprintf("item %d deposited twice (ticks %d and %d)", e.ItemID, prev.tick, e.Tick))
		case e.Count > prev.remaining:
			s.Violations = append(s.Violations, fmt.Sprintf("item %d moved %d at tick %d but only %d was left at tick %d", e.ItemID, e.Count, e.Tick, prev.remaining, prev.tick))
		}
	}
	s.seen[e.ItemID] = deposit{tick: e.Tick, remaining: e.Remaining}

	s.Transfers++
	s.Moved += e.Count
	s.ByMode[e.Mode]++
	s.Sessions[e.SessionID] = struct{}{}
	s.observeTick(e.Tick)

	it := s.Items[e.TypeID]
	if it == nil {
		it = &itemTotal{TypeID: e.TypeID, Name: e.ItemName, Bullets: e.IsBullet}
		s.Items[e.TypeID] = it
	}
	it.Moves++
	it.Count += e.Count
}

func (s *Summary) AddPassFile(path string, win tickWindow) error {
	s.init()
	return persistlog.ReadJSONL(path, func(line []byte) error {
		var r pickup.PassReport
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !win.contains(r.Tick) {
			return nil
		}
		s.AddPass(r)
		return nil
	})
}

func (s *Summary) AddPass(r pickup.PassReport) {
	s.init()
	s.Passes++
	s.observeTick(r.Tick)
	if r.SessionID != "" {
		s.Sessions[r.SessionID] = struct{}{}
	}
	if r.Skipped != "" {
		s.Skipped[r.Skipped]++
		return
	}
	s.Executed++
	s.Blocked += r.Blocked
	s.Unloaded += r.Unloaded
	s.HostErrs += r.HostErrors
}

// TopItems orders by total count, then type id.
func (s *Summary) TopItems(n int) []itemTotal {
	out := make([]itemTotal, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].TypeID < out[j].TypeID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (s *Summary) Print(w io.Writer, top int) {
	s.init()
	fmt.Fprintf(w, "ticks %d..%d sessions=%d\n", s.FirstTick, s.LastTick, len(s.Sessions))
	fmt.Fprintf(w, "transfers=%s items_moved=%s default=%s wishlist=%s\n",
		humanize.Comma(int64(s.Transfers)), humanize.Comma(int64(s.Moved)),
		humanize.Comma(int64(s.ByMode["default"])), humanize.Comma(int64(s.ByMode["wishlist"])))
	fmt.Fprintf(w, "passes=%s executed=%s blocked=%d unloaded=%d host_errors=%d\n",
		humanize.Comma(int64(s.Passes)), humanize.Comma(int64(s.Executed)), s.Blocked, s.Unloaded, s.HostErrs)

	reasons := make([]string, 0, len(s.Skipped))
	for k := range s.Skipped {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		fmt.Fprintf(w, "  skipped %-16s %d\n", k, s.Skipped[k])
	}
	for _, it := range s.TopItems(top) {
		fmt.Fprintf(w, "  %-24s type=%-5d moves=%-6d count=%s\n", it.Name, it.TypeID, it.Moves, humanize.Comma(int64(it.Count)))
	}
	for _, v := range s.Violations {
		fmt.Fprintf(w, "VIOLATION %s\n", v)
	}
	if len(s.Violations) == 0 {
		fmt.Fprintln(w, "replay ok")
	}
}
