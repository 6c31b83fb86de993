package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"lootsweep.ai/internal/sim/host"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// StateDigest hashes everything a snapshot carries. Two worlds with equal digests hold the same
// containers, slots, store, wishlist and actor. Tick and shown messages are left out.
func (w *World) StateDigest() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := sha256.New()
	var tmp [8]byte

	digestWriteI64(h, &tmp, w.cfg.Seed)
	h.Write([]byte{boolByte(w.hasActor)})
	digestWriteVec(h, &tmp, w.actor)
	digestWriteI64(h, &tmp, int64(w.unloads))

	for _, c := range w.containers {
		digestWriteU64(h, &tmp, uint64(c.ID))
		h.Write([]byte(c.Name))
		digestWriteVec(h, &tmp, c.Pos)
		digestInventory(h, &tmp, w.invs[c.inv])
	}
	digestInventory(h, &tmp, w.store)
	digestWriteInts(h, &tmp, sortedKeys(w.locked))

	wl := make([]int, 0, len(w.wishlist))
	for k, on := range w.wishlist {
		if on {
			wl = append(wl, k)
		}
	}
	sort.Ints(wl)
	digestWriteInts(h, &tmp, wl)

	return hex.EncodeToString(h.Sum(nil))
}

func digestInventory(h hashWriter, tmp *[8]byte, inv *inventory) {
	if inv == nil {
		digestWriteI64(h, tmp, -1)
		return
	}
	digestWriteI64(h, tmp, int64(len(inv.slots)))
	for i, it := range inv.slots {
		if it == nil {
			continue
		}
		digestWriteI64(h, tmp, int64(i))
		digestWriteU64(h, tmp, uint64(it.ID))
		digestWriteI64(h, tmp, int64(it.TypeID))
		h.Write([]byte(it.RawName))
		digestWriteI64(h, tmp, int64(it.Quality))
		digestWriteI64(h, tmp, int64(it.StackCount))
		digestWriteI64(h, tmp, int64(it.Rounds))
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v host.Vec3) {
	digestWriteU64(h, tmp, math.Float64bits(v.X))
	digestWriteU64(h, tmp, math.Float64bits(v.Y))
	digestWriteU64(h, tmp, math.Float64bits(v.Z))
}

func digestWriteInts(h hashWriter, tmp *[8]byte, vs []int) {
	digestWriteI64(h, tmp, int64(len(vs)))
	for _, v := range vs {
		digestWriteI64(h, tmp, int64(v))
	}
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
