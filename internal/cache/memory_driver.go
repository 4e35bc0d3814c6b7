package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryDriver is an in-process Driver, used by tests and by deployments
// that don't need the cache to survive a process restart.
type MemoryDriver struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
}

// NewMemoryDriver returns an empty MemoryDriver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
	}
}

func (d *MemoryDriver) Get(_ context.Context, key string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.strings[key]
	return v, ok, nil
}

func (d *MemoryDriver) Set(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strings[key] = value
	return nil
}

func (d *MemoryDriver) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := parseInt(d.strings[key]) + delta
	d.strings[key] = formatInt(n)
	return n, nil
}

func (d *MemoryDriver) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.hashes[key]
	if !ok {
		h = make(map[string]string)
		d.hashes[key] = h
	}
	n := parseInt(h[field]) + delta
	h[field] = formatInt(n)
	return n, nil
}

func (d *MemoryDriver) HSetIfAbsent(_ context.Context, key, field, value string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.hashes[key]
	if !ok {
		h = make(map[string]string)
		d.hashes[key] = h
	}
	if _, exists := h[field]; exists {
		return false, nil
	}
	h[field] = value
	return true, nil
}

func (d *MemoryDriver) HGetAll(_ context.Context, key string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.hashes[key]))
	for f, v := range d.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (d *MemoryDriver) SAdd(_ context.Context, key string, members ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[key]
	if !ok {
		s = make(map[string]struct{})
		d.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
	return nil
}

func (d *MemoryDriver) SRem(_ context.Context, key string, members ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(s, m)
	}
	return nil
}

func (d *MemoryDriver) SIsMember(_ context.Context, key, member string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sets[key][member]
	return ok, nil
}

func (d *MemoryDriver) SMembers(_ context.Context, key string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sets[key]))
	for m := range d.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// ZAdd reports whether member was newly added, under the same lock as the
// score write, so the caller never has to pair it with a separate
// existence check.
func (d *MemoryDriver) ZAdd(_ context.Context, key string, score float64, member string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	z, ok := d.zsets[key]
	if !ok {
		z = make(map[string]float64)
		d.zsets[key] = z
	}
	_, existed := z[member]
	z[member] = score
	return !existed, nil
}

type zmember struct {
	member string
	score  float64
}

func (d *MemoryDriver) sortedMembers(key string) []zmember {
	z := d.zsets[key]
	out := make([]zmember, 0, len(z))
	for m, s := range z {
		out = append(out, zmember{member: m, score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score < out[j].score
		}
		return out[i].member < out[j].member
	})
	return out
}

// resolveRange converts Redis-style possibly-negative [start, stop]
// indices into a clamped [lo, hi) slice bound over a sequence of length n.
func resolveRange(start, stop int64, n int) (lo, hi int) {
	norm := func(i int64) int {
		if i < 0 {
			i += int64(n)
		}
		if i < 0 {
			i = 0
		}
		if i > int64(n) {
			i = int64(n)
		}
		return int(i)
	}
	lo = norm(start)
	if stop < 0 && stop+int64(n) < 0 {
		// stop falls before the first member: Redis yields an empty range.
		return lo, lo
	}
	hi = norm(stop) + 1
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (d *MemoryDriver) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members := d.sortedMembers(key)
	lo, hi := resolveRange(start, stop, len(members))
	out := make([]string, 0, hi-lo)
	for _, m := range members[lo:hi] {
		out = append(out, m.member)
	}
	return out, nil
}

func (d *MemoryDriver) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	members := d.sortedMembers(key)
	for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
		members[i], members[j] = members[j], members[i]
	}
	lo, hi := resolveRange(start, stop, len(members))
	out := make([]string, 0, hi-lo)
	for _, m := range members[lo:hi] {
		out = append(out, m.member)
	}
	return out, nil
}

func (d *MemoryDriver) ZCard(_ context.Context, key string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.zsets[key])), nil
}

func (d *MemoryDriver) ZRemRangeByRank(_ context.Context, key string, start, stop int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	members := d.sortedMembers(key)
	lo, hi := resolveRange(start, stop, len(members))
	z := d.zsets[key]
	for _, m := range members[lo:hi] {
		delete(z, m.member)
	}
	return nil
}

func (d *MemoryDriver) Del(_ context.Context, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		delete(d.strings, k)
		delete(d.hashes, k)
		delete(d.sets, k)
		delete(d.zsets, k)
	}
	return nil
}
