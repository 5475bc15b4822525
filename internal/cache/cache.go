// Package cache keeps an in-memory snapshot of enrolled descriptors so the
// identification hot path never touches the database. Snapshots are immutable
// and swapped atomically; readers are lock-free.
package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/facegate/internal/biometric"
	"github.com/kozaktomas/facegate/internal/database"
)

// HNSWMaxNeighbors is the M parameter of the approximate index.
const HNSWMaxNeighbors = 16

// Snapshot is an immutable view of the enrolled population at load time.
type Snapshot struct {
	Entries   []biometric.Candidate
	CreatedAt time.Time

	graph *hnsw.Graph[int] // keys are indexes into Entries, nil when disabled or empty
}

// Size returns the number of descriptors in the snapshot.
func (s *Snapshot) Size() int {
	return len(s.Entries)
}

// Age returns how long ago the snapshot was loaded.
func (s *Snapshot) Age() time.Duration {
	return time.Since(s.CreatedAt)
}

// Nearest returns up to k candidates closest to the query, nearest first.
// Uses the approximate index when present and falls back to a linear scan.
func (s *Snapshot) Nearest(query biometric.Descriptor, k int) []biometric.Match {
	if s.graph != nil {
		neighbors := s.graph.Search([]float32(query), k)
		matches := make([]biometric.Match, 0, len(neighbors))
		for _, n := range neighbors {
			matches = append(matches, biometric.Match{
				SubjectID: s.Entries[n.Key].SubjectID,
				Distance:  biometric.Distance(query, biometric.Descriptor(n.Value)),
			})
		}
		return matches
	}
	return biometric.IdentifyTopK(query, s.Entries, k)
}

// DescriptorCache loads descriptors from the template store and refreshes
// them after the configured TTL expires.
type DescriptorCache struct {
	store   database.TemplateStore
	ttl     time.Duration
	useHNSW bool

	mu       sync.Mutex // serializes reloads
	snapshot atomic.Pointer[Snapshot]
}

// NewDescriptorCache creates a cache over the given template store. The first
// snapshot is loaded lazily on the first call to Current.
func NewDescriptorCache(store database.TemplateStore, ttl time.Duration, useHNSW bool) *DescriptorCache {
	return &DescriptorCache{
		store:   store,
		ttl:     ttl,
		useHNSW: useHNSW,
	}
}

// Current returns a fresh snapshot, reloading from the store if the cached
// one is missing or older than the TTL. The returned snapshot stays valid for
// the caller even if a newer one is swapped in concurrently.
func (c *DescriptorCache) Current(ctx context.Context) (*Snapshot, error) {
	if snap := c.snapshot.Load(); snap != nil && snap.Age() < c.ttl {
		return snap, nil
	}
	if err := c.Reload(ctx, false); err != nil {
		return nil, err
	}
	return c.snapshot.Load(), nil
}

// Reload replaces the snapshot with a fresh load from the store. When force
// is false a snapshot still within its TTL is kept as is.
func (c *DescriptorCache) Reload(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force {
		if snap := c.snapshot.Load(); snap != nil && snap.Age() < c.ttl {
			return nil
		}
	}

	templates, err := c.store.AllTemplates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	entries := make([]biometric.Candidate, 0, len(templates))
	for _, tpl := range templates {
		if !tpl.Descriptor.Valid() {
			log.Printf("Skipping template %d: descriptor has %d dimensions, want %d",
				tpl.ID, len(tpl.Descriptor), biometric.DescriptorDim)
			continue
		}
		entries = append(entries, biometric.Candidate{
			SubjectID:  tpl.SubjectID,
			Descriptor: tpl.Descriptor,
		})
	}

	snap := &Snapshot{
		Entries:   entries,
		CreatedAt: time.Now(),
	}
	if c.useHNSW && len(entries) > 0 {
		snap.graph = buildGraph(entries)
	}

	c.snapshot.Store(snap)
	log.Printf("Descriptor cache reloaded: %d descriptors", len(entries))
	return nil
}

// Invalidate drops the cached snapshot so the next read hits the store.
// Called after enrollment or subject deletion.
func (c *DescriptorCache) Invalidate() {
	c.snapshot.Store(nil)
}

func buildGraph(entries []biometric.Candidate) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	for i, entry := range entries {
		g.Add(hnsw.MakeNode(i, []float32(entry.Descriptor)))
	}
	return g
}
