// Package history keeps the most recent readings in memory.
package history

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

// Recent holds the last N readings. Keys are insertion sequence numbers
// and are never read back, so the cache evicts strictly oldest first.
type Recent struct {
	mu    sync.Mutex
	seq   uint64
	cache *lru.Cache
}

func NewRecent(size int) (*Recent, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Recent{cache: cache}, nil
}

func (r *Recent) ObserveReading(_ context.Context, reading models.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.cache.Add(r.seq, reading)
}

func (r *Recent) ObserveFailure(context.Context, error) {}

// Readings returns the kept readings, oldest first.
func (r *Recent) Readings() []models.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.cache.Keys()
	readings := make([]models.Reading, 0, len(keys))
	for _, k := range keys {
		if v, ok := r.cache.Peek(k); ok {
			readings = append(readings, v.(models.Reading))
		}
	}
	return readings
}

// Latest returns the newest reading, if any.
func (r *Recent) Latest() (models.Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Peek(r.seq)
	if !ok {
		return models.Reading{}, false
	}
	return v.(models.Reading), true
}
