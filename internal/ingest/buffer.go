package ingest

import (
	"log"
	"sync"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// CompletionFunc is invoked once for each block that completes. Failures are
// logged and do not affect buffer state; the delivery guarantee lives in the
// flush queue, not here.
type CompletionFunc func(key models.WorkloadKey, block models.Block) error

// BlockBuffer groups measurements into fixed-capacity blocks per key and
// retains a bounded rolling history of completed blocks.
type BlockBuffer struct {
	mu         sync.Mutex
	current    map[models.WorkloadKey]*models.Block
	history    map[models.WorkloadKey][]models.Block
	capacity   int
	historyLen int
	onComplete CompletionFunc
	logger     *log.Logger
}

// NewBlockBuffer creates a buffer with the given block capacity and per-key
// completed-block history length. onComplete may be nil (local mode).
func NewBlockBuffer(capacity, historyLen int, onComplete CompletionFunc, logger *log.Logger) *BlockBuffer {
	return &BlockBuffer{
		current:    make(map[models.WorkloadKey]*models.Block),
		history:    make(map[models.WorkloadKey][]models.Block),
		capacity:   capacity,
		historyLen: historyLen,
		onComplete: onComplete,
		logger:     logger,
	}
}

// Append adds a measurement to the key's open block, opening one if needed.
// When the block reaches capacity it completes: it moves into the history
// ring (evicting the oldest entry if full) and the completion callback fires
// exactly once.
func (b *BlockBuffer) Append(key models.WorkloadKey, m models.Measurement) {
	b.mu.Lock()

	block, ok := b.current[key]
	if !ok {
		block = &models.Block{
			StartTime: m.Timestamp,
			EndTime:   m.Timestamp,
			Capacity:  b.capacity,
		}
		b.current[key] = block
	}

	block.Measurements = append(block.Measurements, m)
	block.EndTime = m.Timestamp

	var completed *models.Block
	if len(block.Measurements) >= block.Capacity {
		block.Complete = true
		ring := append(b.history[key], *block)
		if len(ring) > b.historyLen {
			ring = ring[1:]
		}
		b.history[key] = ring
		delete(b.current, key)
		completed = block
	}

	b.mu.Unlock()

	// Callback runs outside the lock: completion must never block on I/O
	// beyond the O(1) enqueue the callback is expected to do.
	if completed != nil && b.onComplete != nil {
		if err := b.onComplete(key, completed.Clone()); err != nil {
			b.logger.Printf("Block completion callback failed for %s: %v", key, err)
		}
	}
}

// Recent returns up to n completed blocks for the key, oldest to newest.
func (b *BlockBuffer) Recent(key models.WorkloadKey, n int) []models.Block {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring := b.history[key]
	if n < len(ring) {
		ring = ring[len(ring)-n:]
	}

	blocks := make([]models.Block, 0, len(ring))
	for i := range ring {
		blocks = append(blocks, ring[i].Clone())
	}
	return blocks
}

// Flatten returns every buffered measurement for the key in chronological
// order: all completed blocks followed by the open block. This is the
// canonical in-memory view of a key.
func (b *BlockBuffer) Flatten(key models.WorkloadKey) []models.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []models.Measurement
	for _, block := range b.history[key] {
		out = append(out, block.Measurements...)
	}
	if block, ok := b.current[key]; ok {
		out = append(out, block.Measurements...)
	}
	return out
}

// Keys returns every key with buffered data (open or completed).
func (b *BlockBuffer) Keys() []models.WorkloadKey {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[models.WorkloadKey]struct{}, len(b.history)+len(b.current))
	for key := range b.history {
		seen[key] = struct{}{}
	}
	for key := range b.current {
		seen[key] = struct{}{}
	}

	keys := make([]models.WorkloadKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	return keys
}

// BufferStats summarizes buffer occupancy for health reporting.
type BufferStats struct {
	TrackedKeys     int `json:"tracked_keys"`
	OpenBlocks      int `json:"open_blocks"`
	CompletedBlocks int `json:"completed_blocks"`
}

// Stats returns current buffer occupancy.
func (b *BlockBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	completed := 0
	for _, ring := range b.history {
		completed += len(ring)
	}

	keys := make(map[models.WorkloadKey]struct{})
	for key := range b.history {
		keys[key] = struct{}{}
	}
	for key := range b.current {
		keys[key] = struct{}{}
	}

	return BufferStats{
		TrackedKeys:     len(keys),
		OpenBlocks:      len(b.current),
		CompletedBlocks: completed,
	}
}
