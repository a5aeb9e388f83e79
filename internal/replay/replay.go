// Package replay holds the training samples produced by self-play: an
// in-memory bounded ring buffer for serving minibatches, and a disk writer
// that shards samples out to durable storage as they accumulate.
package replay

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Source identifies where a ReplaySample came from.
type Source string

const (
	SourceSelfplay  Source = "selfplay"
	SourceAtlasSeed Source = "atlas_seed"
)

// ReplaySample is one (state, search policy, outcome) training example.
type ReplaySample struct {
	GameID      string      `msgpack:"game_id"`
	StatePlanes [][][]float64 `msgpack:"state_planes"`
	TargetPi    []float64   `msgpack:"target_pi"`
	TargetZ     float64     `msgpack:"target_z"`
	Ply         int         `msgpack:"ply"`
	Source      Source      `msgpack:"source"`
	AtlasTarget []float64   `msgpack:"atlas_target,omitempty"`
}

// Buffer is a capacity-bounded FIFO ring buffer of samples, equivalent to a
// deque with maxlen: once full, adding a sample evicts the oldest.
type Buffer struct {
	capacity int
	data     []ReplaySample
	next     int
	full     bool
}

// NewBuffer creates a buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{capacity: capacity, data: make([]ReplaySample, capacity)}
}

// Add appends a sample, evicting the oldest once the buffer is at capacity.
func (b *Buffer) Add(sample ReplaySample) {
	b.data[b.next] = sample
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
}

// Extend adds every sample in samples, in order.
func (b *Buffer) Extend(samples []ReplaySample) {
	for _, s := range samples {
		b.Add(s)
	}
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	if b.full {
		return b.capacity
	}
	return b.next
}

// Sample draws batchSize samples without replacement (or every held sample,
// if fewer than batchSize are available), in a random order governed by rng.
func (b *Buffer) Sample(batchSize int, rng *rand.Rand) []ReplaySample {
	n := b.Len()
	if n == 0 {
		return nil
	}
	if batchSize > n {
		batchSize = n
	}
	perm := rng.Perm(n)[:batchSize]
	out := make([]ReplaySample, batchSize)
	for i, idx := range perm {
		out[i] = b.data[idx]
	}
	return out
}

var shardPattern = regexp.MustCompile(`^chunk_(\d+)\.mpk$`)

// DiskWriter accumulates samples and flushes them to numbered msgpack-encoded
// shard files under baseDir/gameID once shardSize samples have queued.
type DiskWriter struct {
	gameID     string
	shardSize  int
	baseDir    string
	pending    []ReplaySample
	shardIndex int
}

// NewDiskWriter creates a writer rooted at baseDir/gameID, creating that
// directory if it does not already exist, and resuming shard numbering from
// whatever chunks are already present.
func NewDiskWriter(baseDir, gameID string, shardSize int) (*DiskWriter, error) {
	if shardSize <= 0 {
		shardSize = 2048
	}
	dir := filepath.Join(baseDir, gameID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("replay: creating shard dir: %w", err)
	}
	w := &DiskWriter{gameID: gameID, shardSize: shardSize, baseDir: dir}
	idx, err := w.nextIndex()
	if err != nil {
		return nil, err
	}
	w.shardIndex = idx
	return w, nil
}

func (w *DiskWriter) nextIndex() (int, error) {
	entries, err := os.ReadDir(w.baseDir)
	if err != nil {
		return 0, fmt.Errorf("replay: listing shard dir: %w", err)
	}
	var indices []int
	for _, e := range entries {
		m := shardPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	if len(indices) == 0 {
		return 0, nil
	}
	sort.Ints(indices)
	return indices[len(indices)-1] + 1, nil
}

// Add queues a sample, flushing automatically once shardSize samples have
// accumulated.
func (w *DiskWriter) Add(sample ReplaySample) error {
	w.pending = append(w.pending, sample)
	if len(w.pending) >= w.shardSize {
		return w.Flush()
	}
	return nil
}

// Extend queues every sample in samples, in order.
func (w *DiskWriter) Extend(samples []ReplaySample) error {
	for _, s := range samples {
		if err := w.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any queued samples to a new shard file and resets the queue.
// A no-op when nothing is pending.
func (w *DiskWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	path := filepath.Join(w.baseDir, fmt.Sprintf("chunk_%06d.mpk", w.shardIndex))
	payload, err := msgpack.Marshal(w.pending)
	if err != nil {
		return fmt.Errorf("replay: encoding shard: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("replay: writing shard: %w", err)
	}
	w.shardIndex++
	w.pending = nil
	return nil
}
