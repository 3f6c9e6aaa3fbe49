package feed

import (
	"math/rand"
	"time"

	"github.com/datafeedio/datafeed/pkg/errors"
	"github.com/datafeedio/datafeed/pkg/metrics"
	"github.com/datafeedio/datafeed/pkg/pool"
)

// defaultShufflePasses is the number of independent permutations applied at
// each epoch rollover to decorrelate the iteration order from the input order.
const defaultShufflePasses = 3

// MemorySource holds an entire dataset as parallel columns in memory and
// iterates its rows in order, reshuffling and emitting a boundary item at
// each epoch rollover. It is single-threaded and performs no I/O after
// construction.
type MemorySource struct {
	meta    []string
	columns [][]interface{}
	size    int
	start   int
	loop    int
	passes  int
	rng     *rand.Rand
}

// MemoryOption configures a MemorySource.
type MemoryOption func(*MemorySource)

// WithSeed fixes the random permutation sequence, making shuffles
// deterministic. Without it the source is time-seeded.
func WithSeed(seed int64) MemoryOption {
	return func(s *MemorySource) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithShufflePasses overrides the number of permutation passes applied at
// each epoch rollover.
func WithShufflePasses(passes int) MemoryOption {
	return func(s *MemorySource) {
		if passes > 0 {
			s.passes = passes
		}
	}
}

// NewMemorySource constructs a source over the given columns. Every column
// must have the same length and there must be exactly one name per column.
// The column contents are copied, so later shuffles do not mutate the
// caller's slices.
func NewMemorySource(columns [][]interface{}, names []string, opts ...MemoryOption) (*MemorySource, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "at least one column is required")
	}
	if len(names) != len(columns) {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"got %d columns but %d column names", len(columns), len(names))
	}

	size := len(columns[0])
	owned := make([][]interface{}, len(columns))
	for i, col := range columns {
		if len(col) != size {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"column %q has %d values, expected %d", names[i], len(col), size)
		}
		owned[i] = make([]interface{}, size)
		copy(owned[i], col)
	}

	s := &MemorySource{
		meta:    append([]string(nil), names...),
		columns: owned,
		size:    size,
		passes:  defaultShufflePasses,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Meta returns the ordered column names.
func (s *MemorySource) Meta() []string {
	return s.meta
}

// Size returns the number of rows held in memory.
func (s *MemorySource) Size() int {
	return s.size
}

// Start returns the current cursor position within the epoch.
func (s *MemorySource) Start() int {
	return s.start
}

// Loop returns the number of completed epochs.
func (s *MemorySource) Loop() int {
	return s.loop
}

// Next returns the row at the cursor and advances it. When the cursor
// reaches the end of the dataset, the source reshuffles, resets the cursor,
// increments the loop counter, and returns a boundary item.
func (s *MemorySource) Next() (Item, error) {
	if s.start >= s.size {
		s.start = 0
		s.loop++
		s.Shuffle(s.passes)
		metrics.EpochsCompleted.WithLabelValues("memory").Inc()
		return BoundaryItem(), nil
	}
	row := make(Row, len(s.columns))
	for i, col := range s.columns {
		row[i] = col[s.start]
	}
	s.start++
	metrics.RowsFetched.WithLabelValues("memory").Inc()
	return RowItem(row), nil
}

// NextBatch returns exactly n rows as per-column slices, pulling low-level
// chunks and concatenating across epoch boundaries as needed; a batch may
// span the wrap-around point, reshuffling silently mid-assembly. Unlike
// Next, it never surfaces a boundary item to the caller.
//
// With n == 0 the whole dataset is returned without copying and without
// advancing the cursor.
func (s *MemorySource) NextBatch(n int) [][]interface{} {
	if n <= 0 || s.size == 0 {
		return s.All()
	}
	batch := make([][]interface{}, len(s.columns))
	for i := range batch {
		batch[i] = make([]interface{}, 0, n)
	}
	for len(batch[0]) < n {
		chunk := s.nextChunk(n - len(batch[0]))
		for i := range batch {
			batch[i] = append(batch[i], chunk[i]...)
			pool.PutCellSlice(chunk[i])
		}
	}
	return batch
}

// nextChunk copies up to n contiguous rows into pooled scratch slices.
// A chunk that hits the end of the data wraps the cursor and counts a loop;
// resuming at offset 0 after a completed loop triggers a reshuffle first.
func (s *MemorySource) nextChunk(n int) [][]interface{} {
	if s.start == 0 && s.loop != 0 {
		s.Shuffle(s.passes)
	}
	chunk := make([][]interface{}, len(s.columns))
	end := s.start + n
	if end < s.size {
		for i, col := range s.columns {
			chunk[i] = append(pool.GetCellSlice(n), col[s.start:end]...)
		}
		s.start = end
	} else {
		for i, col := range s.columns {
			chunk[i] = append(pool.GetCellSlice(s.size-s.start), col[s.start:]...)
		}
		s.start = 0
		s.loop++
	}
	return chunk
}

// Shuffle applies the given number of independent random permutations in
// sequence. Each pass applies one identical permutation to every column,
// preserving row correspondence.
func (s *MemorySource) Shuffle(passes int) *MemorySource {
	for p := 0; p < passes; p++ {
		perm := s.rng.Perm(s.size)
		for i, col := range s.columns {
			shuffled := make([]interface{}, s.size)
			for j, k := range perm {
				shuffled[j] = col[k]
			}
			s.columns[i] = shuffled
		}
	}
	return s
}

// All returns the underlying column slices without copying.
func (s *MemorySource) All() [][]interface{} {
	return s.columns
}
