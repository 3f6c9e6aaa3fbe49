package feed

import (
	"github.com/datafeedio/datafeed/pkg/errors"
	"github.com/datafeedio/datafeed/pkg/metrics"
)

// CellTransform rewrites one scalar cell at row-fetch time, before batch
// grouping (e.g. string-to-float parsing, token lookup).
type CellTransform func(cell interface{}) (interface{}, error)

// BatchTransform rewrites one assembled column once per batch (e.g.
// stacking, padding to a common length).
type BatchTransform func(column []interface{}) ([]interface{}, error)

// BatchSource wraps a DataSource and groups its rows into fixed-size
// batches, applying registered per-cell and per-column transform chains.
// A batch is delivered as a single Item whose row holds one cell per
// column, each cell being the transformed column slice.
//
// When the wrapped source emits a boundary mid-batch, the partial batch is
// returned immediately and the boundary is deferred to the following call,
// so a pass always ends with its rows fully delivered before the boundary.
type BatchSource struct {
	src       DataSource
	batchSize int
	meta      []string
	index     map[string]int
	cellFns   map[string][]CellTransform
	batchFns  map[string][]BatchTransform
	eof       bool
}

// NewBatchSource wraps src with batch assembly. A batch size of 0 means no
// batching: rows and boundaries pass through one at a time.
func NewBatchSource(src DataSource, batchSize int) (*BatchSource, error) {
	if batchSize < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"batch size must be >= 0, got %d", batchSize)
	}

	meta := src.Meta()
	index := make(map[string]int, len(meta))
	for i, name := range meta {
		index[name] = i
	}

	return &BatchSource{
		src:       src,
		batchSize: batchSize,
		meta:      meta,
		index:     index,
		cellFns:   make(map[string][]CellTransform),
		batchFns:  make(map[string][]BatchTransform),
	}, nil
}

// BatchSize returns the configured batch size.
func (b *BatchSource) BatchSize() int {
	return b.batchSize
}

// Meta returns the ordered column names of the wrapped source.
func (b *BatchSource) Meta() []string {
	return b.meta
}

// AddCellTransforms appends transforms to the cell chain of each named
// column. Chains run in registration order on every cell as its row is
// fetched from the wrapped source. Naming a column absent from the schema
// is a schema error.
func (b *BatchSource) AddCellTransforms(columns []string, fns ...CellTransform) error {
	for _, name := range columns {
		if _, ok := b.index[name]; !ok {
			return errors.Newf(errors.ErrorTypeSchema,
				"column %q not present in source schema", name)
		}
	}
	for _, name := range columns {
		b.cellFns[name] = append(b.cellFns[name], fns...)
	}
	return nil
}

// AddBatchTransforms appends transforms to the batch chain of each named
// column. Chains run in registration order on the assembled column, once
// per batch. Naming a column absent from the schema is a schema error.
func (b *BatchSource) AddBatchTransforms(columns []string, fns ...BatchTransform) error {
	for _, name := range columns {
		if _, ok := b.index[name]; !ok {
			return errors.Newf(errors.ErrorTypeSchema,
				"column %q not present in source schema", name)
		}
	}
	for _, name := range columns {
		b.batchFns[name] = append(b.batchFns[name], fns...)
	}
	return nil
}

// Next returns the next batch, or the next row when the batch size is 0.
// An empty batch is never returned: a boundary on the very first pull is
// forwarded as-is, and a boundary after that yields the partial batch with
// the boundary deferred by one call. Errors from the wrapped source or from
// a transform propagate unchanged; there is no retry.
func (b *BatchSource) Next() (Item, error) {
	if b.batchSize == 0 {
		return b.nextRow()
	}

	if b.eof {
		b.eof = false
		return BoundaryItem(), nil
	}

	columns := make([][]interface{}, len(b.meta))
	for i := range columns {
		columns[i] = make([]interface{}, 0, b.batchSize)
	}

	collected := 0
	for collected < b.batchSize {
		item, err := b.nextRow()
		if err != nil {
			return Item{}, err
		}
		if item.IsBoundary() {
			if collected == 0 {
				return BoundaryItem(), nil
			}
			b.eof = true
			break
		}
		for i, cell := range item.Row() {
			columns[i] = append(columns[i], cell)
		}
		collected++
	}

	batch := make(Row, len(b.meta))
	for i, name := range b.meta {
		column := columns[i]
		for _, fn := range b.batchFns[name] {
			var err error
			column, err = fn(column)
			if err != nil {
				return Item{}, err
			}
		}
		batch[i] = column
	}

	if collected < b.batchSize {
		metrics.BatchesAssembled.WithLabelValues("partial").Inc()
	} else {
		metrics.BatchesAssembled.WithLabelValues("full").Inc()
	}
	return RowItem(batch), nil
}

// nextRow pulls one row from the wrapped source and applies the cell
// transform chains. Boundaries pass through untouched.
func (b *BatchSource) nextRow() (Item, error) {
	item, err := b.src.Next()
	if err != nil {
		return Item{}, err
	}
	if item.IsBoundary() {
		return item, nil
	}

	in := item.Row()
	out := make(Row, len(in))
	for i, name := range b.meta {
		cell := in[i]
		for _, fn := range b.cellFns[name] {
			cell, err = fn(cell)
			if err != nil {
				return Item{}, err
			}
		}
		out[i] = cell
	}
	return RowItem(out), nil
}
