package feed

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/datafeedio/datafeed/pkg/errors"
	"github.com/datafeedio/datafeed/pkg/logger"
	"github.com/datafeedio/datafeed/pkg/metrics"
)

// CSVSource adapts a one-pass streaming CSV reader into the DataSource
// contract. During the first pass each record is parsed, its requested
// fields are appended to in-memory column buffers, and the row is returned.
// Once the stream is exhausted the accumulated columns freeze into an
// internal MemorySource, the reader is released, and all subsequent epochs
// are served from memory. The one-pass parse cost is paid exactly once.
//
// Cells are kept as raw strings; type conversion is the caller's concern
// (typically via BatchSource cell transforms).
type CSVSource struct {
	meta    []string
	indices []int
	reader  *csv.Reader
	closer  io.Closer
	columns [][]interface{}
	rows    int
	mem     *MemorySource
	memOpts []MemoryOption
}

type csvOptions struct {
	delimiter rune
	memOpts   []MemoryOption
}

// CSVOption configures a CSVSource.
type CSVOption func(*csvOptions)

// WithDelimiter sets the field separator (default comma).
func WithDelimiter(d rune) CSVOption {
	return func(o *csvOptions) {
		o.delimiter = d
	}
}

// WithMemoryOptions passes options through to the MemorySource the stream
// freezes into (shuffle passes, seed).
func WithMemoryOptions(opts ...MemoryOption) CSVOption {
	return func(o *csvOptions) {
		o.memOpts = opts
	}
}

// NewCSVSource builds a source over a delimited record stream whose first
// record is a header row. The requested field names are resolved against the
// header by name, in the given order; an absent field is a schema error.
// An empty fields list selects every header column in header order.
func NewCSVSource(r io.Reader, fields []string, opts ...CSVOption) (*CSVSource, error) {
	o := csvOptions{delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	cr := csv.NewReader(r)
	cr.Comma = o.delimiter

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read CSV header")
	}

	if len(fields) == 0 {
		fields = header
	}

	position := make(map[string]int, len(header))
	for i, name := range header {
		position[name] = i
	}

	indices := make([]int, len(fields))
	for i, name := range fields {
		idx, ok := position[name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema,
				"column %q not present in CSV header", name)
		}
		indices[i] = idx
	}

	columns := make([][]interface{}, len(fields))
	for i := range columns {
		columns[i] = make([]interface{}, 0)
	}

	return &CSVSource{
		meta:    append([]string(nil), fields...),
		indices: indices,
		reader:  cr,
		columns: columns,
		memOpts: o.memOpts,
	}, nil
}

// OpenCSVFile builds a CSVSource over a file. Files ending in .gz are
// decompressed transparently. The file is closed automatically once the
// stream freezes into memory.
func OpenCSVFile(path string, fields []string, opts ...CSVOption) (*CSVSource, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open CSV file")
	}

	var r io.Reader = f
	closer := io.Closer(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open gzip stream")
		}
		r = zr
		closer = multiCloser{zr, f}
	}

	src, err := NewCSVSource(r, fields, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	src.closer = closer
	return src, nil
}

// Meta returns the ordered column names.
func (s *CSVSource) Meta() []string {
	return s.meta
}

// Materialized reports whether the stream has been exhausted and frozen
// into memory.
func (s *CSVSource) Materialized() bool {
	return s.mem != nil
}

// Next returns the next row. While the underlying stream has unread records
// it parses one, accumulates its cells, and returns it; at end of stream it
// freezes the accumulated columns into a MemorySource and returns a boundary
// item. All later calls delegate entirely to the in-memory source.
func (s *CSVSource) Next() (Item, error) {
	if s.mem != nil {
		return s.mem.Next()
	}

	record, err := s.reader.Read()
	if err == io.EOF {
		return s.materialize()
	}
	if err != nil {
		return Item{}, errors.Wrap(err, errors.ErrorTypeData, "malformed CSV record")
	}

	row := make(Row, len(s.indices))
	for i, idx := range s.indices {
		cell := record[idx]
		s.columns[i] = append(s.columns[i], cell)
		row[i] = cell
	}
	s.rows++
	metrics.RowsFetched.WithLabelValues("csv").Inc()
	return RowItem(row), nil
}

// materialize freezes the accumulated columns into a MemorySource and
// releases the streaming reader.
func (s *CSVSource) materialize() (Item, error) {
	mem, err := NewMemorySource(s.columns, s.meta, s.memOpts...)
	if err != nil {
		return Item{}, err
	}
	s.mem = mem
	s.reader = nil
	s.columns = nil
	if s.closer != nil {
		_ = s.closer.Close()
		s.closer = nil
	}
	logger.Debug("csv stream exhausted, serving from memory",
		zap.Int("rows", s.rows),
		zap.Int("columns", len(s.meta)))
	metrics.EpochsCompleted.WithLabelValues("csv").Inc()
	return BoundaryItem(), nil
}

// multiCloser closes a decompressor and its underlying file in order.
type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
