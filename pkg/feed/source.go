package feed

// Row is one record: an ordered tuple of values, one per column of Meta().
// Cell types are whatever the underlying store holds (strings for CSV data,
// or values produced by registered transforms).
//
// When a source is wrapped by a BatchSource, each delivered Row holds one
// cell per column, where every cell is the assembled column slice for the
// whole batch.
type Row []interface{}

// Item is the unit of advancement for a data source: either one Row, or an
// epoch boundary. A boundary signals "no more rows in the current pass; a
// new pass has begun" — it is not an error and never terminates iteration.
type Item struct {
	row      Row
	boundary bool
}

// RowItem wraps a row for delivery.
func RowItem(row Row) Item {
	return Item{row: row}
}

// BoundaryItem returns the epoch boundary marker.
func BoundaryItem() Item {
	return Item{boundary: true}
}

// IsBoundary reports whether the item marks an epoch boundary.
func (it Item) IsBoundary() bool {
	return it.boundary
}

// Row returns the carried row. It is nil for boundary items.
func (it Item) Row() Row {
	return it.row
}

// DataSource is the capability contract every source in the pipeline
// implements. Repeated calls to Next form a lazy, infinite, restartable
// sequence: a boundary item appears once per completed pass, then iteration
// continues with the next pass's rows.
//
// Next returns an error only for genuine failures (malformed input, a
// relayed worker failure); normal epoch rollover is never an error.
// Implementations are single-threaded unless documented otherwise.
type DataSource interface {
	// Meta returns the ordered column names, stable for the source lifetime.
	Meta() []string

	// Next advances the stream by one unit: one row, or one batch when
	// wrapped by a BatchSource.
	Next() (Item, error)
}
