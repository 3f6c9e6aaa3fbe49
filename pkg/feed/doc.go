// Package feed implements a composable data-feeding pipeline for iterative
// training and evaluation workloads. A pipeline produces an unbounded,
// restartable stream of rows (or fixed-size batches of rows) from an
// underlying dataset, overlapping slow I/O with consumption via a background
// prefetch worker.
//
// The package provides:
//   - DataSource: the row-stream contract shared by all sources
//   - MemorySource: an in-memory columnar dataset with epoch management
//   - CSVSource: a one-pass CSV reader that freezes into a MemorySource
//   - BatchSource: fixed-size batch assembly with transform chains
//   - PrefetchSource: threaded read-ahead with a bounded handoff queue
//
// Sources compose as decorators; composition order is caller-controlled:
//
//	src, err := feed.OpenCSVFile("train.csv.gz", []string{"text", "label"})
//	if err != nil {
//	    return err
//	}
//	batched, err := feed.NewBatchSource(src, 64)
//	if err != nil {
//	    return err
//	}
//	buffered, err := feed.NewPrefetchSource(batched, 10000)
//	if err != nil {
//	    return err
//	}
//	defer buffered.Close()
//
//	for {
//	    item, err := buffered.Next()
//	    if err != nil {
//	        return err
//	    }
//	    if item.IsBoundary() {
//	        // one full pass completed; the stream continues
//	        continue
//	    }
//	    consume(item.Row())
//	}
package feed
