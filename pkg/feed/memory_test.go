package feed

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafeedio/datafeed/pkg/errors"
)

func intColumn(n int) []interface{} {
	col := make([]interface{}, n)
	for i := range col {
		col[i] = i
	}
	return col
}

func labelColumn(n int) []interface{} {
	col := make([]interface{}, n)
	for i := range col {
		col[i] = fmt.Sprintf("row-%d", i)
	}
	return col
}

func TestNewMemorySource_Validation(t *testing.T) {
	tests := []struct {
		name    string
		columns [][]interface{}
		names   []string
	}{
		{
			name:    "no columns",
			columns: nil,
			names:   nil,
		},
		{
			name:    "length mismatch",
			columns: [][]interface{}{{1, 2, 3}, {"a", "b"}},
			names:   []string{"x", "y"},
		},
		{
			name:    "name count mismatch",
			columns: [][]interface{}{{1, 2, 3}},
			names:   []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewMemorySource(tt.columns, tt.names)
			assert.Nil(t, src)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestMemorySource_ConcreteScenario(t *testing.T) {
	src, err := NewMemorySource(
		[][]interface{}{{1, 2, 3}, {"a", "b", "c"}},
		[]string{"x", "y"},
		WithSeed(7),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, src.Meta())
	assert.Equal(t, 3, src.Size())

	want := []Row{{1, "a"}, {2, "b"}, {3, "c"}}
	for _, expected := range want {
		item, err := src.Next()
		require.NoError(t, err)
		require.False(t, item.IsBoundary())
		assert.Equal(t, expected, item.Row())
	}

	item, err := src.Next()
	require.NoError(t, err)
	assert.True(t, item.IsBoundary())
	assert.Equal(t, 1, src.Loop())
}

func TestMemorySource_EpochCompleteness(t *testing.T) {
	const size = 7
	src, err := NewMemorySource(
		[][]interface{}{intColumn(size)},
		[]string{"x"},
		WithSeed(42),
	)
	require.NoError(t, err)

	for epoch := 0; epoch < 5; epoch++ {
		for i := 0; i < size; i++ {
			item, err := src.Next()
			require.NoError(t, err)
			assert.False(t, item.IsBoundary(), "epoch %d item %d", epoch, i)
		}
		item, err := src.Next()
		require.NoError(t, err)
		assert.True(t, item.IsBoundary(), "epoch %d should end with a boundary", epoch)
		assert.Equal(t, epoch+1, src.Loop())
	}
}

func TestMemorySource_ShuffleRowCorrespondence(t *testing.T) {
	const size = 50
	src, err := NewMemorySource(
		[][]interface{}{intColumn(size), labelColumn(size)},
		[]string{"id", "label"},
		WithSeed(1),
	)
	require.NoError(t, err)

	src.Shuffle(3)

	columns := src.All()
	seen := make(map[int]bool, size)
	for j := 0; j < size; j++ {
		id := columns[0][j].(int)
		label := columns[1][j].(string)
		assert.Equal(t, fmt.Sprintf("row-%d", id), label, "columns desynchronized at index %d", j)
		seen[id] = true
	}
	assert.Len(t, seen, size, "shuffle must be a permutation")
}

func TestMemorySource_ShuffleAcrossEpochs(t *testing.T) {
	const size = 20
	src, err := NewMemorySource(
		[][]interface{}{intColumn(size), labelColumn(size)},
		[]string{"id", "label"},
		WithSeed(99),
	)
	require.NoError(t, err)

	// Two full epochs: correspondence must hold after every rollover shuffle.
	for i := 0; i < 2*(size+1); i++ {
		item, err := src.Next()
		require.NoError(t, err)
		if item.IsBoundary() {
			continue
		}
		row := item.Row()
		assert.Equal(t, fmt.Sprintf("row-%d", row[0].(int)), row[1].(string))
	}
}

func TestMemorySource_NextBatchSpansEpochs(t *testing.T) {
	const size = 3
	src, err := NewMemorySource(
		[][]interface{}{intColumn(size), labelColumn(size)},
		[]string{"id", "label"},
		WithSeed(5),
	)
	require.NoError(t, err)

	batch := src.NextBatch(5)
	require.Len(t, batch, 2)
	assert.Len(t, batch[0], 5)
	assert.Len(t, batch[1], 5)
	assert.GreaterOrEqual(t, src.Loop(), 1)

	// Row correspondence holds even across the silent mid-batch reshuffle.
	for j := 0; j < 5; j++ {
		id := batch[0][j].(int)
		assert.Equal(t, fmt.Sprintf("row-%d", id), batch[1][j].(string))
	}
}

func TestMemorySource_NextBatchZeroReturnsAll(t *testing.T) {
	src, err := NewMemorySource(
		[][]interface{}{{1, 2, 3}},
		[]string{"x"},
		WithSeed(3),
	)
	require.NoError(t, err)

	batch := src.NextBatch(0)
	require.Len(t, batch, 1)
	assert.Len(t, batch[0], 3)
	assert.Equal(t, 0, src.Start(), "whole-dataset batch must not advance the cursor")
}

func TestMemorySource_ShuffleDoesNotMutateInput(t *testing.T) {
	input := []interface{}{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	src, err := NewMemorySource([][]interface{}{input}, []string{"x"}, WithSeed(11))
	require.NoError(t, err)

	src.Shuffle(3)
	assert.Equal(t, []interface{}{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, input,
		"constructor must copy column contents")
}
