package feed

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafeedio/datafeed/pkg/errors"
)

func memorySourceForBatch(t *testing.T, size int) *MemorySource {
	t.Helper()
	src, err := NewMemorySource(
		[][]interface{}{intColumn(size), labelColumn(size)},
		[]string{"id", "label"},
		WithSeed(17),
	)
	require.NoError(t, err)
	return src
}

func TestNewBatchSource_NegativeSize(t *testing.T) {
	src := memorySourceForBatch(t, 3)
	batched, err := NewBatchSource(src, -1)
	assert.Nil(t, batched)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestBatchSource_PartitionLaw(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		batchSize int
		wantSizes []int
	}{
		{name: "uneven split", rows: 5, batchSize: 2, wantSizes: []int{2, 2, 1}},
		{name: "even split", rows: 6, batchSize: 3, wantSizes: []int{3, 3}},
		{name: "single batch", rows: 2, batchSize: 4, wantSizes: []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := memorySourceForBatch(t, tt.rows)
			batched, err := NewBatchSource(src, tt.batchSize)
			require.NoError(t, err)

			var ids []interface{}
			boundaries := 0
			for boundaries == 0 {
				item, err := batched.Next()
				require.NoError(t, err)
				if item.IsBoundary() {
					boundaries++
					break
				}
				batch := item.Row()
				require.Len(t, batch, 2)
				idColumn := batch[0].([]interface{})
				size := len(idColumn)
				require.Equal(t, tt.wantSizes[0], size)
				tt.wantSizes = tt.wantSizes[1:]
				ids = append(ids, idColumn...)
			}

			assert.Empty(t, tt.wantSizes, "missing batches")
			assert.Equal(t, 1, boundaries)
			require.Len(t, ids, tt.rows)
			// First pass fetch order is insertion order.
			for i, id := range ids {
				assert.Equal(t, i, id.(int))
			}
		})
	}
}

func TestBatchSource_PartialBatchDefersBoundary(t *testing.T) {
	src := memorySourceForBatch(t, 3)
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	item, err := batched.Next()
	require.NoError(t, err)
	require.False(t, item.IsBoundary())
	assert.Len(t, item.Row()[0].([]interface{}), 2)

	// The partial batch comes first, never an error or a boundary.
	item, err = batched.Next()
	require.NoError(t, err)
	require.False(t, item.IsBoundary())
	assert.Len(t, item.Row()[0].([]interface{}), 1)

	// Boundary deferred by exactly one call, consuming no input.
	item, err = batched.Next()
	require.NoError(t, err)
	assert.True(t, item.IsBoundary())

	// The stream continues with the next pass.
	item, err = batched.Next()
	require.NoError(t, err)
	require.False(t, item.IsBoundary())
	assert.Len(t, item.Row()[0].([]interface{}), 2)
}

func TestBatchSource_BoundaryOnFirstPull(t *testing.T) {
	src := memorySourceForBatch(t, 4)
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		item, err := batched.Next()
		require.NoError(t, err)
		require.False(t, item.IsBoundary())
		assert.Len(t, item.Row()[0].([]interface{}), 2)
	}

	// The pass divided evenly, so the boundary arrives alone: no empty batch.
	item, err := batched.Next()
	require.NoError(t, err)
	assert.True(t, item.IsBoundary())
}

func TestBatchSource_ZeroSizePassthrough(t *testing.T) {
	src := memorySourceForBatch(t, 2)
	batched, err := NewBatchSource(src, 0)
	require.NoError(t, err)

	require.NoError(t, batched.AddCellTransforms([]string{"id"},
		func(cell interface{}) (interface{}, error) {
			return cell.(int) * 10, nil
		}))

	item, err := batched.Next()
	require.NoError(t, err)
	assert.Equal(t, Row{0, "row-0"}, item.Row())

	item, err = batched.Next()
	require.NoError(t, err)
	assert.Equal(t, Row{10, "row-1"}, item.Row())

	item, err = batched.Next()
	require.NoError(t, err)
	assert.True(t, item.IsBoundary(), "raw boundary passes through unbatched")
}

func TestBatchSource_CellTransformOrdering(t *testing.T) {
	src := memorySourceForBatch(t, 2)
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	f := func(cell interface{}) (interface{}, error) {
		return cell.(int) + 1, nil
	}
	g := func(cell interface{}) (interface{}, error) {
		return cell.(int) * 2, nil
	}
	require.NoError(t, batched.AddCellTransforms([]string{"id"}, f))
	require.NoError(t, batched.AddCellTransforms([]string{"id"}, g))

	item, err := batched.Next()
	require.NoError(t, err)
	ids := item.Row()[0].([]interface{})
	// g(f(x)) = (x+1)*2
	assert.Equal(t, []interface{}{2, 4}, ids)
}

func TestBatchSource_BatchTransformOrdering(t *testing.T) {
	src := memorySourceForBatch(t, 2)
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	h := func(column []interface{}) ([]interface{}, error) {
		out := make([]interface{}, len(column))
		for i, v := range column {
			out[i] = fmt.Sprintf("h(%v)", v)
		}
		return out, nil
	}
	k := func(column []interface{}) ([]interface{}, error) {
		out := make([]interface{}, len(column))
		for i, v := range column {
			out[i] = fmt.Sprintf("k(%v)", v)
		}
		return out, nil
	}
	require.NoError(t, batched.AddBatchTransforms([]string{"label"}, h, k))

	item, err := batched.Next()
	require.NoError(t, err)
	labels := item.Row()[1].([]interface{})
	assert.Equal(t, []interface{}{"k(h(row-0))", "k(h(row-1))"}, labels)
}

func TestBatchSource_CellTransformBeforeGrouping(t *testing.T) {
	// Cell transforms see raw CSV strings; batch transforms see the
	// already-converted column.
	src, err := NewCSVSource(
		strings.NewReader("v\n1\n2\n3\n4\n"),
		[]string{"v"},
		WithMemoryOptions(WithSeed(3)),
	)
	require.NoError(t, err)

	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)
	require.NoError(t, batched.AddCellTransforms([]string{"v"},
		func(cell interface{}) (interface{}, error) {
			return strconv.Atoi(cell.(string))
		}))
	require.NoError(t, batched.AddBatchTransforms([]string{"v"},
		func(column []interface{}) ([]interface{}, error) {
			sum := 0
			for _, v := range column {
				sum += v.(int)
			}
			return []interface{}{sum}, nil
		}))

	item, err := batched.Next()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{3}, item.Row()[0].([]interface{}))

	item, err = batched.Next()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{7}, item.Row()[0].([]interface{}))
}

func TestBatchSource_TransformErrorPropagatesUnchanged(t *testing.T) {
	src := memorySourceForBatch(t, 3)
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	wantErr := errors.New(errors.ErrorTypeData, "bad cell")
	require.NoError(t, batched.AddCellTransforms([]string{"id"},
		func(cell interface{}) (interface{}, error) {
			return nil, wantErr
		}))

	_, err = batched.Next()
	assert.Equal(t, error(wantErr), err)
}

func TestBatchSource_FetchErrorPropagatesUnchanged(t *testing.T) {
	wantErr := errors.New(errors.ErrorTypeData, "upstream failure")
	src := &scriptedSource{
		meta:  []string{"x"},
		steps: []scriptedStep{rowStep(1), errStep(wantErr)},
	}
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	_, err = batched.Next()
	assert.Equal(t, error(wantErr), err)
}

func TestBatchSource_UnknownColumnRegistration(t *testing.T) {
	src := memorySourceForBatch(t, 2)
	batched, err := NewBatchSource(src, 2)
	require.NoError(t, err)

	err = batched.AddCellTransforms([]string{"absent"},
		func(cell interface{}) (interface{}, error) { return cell, nil })
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	err = batched.AddBatchTransforms([]string{"absent"},
		func(column []interface{}) ([]interface{}, error) { return column, nil })
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}
