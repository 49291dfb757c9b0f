package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/icsguardml/pkg/dataset"
)

func TestMedianImputer(t *testing.T) {
	train := &dataset.Table{
		Columns: []string{"pkts", "bytes"},
		Rows: [][]float64{
			{1, 4},
			{2, math.NaN()},
			{math.NaN(), 8},
			{1000, 6},
		},
	}

	imp := NewMedianImputer()
	require.NoError(t, imp.Fit(train))

	assert.InDelta(t, 2, imp.Medians()["pkts"], 1e-12)
	assert.InDelta(t, 6, imp.Medians()["bytes"], 1e-12)

	got, err := imp.Apply(train)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Rows[2][0])
	assert.Equal(t, 6.0, got.Rows[1][1])

	// The training medians, not the applied table's, fill later tables.
	later := &dataset.Table{
		Columns: []string{"pkts", "bytes"},
		Rows:    [][]float64{{math.NaN(), math.NaN()}},
	}
	got, err = imp.Apply(later)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 6}}, got.Rows)

	// Inputs stay missing in the original.
	assert.True(t, math.IsNaN(later.Rows[0][0]))
}

func TestMedianImputerEmptyColumn(t *testing.T) {
	train := &dataset.Table{
		Columns: []string{"pkts", "iat_mean"},
		Rows: [][]float64{
			{1, math.NaN()},
			{2, math.NaN()},
		},
	}

	err := NewMedianImputer().Fit(train)
	require.Error(t, err)
	assert.True(t, IsEmptyColumn(err))

	var ec *EmptyColumnError
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, "iat_mean", ec.Feature)
}

func TestMedianImputerUnfitted(t *testing.T) {
	table := &dataset.Table{Columns: []string{"a"}, Rows: [][]float64{{1}}}

	_, err := NewMedianImputer().Apply(table)
	assert.Error(t, err)
}

func TestMedianImputerUnknownColumn(t *testing.T) {
	train := &dataset.Table{Columns: []string{"a"}, Rows: [][]float64{{1}}}
	imp := NewMedianImputer()
	require.NoError(t, imp.Fit(train))

	other := &dataset.Table{Columns: []string{"b"}, Rows: [][]float64{{1}}}
	_, err := imp.Apply(other)
	assert.Error(t, err)
}
