package classifiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder(t *testing.T) {
	enc := NewLabelEncoder([]string{"scan", "benign", "scan", "modbus_flood", "benign"})

	// Indices follow sorted name order, not first appearance.
	assert.Equal(t, []string{"benign", "modbus_flood", "scan"}, enc.Classes())
	assert.Equal(t, 3, enc.NumClasses())

	encoded, err := enc.Encode([]string{"scan", "benign", "modbus_flood"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, encoded)

	decoded, err := enc.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"scan", "benign", "modbus_flood"}, decoded)
}

func TestLabelEncoderRowOrderIndependent(t *testing.T) {
	a := NewLabelEncoder([]string{"b", "a", "c"})
	b := NewLabelEncoder([]string{"c", "b", "a", "a"})
	assert.Equal(t, a.Classes(), b.Classes())
}

func TestLabelEncoderUnknownLabel(t *testing.T) {
	enc := NewLabelEncoder([]string{"benign", "scan"})

	_, err := enc.Encode([]string{"benign", "never_seen"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never_seen")
}

func TestLabelEncoderDecodeOutOfRange(t *testing.T) {
	enc := NewLabelEncoder([]string{"benign", "scan"})

	_, err := enc.Decode([]int{0, 2})
	assert.Error(t, err)

	_, err = enc.Decode([]int{-1})
	assert.Error(t, err)
}
