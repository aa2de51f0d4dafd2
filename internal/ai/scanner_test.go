package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerEmitsMinimalBalancedObject(t *testing.T) {
	var s Scanner
	objects := s.Feed(`Some prose before {"a": {"b": 1}} and after`)
	require.Len(t, objects, 1)
	assert.Equal(t, `{"a": {"b": 1}}`, objects[0])
}

func TestScannerNoBracesEmitsNothing(t *testing.T) {
	var s Scanner
	assert.Empty(t, s.Feed("just some markdown **text** with no objects"))
	assert.False(t, s.Pending())
}

func TestScannerMultipleObjectsInOrder(t *testing.T) {
	var s Scanner
	objects := s.Feed(`[{"first": 1},{"second": 2}]`)
	require.Len(t, objects, 2)
	assert.Equal(t, `{"first": 1}`, objects[0])
	assert.Equal(t, `{"second": 2}`, objects[1])
}

func TestScannerChunkBoundaryInvariance(t *testing.T) {
	input := `noise {"a": {"deep": true}} between {"b": 2} tail`

	var bulk Scanner
	expected := bulk.Feed(input)
	require.Len(t, expected, 2)

	for _, size := range []int{1, 2, 3, 5, 7, 11} {
		var s Scanner
		var got []string
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			got = append(got, s.Feed(input[i:end])...)
		}
		assert.Equal(t, expected, got, "chunk size %d", size)
	}
}

func TestScannerStrayClosersAreNoOps(t *testing.T) {
	var s Scanner
	objects := s.Feed(`}}} {"a": 1}`)
	require.Len(t, objects, 1)
	assert.Equal(t, `{"a": 1}`, objects[0])
}

func TestScannerObjectSplitAcrossFeeds(t *testing.T) {
	var s Scanner
	assert.Empty(t, s.Feed(`{"a": `))
	assert.True(t, s.Pending())

	objects := s.Feed(`1}`)
	require.Len(t, objects, 1)
	assert.Equal(t, `{"a": 1}`, objects[0])
	assert.False(t, s.Pending())
}
