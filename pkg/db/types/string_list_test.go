package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListScan(t *testing.T) {
	var list StringList
	require.NoError(t, list.Scan(`["a.png","b.png"]`))
	assert.Equal(t, StringList{"a.png", "b.png"}, list)

	require.NoError(t, list.Scan([]byte("null")))
	assert.Equal(t, StringList{}, list)

	require.NoError(t, list.Scan(nil))
	assert.Empty(t, list)

	assert.Error(t, list.Scan(42))
}

func TestStringListValueNil(t *testing.T) {
	var list StringList
	v, err := list.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestStringListWithout(t *testing.T) {
	list := StringList{"a", "b", "a", "c"}
	assert.True(t, list.Contains("b"))
	assert.Equal(t, StringList{"b", "c"}, list.Without("a"))
	assert.False(t, list.Without("b").Contains("b"))
}
