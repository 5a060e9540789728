package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ValueAndScan(t *testing.T) {
	v, err := JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSONMap{"processed": 2}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"processed":2}`, string(v.([]byte)))

	var m JSONMap
	require.NoError(t, m.Scan(`{"errors":1}`))
	assert.Equal(t, float64(1), m["errors"])

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)

	assert.Error(t, m.Scan(42))
}

func TestCreateListResponse_CountsItems(t *testing.T) {
	resp := CreateListResponse([]string{"a", "b"})
	require.NotNil(t, resp.Meta.Count)
	assert.Equal(t, 2, *resp.Meta.Count)
	assert.True(t, resp.Success)

	empty := CreateListResponse[int](nil)
	assert.Equal(t, []int{}, empty.Data)
	assert.Equal(t, 0, *empty.Meta.Count)
}
