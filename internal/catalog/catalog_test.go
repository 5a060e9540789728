package catalog

import (
	"testing"

	"monitoring-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndices_EmbeddedCatalog(t *testing.T) {
	indices, err := Indices()
	require.NoError(t, err)
	require.Len(t, indices, 11)

	codes := make([]string, 0, len(indices))
	for _, idx := range indices {
		codes = append(codes, idx.Code)
		assert.NotEmpty(t, idx.Name, idx.Code)
		assert.True(t, idx.IsActive, idx.Code)
	}
	assert.Contains(t, codes, models.IndexNDVI)
	assert.Contains(t, codes, models.IndexOSAVI)
	assert.Contains(t, codes, models.IndexCIRE)
}

func TestParse_NormalizesAndRejectsDuplicates(t *testing.T) {
	indices, err := parse([]byte("indices:\n  - code: ndvi\n    name: n\n"))
	require.NoError(t, err)
	assert.Equal(t, "NDVI", indices[0].Code)

	_, err = parse([]byte("indices:\n  - code: ndvi\n  - code: NDVI\n"))
	assert.ErrorContains(t, err, "duplicate code NDVI")

	_, err = parse([]byte("indices:\n  - name: nameless\n"))
	assert.Error(t, err)
}
