package postgres

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `-- header comment

CREATE TABLE a (id INT);
-- between
CREATE INDEX idx ON a (id);

`
	statements := SplitStatements(script)

	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", statements[0])
	assert.Equal(t, "CREATE INDEX idx ON a (id)", statements[1])
}

func TestSplitStatements_RepositorySchema(t *testing.T) {
	content, err := os.ReadFile("../../../schema.sql")
	require.NoError(t, err)

	statements := SplitStatements(string(content))

	assert.NotEmpty(t, statements)
	for _, s := range statements {
		assert.NotContains(t, s, "--", "comments must be stripped")
	}
	joined := ""
	for _, s := range statements {
		joined += s + "\n"
	}
	assert.Contains(t, joined, "UNIQUE (area_id, index_id, image_id)")
	assert.Contains(t, joined, "UNIQUE (record_id, alert_type)")
}
