package repo

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_EmptyDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "")
	require.ErrorIs(t, err, ErrNoDSN)
}

func TestNewPool_BadDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse dsn")
}

func TestSchema_Tables(t *testing.T) {
	all := strings.Join(schema, "\n")
	for _, table := range []string{"pipeline_runs", "stage_results", "worldgen_jobs"} {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	s := nullString("x")
	require.NotNil(t, s)
	assert.Equal(t, "x", *s)

	assert.Equal(t, "", derefString(nil))
	assert.Equal(t, "x", derefString(s))
}
