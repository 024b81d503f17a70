package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsAndSwapsLimit(t *testing.T) {
	query, args := Finalize("SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?,?", []interface{}{"x", 2, uint(0), uint(1)})
	require.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3 OFFSET $4", query)
	require.Equal(t, []interface{}{"x", 2, uint(1), uint(0)}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("SELECT a FROM t WHERE x = ?", []interface{}{1})
	require.Equal(t, "SELECT a FROM t WHERE x = $1", query)
	require.Equal(t, []interface{}{1}, args)
}

func TestInExpandsSlice(t *testing.T) {
	query, args, err := In("SELECT a FROM t WHERE p IN (?) AND b = ?", []string{"local", "onedrive"}, true)
	require.NoError(t, err)
	require.Equal(t, "SELECT a FROM t WHERE p IN ($1, $2) AND b = $3", query)
	require.Equal(t, []interface{}{"local", "onedrive", true}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(fmt.Errorf("plain")))
}
