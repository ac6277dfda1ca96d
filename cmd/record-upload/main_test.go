package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("date, amount\n2024-01-15,\"1,250.50\"\n2024-02-15,980.25\n"), 0644))

	ds, err := readCSV(path, "sales_v1")
	require.NoError(t, err)
	assert.Equal(t, "sales_v1", ds.Locator)
	assert.Equal(t, []string{"date", "amount"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "1,250.50", ds.Rows[0]["amount"])
	assert.Equal(t, "2024-02-15", ds.Rows[1]["date"])
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,amount\n"), 0644))

	ds, err := readCSV(path, "empty")
	require.NoError(t, err)
	assert.True(t, ds.IsEmpty())
}

func TestReadCSV_NoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := readCSV(path, "blank")
	assert.ErrorContains(t, err, "missing header")
}
