package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"toydb/bufferpool"
	"toydb/internal/engineconfig"
	"toydb/page"
	"toydb/pager"
)

func TestInspectReportsCatalogAndPages(t *testing.T) {
	dir := t.TempDir()
	cfg := engineconfig.Default(dir)

	// Seed a database with one catalog entry and one populated table page
	// before running the read-only inspector against it.
	disk, err := pager.Open(false, dir)
	require.NoError(t, err)
	bp, err := bufferpool.Open(disk, uint32(cfg.CacheCapacity))
	require.NoError(t, err)
	_, err = bp.HeaderPage().InsertRecord("widgets", 1)
	require.NoError(t, err)
	tp, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = tp.InsertTuple(page.NewTuple([]byte("row")))
	require.NoError(t, err)
	require.NoError(t, bp.Close())

	report, err := inspect(cfg, 4)
	require.NoError(t, err)
	require.True(t, strings.Contains(report, "catalog: 1 table(s)"))
	require.True(t, strings.Contains(report, "page 1: slots=1 live=1"))
}
