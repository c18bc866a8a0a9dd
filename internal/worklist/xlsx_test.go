package worklist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorklistFile(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, cells := range rows {
		require.NoError(t, f.SetSheetRow(sheet, cellRef(i+1), &cells))
	}
	path := filepath.Join(t.TempDir(), "links.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func cellRef(row int) string {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return cell
}

func TestLoadAllRows(t *testing.T) {
	t.Parallel()

	path := writeWorklistFile(t, [][]any{
		{"No.", "App Link"},
		{1, "https://example.com/app/alpha"},
		{2, "https://example.com/app/beta"},
		{3, "https://example.com/app/gamma"},
	})

	src, err := NewXLSXSource(Config{Path: path})
	require.NoError(t, err)
	items, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 3)
	require.Equal(t, 1, items[0].Row)
	require.Equal(t, "https://example.com/app/alpha", items[0].URL)
	require.Equal(t, 3, items[2].Row)
}

func TestLoadRowRangeIsInclusive(t *testing.T) {
	t.Parallel()

	path := writeWorklistFile(t, [][]any{
		{"No.", "App Link"},
		{1, "https://example.com/app/1"},
		{2, "https://example.com/app/2"},
		{3, "https://example.com/app/3"},
		{4, "https://example.com/app/4"},
		{5, "https://example.com/app/5"},
	})

	src, err := NewXLSXSource(Config{Path: path, Start: 2, End: 4})
	require.NoError(t, err)
	items, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, items, 3)
	require.Equal(t, 2, items[0].Row)
	require.Equal(t, 4, items[2].Row)
}

func TestLoadSkipsBlankLinkCells(t *testing.T) {
	t.Parallel()

	path := writeWorklistFile(t, [][]any{
		{"No.", "App Link"},
		{1, "https://example.com/app/1"},
		{2, "   "},
		{3, "https://example.com/app/3"},
		{4},
	})

	src, err := NewXLSXSource(Config{Path: path})
	require.NoError(t, err)
	items, err := src.Load(context.Background())
	require.NoError(t, err)

	// Blank cells do not consume a row identity.
	require.Len(t, items, 2)
	require.Equal(t, 1, items[0].Row)
	require.Equal(t, 2, items[1].Row)
	require.Equal(t, "https://example.com/app/3", items[1].URL)
}

func TestLoadHeaderOnlyFile(t *testing.T) {
	t.Parallel()

	path := writeWorklistFile(t, [][]any{{"No.", "App Link"}})

	src, err := NewXLSXSource(Config{Path: path})
	require.NoError(t, err)
	items, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	src, err := NewXLSXSource(Config{Path: filepath.Join(t.TempDir(), "absent.xlsx")})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	require.Error(t, err)
}

func TestLoadCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src, err := NewXLSXSource(Config{Path: "whatever.xlsx"})
	require.NoError(t, err)
	_, err = src.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewXLSXSourceValidation(t *testing.T) {
	t.Parallel()

	_, err := NewXLSXSource(Config{})
	require.Error(t, err)

	_, err = NewXLSXSource(Config{Path: "links.xlsx", Start: -1})
	require.Error(t, err)

	_, err = NewXLSXSource(Config{Path: "links.xlsx", Start: 5, End: 2})
	require.Error(t, err)
}
