package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixtureSummary(t *testing.T) *Summary {
	t.Helper()
	summary, err := ParseTraceFile(filepath.Join("testdata", "kernel_trace.csv"), DefaultOptions(), nil)
	require.NoError(t, err)
	return summary
}

func TestDisplayName(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxNameWithShape = 10
	opts.MaxNameWithoutShape = 12

	tests := []struct {
		name string
		key  GroupKey
		want string
	}{
		{"short with shape", shapeKey("gemm", "1", "2", "3"), "gemm [M=1, N=2, K=3]"},
		{"long with shape", shapeKey("abcdefghijklmnop", "1", "2", "3"), "abcdefg... [M=1, N=2, K=3]"},
		{"short without shape", bareKey("copy"), "copy"},
		{"exact limit without shape", bareKey("abcdefghijkl"), "abcdefghijkl"},
		{"long without shape", bareKey("abcdefghijklmnop"), "abcdefghi..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.key, opts))
		})
	}
}

func TestSummaryRows(t *testing.T) {
	summary := fixtureSummary(t)

	rows := summary.Rows(DefaultOptions())
	require.Len(t, rows, 3)

	assert.Equal(t, "test_kernel_A [M=1024, N=2048, K=512]", rows[0].Name)
	assert.Equal(t, "M=1024, N=2048, K=512", rows[0].Shape)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, 1500.0, rows[0].AvgNs)
	assert.InDelta(t, 60.0, rows[0].Percent, 1e-9)

	assert.Equal(t, "test_kernel_A [M=128, N=128, K=128]", rows[1].Name)
	assert.InDelta(t, 30.0, rows[1].Percent, 1e-9)

	assert.Equal(t, "test_kernel_B", rows[2].Name)
	assert.Empty(t, rows[2].Shape)
	assert.InDelta(t, 10.0, rows[2].Percent, 1e-9)

	opts := DefaultOptions()
	opts.Top = 2
	assert.Len(t, summary.Rows(opts), 2)
}

func TestSummaryPercentZeroTotal(t *testing.T) {
	summary := &Summary{
		Groups: []GroupStats{{Key: bareKey("idle"), Count: 3}},
	}

	rows := summary.Rows(DefaultOptions())
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].Percent)
	assert.Equal(t, 0.0, rows[0].AvgNs)
}

func TestSummarySortStableOnTies(t *testing.T) {
	input := traceHeader + "\nfirst,1,10\nsecond,2,10\nbig,3,50\n"
	summary := aggregateString(t, input)

	require.Len(t, summary.Groups, 3)
	assert.Equal(t, "big", summary.Groups[0].Key.Kernel)
	assert.Equal(t, "first", summary.Groups[1].Key.Kernel)
	assert.Equal(t, "second", summary.Groups[2].Key.Kernel)
}

func TestWriteTable(t *testing.T) {
	summary := fixtureSummary(t)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteTable(&buf, DefaultOptions(), false))
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "Kernel Name"))
	assert.Equal(t, strings.Repeat("-", 170), lines[1])

	assert.Regexp(t, regexp.MustCompile(`test_kernel_A \[M=1024, N=2048, K=512\].*\|\s*2\s*\|`), out)
	assert.Contains(t, lines[2], "|           0.003 |           1.500 |    60.0%")
	assert.Contains(t, out, "test_kernel_A [M=128, N=128, K=128]")
	assert.Contains(t, lines[4], "test_kernel_B")
	assert.Contains(t, lines[4], "|        1 |           0.001 |           0.500 |    10.0%")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteCSV(t *testing.T) {
	summary := fixtureSummary(t)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteCSV(&buf, DefaultOptions()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "kernel_name", records[0][0])
	assert.Equal(t, []string{
		"test_kernel_A", "M=1024, N=2048, K=512", "2", "0.003", "1.500", "1.000", "2.000", "0.500", "60.0",
	}, records[1])
	assert.Equal(t, "", records[3][1])
}

func TestWriteJSON(t *testing.T) {
	summary := fixtureSummary(t)

	var buf bytes.Buffer
	require.NoError(t, summary.WriteJSON(&buf, DefaultOptions()))

	var doc struct {
		TotalNs int64       `json:"total_duration_ns"`
		Stats   ParseStats  `json:"stats"`
		Groups  []ReportRow `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, int64(5000), doc.TotalNs)
	assert.Equal(t, 4, doc.Stats.DataRows)
	require.Len(t, doc.Groups, 3)
	assert.Equal(t, "test_kernel_B", doc.Groups[2].Kernel)
}

func TestWriteCategorySummary(t *testing.T) {
	summary := aggregateString(t, traceHeader+"\nCijk_Alik,1,300\ntriton_poi_0,2,100\nmystery,3,100\n")

	var buf bytes.Buffer
	summary.WriteCategorySummary(&buf)
	out := buf.String()

	assert.Contains(t, out, "GEMM/BLAS")
	assert.Contains(t, out, "(60.0%)")
	assert.Contains(t, out, "Triton")
	assert.Contains(t, out, "Other")
	assert.Contains(t, out, "Data rows:        3")
}

func TestWriteToFile(t *testing.T) {
	summary := fixtureSummary(t)
	dir := t.TempDir()

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "out.csv")
		require.NoError(t, summary.WriteToFile(path, DefaultOptions()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "kernel_name,shape,count"))
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "out.json")
		require.NoError(t, summary.WriteToFile(path, DefaultOptions()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, json.Valid(data))
	})

	t.Run("text", func(t *testing.T) {
		path := filepath.Join(dir, "out.txt")
		require.NoError(t, summary.WriteToFile(path, DefaultOptions()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test_kernel_B")
	})

	t.Run("xlsx", func(t *testing.T) {
		path := filepath.Join(dir, "out.xlsx")
		require.NoError(t, summary.WriteToFile(path, DefaultOptions()))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Summary"}, f.GetSheetList())
		kernel, err := f.GetCellValue("Summary", "A2")
		require.NoError(t, err)
		assert.Equal(t, "test_kernel_A", kernel)
		shape, err := f.GetCellValue("Summary", "B2")
		require.NoError(t, err)
		assert.Equal(t, "M=1024, N=2048, K=512", shape)
		count, err := f.GetCellValue("Summary", "C2")
		require.NoError(t, err)
		assert.Equal(t, "2", count)
	})
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.LessOrEqual(t, len([]rune(truncateString("カーネル名前テスト", 10))), 10)
}
