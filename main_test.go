package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLISummarize(t *testing.T) {
	stdout, _, err := runCLI(t, filepath.Join("testdata", "kernel_trace.csv"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[2], "test_kernel_A [M=1024, N=2048, K=512]")
	assert.Contains(t, lines[3], "test_kernel_A [M=128, N=128, K=128]")
	assert.Contains(t, lines[4], "test_kernel_B")
}

func TestCLITopAndSummary(t *testing.T) {
	stdout, stderr, err := runCLI(t, filepath.Join("testdata", "rocblas_trace.csv"), "-n", "1", "--summary", "--no-color")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "Cijk_Ailk_Bljk_SB_MT128x128x16 [M=1024, N=1024, K=1024]")
	assert.Contains(t, stderr, "Kernel Type Distribution")
	assert.Contains(t, stderr, "Skipped rows:     2")
}

func TestCLIOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	stdout, stderr, err := runCLI(t, filepath.Join("testdata", "kernel_trace.csv"), "-o", path)
	require.NoError(t, err)

	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Results written to: "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_kernel_B")
}

func TestCLIConfigFile(t *testing.T) {
	config := writeConfig(t, "max_name_with_shape: 8\nname_column_width: 40\n")
	stdout, _, err := runCLI(t, filepath.Join("testdata", "kernel_trace.csv"), "--config", config)
	require.NoError(t, err)
	assert.Contains(t, stdout, "test_... [M=1024, N=2048, K=512]")
	assert.Contains(t, stdout, strings.Repeat("-", 95))
}

func TestCLIErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := runCLI(t, filepath.Join(t.TempDir(), "missing.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("missing column", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(path, []byte("KernelName,Start\nk,1\n"), 0o644))
		stdout, _, err := runCLI(t, path)
		assert.ErrorIs(t, err, ErrMissingColumn)
		assert.Empty(t, stdout)
	})

	t.Run("no arguments", func(t *testing.T) {
		_, _, err := runCLI(t)
		assert.Error(t, err)
	})

	t.Run("bad top", func(t *testing.T) {
		_, _, err := runCLI(t, filepath.Join("testdata", "kernel_trace.csv"), "-n", "-3")
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})
}

func TestCLICompare(t *testing.T) {
	stdout, _, err := runCLI(t, "compare",
		"--baseline", filepath.Join("testdata", "kernel_trace.csv"),
		"--new", filepath.Join("testdata", "kernel_trace.csv"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Trace Comparison Summary")
	assert.Contains(t, stdout, "exact: 3")

	_, _, err = runCLI(t, "compare", "--baseline", filepath.Join("testdata", "kernel_trace.csv"))
	assert.Error(t, err)
}
