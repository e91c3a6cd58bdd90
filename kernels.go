package main

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// normalizeKernelName removes variable parts from kernel names
// e.g., "triton_red_fused_something_123" -> "triton_red_fused_something"
func normalizeKernelName(name string) string {
	if !strings.HasPrefix(name, "triton_") {
		return name
	}
	i := strings.LastIndexByte(name, '_')
	if i <= 0 || i == len(name)-1 {
		return name
	}
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:i]
}

// kernelSignature extracts the base kernel name by removing template
// parameters and trailing "_N" suffixes, so that two builds of the same
// kernel can be lined up.
func kernelSignature(name string) string {
	sig := name

	if idx := strings.Index(sig, "<"); idx > 0 {
		sig = sig[:idx]
	}

	for len(sig) > 2 && sig[len(sig)-1] >= '0' && sig[len(sig)-1] <= '9' && sig[len(sig)-2] == '_' {
		sig = sig[:len(sig)-2]
	}
	sig = strings.TrimRight(sig, "_")

	if len(sig) < 3 {
		return fmt.Sprintf("other_%d", hashString(name)%1000)
	}
	return sig
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

var kernelCategories = []struct {
	substr   string
	category string
}{
	{"cijk_", "GEMM/BLAS"},
	{"gemm", "GEMM/BLAS"},
	{"triton_", "Triton"},
	{"paged_attention", "PagedAttention"},
	{"fmha", "FlashAttention"},
	{"attention", "Attention"},
	{"elementwise", "Elementwise"},
	{"reduce", "Reduce"},
	{"norm", "Normalization"},
	{"softmax", "Softmax"},
	{"embedding", "Embedding"},
	{"copy", "Memory"},
	{"fill", "Memory"},
	{"reshape", "Memory"},
	{"transpose", "Memory"},
	{"rocprim", "ROCm Primitives"},
	{"ck_tile", "Composable Kernel"},
}

// categorizeKernel buckets a kernel by well-known name fragments.
func categorizeKernel(name string) string {
	lower := strings.ToLower(name)
	for _, p := range kernelCategories {
		if strings.Contains(lower, p.substr) {
			return p.category
		}
	}
	return "Other"
}

// truncateString shortens s to at most maxWidth display columns, marking the
// cut with "...".
func truncateString(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
