package util

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_cmallocTagged(t *testing.T) {
	before := GetMemMetrics()

	ptr := CMallocTagged(MemSortKeys, 1024)
	require.True(t, PointerValid(ptr))

	//the memory is usable
	data := PointerToSlice[byte](ptr, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	assert.Equal(t, byte(255), data[255])

	after := GetMemMetrics()
	assert.Equal(t, before[MemSortKeys].InUseBytes+1024, after[MemSortKeys].InUseBytes)
	assert.Equal(t, before[MemSortKeys].TotalBytes+1024, after[MemSortKeys].TotalBytes)
	//other tags are untouched
	assert.Equal(t, before[MemUntagged].InUseBytes, after[MemUntagged].InUseBytes)

	CFreeTagged(MemSortKeys, ptr, 1024)
	final := GetMemMetrics()
	assert.Equal(t, before[MemSortKeys].InUseBytes, final[MemSortKeys].InUseBytes)
	//the cumulative counter only grows
	assert.Equal(t, after[MemSortKeys].TotalBytes, final[MemSortKeys].TotalBytes)
}

func Test_cfreeNil(t *testing.T) {
	before := GetMemMetrics()
	CFreeTagged(MemSortKeys, nil, 4096)
	assert.Equal(t, before, GetMemMetrics())
}

func Test_memTagString(t *testing.T) {
	assert.Equal(t, "untagged", MemUntagged.String())
	assert.Equal(t, "sort_keys", MemSortKeys.String())
}

func Test_memCollector(t *testing.T) {
	ptr := CMallocTagged(MemSortKeys, 2048)
	require.True(t, PointerValid(ptr))
	defer CFreeTagged(MemSortKeys, ptr, 2048)

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewMemCollector())
	mfs, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	sawSortKeys := false
	for _, mf := range mfs {
		names[mf.GetName()] = true
		if mf.GetName() != "filesort_mem_in_use_bytes" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "tag" && lp.GetValue() == "sort_keys" {
					sawSortKeys = true
					assert.GreaterOrEqual(t, m.GetGauge().GetValue(), 2048.0)
				}
			}
		}
	}
	assert.True(t, names["filesort_mem_in_use_bytes"])
	assert.True(t, names["filesort_mem_total_bytes"])
	assert.True(t, sawSortKeys)
}
