package util

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_loadConfigFile(t *testing.T) {
	var conf Config
	_, err := toml.DecodeFile("../../etc/filesort/tester.toml", &conf)
	require.NoError(t, err)

	assert.Equal(t, 268435456, conf.SortMemory.BudgetBytes)
	assert.Equal(t, 256, conf.SortMemory.MaxRecordLen)
	assert.Equal(t, 1.0, conf.Cost.IoBlockReadCost)
	assert.Equal(t, 0.05, conf.Cost.KeyCompareCost)
	assert.Equal(t, 100000, conf.Bench.Rows)
	assert.Equal(t, 16, conf.Bench.KeyLen)
	assert.Equal(t, uint64(10000000), conf.Estimate.Rows)
	assert.Equal(t, uint64(100000), conf.Estimate.KeysPerBuffer)
	assert.Equal(t, 24, conf.Estimate.ElemSize)
	assert.True(t, conf.Estimate.PrintPasses)
}
