package plan

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/filesort/pkg/util"
)

func Test_mergeCost(t *testing.T) {
	cm := NewDefaultCostModel()

	//a single buffer needs no comparisons, only the read and write back
	oneBuffer := MergeCost(1024, 1, 16, cm)
	assert.InDelta(t, 2*1024.0*16/IOBlockSize, oneBuffer, 1e-9)

	//more buffers mean more comparisons per element
	prev := oneBuffer
	for buffers := uint64(2); buffers <= 32; buffers *= 2 {
		cost := MergeCost(1024, buffers, 16, cm)
		require.Greater(t, cost, prev, "buffers %d", buffers)
		prev = cost
	}

	//cost scales with element size
	assert.Greater(t, MergeCost(1024, 4, 32, cm), MergeCost(1024, 4, 16, cm))
}

func Test_estimateFitsInOneBuffer(t *testing.T) {
	cm := NewDefaultCostModel()
	const rows = 5000
	const keysPerBuffer = 100000
	const elemSize = 16

	//no full buffer: the internal sort of the remainder plus one trivial
	//merge over a single buffer
	want := cm.KeyCompareCost(rows*math.Log(1.0+rows)) +
		2*cm.IoBlockReadCost(float64(rows)*elemSize/IOBlockSize)
	got := EstimateMergeCost(rows, keysPerBuffer, elemSize, cm)
	assert.InDelta(t, want, got, 1e-6)
}

func Test_estimateMonotonicInRows(t *testing.T) {
	cm := NewDefaultCostModel()
	prev := 0.0
	for rows := uint64(1000); rows <= 5_000_000; rows += 37511 {
		cost := EstimateMergeCost(rows, 10000, 16, cm)
		require.GreaterOrEqual(t, cost, prev, "rows %d", rows)
		prev = cost
	}
}

func Test_estimateMultiPass(t *testing.T) {
	cm := NewDefaultCostModel()

	//100 buffers force at least one fixed fan-in pass before the final merge
	bd := simulateMergePasses(10_000_000, 100_000, 24, cm)
	require.NotEmpty(t, bd._passes)
	assert.Equal(t, uint64(100), bd._fullBuffers)

	//every pass shrinks the buffer count
	buffers := bd._fullBuffers
	for i, pass := range bd._passes {
		require.Less(t, pass._numMergeCalls, buffers, "pass %d", i)
		buffers = pass._numMergeCalls
	}
	assert.Less(t, buffers, uint64(MergeBuff2))

	//the parts add up
	sum := bd._initialSortCost + bd._finalCost
	for _, pass := range bd._passes {
		sum += float64(pass._numMergeCalls)*pass._callCost + pass._remainderCost
	}
	assert.InDelta(t, bd._totalCost, sum, 1e-6)
}

func Test_explainMatchesEstimate(t *testing.T) {
	cm := NewDefaultCostModel()
	const rows = 10_000_000
	const keysPerBuffer = 100_000
	const elemSize = 24

	cost := EstimateMergeCost(rows, keysPerBuffer, elemSize, cm)
	explain := ExplainMergeCost(rows, keysPerBuffer, elemSize, cm)

	assert.Contains(t, explain, fmt.Sprintf("total cost %.2f", cost))
	assert.Contains(t, explain, "merge pass 1")
	assert.Contains(t, explain, "final merge")
	//one line per tree node
	assert.Greater(t, len(strings.Split(explain, "\n")), 5)
}

func Test_costModelFromConfig(t *testing.T) {
	cfg := &util.Config{}
	cfg.Cost.IoBlockReadCost = 2.5
	cfg.Cost.KeyCompareCost = 0.1

	cm := NewCostModelFromConfig(cfg)
	assert.Equal(t, 2.5, cm.IoBlockReadUnitCost)
	assert.Equal(t, 0.1, cm.KeyCompareUnitCost)

	//unset values keep the defaults
	cm = NewCostModelFromConfig(&util.Config{})
	def := NewDefaultCostModel()
	assert.Equal(t, def.IoBlockReadUnitCost, cm.IoBlockReadUnitCost)
	assert.Equal(t, def.KeyCompareUnitCost, cm.KeyCompareUnitCost)
}
