package plan

import (
	"math"

	"github.com/daviszhen/filesort/pkg/util"
)

const (
	//unit of merge-file I/O accounted by the cost model
	IOBlockSize = 4096
	//fan-in of one merge call at runtime
	MergeBuff = 7
	//below this buffer count the runtime merges everything in one pass
	MergeBuff2 = 15
)

// CostModel supplies the two abstract unit costs the merge estimation
// consults. The formulas behind them belong to the optimizer; this package
// is agnostic to them.
type CostModel interface {
	IoBlockReadCost(ioOps float64) float64
	KeyCompareCost(comparisons float64) float64
}

type DefaultCostModel struct {
	IoBlockReadUnitCost float64
	KeyCompareUnitCost  float64
}

func NewDefaultCostModel() *DefaultCostModel {
	return &DefaultCostModel{
		IoBlockReadUnitCost: 1.0,
		KeyCompareUnitCost:  0.05,
	}
}

func NewCostModelFromConfig(cfg *util.Config) *DefaultCostModel {
	cm := NewDefaultCostModel()
	if cfg.Cost.IoBlockReadCost > 0 {
		cm.IoBlockReadUnitCost = cfg.Cost.IoBlockReadCost
	}
	if cfg.Cost.KeyCompareCost > 0 {
		cm.KeyCompareUnitCost = cfg.Cost.KeyCompareCost
	}
	return cm
}

func (cm *DefaultCostModel) IoBlockReadCost(ioOps float64) float64 {
	return ioOps * cm.IoBlockReadUnitCost
}

func (cm *DefaultCostModel) KeyCompareCost(comparisons float64) float64 {
	return comparisons * cm.KeyCompareUnitCost
}

// MergeCost prices one merge call combining numElements rows spread over
// numBuffers sorted buffers. The factor 2 covers reading the buffers and
// writing the merged result back. numBuffers must be at least 1.
func MergeCost(numElements, numBuffers uint64, elemSize int, cm CostModel) float64 {
	util.AssertFunc(numBuffers >= 1)
	ioOps := float64(numElements) * float64(elemSize) / IOBlockSize
	ioCost := cm.IoBlockReadCost(ioOps)
	cpuCost := cm.KeyCompareCost(float64(numElements) * math.Log2(float64(numBuffers)))
	return 2*ioCost + cpuCost
}

type mergePass struct {
	_numMergeCalls    uint64
	_callCost         float64
	_remainderRows    uint64
	_remainderBuffers uint64
	_remainderCost    float64
}

type mergeCostBreakdown struct {
	_fullBuffers     uint64
	_initialLastRows uint64
	_initialSortCost float64
	_passes          []mergePass
	_finalRows       uint64
	_finalBuffers    uint64
	_finalCost       float64
	_totalCost       float64
}

/*
simulateMergePasses walks the exact branching of the runtime multi-pass
merge without executing it, so the estimate and the explain tree can never
disagree with each other or with the real algorithm. Full buffers are
internally sorted first; then rounds of fixed fan-in merges shrink the
buffer count until a single pass finishes the job.
*/
func simulateMergePasses(numRows, numKeysPerBuffer uint64, elemSize int, cm CostModel) mergeCostBreakdown {
	util.AssertFunc(numKeysPerBuffer >= 1)

	numBuffers := numRows / numKeysPerBuffer
	lastNElems := numRows % numKeysPerBuffer

	bd := mergeCostBreakdown{
		_fullBuffers:     numBuffers,
		_initialLastRows: lastNElems,
	}

	//CPU cost of internally sorting each buffer
	bd._initialSortCost =
		float64(numBuffers)*cm.KeyCompareCost(
			float64(numKeysPerBuffer)*math.Log(1.0+float64(numKeysPerBuffer))) +
			cm.KeyCompareCost(float64(lastNElems)*math.Log(1.0+float64(lastNElems)))
	bd._totalCost = bd._initialSortCost

	for numBuffers >= MergeBuff2 {
		loopLimit := numBuffers - MergeBuff*3/2
		numMergeCalls := 1 + loopLimit/MergeBuff
		numRemainingBuffs := numBuffers - numMergeCalls*MergeBuff

		callCost := MergeCost(numKeysPerBuffer*MergeBuff, MergeBuff, elemSize, cm)

		//leftover buffers fold into the remainder
		lastNElems += numRemainingBuffs * numKeysPerBuffer
		remainderCost := MergeCost(lastNElems, 1+numRemainingBuffs, elemSize, cm)

		bd._passes = append(bd._passes, mergePass{
			_numMergeCalls:    numMergeCalls,
			_callCost:         callCost,
			_remainderRows:    lastNElems,
			_remainderBuffers: 1 + numRemainingBuffs,
			_remainderCost:    remainderCost,
		})
		bd._totalCost += float64(numMergeCalls)*callCost + remainderCost

		numBuffers = numMergeCalls
		numKeysPerBuffer *= MergeBuff
	}

	//final pass over everything that is left
	lastNElems += numKeysPerBuffer * numBuffers
	bd._finalRows = lastNElems
	bd._finalBuffers = 1 + numBuffers
	bd._finalCost = MergeCost(lastNElems, 1+numBuffers, elemSize, cm)
	bd._totalCost += bd._finalCost
	return bd
}

// EstimateMergeCost predicts the total cost of externally sorting numRows
// rows with in-memory buffers of numKeysPerBuffer keys each. Monotonically
// non-decreasing in numRows for a fixed buffer shape.
func EstimateMergeCost(numRows, numKeysPerBuffer uint64, elemSize int, cm CostModel) float64 {
	return simulateMergePasses(numRows, numKeysPerBuffer, elemSize, cm)._totalCost
}
