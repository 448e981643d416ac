package plan

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// ExplainMergeCost renders the simulated merge passes as a tree. It shares
// the simulation with EstimateMergeCost, so the printed total is always the
// estimated total.
func ExplainMergeCost(numRows, numKeysPerBuffer uint64, elemSize int, cm CostModel) string {
	bd := simulateMergePasses(numRows, numKeysPerBuffer, elemSize, cm)

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("external sort of %d rows, %d keys per buffer, elem size %d",
		numRows, numKeysPerBuffer, elemSize))

	initial := tree.AddBranch("initial buffer sorts")
	initial.AddNode(fmt.Sprintf("%d full buffers + remainder of %d rows, cost %.2f",
		bd._fullBuffers, bd._initialLastRows, bd._initialSortCost))

	for i, pass := range bd._passes {
		branch := tree.AddBranch(fmt.Sprintf("merge pass %d", i+1))
		branch.AddNode(fmt.Sprintf("%d merge calls of fan-in %d, cost %.2f each",
			pass._numMergeCalls, uint64(MergeBuff), pass._callCost))
		branch.AddNode(fmt.Sprintf("remainder merge of %d rows over %d buffers, cost %.2f",
			pass._remainderRows, pass._remainderBuffers, pass._remainderCost))
	}

	final := tree.AddBranch("final merge")
	final.AddNode(fmt.Sprintf("%d rows over %d buffers, cost %.2f",
		bd._finalRows, bd._finalBuffers, bd._finalCost))

	tree.AddNode(fmt.Sprintf("total cost %.2f", bd._totalCost))
	return tree.String()
}
