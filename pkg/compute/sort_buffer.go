package compute

import (
	"sort"
	"unsafe"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/daviszhen/filesort/pkg/util"
)

const (
	//smallest block ever allocated; also the size of the first block
	minSortMemory = 32 * 1024
	//above this record count the stable sort amortizes its temp buffer
	qsortMaxRecords = 100
	//below this compare length the byte loop beats the unrolled compare
	shortKeyMaxLength = 10
	//unused record-pointer capacity worth reclaiming before giving up
	ptrSlackReclaim = 32 * 1024
	//FaultAllocFail simulates host allocation failure
	FaultAllocFail = "filesort_alloc_fail"
)

var ptrSize = int(unsafe.Sizeof(unsafe.Pointer(nil)))

var (
	ErrSortBufferFull = errors.New("sort buffer memory budget exhausted")
	ErrOutOfMemory    = errors.New("host allocation failed")
)

type sortBlock struct {
	_ptr  unsafe.Pointer
	_size int
}

// FilesortBuffer holds the records of one in-memory sort run. Records live
// in exclusively owned, bump-allocated blocks; _recordPtrs holds one
// non-owning pointer per record and its order is the sort order. Nothing
// here is safe for concurrent use: one executor owns one buffer.
type FilesortBuffer struct {
	_recordPtrs []unsafe.Pointer
	_blocks     []sortBlock

	_maxRecordLength int
	_maxSizeInBytes  int

	//bump cursor over the current (last) block
	_nextRecPtr      unsafe.Pointer
	_currentBlockEnd unsafe.Pointer

	_currentBlockSize     int
	_spaceUsedOtherBlocks int
	_peakMemoryUsed       int
}

func NewFilesortBuffer(maxRecordLength int, maxSizeInBytes int) *FilesortBuffer {
	return &FilesortBuffer{
		_maxRecordLength: maxRecordLength,
		_maxSizeInBytes:  maxSizeInBytes,
	}
}

// SetMaxRecordLength adjusts the record length for the next use of the
// buffer. Reset notices when the retained block became too small for it.
func (buf *FilesortBuffer) SetMaxRecordLength(length int) {
	buf._maxRecordLength = length
}

func (buf *FilesortBuffer) MaxRecordLength() int {
	return buf._maxRecordLength
}

func (buf *FilesortBuffer) MaxSize() int {
	return buf._maxSizeInBytes
}

func (buf *FilesortBuffer) RecordCount() int {
	return len(buf._recordPtrs)
}

func (buf *FilesortBuffer) SortedRecord(idx int) unsafe.Pointer {
	return buf._recordPtrs[idx]
}

// SpaceUsed is the memory the buffer currently holds: all blocks plus the
// reserved capacity of the record pointer array.
func (buf *FilesortBuffer) SpaceUsed() int {
	return buf._currentBlockSize + buf._spaceUsedOtherBlocks +
		cap(buf._recordPtrs)*ptrSize
}

func (buf *FilesortBuffer) SpaceLeftInCurrentBlock() int {
	if util.Empty(buf._blocks) {
		return 0
	}
	return int(util.PointerSub(buf._currentBlockEnd, buf._nextRecPtr))
}

// GetNextRecordPointer carves a slot of _maxRecordLength from the current
// block and records it. The caller must have ensured there is room, by
// Grow or Preallocate.
func (buf *FilesortBuffer) GetNextRecordPointer() unsafe.Pointer {
	util.AssertFunc(util.PointerValid(buf._nextRecPtr))
	util.AssertFunc(buf.SpaceLeftInCurrentBlock() >= buf._maxRecordLength)
	ptr := buf._nextRecPtr
	buf._nextRecPtr = util.PointerAdd(ptr, buf._maxRecordLength)
	buf._recordPtrs = append(buf._recordPtrs, ptr)
	return ptr
}

// CommitUsedSpace gives back the unused tail of the slot returned by the
// last GetNextRecordPointer, so the next record starts right after the
// bytes actually written.
func (buf *FilesortBuffer) CommitUsedSpace(used int) {
	util.AssertFunc(used <= buf._maxRecordLength)
	util.AssertFunc(!util.Empty(buf._recordPtrs))
	last := util.Back(buf._recordPtrs)
	buf._nextRecPtr = util.PointerAdd(last, used)
}

// Grow allocates one more block, sized for at least numRows records.
// Geometric growth from the current block, clamped to the remaining budget.
// On failure nothing changes.
func (buf *FilesortBuffer) Grow(numRows int) error {
	return buf.grow(numRows, true)
}

func (buf *FilesortBuffer) grow(numRows int, mayReclaim bool) error {
	bytesNeeded := numRows * buf._maxRecordLength

	var nextBlockSize int
	if buf._currentBlockSize == 0 {
		//first block
		nextBlockSize = minSortMemory
	} else {
		nextBlockSize = buf._currentBlockSize + buf._currentBlockSize/2
	}

	spaceUsed := buf._currentBlockSize + buf._spaceUsedOtherBlocks
	spaceUsed += cap(buf._recordPtrs) * ptrSize

	spaceLeft := 0
	if spaceUsed <= buf._maxSizeInBytes {
		spaceLeft = buf._maxSizeInBytes - spaceUsed
	}

	/*
		Filling the new block with records also appends pointers to
		_recordPtrs. Project the extra pointer capacity needed if the rest of
		the budget were filled with maximum-size records and charge it
		against spaceLeft now. The projection is a best case; short records
		can still push total usage somewhat above the budget, since append
		growth is not under our control.
	*/
	minNumRowsCapacity := len(buf._recordPtrs) +
		spaceLeft/util.AddWithSaturate(buf._maxRecordLength, ptrSize)
	if minNumRowsCapacity > cap(buf._recordPtrs) {
		projected := (minNumRowsCapacity - cap(buf._recordPtrs)) * ptrSize
		if projected > spaceLeft {
			spaceLeft = 0
		} else {
			spaceLeft -= projected
		}
	}

	nextBlockSize = min(max(nextBlockSize, bytesNeeded), spaceLeft)
	if nextBlockSize < bytesNeeded {
		/*
			Out of budget. If the record pointer array has a lot of reserved
			but unused capacity (a prior use sorted many short rows), shrink
			it to fit and retry once. A second shrink cannot free anything
			further.
		*/
		excessBytes := (cap(buf._recordPtrs) - len(buf._recordPtrs)) * ptrSize
		if mayReclaim && excessBytes >= ptrSlackReclaim {
			oldCapacity := cap(buf._recordPtrs)
			buf.shrinkRecordPointers()
			if cap(buf._recordPtrs) < oldCapacity {
				return buf.grow(numRows, false)
			}
		}
		return errors.Wrapf(ErrSortBufferFull,
			"growing by %d rows of %d bytes", numRows, buf._maxRecordLength)
	}

	return buf.allocateSizedBlock(nextBlockSize)
}

func (buf *FilesortBuffer) shrinkRecordPointers() {
	shrunk := make([]unsafe.Pointer, len(buf._recordPtrs))
	copy(shrunk, buf._recordPtrs)
	buf._recordPtrs = shrunk
}

func (buf *FilesortBuffer) reserveRecordPointers(numRecords int) {
	if cap(buf._recordPtrs) >= numRecords {
		return
	}
	reserved := make([]unsafe.Pointer, len(buf._recordPtrs), numRecords)
	copy(reserved, buf._recordPtrs)
	buf._recordPtrs = reserved
}

// allocateSizedBlock is the raw allocation primitive. On success the old
// current block is folded into _spaceUsedOtherBlocks and the cursor covers
// the new block's full extent. On failure nothing changes.
func (buf *FilesortBuffer) allocateSizedBlock(blockSize int) error {
	if act := util.Check(util.FAULTS_SCOPE_SORT, FaultAllocFail); act != nil {
		if err := act.Action(act.Args); err != nil {
			return err
		}
	}

	newBlock := util.CMallocTagged(util.MemSortKeys, blockSize)
	if newBlock == nil {
		util.Warn("sort block allocation failed",
			zap.Int("blockSize", blockSize))
		return errors.Wrapf(ErrOutOfMemory,
			"allocating sort block of %d bytes", blockSize)
	}

	buf._spaceUsedOtherBlocks += buf._currentBlockSize
	buf._currentBlockSize = blockSize
	buf._nextRecPtr = newBlock
	buf._currentBlockEnd = util.PointerAdd(newBlock, blockSize)
	buf._blocks = append(buf._blocks, sortBlock{_ptr: newBlock, _size: blockSize})
	return nil
}

// Preallocate is the exact-fit path for a known record count: one block of
// exactly numRecords*_maxRecordLength bytes, exact pointer capacity, and
// all slots carved upfront. Filling then never allocates.
func (buf *FilesortBuffer) Preallocate(numRecords int) error {
	buf.Reset()

	bytesNeeded := numRecords * buf._maxRecordLength
	if bytesNeeded+numRecords*ptrSize > buf._maxSizeInBytes {
		return errors.Wrapf(ErrSortBufferFull,
			"preallocating %d records of %d bytes", numRecords, buf._maxRecordLength)
	}

	/*
		If the retained block cannot hold everything it saves us no
		allocations, so drop it and allocate one of exactly the right size.
	*/
	if bytesNeeded > buf.SpaceLeftInCurrentBlock() {
		buf.Free()
		if err := buf.allocateSizedBlock(bytesNeeded); err != nil {
			return err
		}
		buf.reserveRecordPointers(numRecords)
	}
	for len(buf._recordPtrs) < numRecords {
		ptr := buf.GetNextRecordPointer()
		util.AssertFunc(util.PointerValid(ptr))
	}
	return nil
}

// Reset logically clears the buffer between uses of the same sort context.
// All blocks but the most recent are freed; the next use likely needs a
// similar amount of memory, so the largest block is kept. If the record
// length grew past the retained block, that block goes too.
func (buf *FilesortBuffer) Reset() {
	buf.updatePeakMemoryUsed()
	buf._recordPtrs = buf._recordPtrs[:0]
	if len(buf._blocks) >= 2 {
		for _, blk := range buf._blocks[:len(buf._blocks)-1] {
			util.CFreeTagged(util.MemSortKeys, blk._ptr, blk._size)
		}
		buf._blocks[0] = util.Back(buf._blocks)
		buf._blocks = buf._blocks[:1]
	}

	if buf._maxRecordLength > buf._currentBlockSize {
		buf.Free()
	}

	if util.Empty(buf._blocks) {
		util.AssertFunc(!util.PointerValid(buf._nextRecPtr))
		util.AssertFunc(!util.PointerValid(buf._currentBlockEnd))
		util.AssertFunc(buf._currentBlockSize == 0)
	} else {
		buf._nextRecPtr = buf._blocks[0]._ptr
		buf._currentBlockEnd = util.PointerAdd(buf._nextRecPtr, buf._currentBlockSize)
	}
	buf._spaceUsedOtherBlocks = 0
}

// Free releases every block and the record pointer storage. The buffer is
// back at its zero state and safe to reuse or abandon.
func (buf *FilesortBuffer) Free() {
	buf.updatePeakMemoryUsed()
	for _, blk := range buf._blocks {
		util.CFreeTagged(util.MemSortKeys, blk._ptr, blk._size)
	}
	buf._blocks = nil
	buf._recordPtrs = nil
	buf._spaceUsedOtherBlocks = 0
	buf._nextRecPtr = nil
	buf._currentBlockEnd = nil
	buf._currentBlockSize = 0
}

// GetContiguousBuffer hands out the whole budget as one block, for callers
// that need a single scratch region instead of the segmented layout. The
// view stays valid until the next mutating call. Returns nil when the
// allocation fails.
func (buf *FilesortBuffer) GetContiguousBuffer() []byte {
	if buf._currentBlockSize != buf._maxSizeInBytes {
		buf.Free()
		if err := buf.allocateSizedBlock(buf._maxSizeInBytes); err != nil {
			return nil
		}
	}
	return util.PointerToSlice[byte](util.Back(buf._blocks)._ptr, buf._maxSizeInBytes)
}

// PeakMemoryUsed is the high-water mark of SpaceUsed over the buffer's
// lifetime.
func (buf *FilesortBuffer) PeakMemoryUsed() int {
	buf.updatePeakMemoryUsed()
	return buf._peakMemoryUsed
}

func (buf *FilesortBuffer) updatePeakMemoryUsed() {
	used := buf.SpaceUsed()
	if used > buf._peakMemoryUsed {
		buf._peakMemoryUsed = used
	}
}

// SortBuffer reorders the first count record pointers by the key bytes they
// reference and records the variant used in param. The comparator strategy
// is picked once per call from the key shape.
func (buf *FilesortBuffer) SortBuffer(param *SortParam, count int) {
	param._sortAlgorithm = SortAlgNone

	if count <= 1 {
		return
	}
	if param._maxCompareLength == 0 {
		return
	}
	util.AssertFunc(count <= len(buf._recordPtrs))
	ptrs := buf._recordPtrs[:count]

	if param._usingVarlenKeys {
		less := func(i, j int) bool {
			return compareVarlenKeys(param._sortFields, param._useHash, ptrs[i], ptrs[j])
		}
		if param._forceStableSort {
			param._sortAlgorithm = SortAlgStable
			sort.SliceStable(ptrs, less)
		} else {
			param._sortAlgorithm = SortAlgQsort
			sort.Slice(ptrs, less)
		}
		return
	}

	/*
		The stable sort pays for a temp buffer on every call. The cutover
		where that starts to win over quicksort is somewhere around 10 to 40
		records; stay conservative and keep quicksort up to 100.
	*/
	if count <= qsortMaxRecords && !param._forceStableSort {
		param._sortAlgorithm = SortAlgQsort
		if param._maxCompareLength < shortKeyMaxLength {
			sort.Slice(ptrs, func(i, j int) bool {
				return memCompareShort(ptrs[i], ptrs[j], param._maxCompareLength)
			})
		} else {
			sort.Slice(ptrs, func(i, j int) bool {
				return memCompareLongKey(ptrs[i], ptrs[j], param._maxCompareLength)
			})
		}
		return
	}

	/*
		Stable sort, either for performance or because the caller demanded
		it. In the latter case the trailing _refLength bytes exist only to
		make keys unique for the non-stable path; comparing them would break
		ties that must stay ties, so they are excluded.
	*/
	compareLen := param._maxCompareLength
	if param._forceStableSort && !param._usingAddonFields {
		util.AssertFunc(compareLen > param._refLength)
		compareLen -= param._refLength
	}
	param._sortAlgorithm = SortAlgStable
	if compareLen < shortKeyMaxLength {
		sort.SliceStable(ptrs, func(i, j int) bool {
			return memCompareShort(ptrs[i], ptrs[j], compareLen)
		})
	} else {
		sort.SliceStable(ptrs, func(i, j int) bool {
			return memCompareLongKey(ptrs[i], ptrs[j], compareLen)
		})
	}
}
