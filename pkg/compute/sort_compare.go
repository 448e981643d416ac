package compute

import (
	"unsafe"

	"github.com/daviszhen/filesort/pkg/util"
)

// memCompareShort walks the keys byte by byte. For keys under ten bytes the
// loop beats the unrolled variant because there is no call overhead to
// amortize.
func memCompareShort(s1, s2 unsafe.Pointer, n int) bool {
	util.AssertFunc(n > 0)
	l := util.PointerToSlice[byte](s1, n)
	r := util.PointerToSlice[byte](s2, n)
	for i := 0; i < n; i++ {
		if l[i] != r[i] {
			return l[i] < r[i]
		}
	}
	return false
}

// memCompareLongKey checks the first four bytes individually before falling
// back to a bulk compare. High-order bytes of a sort key usually differ
// first.
func memCompareLongKey(s1, s2 unsafe.Pointer, n int) bool {
	l := util.PointerToSlice[byte](s1, n)
	r := util.PointerToSlice[byte](s2, n)
	if l[0] != r[0] {
		return l[0] < r[0]
	}
	if l[1] != r[1] {
		return l[1] < r[1]
	}
	if l[2] != r[2] {
		return l[2] < r[2]
	}
	if l[3] != r[3] {
		return l[3] < r[3]
	}
	return util.PointerMemcmp(
		util.PointerAdd(s1, 4),
		util.PointerAdd(s2, 4),
		n-4) < 0
}

// compareVarlenKeys orders two variable-length records. Each record carries
// its own lengths, so nothing here assumes a fixed width. With useHash the
// embedded content hash is compared first; unequal hashes settle the order
// without touching the columns.
func compareVarlenKeys(fields []SortField, useHash bool, s1, s2 unsafe.Pointer) bool {
	//skip the total length
	lp := util.PointerAdd(s1, int32Size)
	rp := util.PointerAdd(s2, int32Size)
	if useHash {
		lHash := util.Load[uint64](lp)
		rHash := util.Load[uint64](rp)
		if lHash != rHash {
			return lHash < rHash
		}
		lp = util.PointerAdd(lp, int64Size)
		rp = util.PointerAdd(rp, int64Size)
	}
	for i := range fields {
		field := &fields[i]
		if field._maybeNull {
			lNull := util.Load[byte](lp)
			rNull := util.Load[byte](rp)
			lp = util.PointerAdd(lp, 1)
			rp = util.PointerAdd(rp, 1)
			if lNull != rNull {
				//nulls sort first
				return lNull < rNull
			}
			if lNull == 0 {
				//both null, no data follows
				continue
			}
		}
		if field._isVarlen {
			lLen := int(util.Load[uint32](lp))
			rLen := int(util.Load[uint32](rp))
			lp = util.PointerAdd(lp, int32Size)
			rp = util.PointerAdd(rp, int32Size)
			cmp := util.PointerMemcmp2(lp, rp, lLen, rLen)
			if cmp != 0 {
				return cmp < 0
			}
			lp = util.PointerAdd(lp, lLen)
			rp = util.PointerAdd(rp, rLen)
		} else {
			cmp := util.PointerMemcmp(lp, rp, field._length)
			if cmp != 0 {
				return cmp < 0
			}
			lp = util.PointerAdd(lp, field._length)
			rp = util.PointerAdd(rp, field._length)
		}
	}
	return false
}
