package compute

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/huandu/go-clone"

	"github.com/daviszhen/filesort/pkg/util"
)

type SortAlgorithm int

const (
	SortAlgNone SortAlgorithm = iota
	SortAlgQsort
	SortAlgStable
)

func (alg SortAlgorithm) String() string {
	switch alg {
	case SortAlgNone:
		return "none"
	case SortAlgQsort:
		return "qsort"
	case SortAlgStable:
		return "stable"
	}
	return "unknown"
}

// SortField describes one key column inside a variable-length record.
// _length is the encoded byte width for fixed columns and 0 for varlen
// columns, whose width is read from the record itself.
type SortField struct {
	_isVarlen  bool
	_maybeNull bool
	_length    int
}

func NewSortField(isVarlen bool, maybeNull bool, length int) SortField {
	if isVarlen {
		length = 0
	}
	return SortField{
		_isVarlen:  isVarlen,
		_maybeNull: maybeNull,
		_length:    length,
	}
}

// SortParam carries the key-shape of one sort invocation. The executor fills
// it before calling SortBuffer; the sort only writes _sortAlgorithm back, as
// a diagnostic of which variant ran.
type SortParam struct {
	_maxCompareLength int
	_usingVarlenKeys  bool
	_useHash          bool
	_forceStableSort  bool
	_usingAddonFields bool
	//trailing row locator length, appended when addon fields are not used
	_refLength     int
	_sortFields    []SortField
	_sortAlgorithm SortAlgorithm
}

func NewSortParam(
	maxCompareLength int,
	forceStable bool,
	usingAddonFields bool,
	refLength int,
) *SortParam {
	return &SortParam{
		_maxCompareLength: maxCompareLength,
		_forceStableSort:  forceStable,
		_usingAddonFields: usingAddonFields,
		_refLength:        refLength,
	}
}

func NewVarlenSortParam(
	maxCompareLength int,
	forceStable bool,
	useHash bool,
	fields []SortField,
) *SortParam {
	return &SortParam{
		_maxCompareLength: maxCompareLength,
		_usingVarlenKeys:  true,
		_useHash:          useHash,
		_forceStableSort:  forceStable,
		_sortFields:       fields,
	}
}

func (param *SortParam) MaxCompareLength() int {
	return param._maxCompareLength
}

func (param *SortParam) UsingVarlenKeys() bool {
	return param._usingVarlenKeys
}

func (param *SortParam) UsingAddonFields() bool {
	return param._usingAddonFields
}

func (param *SortParam) ForceStableSort() bool {
	return param._forceStableSort
}

func (param *SortParam) RefLength() int {
	return param._refLength
}

func (param *SortParam) SortAlgorithm() SortAlgorithm {
	return param._sortAlgorithm
}

// Clone returns an independent copy. Prepared re-execution keeps a template
// param and sorts with a clone, so the diagnostic written by one run does
// not leak into the next.
func (param *SortParam) Clone() *SortParam {
	return clone.Clone(param).(*SortParam)
}

// KeyHash is the content hash embedded into varlen records when _useHash is
// set. The comparator rejects unequal keys on the hash alone.
func KeyHash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// Varlen record layout:
//
//	[uint32 total length]
//	[uint64 content hash, if _useHash]
//	per column:
//	  [1 null marker, if _maybeNull; 0 means null, no data follows]
//	  [uint32 data length, if _isVarlen]
//	  [data bytes]
//
// A nil column value means null.

func (param *SortParam) VarlenRecordSize(cols [][]byte) int {
	util.AssertFunc(param._usingVarlenKeys)
	util.AssertFunc(len(cols) == len(param._sortFields))
	sz := int32Size //total length
	if param._useHash {
		sz += int64Size
	}
	for i := range param._sortFields {
		field := &param._sortFields[i]
		if field._maybeNull {
			sz++
			if cols[i] == nil {
				continue
			}
		}
		if field._isVarlen {
			sz += int32Size + len(cols[i])
		} else {
			sz += field._length
		}
	}
	return sz
}

// EncodeVarlenRecord writes one record at ptr and returns the bytes used.
// The caller must have carved a slot at least VarlenRecordSize(cols) long.
func (param *SortParam) EncodeVarlenRecord(ptr unsafe.Pointer, cols [][]byte) int {
	sz := param.VarlenRecordSize(cols)
	util.AssertFunc(sz <= param._maxCompareLength)

	cur := ptr
	util.Store[uint32](uint32(sz), cur)
	cur = util.PointerAdd(cur, int32Size)
	if param._useHash {
		hash := xxhash.New()
		for i := range cols {
			if cols[i] != nil {
				_, _ = hash.Write(cols[i])
			}
		}
		util.Store[uint64](hash.Sum64(), cur)
		cur = util.PointerAdd(cur, int64Size)
	}
	for i := range param._sortFields {
		field := &param._sortFields[i]
		if field._maybeNull {
			if cols[i] == nil {
				util.Store[byte](0, cur)
				cur = util.PointerAdd(cur, 1)
				continue
			}
			util.Store[byte](1, cur)
			cur = util.PointerAdd(cur, 1)
		}
		if field._isVarlen {
			util.Store[uint32](uint32(len(cols[i])), cur)
			cur = util.PointerAdd(cur, int32Size)
			util.PointerCopy2(cur, cols[i], len(cols[i]))
			cur = util.PointerAdd(cur, len(cols[i]))
		} else {
			util.AssertFunc(len(cols[i]) == field._length)
			util.PointerCopy2(cur, cols[i], field._length)
			cur = util.PointerAdd(cur, field._length)
		}
	}
	util.AssertFunc(int(util.PointerSub(cur, ptr)) == sz)
	return sz
}

const (
	int32Size = int(unsafe.Sizeof(uint32(0)))
	int64Size = int(unsafe.Sizeof(uint64(0)))
)
