package util

import (
	"sync/atomic"
	"unsafe"
)

//#include <stdlib.h>
//
//// C.malloc aborts the process when it returns NULL. Allocation failure
//// must surface as a nil pointer to the caller, so go through a shim.
//static void* mallocShim(size_t sz) { return malloc(sz); }
import "C"

// MemTag identifies the use-case for an allocation. Every allocation made
// through the tagged allocator is attributed to exactly one tag, so external
// monitoring can tell which subsystem owns how much manually managed memory.
type MemTag int

const (
	MemUntagged MemTag = iota
	MemSortKeys

	MemNumTags
)

var memTagNames = [MemNumTags]string{
	"untagged",
	"sort_keys",
}

func (tag MemTag) String() string {
	return memTagNames[tag]
}

var memCounters [MemNumTags]struct {
	totalAllocated atomic.Uint64
	totalFreed     atomic.Uint64
}

func CMalloc(sz int) unsafe.Pointer {
	return CMallocTagged(MemUntagged, sz)
}

func CFree(ptr unsafe.Pointer, sz int) {
	CFreeTagged(MemUntagged, ptr, sz)
}

// CMallocTagged returns nil when the host allocator fails.
func CMallocTagged(tag MemTag, sz int) unsafe.Pointer {
	ptr := C.mallocShim(C.size_t(sz))
	if ptr == nil {
		return nil
	}
	memCounters[tag].totalAllocated.Add(uint64(sz))
	return ptr
}

func CFreeTagged(tag MemTag, ptr unsafe.Pointer, sz int) {
	if ptr == nil {
		return
	}
	C.free(ptr)
	memCounters[tag].totalFreed.Add(uint64(sz))
}

// MemMetrics is a snapshot of memory usage by tag.
type MemMetrics [MemNumTags]struct {
	// InUseBytes is the sum of the lengths of live allocations. It does not
	// include allocator overhead or fragmentation.
	InUseBytes uint64

	// TotalBytes is the cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64
}

func GetMemMetrics() MemMetrics {
	var res MemMetrics
	for i := range res {
		res[i].TotalBytes = memCounters[i].totalAllocated.Load()
		res[i].InUseBytes = res[i].TotalBytes - memCounters[i].totalFreed.Load()
	}
	return res
}
