package util

import (
	"bytes"
	"unsafe"
)

func Load[T any](ptr unsafe.Pointer) T {
	return *(*T)(ptr)
}

func Store[T any](val T, ptr unsafe.Pointer) {
	*(*T)(ptr) = val
}

func PointerAdd(base unsafe.Pointer, offset int) unsafe.Pointer {
	return unsafe.Add(base, offset)
}

func PointerLessEqual(lhs, rhs unsafe.Pointer) bool {
	return uintptr(lhs) <= uintptr(rhs)
}

func PointerSub(lhs, rhs unsafe.Pointer) int64 {
	a := uint64(uintptr(lhs))
	b := uint64(uintptr(rhs))
	ret := int64(a - b)
	if a < b {
		ret = -ret
	}
	return ret
}

func PointerToSlice[T any](base unsafe.Pointer, len int) []T {
	return unsafe.Slice((*T)(base), len)
}

func PointerCopy(dst, src unsafe.Pointer, len int) {
	dstSlice := PointerToSlice[byte](dst, len)
	srcSlice := PointerToSlice[byte](src, len)
	copy(dstSlice, srcSlice)
}

func PointerCopy2(dst unsafe.Pointer, src []byte, len int) {
	dstSlice := PointerToSlice[byte](dst, len)
	copy(dstSlice, src[:len])
}

func PointerValid(ptr unsafe.Pointer) bool {
	return uintptr(ptr) != 0
}

func PointerMemcmp(lAddr, rAddr unsafe.Pointer, len int) int {
	lSlice := PointerToSlice[byte](lAddr, len)
	rSlice := PointerToSlice[byte](rAddr, len)
	return bytes.Compare(lSlice, rSlice)
}

func PointerMemcmp2(lAddr, rAddr unsafe.Pointer, len1, len2 int) int {
	lSlice := PointerToSlice[byte](lAddr, len1)
	rSlice := PointerToSlice[byte](rAddr, len2)
	return bytes.Compare(lSlice, rSlice)
}
