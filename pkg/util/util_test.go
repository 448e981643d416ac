package util

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_addWithSaturate(t *testing.T) {
	assert.Equal(t, 7, AddWithSaturate(3, 4))
	assert.Equal(t, math.MaxInt, AddWithSaturate(math.MaxInt, 1))
	assert.Equal(t, math.MaxInt, AddWithSaturate(math.MaxInt-5, 10))
	assert.Equal(t, math.MaxInt, AddWithSaturate(math.MaxInt, 0))
}

func Test_alignValue8(t *testing.T) {
	assert.Equal(t, 0, AlignValue8(0))
	assert.Equal(t, 8, AlignValue8(1))
	assert.Equal(t, 8, AlignValue8(8))
	assert.Equal(t, 16, AlignValue8(9))
}

func Test_stl(t *testing.T) {
	data := []int{1, 2, 3}
	assert.Equal(t, 3, Back(data))
	assert.Equal(t, 3, Size(data))
	assert.False(t, Empty(data))
	assert.True(t, Empty([]int{}))

	Swap(data, 0, 2)
	assert.Equal(t, []int{3, 2, 1}, data)
	//out of range indexes are ignored
	Swap(data, 0, 5)
	assert.Equal(t, []int{3, 2, 1}, data)

	cp := CopyTo(data)
	cp[0] = 9
	assert.Equal(t, 3, data[0])

	filled := make([]int, 4)
	Fill(filled, 2, 7)
	assert.Equal(t, []int{7, 7, 0, 0}, filled)
}

func Test_pointerOps(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	base := unsafe.Pointer(&data[0])

	p4 := PointerAdd(base, 4)
	assert.Equal(t, int64(4), PointerSub(p4, base))
	assert.Equal(t, int64(-4), PointerSub(base, p4))
	assert.True(t, PointerLessEqual(base, p4))

	scratch := make([]byte, 2)
	Store[uint16](0x0102, unsafe.Pointer(&scratch[0]))
	assert.Equal(t, uint16(0x0102), Load[uint16](unsafe.Pointer(&scratch[0])))

	other := []byte{1, 2, 3, 5}
	assert.Equal(t, -1, PointerMemcmp(base, unsafe.Pointer(&other[0]), 4))
	assert.Equal(t, 0, PointerMemcmp(base, base, 4))
	//shorter prefix sorts first
	assert.Equal(t, -1, PointerMemcmp2(base, base, 3, 4))
}

func Test_faultInject(t *testing.T) {
	const name = "test_fault"

	//registration without open is a no-op
	Register(FAULTS_SCOPE_SORT, name, nil, func([]string) error { return nil })
	assert.Nil(t, Check(FAULTS_SCOPE_SORT, name))

	Open(FAULTS_SCOPE_SORT)
	defer Close(FAULTS_SCOPE_SORT)
	Register(FAULTS_SCOPE_SORT, name, []string{"arg"}, func(args []string) error {
		require.Equal(t, []string{"arg"}, args)
		return nil
	})

	act := Check(FAULTS_SCOPE_SORT, name)
	require.NotNil(t, act)
	assert.NoError(t, act.Action(act.Args))

	//close clears registered faults
	Close(FAULTS_SCOPE_SORT)
	assert.Nil(t, Check(FAULTS_SCOPE_SORT, name))

	//out of range scopes never fire
	assert.Nil(t, Check(-1, name))
	assert.Nil(t, Check(FAULTS_COUNT, name))
}

func Test_convertPanicError(t *testing.T) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = ConvertPanicError(r)
			}
		}()
		panic("boom")
	}()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
