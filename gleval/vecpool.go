package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// VecPool holds reusable scratch buffers for evaluators that need temporary
// storage, such as transforms that remap positions before evaluating a child.
// A VecPool is not safe for concurrent use.
type VecPool struct {
	Float bufPool[float32]
	V3    bufPool[ms3.Vec]
}

// GetVecPool extracts a *VecPool from userData. userData may be a *VecPool or
// implement a VecPool() *VecPool method.
func GetVecPool(userData any) (*VecPool, error) {
	switch v := userData.(type) {
	case *VecPool:
		if v == nil {
			return nil, errors.New("nil VecPool")
		}
		return v, nil
	case interface{ VecPool() *VecPool }:
		vp := v.VecPool()
		if vp == nil {
			return nil, errors.New("nil VecPool from userData method")
		}
		return vp, nil
	case nil:
		return nil, errors.New("nil userData, expected *VecPool")
	}
	return nil, fmt.Errorf("want userData *VecPool, got %T", userData)
}

// AssertAllReleased returns an error if any buffer acquired from vp has not been released.
func (vp *VecPool) AssertAllReleased() error {
	err1 := vp.Float.assertAllReleased()
	err2 := vp.V3.assertAllReleased()
	if err1 != nil || err2 != nil {
		return fmt.Errorf("VecPool leak: float: %v, v3: %v", err1, err2)
	}
	return nil
}

type bufPool[T any] struct {
	free     [][]T
	acquired int
}

// Acquire returns a buffer of length n. Contents are not zeroed.
func (bp *bufPool[T]) Acquire(n int) []T {
	bp.acquired++
	for i, buf := range bp.free {
		if cap(buf) >= n {
			last := len(bp.free) - 1
			bp.free[i] = bp.free[last]
			bp.free = bp.free[:last]
			return buf[:n]
		}
	}
	return make([]T, n)
}

// Release returns buf to the pool so it may be handed out by a later Acquire.
func (bp *bufPool[T]) Release(buf []T) {
	bp.acquired--
	if cap(buf) > 0 {
		bp.free = append(bp.free, buf[:0])
	}
}

func (bp *bufPool[T]) assertAllReleased() error {
	if bp.acquired != 0 {
		return fmt.Errorf("%d buffers not released", bp.acquired)
	}
	return nil
}
