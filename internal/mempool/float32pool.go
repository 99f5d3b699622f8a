package mempool

import (
	"sync"
)

// Sized pools for []float32 planes and []bool masks used by the filter and
// stage kernels. Pooling matters on the render hot path: a preview render
// allocates several full-frame scratch planes per stage.

const bucketStep = 4096

var (
	float32Pools sync.Map // key: size class (int), value: *sync.Pool
	boolPools    sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next bucket so buffers of nearby sizes share
// a pool instead of churning.
func sizeClass(n int) int {
	if n <= bucketStep {
		return bucketStep
	}
	r := (n + bucketStep - 1) / bucketStep
	return r * bucketStep
}

// GetFloat32 retrieves a []float32 of at least n elements from the pool.
// The slice has length n; contents are arbitrary. Return it with PutFloat32.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]float32, n)
	}
	buf, ok := p.Get().([]float32)
	if !ok || cap(buf) < n {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. Nil is ignored.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	if p, ok := pAny.(*sync.Pool); ok {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck
	}
}

// GetZeroedFloat32 retrieves a buffer like GetFloat32 but with all n
// elements set to zero. Accumulation kernels (histograms, box sums) rely
// on a clean start.
func GetZeroedFloat32(n int) []float32 {
	buf := GetFloat32(n)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// GetBool retrieves a []bool mask of at least n elements, zeroed. Selection
// masks (dust, shadow cast) are built incrementally, so reused pool memory
// must come back clean.
func GetBool(n int) []bool {
	cls := sizeClass(n)
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]bool, n)
	}
	buf, ok := p.Get().([]bool)
	if !ok || cap(buf) < n {
		buf = make([]bool, cls)
	}
	buf = buf[:n]
	for i := range buf {
		buf[i] = false
	}
	return buf
}

// PutBool returns a mask to the pool. Nil is ignored.
func PutBool(buf []bool) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	if p, ok := pAny.(*sync.Pool); ok {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck
	}
}

// GetPlanes retrieves count planes of w*h float32 each.
func GetPlanes(w, h, count int) [][]float32 {
	planes := make([][]float32, count)
	for i := range planes {
		planes[i] = GetFloat32(w * h)
	}
	return planes
}

// PutPlanes returns planes obtained from GetPlanes. Nil entries are ignored.
func PutPlanes(planes [][]float32) {
	for _, p := range planes {
		PutFloat32(p)
	}
}
