package nn

import (
	"sync"
)

var (
	bufLock sync.Mutex
	bufPool = make(map[int]*sync.Pool)
)

// borrowF32 returns a zeroed float32 scratch slice of length n. Used for
// padded convolution inputs and other per-call spatial scratch.
func borrowF32(n int) []float32 {
	bufLock.Lock()
	p, ok := bufPool[n]
	bufLock.Unlock()
	if ok {
		buf := p.Get().([]float32)
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}
	return make([]float32, n)
}

func returnF32(buf []float32) {
	n := len(buf)
	bufLock.Lock()
	p, ok := bufPool[n]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return make([]float32, n) },
		}
		bufPool[n] = p
	}
	bufLock.Unlock()
	p.Put(buf)
}
