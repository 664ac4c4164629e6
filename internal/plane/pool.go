package plane

import "sync"

// Pool is a thread-safe pool for reusing Image3F buffers.
//
// Pool groups buffers by their dimensions, so halo bands of the same shape
// captured frame after frame are recycled instead of reallocated.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	buckets map[poolKey][]*Image3F
	maxSize int // max buffers per bucket
}

// poolKey identifies a bucket of identically sized buffers.
type poolKey struct {
	width  int
	height int
}

// NewPool creates a pool keeping at most maxPerBucket buffers per size.
// A maxPerBucket of 0 means unlimited.
func NewPool(maxPerBucket int) *Pool {
	return &Pool{
		buckets: make(map[poolKey][]*Image3F),
		maxSize: maxPerBucket,
	}
}

// Get returns a buffer of the given size, reused if possible.
// Reused buffers are not cleared; callers overwrite every sample.
func (p *Pool) Get(width, height int) (*Image3F, error) {
	key := poolKey{width: width, height: height}

	p.mu.Lock()
	bucket := p.buckets[key]
	if len(bucket) > 0 {
		img := bucket[len(bucket)-1]
		p.buckets[key] = bucket[:len(bucket)-1]
		p.mu.Unlock()
		return img, nil
	}
	p.mu.Unlock()

	return NewImage3F(width, height)
}

// Put returns a buffer to the pool. Cropped buffers are discarded.
func (p *Pool) Put(img *Image3F) {
	if img == nil {
		return
	}
	pl := img.planes[0]
	if pl.stride != pl.width {
		return
	}
	key := poolKey{width: img.Width(), height: img.Height()}

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.buckets[key]
	if p.maxSize > 0 && len(bucket) >= p.maxSize {
		return
	}
	p.buckets[key] = append(bucket, img)
}
