package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/Tutortoise/dog-breed-detector/models"
)

const (
	DefaultPoolSize = 4
	AcquireTimeout  = 5 * time.Second
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available detector")
)

// recognizer is the part of *detections.Detector the server needs.
type recognizer interface {
	Process(ctx context.Context, img image.Image, topK int, timings *models.ProcessingTimings) ([]models.Prediction, error)
	Close() error
}

// DetectorPool hands out detectors one caller at a time. Each detector owns
// its own engine, so a pool of size n runs at most n inferences at once.
type DetectorPool struct {
	detectors      chan recognizer
	size           int
	acquireTimeout time.Duration
	mu             sync.Mutex
	closed         bool
	metrics        *PoolMetrics
}

type PoolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolStats is a point-in-time copy of the pool metrics.
type PoolStats struct {
	Size            int           `json:"pool_size"`
	InUse           int           `json:"detectors_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

func NewDetectorPool(size int, acquireTimeout time.Duration, newDetector func() (recognizer, error)) (*DetectorPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if acquireTimeout <= 0 {
		acquireTimeout = AcquireTimeout
	}

	pool := &DetectorPool{
		detectors:      make(chan recognizer, size),
		size:           size,
		acquireTimeout: acquireTimeout,
		metrics:        &PoolMetrics{},
	}

	for i := 0; i < size; i++ {
		d, err := newDetector()
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to initialize detector %d: %w", i, err), pool.Destroy())
		}
		pool.detectors <- d
	}

	return pool, nil
}

func (p *DetectorPool) Acquire(ctx context.Context) (recognizer, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case d, ok := <-p.detectors:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return d, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns d to the pool. After Destroy, d is closed instead.
func (p *DetectorPool) Release(d recognizer) error {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return d.Close()
	}
	p.detectors <- d
	return nil
}

// Destroy closes every idle detector. Detectors still in use are closed when
// they are released.
func (p *DetectorPool) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.detectors)

	var errs []error
	for d := range p.detectors {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

func (p *DetectorPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolStats{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
	}
}
