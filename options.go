// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc

// Options configures queue creation and algorithm selection.
type Options struct {
	// Producer/Consumer constraints (determines queue type)
	singleProducer bool
	singleConsumer bool

	// Storage strategy
	unbounded bool

	// Capacity (rounds up to next power of 2; ignored when unbounded)
	capacity int
}

// Builder creates queues with fluent configuration.
//
// The builder selects the algorithm from the declared producer/consumer
// constraints and the bounded/unbounded storage strategy.
//
// Example:
//
//	// Bounded SPSC queue (optimal for single producer/consumer)
//	q := conc.BuildSPSC[Event](conc.New(1024).SingleProducer().SingleConsumer())
//
//	// Unbounded MPMC queue (general purpose, grows on demand)
//	q := conc.Build[Request](conc.NewUnbounded())
type Builder struct {
	opts Options
}

// New creates a bounded queue builder with the given capacity.
//
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("conc: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// NewUnbounded creates a builder for an unbounded segmented queue.
// Unbounded queues never report full; they allocate fixed-size blocks
// on demand.
func NewUnbounded() *Builder {
	return &Builder{opts: Options{unbounded: true}}
}

// SingleProducer declares that only one goroutine will enqueue.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// SingleConsumer declares that only one goroutine will dequeue.
func (b *Builder) SingleConsumer() *Builder {
	b.opts.singleConsumer = true
	return b
}

// Build creates a Queue[T] with automatic algorithm selection.
//
// Algorithm selection:
//
//	SingleProducer + SingleConsumer → SPSC (Lamport ring / linked blocks)
//	SingleConsumer only             → MPSC (CAS producers, sequential consumer)
//	Otherwise                       → MPMC (per-slot sequence counters)
//
// A single-producer multi-consumer configuration gets the MPMC
// algorithm; it is observationally identical with one producer.
func Build[T any](b *Builder) Queue[T] {
	if b.opts.unbounded {
		switch {
		case b.opts.singleProducer && b.opts.singleConsumer:
			return NewUnboundedSPSC[T]()
		case b.opts.singleConsumer:
			return NewUnboundedMPSC[T]()
		default:
			return NewUnboundedMPMC[T]()
		}
	}
	switch {
	case b.opts.singleProducer && b.opts.singleConsumer:
		return NewSPSC[T](b.opts.capacity)
	case b.opts.singleConsumer:
		return NewMPSC[T](b.opts.capacity)
	default:
		return NewMPMC[T](b.opts.capacity)
	}
}

// BuildSPSC creates a bounded SPSC queue with compile-time type safety.
// Panics if the builder is not configured with SingleProducer().SingleConsumer()
// or is unbounded.
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer || !b.opts.singleConsumer || b.opts.unbounded {
		panic("conc: BuildSPSC requires a bounded SingleProducer().SingleConsumer() builder")
	}
	return NewSPSC[T](b.opts.capacity)
}

// BuildMPSC creates a bounded MPSC queue with compile-time type safety.
// Panics if the builder is not configured with SingleConsumer() only.
func BuildMPSC[T any](b *Builder) *MPSC[T] {
	if b.opts.singleProducer || !b.opts.singleConsumer || b.opts.unbounded {
		panic("conc: BuildMPSC requires a bounded SingleConsumer() builder")
	}
	return NewMPSC[T](b.opts.capacity)
}

// BuildMPMC creates a bounded MPMC queue with compile-time type safety.
// Panics if the builder has any constraints set or is unbounded.
func BuildMPMC[T any](b *Builder) *MPMC[T] {
	if b.opts.singleProducer || b.opts.singleConsumer || b.opts.unbounded {
		panic("conc: BuildMPMC requires an unconstrained bounded builder")
	}
	return NewMPMC[T](b.opts.capacity)
}
