// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conc_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/conc"
)

// TestSPSCBasic tests basic SPSC (Single Producer, Single Consumer)
// operations: capacity rounding, FIFO order, full and empty signalling.
func TestSPSCBasic(t *testing.T) {
	q := conc.NewSPSC[int](3)

	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}
	if q.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", q.Len())
	}

	// Enqueue to capacity
	for i := range 4 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if q.Len() != 4 {
		t.Fatalf("Len: got %d, want 4", q.Len())
	}

	// Full queue returns ErrWouldBlock
	v := 999
	if err := q.Enqueue(&v); !errors.Is(err, conc.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}

	// Dequeue in FIFO order
	for i := range 4 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i+100)
		}
	}

	// Empty queue returns ErrWouldBlock
	if _, err := q.Dequeue(); !errors.Is(err, conc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
	if q.Len() != 0 {
		t.Fatalf("Len after drain: got %d, want 0", q.Len())
	}
}

// TestSPSCInterleaved interleaves a partial drain with a refill and
// checks that FIFO order holds across both batches.
func TestSPSCInterleaved(t *testing.T) {
	q := conc.NewSPSC[int](10) // rounds to 16

	for i := range 8 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	want := []int{0, 1, 2, 3, 4, 5}
	for i, w := range want {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != w {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, w)
		}
	}

	for i := 10; i <= 13; i++ {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	want = []int{6, 7, 10, 11, 12, 13}
	for i, w := range want {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != w {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, w)
		}
	}

	if q.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", q.Len())
	}
}

// TestMPSCBasic tests basic MPSC operations.
func TestMPSCBasic(t *testing.T) {
	q := conc.NewMPSC[int](3)

	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}

	for i := range 4 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	v := 999
	if err := q.Enqueue(&v); !errors.Is(err, conc.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}
	if q.Len() != 4 {
		t.Fatalf("Len: got %d, want 4", q.Len())
	}

	for i := range 4 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i+100)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, conc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

// TestMPMCBasic tests basic MPMC operations.
func TestMPMCBasic(t *testing.T) {
	q := conc.NewMPMC[int](1000)

	if q.Cap() != 1024 {
		t.Fatalf("Cap: got %d, want 1024", q.Cap())
	}

	for i := range 1024 {
		v := i
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	v := -1
	if err := q.Enqueue(&v); !errors.Is(err, conc.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}
	if q.Len() != 1024 {
		t.Fatalf("Len: got %d, want 1024", q.Len())
	}

	for i := range 1024 {
		val, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if val != i {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, val, i)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, conc.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

// TestQueueSlotReuseAcrossLaps wraps a small MPMC queue through several
// laps so every slot's sequence counter cycles more than once.
func TestQueueSlotReuseAcrossLaps(t *testing.T) {
	q := conc.NewMPMC[int](4)

	next := 0
	for range 5 {
		for i := range 4 {
			v := next + i
			if err := q.Enqueue(&v); err != nil {
				t.Fatalf("Enqueue(%d): %v", v, err)
			}
		}
		for i := range 4 {
			val, err := q.Dequeue()
			if err != nil {
				t.Fatalf("Dequeue: %v", err)
			}
			if val != next+i {
				t.Fatalf("Dequeue: got %d, want %d", val, next+i)
			}
		}
		next += 4
	}
}

// TestQueueCapacityPanics verifies constructors reject capacity < 2.
func TestQueueCapacityPanics(t *testing.T) {
	for name, fn := range map[string]func(){
		"SPSC":    func() { conc.NewSPSC[int](1) },
		"MPSC":    func() { conc.NewMPSC[int](0) },
		"MPMC":    func() { conc.NewMPMC[int](-5) },
		"Builder": func() { conc.New(1) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic for capacity < 2", name)
				}
			}()
			fn()
		}()
	}
}

// TestBuilderSelection verifies the builder picks the declared
// algorithm and typed builders reject mismatched constraints.
func TestBuilderSelection(t *testing.T) {
	if _, ok := conc.Build[int](conc.New(8).SingleProducer().SingleConsumer()).(*conc.SPSC[int]); !ok {
		t.Fatalf("SingleProducer+SingleConsumer: want *SPSC")
	}
	if _, ok := conc.Build[int](conc.New(8).SingleConsumer()).(*conc.MPSC[int]); !ok {
		t.Fatalf("SingleConsumer: want *MPSC")
	}
	if _, ok := conc.Build[int](conc.New(8)).(*conc.MPMC[int]); !ok {
		t.Fatalf("unconstrained: want *MPMC")
	}
	if _, ok := conc.Build[int](conc.NewUnbounded()).(*conc.UnboundedMPMC[int]); !ok {
		t.Fatalf("unbounded unconstrained: want *UnboundedMPMC")
	}
	if _, ok := conc.Build[int](conc.NewUnbounded().SingleConsumer()).(*conc.UnboundedMPSC[int]); !ok {
		t.Fatalf("unbounded SingleConsumer: want *UnboundedMPSC")
	}
	if _, ok := conc.Build[int](conc.NewUnbounded().SingleProducer().SingleConsumer()).(*conc.UnboundedSPSC[int]); !ok {
		t.Fatalf("unbounded SPSC: want *UnboundedSPSC")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("BuildSPSC without constraints: expected panic")
		}
	}()
	conc.BuildSPSC[int](conc.New(8))
}

// TestQueueStructValues checks that struct values round-trip intact and
// that the queue holds its own copy, unaffected by later changes to the
// source value.
func TestQueueStructValues(t *testing.T) {
	type payload struct {
		ID   int
		Data []byte
	}

	q := conc.NewMPMC[payload](4)
	p := payload{ID: 7, Data: []byte("abc")}
	if err := q.Enqueue(&p); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Mutating the source after Enqueue must not affect the queue.
	p.ID = 0
	p.Data = nil

	got, err := q.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ID != 7 || string(got.Data) != "abc" {
		t.Fatalf("Dequeue: got %+v, want {7 abc}", got)
	}
}
