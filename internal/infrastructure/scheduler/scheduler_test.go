package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualFrame(t *testing.T) {
	s := NewManual()
	var order []int

	s.RequestFrame(func() {
		order = append(order, 1)
		s.RequestFrame(func() { order = append(order, 3) })
	})
	cancel := s.RequestFrame(func() { order = append(order, 99) })
	s.RequestFrame(func() { order = append(order, 2) })
	cancel()

	assert.Equal(t, 2, s.Frame())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, s.PendingFrames())

	s.Frame()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestManualAdvance(t *testing.T) {
	s := NewManual()
	var order []string

	s.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	s.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "a")
		s.AfterFunc(50*time.Millisecond, func() { order = append(order, "a2") })
	})
	s.AfterFunc(time.Second, func() { order = append(order, "late") })

	s.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"a", "a2", "b"}, order)
	assert.Equal(t, 250*time.Millisecond, s.Now())

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "a2", "b", "late"}, order)
}

func TestRealtimeAfterFunc(t *testing.T) {
	r := NewRealtime()
	var fired atomic.Int32

	done := make(chan struct{})
	r.AfterFunc(time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})
	cancel := r.RequestFrame(func() { fired.Add(10) })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	time.Sleep(2 * DefaultFrameInterval)
	assert.Equal(t, int32(1), fired.Load())
}
