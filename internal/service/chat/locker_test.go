package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLockerSerializesSameID(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "abc")
	if err != nil {
		t.Fatalf("Acquire err: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := l.Acquire(ctx, "abc")
		if err != nil {
			t.Errorf("second Acquire err: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should wait for release")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestLockerIndependentIDs(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	a, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire a err: %v", err)
	}
	defer a()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	b, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire b err: %v", err)
	}
	b()
}

func TestLockerAcquireHonoursContext(t *testing.T) {
	l := NewLocker()
	release, _ := l.Acquire(context.Background(), "abc")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "abc"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	release()
	if l.size() != 0 {
		t.Fatalf("expected slots to be cleaned up, got %d", l.size())
	}
}
