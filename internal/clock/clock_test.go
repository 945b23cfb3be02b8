package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	c := NewFake(epoch)

	var fired []string
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(5*time.Second, func() { fired = append(fired, "c") })

	c.Advance(2 * time.Second)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("fired = %v, want [a b]", fired)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}
	if !c.Now().Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("Now = %v, want %v", c.Now(), epoch.Add(2*time.Second))
	}
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(epoch)

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should return true")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}

	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFake_NestedScheduling(t *testing.T) {
	c := NewFake(epoch)

	var at []time.Time
	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now())
		c.AfterFunc(time.Second, func() {
			at = append(at, c.Now())
		})
	})

	c.Advance(3 * time.Second)

	if len(at) != 2 {
		t.Fatalf("fired %d times, want 2", len(at))
	}
	if !at[1].Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("nested timer fired at %v, want %v", at[1], epoch.Add(2*time.Second))
	}
}

func TestFake_BlockUntil(t *testing.T) {
	c := NewFake(epoch)

	done := make(chan struct{})
	go func() {
		c.BlockUntil(1)
		close(done)
	}()

	c.AfterFunc(time.Second, func() {})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BlockUntil did not return")
	}
}
