package frame

import (
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	f := New("cam-0")
	if f.StreamID != "cam-0" {
		t.Errorf("expected stream cam-0, got %q", f.StreamID)
	}
	if f.IsEOS() || f.IsInvalid() || f.IsRemoved() {
		t.Error("new frame must carry no flags")
	}
	if f.StreamIndex() != InvalidStreamIndex {
		t.Errorf("expected invalid stream index, got %d", f.StreamIndex())
	}
	if f.Collection == nil {
		t.Fatal("expected collection")
	}
	if New("cam-0").ID == f.ID {
		t.Error("frame ids must be unique")
	}
}

func TestNewEOS(t *testing.T) {
	f := NewEOS("cam-1")
	if !f.IsEOS() {
		t.Fatal("expected EOS flag")
	}
	if f.IsRemoved() {
		t.Error("EOS must not imply removed")
	}
}

func TestFlags(t *testing.T) {
	f := New("s")
	f.MarkInvalid()
	f.MarkRemoved()
	if !f.IsInvalid() || !f.IsRemoved() {
		t.Fatal("expected invalid and removed")
	}
	if f.IsEOS() {
		t.Error("EOS should not be set")
	}
}

func TestConcurrentFlags(t *testing.T) {
	f := New("s")
	var wg sync.WaitGroup
	for _, flag := range []Flag{FlagEOS, FlagInvalid, FlagRemoved} {
		wg.Add(1)
		go func(fl Flag) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f.SetFlag(fl)
			}
		}(flag)
	}
	wg.Wait()
	if !f.IsEOS() || !f.IsInvalid() || !f.IsRemoved() {
		t.Fatal("concurrent SetFlag lost an update")
	}
}

func TestMarkPassed(t *testing.T) {
	f := New("s")
	f.SetPassedMask(0b1000)
	if got := f.MarkPassed(0); got != 0b1001 {
		t.Errorf("expected 0b1001, got %b", got)
	}
	if got := f.MarkPassed(1); got != 0b1011 {
		t.Errorf("expected 0b1011, got %b", got)
	}
	if f.PassedMask() != 0b1011 {
		t.Errorf("unexpected mask %b", f.PassedMask())
	}
}

func TestMarkPassedSingleWinner(t *testing.T) {
	const branches = 8
	f := New("s")
	full := uint64(1<<branches - 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < branches; i++ {
		wg.Add(1)
		go func(bit uint) {
			defer wg.Done()
			if f.MarkPassed(bit) == full {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(uint(i))
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one branch to see the full mask, got %d", winners)
	}
}

func TestStreamIndex(t *testing.T) {
	f := New("s")
	f.SetStreamIndex(3)
	if f.StreamIndex() != 3 {
		t.Errorf("expected 3, got %d", f.StreamIndex())
	}
}

func TestString(t *testing.T) {
	f := NewEOS("cam-9")
	if s := f.String(); s == "" {
		t.Error("expected description")
	}
}
