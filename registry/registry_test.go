package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/module"
)

type stubStage struct {
	module.Base
	variant string
}

func (s *stubStage) Open(module.ParamSet) error                { return nil }
func (s *stubStage) Close()                                    {}
func (s *stubStage) Process(context.Context, *frame.Frame) int { return module.Forward }

func ctor(variant string) Constructor {
	return func() module.Module { return &stubStage{variant: variant} }
}

func TestRegisterAndCreate(t *testing.T) {
	r := New()
	if !r.Register(ClassInfo{Name: "Stub", Constructor: ctor("a")}) {
		t.Fatal("first registration should succeed")
	}
	m := r.CreateObject("Stub")
	if m == nil {
		t.Fatal("expected instance")
	}
	if m.Name() != "" {
		t.Errorf("fresh instance should be unnamed, got %q", m.Name())
	}
	if r.CreateObject("Stub") == m {
		t.Error("each call must construct a new instance")
	}
}

func TestRegisterDuplicateKeepsFirst(t *testing.T) {
	r := New()
	r.Register(ClassInfo{Name: "Stub", Constructor: ctor("first")})
	if r.Register(ClassInfo{Name: "Stub", Constructor: ctor("second")}) {
		t.Fatal("duplicate registration must be rejected")
	}
	if got := r.CreateObject("Stub").(*stubStage).variant; got != "first" {
		t.Fatalf("expected first constructor to win, got %q", got)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	if r.Register(ClassInfo{Name: "", Constructor: ctor("x")}) {
		t.Error("empty name must be rejected")
	}
	if r.Register(ClassInfo{Name: "Nil"}) {
		t.Error("nil constructor must be rejected")
	}
}

func TestCreateUnknown(t *testing.T) {
	if New().CreateObject("Missing") != nil {
		t.Fatal("unknown name must yield nil")
	}
}

func TestRequire(t *testing.T) {
	r := New()
	r.Register(ClassInfo{Name: "A", Constructor: ctor("a")})
	r.Register(ClassInfo{Name: "B", Constructor: ctor("b")})

	if err := r.Require("A", "B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Require("A", "Y", "X", "Y")
	if !errors.IsCode(err, errors.ErrCodeUnknownStage) {
		t.Fatalf("expected UNKNOWN_STAGE, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	classes := appErr.Details["classes"].([]string)
	if len(classes) != 2 || classes[0] != "X" || classes[1] != "Y" {
		t.Errorf("expected [X Y], got %v", classes)
	}
}

func TestListDescribeRemoveReset(t *testing.T) {
	r := New()
	r.Register(ClassInfo{Name: "Zed", Description: "last", Constructor: ctor("z")})
	r.Register(ClassInfo{Name: "Alpha", Description: "first", Constructor: ctor("a")})

	list := r.List()
	if len(list) != 2 || list[0] != "Alpha" || list[1] != "Zed" {
		t.Fatalf("expected sorted list, got %v", list)
	}
	if info, ok := r.Describe("Zed"); !ok || info.Description != "last" {
		t.Errorf("unexpected description %+v", info)
	}
	if !r.Remove("Zed") || r.Has("Zed") {
		t.Error("remove failed")
	}
	if r.Remove("Zed") {
		t.Error("second remove must fail")
	}
	r.Reset()
	if len(r.List()) != 0 {
		t.Error("reset should clear all classes")
	}
}

func TestConcurrentLookups(t *testing.T) {
	r := New()
	r.Register(ClassInfo{Name: "Stub", Constructor: ctor("a")})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if r.CreateObject("Stub") == nil {
					t.Error("lookup failed")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestDefaultRegistry(t *testing.T) {
	const name = "registry_test.DefaultStub"
	t.Cleanup(func() { Default.Remove(name) })

	if !Register(name, "test", ctor("d")) {
		t.Fatal("register into default failed")
	}
	if Register(name, "test", ctor("e")) {
		t.Fatal("duplicate into default must fail")
	}
	if CreateObject(name) == nil {
		t.Fatal("expected instance from default")
	}
	if err := Require(name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, n := range List() {
		if n == name {
			found = true
		}
	}
	if !found {
		t.Error("default list missing registration")
	}
}
