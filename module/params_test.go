package module

import (
	"strings"
	"testing"
	"time"
)

func TestParamSetString(t *testing.T) {
	p := ParamSet{"mode": "fast"}
	if p.String("mode", "slow") != "fast" {
		t.Error("expected configured value")
	}
	if p.String("other", "slow") != "slow" {
		t.Error("expected default")
	}
}

func TestParamSetTyped(t *testing.T) {
	p := ParamSet{
		"count":    " 12 ",
		"ratio":    "0.5",
		"enabled":  "true",
		"interval": "250ms",
		"bad":      "twelve",
	}

	if n, err := p.Int("count", 0); err != nil || n != 12 {
		t.Errorf("Int: got %d, %v", n, err)
	}
	if n, err := p.Int("missing", 7); err != nil || n != 7 {
		t.Errorf("Int default: got %d, %v", n, err)
	}
	if _, err := p.Int("bad", 0); err == nil || !strings.Contains(err.Error(), "param bad") {
		t.Errorf("Int should fail on bad input, got %v", err)
	}
	if f, err := p.Float("ratio", 0); err != nil || f != 0.5 {
		t.Errorf("Float: got %v, %v", f, err)
	}
	if b, err := p.Bool("enabled", false); err != nil || !b {
		t.Errorf("Bool: got %v, %v", b, err)
	}
	if d, err := p.Duration("interval", 0); err != nil || d != 250*time.Millisecond {
		t.Errorf("Duration: got %v, %v", d, err)
	}
	if _, err := p.Bool("bad", false); err == nil {
		t.Error("Bool should fail on bad input")
	}
}

func TestParamSetStrings(t *testing.T) {
	p := ParamSet{"streams": "cam-0, cam-1,,cam-2 "}
	got := p.Strings("streams")
	if len(got) != 3 || got[0] != "cam-0" || got[2] != "cam-2" {
		t.Errorf("unexpected split %v", got)
	}
	if p.Strings("none") != nil {
		t.Error("missing key should yield nil")
	}
}

func TestParamSetRequire(t *testing.T) {
	p := ParamSet{"a": "1"}
	if err := p.Require("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := p.Require("z", "a", "b")
	if err == nil || !strings.Contains(err.Error(), "b, z") {
		t.Fatalf("expected sorted missing list, got %v", err)
	}
}

func TestParamSetClone(t *testing.T) {
	p := ParamSet{"a": "1"}
	c := p.Clone()
	c["a"] = "2"
	if p["a"] != "1" {
		t.Error("clone must be independent")
	}
}
