package module

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ParamSet holds a stage's custom parameters as configured.
type ParamSet map[string]string

// Has reports whether key is set.
func (p ParamSet) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value for key or def.
func (p ParamSet) String(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int parses key as an integer, returning def when absent.
func (p ParamSet) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	n, err := cast.ToIntE(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("param %s: %w", key, err)
	}
	return n, nil
}

// Float parses key as a float, returning def when absent.
func (p ParamSet) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	n, err := cast.ToFloat64E(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("param %s: %w", key, err)
	}
	return n, nil
}

// Bool parses key as a boolean, returning def when absent.
func (p ParamSet) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("param %s: %w", key, err)
	}
	return b, nil
}

// Duration parses key as a duration ("250ms", "2s"), returning def when absent.
func (p ParamSet) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	d, err := cast.ToDurationE(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("param %s: %w", key, err)
	}
	return d, nil
}

// Strings splits a comma-separated value, dropping empty items.
func (p ParamSet) Strings(key string) []string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Require fails listing every key that is missing.
func (p ParamSet) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !p.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required params: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns an independent copy.
func (p ParamSet) Clone() ParamSet {
	out := make(ParamSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
