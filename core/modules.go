package core

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ModuleProvider builds the attribute table of an importable module.
type ModuleProvider func() map[string]any

var (
	modulesMu sync.RWMutex
	modules   = map[string]ModuleProvider{}
)

// RegisterModule adds a module to the import table. Registration is
// append-only for a given name within a process run; re-registering
// replaces the provider but values already resolved by scenarios keep
// their old bindings.
func RegisterModule(name string, provider ModuleProvider) {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules[name] = provider
}

// LookupModule resolves a module name to its attribute table.
func LookupModule(name string) (map[string]any, bool) {
	modulesMu.RLock()
	provider, ok := modules[name]
	modulesMu.RUnlock()
	if !ok {
		return nil, false
	}
	return provider(), true
}

func init() {
	RegisterModule("math", mathModule)
	RegisterModule("random", randomModule)
	RegisterModule("path", pathModule)
	RegisterModule("strings", stringsModule)
	RegisterModule("time", timeModule)
	RegisterModule("json", jsonModule)
}

func mathModule() map[string]any {
	return map[string]any{
		"pi":    math.Pi,
		"e":     math.E,
		"inf":   math.Inf(1),
		"sqrt":  math.Sqrt,
		"abs":   math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"pow":   math.Pow,
		"exp":   math.Exp,
		"log":   math.Log,
		"log10": math.Log10,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"atan2": math.Atan2,
		"hypot": math.Hypot,
		"mod":   math.Mod,
		"max":   math.Max,
		"min":   math.Min,
	}
}

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randomModule() map[string]any {
	return map[string]any{
		"random": func() float64 {
			rngMu.Lock()
			defer rngMu.Unlock()
			return rng.Float64()
		},
		"uniform": func(a, b float64) float64 {
			rngMu.Lock()
			defer rngMu.Unlock()
			return a + rng.Float64()*(b-a)
		},
		"randint": func(a, b int64) int64 {
			if b < a {
				a, b = b, a
			}
			rngMu.Lock()
			defer rngMu.Unlock()
			return a + rng.Int63n(b-a+1)
		},
		"seed": func(n int64) {
			rngMu.Lock()
			defer rngMu.Unlock()
			rng = rand.New(rand.NewSource(n))
		},
	}
}

func pathModule() map[string]any {
	return map[string]any{
		"join":  func(parts ...string) string { return filepath.Join(parts...) },
		"base":  filepath.Base,
		"dir":   filepath.Dir,
		"ext":   filepath.Ext,
		"clean": filepath.Clean,
	}
}

func stringsModule() map[string]any {
	return map[string]any{
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"trim":       strings.TrimSpace,
		"split":      func(s, sep string) []string { return strings.Split(s, sep) },
		"join":       func(parts []string, sep string) string { return strings.Join(parts, sep) },
		"contains":   strings.Contains,
		"replace":    func(s, old, new string) string { return strings.ReplaceAll(s, old, new) },
		"startsWith": strings.HasPrefix,
		"endsWith":   strings.HasSuffix,
	}
}

func timeModule() map[string]any {
	return map[string]any{
		"now":     func() float64 { return float64(time.Now().UnixNano()) / float64(time.Second) },
		"rfc3339": func() string { return time.Now().Format(time.RFC3339) },
	}
}

func jsonModule() map[string]any {
	return map[string]any{
		"dumps": func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("json dumps: %w", err)
			}
			return string(b), nil
		},
		"loads": func(s string) (any, error) {
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, fmt.Errorf("json loads: %w", err)
			}
			return v, nil
		},
	}
}
