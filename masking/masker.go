package masking

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
)

// Redacted replaces every sensitive value.
const Redacted = "[REDACTED]"

const (
	// maxBodyLength bounds masking cost: bodies are truncated to this many
	// characters before any rule is applied.
	maxBodyLength = 1000
	maxDepth      = 32
	maxBreadth    = 256
)

// Options configures a Masker.
type Options struct {
	// RulesetPath overrides the EnvRulesetPath environment variable.
	RulesetPath string
	// OnFallback is called whenever masking resolves a problem by
	// over-redacting. Must be cheap and non-blocking.
	OnFallback func()
}

// Masker applies the merged ruleset to arbitrary values. The ruleset is
// loaded once at construction; Reload exists for tests. Safe for
// concurrent use.
type Masker struct {
	mu         sync.RWMutex
	rules      *Ruleset
	onFallback func()
}

// New loads the merged ruleset and returns a ready Masker.
func New(opts Options) *Masker {
	return &Masker{
		rules:      LoadRuleset(opts.RulesetPath),
		onFallback: opts.OnFallback,
	}
}

// Reload re-reads the ruleset from path (or the environment when path is
// empty). Intended for tests; production code loads once at startup.
func (m *Masker) Reload(path string) {
	rs := LoadRuleset(path)
	m.mu.Lock()
	m.rules = rs
	m.mu.Unlock()
}

// Ruleset returns the active merged ruleset.
func (m *Masker) Ruleset() *Ruleset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules
}

func (m *Masker) fallback() {
	if m.onFallback != nil {
		m.onFallback()
	}
}

// Mask returns a structure-preserving deep copy of v with every value
// under a sensitive field name replaced by the Redacted marker. A matched
// mapping key redacts its entire subtree. Mask never panics: cycles,
// excessive depth or breadth, and unsupported types are resolved by
// redacting the whole offending value.
func (m *Masker) Mask(v any) (out any) {
	defer func() {
		if recover() != nil {
			out = Redacted
			m.fallback()
		}
	}()
	rules := m.Ruleset()
	seen := make(map[uintptr]struct{})
	return m.maskValue(reflect.ValueOf(v), rules, seen, 0)
}

func (m *Masker) maskValue(rv reflect.Value, rules *Ruleset, seen map[uintptr]struct{}, depth int) any {
	if depth > maxDepth {
		m.fallback()
		return Redacted
	}
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return m.maskValue(rv.Elem(), rules, seen, depth)

	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if _, cyclic := seen[ptr]; cyclic {
			m.fallback()
			return Redacted
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		return m.maskValue(rv.Elem(), rules, seen, depth)

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if _, cyclic := seen[ptr]; cyclic {
			m.fallback()
			return Redacted
		}
		if rv.Len() > maxBreadth {
			m.fallback()
			return Redacted
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)

		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := keyString(iter.Key())
			if rules.Matches(key) {
				out[key] = Redacted
				continue
			}
			out[key] = m.maskValue(iter.Value(), rules, seen, depth+1)
		}
		return out

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Len() > maxBreadth {
			m.fallback()
			return Redacted
		}
		ptr := rv.Pointer()
		if _, cyclic := seen[ptr]; cyclic {
			m.fallback()
			return Redacted
		}
		seen[ptr] = struct{}{}
		defer delete(seen, ptr)
		return m.maskSequence(rv, rules, seen, depth)

	case reflect.Array:
		if rv.Len() > maxBreadth {
			m.fallback()
			return Redacted
		}
		return m.maskSequence(rv, rules, seen, depth)

	case reflect.Struct:
		rt := rv.Type()
		out := make(map[string]any, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if rules.Matches(name) {
				out[name] = Redacted
				continue
			}
			out[name] = m.maskValue(rv.Field(i), rules, seen, depth+1)
		}
		return out

	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex()

	default:
		// Chan, Func, UnsafePointer: no safe rendering exists.
		m.fallback()
		return Redacted
	}
}

func (m *Masker) maskSequence(rv reflect.Value, rules *Ruleset, seen map[uintptr]struct{}, depth int) any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = m.maskValue(rv.Index(i), rules, seen, depth+1)
	}
	return out
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	// Non-string map keys are stringified for the output copy.
	return stringify(k)
}

func stringify(v reflect.Value) string {
	defer func() { _ = recover() }()
	if v.CanInterface() {
		if s, ok := v.Interface().(interface{ String() string }); ok {
			return s.String()
		}
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return Redacted
	}
	return string(data)
}

// fieldName prefers the JSON wire name over the Go field name so rules
// written against payloads keep matching struct input.
func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// MaskBody truncates body to its first maxBodyLength characters, then
// masks. JSON bodies are decoded and masked field by field; anything else
// is returned as the truncated text. Truncation happens first so masking
// cost is bounded on large payloads.
func (m *Masker) MaskBody(body []byte) any {
	if len(body) == 0 {
		return ""
	}
	s := string(body)
	if len(s) > maxBodyLength {
		s = s[:maxBodyLength]
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		return m.Mask(decoded)
	}
	return s
}

// MaskHeaders renders h with every authentication-related header
// (authorization, token, cookie, session and friends) fully redacted
// regardless of content. Remaining headers pass through the field rules.
func (m *Masker) MaskHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	rules := m.Ruleset()
	out := make(map[string]string, len(h))
	for name, vals := range h {
		lower := strings.ToLower(name)
		redact := rules.Matches(name)
		for _, p := range authHeaderPatterns {
			if strings.Contains(lower, p) {
				redact = true
				break
			}
		}
		if redact {
			out[name] = Redacted
			continue
		}
		out[name] = strings.Join(vals, ", ")
	}
	return out
}

// MaskQuery extracts query parameters into a map with sensitive parameter
// names redacted, so URLs can be audited without their query string.
func (m *Masker) MaskQuery(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	rules := m.Ruleset()
	out := make(map[string]string, len(q))
	for name, vals := range q {
		if rules.Matches(name) {
			out[name] = Redacted
			continue
		}
		out[name] = strings.Join(vals, ",")
	}
	return out
}
