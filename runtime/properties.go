package runtime

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// Properties is a thread-safe key/value bag shared by every task of a build pass.
// Tasks publish outputs into it and conditions read them back.
type Properties struct {
	store     sync.Map
	itemCount atomic.Int64
}

// NewProperties creates an empty property bag, optionally seeded from initial.
func NewProperties(initial map[string]any) *Properties {
	p := &Properties{}
	for k, v := range initial {
		p.Set(k, v)
	}
	return p
}

// Set adds or replaces a property.
func (p *Properties) Set(key string, value any) {
	if _, loaded := p.store.Swap(key, value); !loaded {
		p.itemCount.Add(1)
	}
}

// Get returns the property value and whether it was present.
func (p *Properties) Get(key string) (any, bool) {
	return p.store.Load(key)
}

// String returns the property formatted as a string.
func (p *Properties) String(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// Bool interprets the property as a boolean; strings are parsed with strconv.ParseBool.
func (p *Properties) Bool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// Delete removes a property.
func (p *Properties) Delete(key string) {
	if _, loaded := p.store.LoadAndDelete(key); loaded {
		p.itemCount.Add(-1)
	}
}

// Range calls f for each property until f returns false. Order is not guaranteed.
func (p *Properties) Range(f func(key string, value any) bool) {
	p.store.Range(func(k, v any) bool {
		return f(k.(string), v)
	})
}

// Len returns the number of stored properties.
func (p *Properties) Len() int64 {
	return p.itemCount.Load()
}

// Snapshot copies the properties into a plain map.
func (p *Properties) Snapshot() map[string]any {
	out := make(map[string]any, p.Len())
	p.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}

// GetTyped retrieves a property and asserts it to type T.
func GetTyped[T any](p *Properties, key string) (T, bool) {
	var zero T
	v, ok := p.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
