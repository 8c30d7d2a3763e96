package core

import (
	"fmt"
	"sort"
	"sync"
)

// Shape identifies which concrete canonical form a pipeline expects on its
// input or output side. Pipelines declare shapes by name in configuration;
// the capability manager resolves them against the shape registry at
// instantiation time.
type Shape string

const (
	ShapeGeneric  Shape = "generic"
	ShapeTabular  Shape = "tabular"
	ShapeDocument Shape = "document"
	ShapeStream   Shape = "stream"
)

var (
	shapeMu  sync.RWMutex
	shapeSet = map[Shape]struct{}{
		ShapeGeneric:  {},
		ShapeTabular:  {},
		ShapeDocument: {},
		ShapeStream:   {},
	}
)

// RegisterShape makes a shape name resolvable. Plug-ins that introduce new
// canonical forms call this at process start.
func RegisterShape(s Shape) {
	shapeMu.Lock()
	defer shapeMu.Unlock()
	shapeSet[s] = struct{}{}
}

// ResolveShape looks up a shape by its configured identifier.
func ResolveShape(name string) (Shape, bool) {
	shapeMu.RLock()
	defer shapeMu.RUnlock()
	s := Shape(name)
	_, ok := shapeSet[s]
	return s, ok
}

// KnownShapes returns the registered shape names, sorted, for error messages.
func KnownShapes() []string {
	shapeMu.RLock()
	defer shapeMu.RUnlock()
	names := make([]string, 0, len(shapeSet))
	for s := range shapeSet {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// CanonicalValue is the shared representation behind CanonicalInput and
// CanonicalOutput: a shape tag, an insertion-ordered data map, and a
// metadata map. Values are treated as immutable by pipeline steps; steps
// produce copies instead of mutating in place.
type CanonicalValue struct {
	shape    Shape
	keys     []string
	data     map[string]interface{}
	metadata map[string]interface{}
}

// CanonicalInput is the value a pipeline consumes.
type CanonicalInput = CanonicalValue

// CanonicalOutput is the value a pipeline produces.
type CanonicalOutput = CanonicalValue

// NewCanonicalValue builds a value of the given shape, copying data in map
// iteration order sorted by key so construction is deterministic.
func NewCanonicalValue(shape Shape, data, metadata map[string]interface{}) *CanonicalValue {
	v := &CanonicalValue{
		shape:    shape,
		data:     make(map[string]interface{}, len(data)),
		metadata: snapshotMap(metadata),
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.keys = append(v.keys, k)
		v.data[k] = data[k]
	}
	return v
}

// Shape returns the value's shape tag.
func (v *CanonicalValue) Shape() Shape { return v.shape }

// Set binds key to value, appending to the iteration order on first
// assignment. Intended for builders; shared values should be Copy()ed first.
func (v *CanonicalValue) Set(key string, value interface{}) {
	if _, ok := v.data[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.data[key] = value
}

// Get returns the value bound to key.
func (v *CanonicalValue) Get(key string) (interface{}, bool) {
	val, ok := v.data[key]
	return val, ok
}

// RequireString returns the string bound to key, failing with a distinct
// error for missing versus wrongly typed values.
func (v *CanonicalValue) RequireString(key string) (string, error) {
	raw, ok := v.data[key]
	if !ok {
		return "", NewMissingFieldError(key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewWrongTypeError(key, "string", fmt.Sprintf("%T", raw))
	}
	return s, nil
}

// Require returns the value bound to key or a MissingFieldError.
func (v *CanonicalValue) Require(key string) (interface{}, error) {
	raw, ok := v.data[key]
	if !ok {
		return nil, NewMissingFieldError(key)
	}
	return raw, nil
}

// Each iterates data entries in insertion order until fn returns false.
func (v *CanonicalValue) Each(fn func(key string, value interface{}) bool) {
	for _, k := range v.keys {
		if !fn(k, v.data[k]) {
			return
		}
	}
}

// Keys returns the data keys in insertion order.
func (v *CanonicalValue) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of data entries.
func (v *CanonicalValue) Len() int { return len(v.keys) }

// Data returns a snapshot of the data map.
func (v *CanonicalValue) Data() map[string]interface{} {
	return snapshotMap(v.data)
}

// Metadata returns a snapshot of the metadata map.
func (v *CanonicalValue) Metadata() map[string]interface{} {
	return snapshotMap(v.metadata)
}

// MetadataValue returns a single metadata entry.
func (v *CanonicalValue) MetadataValue(key string) (interface{}, bool) {
	val, ok := v.metadata[key]
	return val, ok
}

// Copy returns an independent value with the same shape, order, data, and
// metadata.
func (v *CanonicalValue) Copy() *CanonicalValue {
	out := &CanonicalValue{
		shape:    v.shape,
		keys:     make([]string, len(v.keys)),
		data:     snapshotMap(v.data),
		metadata: snapshotMap(v.metadata),
	}
	copy(out.keys, v.keys)
	return out
}

// WithShape returns a copy of the value retagged with the given shape.
func (v *CanonicalValue) WithShape(shape Shape) *CanonicalValue {
	out := v.Copy()
	out.shape = shape
	return out
}

// WithMetadata returns a new value whose metadata has been transformed by
// fn; the original is unchanged.
func (v *CanonicalValue) WithMetadata(fn func(meta map[string]interface{})) *CanonicalValue {
	out := v.Copy()
	fn(out.metadata)
	return out
}
