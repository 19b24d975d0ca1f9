package imset

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// LazyArray declares shape and dtype up front with zero I/O and reads
// only when a concrete subscript is materialized.
type LazyArray interface {
	Shape() []int
	DType() DType
	// DimNames returns the axis names matching Shape, in order.
	DimNames() []string
	// Index materializes one key per axis. Axes keyed with a bare At are
	// squeezed out of the result; Span-keyed axes are kept even when
	// they resolve to length 1.
	Index(ctx context.Context, keys ...Key) (*Array, error)
	// Tensor materializes the whole array as a gomlx tensor.
	Tensor(ctx context.Context) (*tensors.Tensor, error)
}

// ComponentArray is the deferred view of one image component. It holds
// only the shared accessor; reads are serialized by the accessor's own
// mutex, since the source supports nothing concurrent.
type ComponentArray struct {
	acc   *SetAccessor
	comp  *Component
	names []string
	shape []int
}

func newComponentArray(acc *SetAccessor, comp *Component) *ComponentArray {
	return &ComponentArray{
		acc:   acc,
		comp:  comp,
		names: comp.dims.Names(),
		shape: comp.dims.Shape(),
	}
}

func (a *ComponentArray) Shape() []int       { return append([]int(nil), a.shape...) }
func (a *ComponentArray) DType() DType       { return a.comp.dtype }
func (a *ComponentArray) DimNames() []string { return append([]string(nil), a.names...) }

func (a *ComponentArray) Index(ctx context.Context, keys ...Key) (*Array, error) {
	km, squeezeAxes, err := namedKeys(a.names, keys)
	if err != nil {
		return nil, err
	}

	a.acc.mu.Lock()
	if a.acc.closed {
		a.acc.mu.Unlock()
		return nil, ErrClosed
	}
	arr, err := a.acc.getData(ctx, a.comp, km, false)
	a.acc.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return arr.SqueezeAxes(squeezeAxes...)
}

func (a *ComponentArray) Tensor(ctx context.Context) (*tensors.Tensor, error) {
	return materializeTensor(ctx, a)
}

// AttributeArray is the deferred view of one inferred attribute.
type AttributeArray struct {
	acc   *SetAccessor
	attr  *Attribute
	names []string
	shape []int
}

func newAttributeArray(acc *SetAccessor, attr *Attribute) *AttributeArray {
	return &AttributeArray{
		acc:   acc,
		attr:  attr,
		names: attr.dims.Names(),
		shape: attr.dims.Shape(),
	}
}

func (a *AttributeArray) Shape() []int       { return append([]int(nil), a.shape...) }
func (a *AttributeArray) DType() DType       { return a.attr.dtype }
func (a *AttributeArray) DimNames() []string { return append([]string(nil), a.names...) }

func (a *AttributeArray) Index(ctx context.Context, keys ...Key) (*Array, error) {
	km, squeezeAxes, err := namedKeys(a.names, keys)
	if err != nil {
		return nil, err
	}

	a.acc.mu.Lock()
	if a.acc.closed {
		a.acc.mu.Unlock()
		return nil, ErrClosed
	}
	arr, err := a.acc.getAttribute(ctx, a.attr, km, false)
	a.acc.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return arr.SqueezeAxes(squeezeAxes...)
}

func (a *AttributeArray) Tensor(ctx context.Context) (*tensors.Tensor, error) {
	return materializeTensor(ctx, a)
}

// namedKeys zips positional per-axis keys with their axis names and
// collects the axes to squeeze: exactly those keyed by a bare integer.
func namedKeys(names []string, keys []Key) (map[string]Key, []int, error) {
	if len(keys) != len(names) {
		return nil, nil, fmt.Errorf("%w: got %d keys for %d dimensions", ErrKeyCountMismatch, len(keys), len(names))
	}
	km := make(map[string]Key, len(keys))
	var squeezeAxes []int
	for i, key := range keys {
		km[names[i]] = key
		if _, ok := key.(At); ok {
			squeezeAxes = append(squeezeAxes, i)
		}
	}
	return km, squeezeAxes, nil
}

func materializeTensor(ctx context.Context, a LazyArray) (*tensors.Tensor, error) {
	keys := make([]Key, len(a.Shape()))
	for i := range keys {
		keys[i] = All()
	}
	arr, err := a.Index(ctx, keys...)
	if err != nil {
		return nil, err
	}
	return arr.Tensor()
}

// Variable is one named array of an assembled dataset, with its axis
// names and per-variable metadata (unit, device name/alias).
type Variable struct {
	Name  string
	Dims  []string
	Attrs map[string]string
	Data  LazyArray
}

// DatasetOptions configures OpenDataset. The zero value keeps singleton
// axes (full-rank variables) and exposes no attribute variables.
type DatasetOptions struct {
	// Squeeze drops singleton axes set-wide before variables are built.
	Squeeze bool
	Logger  *log.Logger

	// AllAttributes exposes every inferred attribute as a variable.
	AllAttributes bool
	// Attributes exposes exactly the named attributes, in order.
	Attributes []string
	// RenameAttributes exposes the keyed attributes under new variable
	// names. It takes precedence over Attributes and AllAttributes.
	RenameAttributes map[string]string
}

// Dataset is the assembled lazy view of a whole image set: one Variable
// per component plus one per selected attribute, all sharing a single
// accessor and its lock.
type Dataset struct {
	acc   *SetAccessor
	order []string
	vars  map[string]*Variable
}

// OpenDataset opens a source and builds dataset variables around it.
// Shapes and dtypes are declared eagerly; no image data is read until a
// variable is indexed.
func OpenDataset(ctx context.Context, src Source, opts *DatasetOptions) (*Dataset, error) {
	if opts == nil {
		opts = &DatasetOptions{}
	}

	accOpts := []Option{WithSqueeze(opts.Squeeze)}
	if opts.Logger != nil {
		accOpts = append(accOpts, WithLogger(opts.Logger))
	}
	acc, err := Open(ctx, src, accOpts...)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{acc: acc, vars: make(map[string]*Variable)}

	for _, name := range acc.ComponentNames() {
		comp, err := acc.Component(name)
		if err != nil {
			acc.Close()
			return nil, err
		}
		attrs := map[string]string{}
		if unit := comp.Scale().Unit(); unit != "" {
			attrs["unit"] = unit
		}
		ds.add(&Variable{
			Name:  name,
			Dims:  comp.Dims().Names(),
			Attrs: attrs,
			Data:  newComponentArray(acc, comp),
		})
	}

	selected, err := selectAttributes(acc, opts)
	if err != nil {
		acc.Close()
		return nil, err
	}
	for _, sel := range selected {
		attrs := map[string]string{"name": sel.attr.Key()}
		if unit := sel.attr.Unit(); unit != "" {
			attrs["unit"] = unit
		}
		for k, v := range sel.attr.Extra() {
			attrs[k] = v
		}
		ds.add(&Variable{
			Name:  sel.name,
			Dims:  sel.attr.Dims().Names(),
			Attrs: attrs,
			Data:  newAttributeArray(acc, sel.attr),
		})
	}

	return ds, nil
}

type selectedAttr struct {
	name string
	attr *Attribute
}

func selectAttributes(acc *SetAccessor, opts *DatasetOptions) ([]selectedAttr, error) {
	switch {
	case len(opts.RenameAttributes) > 0:
		sources := make([]string, 0, len(opts.RenameAttributes))
		for source := range opts.RenameAttributes {
			sources = append(sources, source)
		}
		sort.Strings(sources)
		out := make([]selectedAttr, 0, len(sources))
		for _, source := range sources {
			attr, err := acc.Attribute(source)
			if err != nil {
				return nil, err
			}
			out = append(out, selectedAttr{name: opts.RenameAttributes[source], attr: attr})
		}
		return out, nil
	case len(opts.Attributes) > 0:
		out := make([]selectedAttr, 0, len(opts.Attributes))
		for _, name := range opts.Attributes {
			attr, err := acc.Attribute(name)
			if err != nil {
				return nil, err
			}
			out = append(out, selectedAttr{name: name, attr: attr})
		}
		return out, nil
	case opts.AllAttributes:
		names := acc.AttributeNames()
		out := make([]selectedAttr, 0, len(names))
		for _, name := range names {
			attr, err := acc.Attribute(name)
			if err != nil {
				return nil, err
			}
			out = append(out, selectedAttr{name: name, attr: attr})
		}
		return out, nil
	default:
		return nil, nil
	}
}

func (d *Dataset) add(v *Variable) {
	if _, exists := d.vars[v.Name]; !exists {
		d.order = append(d.order, v.Name)
	}
	d.vars[v.Name] = v
}

func (d *Dataset) Title() string { return d.acc.Title() }

// Accessor returns the shared accessor behind the dataset's variables.
func (d *Dataset) Accessor() *SetAccessor { return d.acc }

// Variables lists variable names: components first, then attributes.
func (d *Dataset) Variables() []string { return append([]string(nil), d.order...) }

// Var looks up a variable by name.
func (d *Dataset) Var(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Close closes the shared accessor.
func (d *Dataset) Close() error { return d.acc.Close() }
