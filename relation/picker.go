package relation

import "github.com/goliatone/go-crm-repository/entity"

// Picker collects the distinct key values of one attribute across a
// collection so related entities can be fetched in a single call.
// A Picker is built per resolution and must not be shared.
type Picker struct {
	field  string
	source Source
	seen   map[int]struct{}
	values []int
}

// NewPicker returns a Picker bound to field whose values are fed to source.
func NewPicker(field string, source Source) *Picker {
	return &Picker{
		field:  field,
		source: source,
		seen:   make(map[int]struct{}),
	}
}

// Field returns the attribute the picker reads.
func (p *Picker) Field() string { return p.field }

// Source returns the source the picked values are sent to.
func (p *Picker) Source() Source { return p.source }

// Pick adds value unless it is null (ok == false) or already picked.
func (p *Picker) Pick(value int, ok bool) {
	if !ok {
		return
	}
	if _, dup := p.seen[value]; dup {
		return
	}
	p.seen[value] = struct{}{}
	p.values = append(p.values, value)
}

// PickFrom reads the picker's attribute off e.
func (p *Picker) PickFrom(e entity.Entity) {
	p.Pick(e.Attribute(p.field))
}

// Values returns the distinct picked values in first seen order.
func (p *Picker) Values() []int {
	return append([]int(nil), p.values...)
}

// Len returns the number of distinct picked values.
func (p *Picker) Len() int { return len(p.values) }
