package model

import (
	"fmt"
	"sort"
)

// DataPart holds a set of named fields that linked scripts read and write
// attribute-style. Unlike a variable part, the part itself is the link
// target; field access goes through it.
type DataPart struct {
	*BasePart
	fields map[string]any
}

func NewDataPart(parent Part, name string) *DataPart {
	d := &DataPart{fields: map[string]any{}}
	d.BasePart = NewBasePart(d, parent, "data", name)
	return d
}

func (d *DataPart) GetField(name string) (any, bool) {
	v, ok := d.fields[name]
	return v, ok
}

func (d *DataPart) SetField(name string, value any) error {
	if p, ok := value.(Part); ok {
		return fmt.Errorf("data part %q cannot store scenario part %q in field %q",
			d.Path(), p.Path(), name)
	}
	d.fields[name] = value
	return nil
}

func (d *DataPart) DeleteField(name string) bool {
	if _, ok := d.fields[name]; !ok {
		return false
	}
	delete(d.fields, name)
	return true
}

// FieldNames returns the field names, sorted.
func (d *DataPart) FieldNames() []string {
	names := make([]string, 0, len(d.fields))
	for name := range d.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CopyFrom replaces this part's fields with a shallow copy of another data
// part's fields.
func (d *DataPart) CopyFrom(other *DataPart) {
	d.fields = make(map[string]any, len(other.fields))
	for k, v := range other.fields {
		d.fields[k] = v
	}
}

// AssignFromObject accepts another data part (copying its fields) or a
// map of field values.
func (d *DataPart) AssignFromObject(value any) error {
	switch v := value.(type) {
	case *DataPart:
		d.CopyFrom(v)
		return nil
	case map[string]any:
		d.fields = map[string]any{}
		for k, val := range v {
			if err := d.SetField(k, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("data part %q can only be assigned another data part or a field map, got %T",
			d.Path(), value)
	}
}

func init() {
	RegisterPartType("data", func(parent Part, name string) (Part, error) {
		return NewDataPart(parent, name), nil
	})
}
