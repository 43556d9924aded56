package model

import "fmt"

// VariablePart stores a single value. Linked scripts see the value itself,
// not the part: reading a link to a variable yields the stored value, and
// assigning through the link replaces it.
type VariablePart struct {
	*BasePart
	value any
}

func NewVariablePart(parent Part, name string) *VariablePart {
	v := &VariablePart{}
	v.BasePart = NewBasePart(v, parent, "variable", name)
	return v
}

func (v *VariablePart) Value() any { return v.value }

// SetValue replaces the stored value. Scenario parts cannot be stored; a
// link is the only sanctioned way to reference another part.
func (v *VariablePart) SetValue(value any) error {
	if p, ok := value.(Part); ok {
		return fmt.Errorf("variable part %q cannot reference scenario part %q", v.Path(), p.Path())
	}
	v.value = value
	return nil
}

func (v *VariablePart) AsLinkTargetValue() any { return v.value }

func (v *VariablePart) AssignFromObject(value any) error {
	return v.SetValue(value)
}

func init() {
	RegisterPartType("variable", func(parent Part, name string) (Part, error) {
		return NewVariablePart(parent, name), nil
	})
}
