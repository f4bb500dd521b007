package fields

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Name identifies an extracted field.
type Name string

const (
	EntityName    Name = "entityName"
	TotalAmount   Name = "totalAmount"
	ReferenceCode Name = "referenceCode"
	SecondaryCode Name = "secondaryCode"
)

var knownNames = map[Name]struct{}{
	EntityName:    {},
	TotalAmount:   {},
	ReferenceCode: {},
	SecondaryCode: {},
}

// Fields holds the structured values found in a document. A nil field was not found.
type Fields struct {
	EntityName    *string
	TotalAmount   *decimal.Decimal
	ReferenceCode *string
	SecondaryCode *string
}

// Match records which rule produced a field and where in the normalized text it matched.
type Match struct {
	Field Name
	Rule  string
	Value string
	Start int
	End   int
}

// Result is the engine output: the fields plus the provenance of every populated one.
type Result struct {
	Fields  Fields
	Matches []Match
}

// Found lists the populated fields in a stable order.
func (f Fields) Found() []Name {
	var out []Name
	if f.ReferenceCode != nil {
		out = append(out, ReferenceCode)
	}
	if f.TotalAmount != nil {
		out = append(out, TotalAmount)
	}
	if f.EntityName != nil {
		out = append(out, EntityName)
	}
	if f.SecondaryCode != nil {
		out = append(out, SecondaryCode)
	}
	return out
}

// Empty reports whether no field was populated.
func (f Fields) Empty() bool {
	return len(f.Found()) == 0
}

// set assigns value to the named field. It returns false when the value cannot
// be represented (an unparsable amount), leaving the field untouched.
func (f *Fields) set(name Name, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch name {
	case EntityName:
		f.EntityName = &value
	case ReferenceCode:
		f.ReferenceCode = &value
	case SecondaryCode:
		f.SecondaryCode = &value
	case TotalAmount:
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return false
		}
		f.TotalAmount = &amount
	default:
		return false
	}
	return true
}

// accepts reports whether set would succeed for value without assigning it.
func accepts(name Name, value string) bool {
	var probe Fields
	return probe.set(name, value)
}
