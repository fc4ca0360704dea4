package jql

import "time"

// CurrentUserPlaceholder is emitted by the parser for the currentUser()
// function. It is resolved against the authenticated principal at search
// time, never at parse time.
const CurrentUserPlaceholder = "@currentUser"

// DateOp is a comparison operator on a date field.
type DateOp string

// Supported date comparison operators.
const (
	DateAfter      DateOp = ">"
	DateAtOrAfter  DateOp = ">="
	DateBefore     DateOp = "<"
	DateAtOrBefore DateOp = "<="
)

// DateFilter restricts a date field (created or updated) relative to a bound.
type DateFilter struct {
	Field string
	Op    DateOp
	Bound time.Time
}

// SortKey is one ORDER BY component.
type SortKey struct {
	Field      string
	Descending bool
}

// Plan is the structured output of parsing a filter string. A zero Plan
// matches everything.
type Plan struct {
	Equals    map[string]string
	NotEquals map[string]string
	In        map[string][]string
	Dates     []DateFilter
	OrderBy   []SortKey
}

// Empty reports whether the plan has no filters and no sort keys.
func (p *Plan) Empty() bool {
	return len(p.Equals) == 0 && len(p.NotEquals) == 0 && len(p.In) == 0 &&
		len(p.Dates) == 0 && len(p.OrderBy) == 0
}

// MatchFields applies the equality, inequality and set filters against a
// multi-valued field map. Date filters and sort keys are ignored; callers that
// own timestamps apply those separately. A field with several values (labels)
// matches when any value does.
func (p *Plan) MatchFields(fields map[string][]string) bool {
	for field, want := range p.Equals {
		if !containsValue(fields[field], want) {
			return false
		}
	}
	for field, reject := range p.NotEquals {
		if containsValue(fields[field], reject) {
			return false
		}
	}
	for field, set := range p.In {
		matched := false
		for _, want := range set {
			if containsValue(fields[field], want) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsValue(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func newPlan() Plan {
	return Plan{
		Equals:    make(map[string]string),
		NotEquals: make(map[string]string),
		In:        make(map[string][]string),
	}
}
