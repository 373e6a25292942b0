package election

import (
	"fmt"
	"strings"
)

// Method names a governance method.
type Method string

const (
	MethodDemocracy    Method = "DEMOCRACY"
	MethodAnarchy      Method = "ANARCHY"
	MethodMajority     Method = "MAJORITY"
	MethodMinority     Method = "MINORITY"
	MethodDictatorship Method = "DICTATORSHIP"
	MethodKarmatocracy Method = "KARMATOCRACY"
)

var methods = []Method{
	MethodDemocracy, MethodAnarchy, MethodMajority,
	MethodMinority, MethodDictatorship, MethodKarmatocracy,
}

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown governance method %q", s)
}

// Counted reports whether the method resolves by counting yes votes.
// DICTATORSHIP and KARMATOCRACY resolve by authority and score instead.
func (m Method) Counted() bool {
	switch m {
	case MethodDemocracy, MethodAnarchy, MethodMajority, MethodMinority:
		return true
	}
	return false
}

// Threshold returns the yes votes required out of total eligible voters.
// Methods that bypass counting require zero.
//
// Integer arithmetic only:
//
//	DEMOCRACY, ANARCHY  floor(total/2) + 1
//	MAJORITY            ceil(total * 4/5)
//	MINORITY            ceil(total * 1/5)
func Threshold(m Method, total int64) int64 {
	if total < 0 {
		total = 0
	}
	switch m {
	case MethodDemocracy, MethodAnarchy:
		return total/2 + 1
	case MethodMajority:
		return (total*4 + 4) / 5
	case MethodMinority:
		return (total + 4) / 5
	default:
		return 0
	}
}

// Passes reports whether yes meets the method's threshold for total.
func Passes(m Method, yes, total int64) bool {
	return m.Counted() && yes >= Threshold(m, total)
}
