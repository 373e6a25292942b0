package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
	"github.com/roach88/strata/internal/service"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Index    int
	Type     string
	Domain   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertions[%d] failed: %s on %s\n", e.Index, e.Type, e.Domain)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertions runs every assertion and returns failure messages.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) {
				ae.Index = i
			}
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Domain: a.Domain, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertVisible, AssertCount:
		list, err := h.svc.ListEntities(ctx, a.Domain, a.Filter.filter())
		if err != nil {
			return fail("listing", fmt.Sprintf("error %s: %v", service.Code(err), err))
		}
		if a.Type == AssertCount {
			if len(list) != a.Count {
				return fail(fmt.Sprintf("%d entities", a.Count), fmt.Sprintf("%d entities", len(list)))
			}
			return nil
		}
		got := make([]string, len(list))
		for i, e := range list {
			got[i] = h.label(e.Tip.ID)
		}
		want := a.Tips
		if want == nil {
			want = []string{}
		}
		if !reflect.DeepEqual(got, want) {
			return fail(fmt.Sprintf("tips %v", want), fmt.Sprintf("tips %v", got))
		}

	case AssertHidden:
		_, err := h.svc.GetEntity(ctx, a.Domain, h.resolve(a.ID))
		if service.Code(err) != service.CodeNotFound {
			return fail(a.ID+" hidden", fmt.Sprintf("lookup returned %v", err))
		}

	case AssertTip, AssertFields:
		e, err := h.svc.GetEntity(ctx, a.Domain, h.resolve(a.ID))
		if err != nil {
			return fail(a.ID+" visible", fmt.Sprintf("error %s: %v", service.Code(err), err))
		}
		if a.Type == AssertTip {
			if got := h.label(e.Tip.ID); got != a.Tip {
				return fail("tip "+a.Tip, "tip "+got)
			}
			return nil
		}
		want, err := ir.ObjectFromMap(a.Expect)
		if err != nil {
			return fail("convertible expect", err.Error())
		}
		fields := e.Fields()
		for k, v := range want {
			if s, ok := v.(ir.String); ok {
				v = ir.String(h.resolve(string(s)))
			}
			if got, ok := fields[k]; !ok || !reflect.DeepEqual(got, v) {
				return fail(fmt.Sprintf("%s = %v", k, v), fmt.Sprintf("%s = %v", k, got))
			}
		}

	case AssertElection:
		method := election.MethodDemocracy
		if a.Method != "" {
			m, err := election.ParseMethod(a.Method)
			if err != nil {
				return fail("valid method", err.Error())
			}
			method = m
		}
		res, err := h.svc.Election(ctx, a.Domain, a.Key, method)
		if err != nil {
			return fail("election result", fmt.Sprintf("error %s: %v", service.Code(err), err))
		}
		if string(res.Outcome) != a.Outcome {
			return fail("outcome "+a.Outcome, "outcome "+string(res.Outcome))
		}
		if a.Winner != "" {
			got := "<none>"
			if res.Winner != nil {
				got = h.label(res.Winner.ID)
			}
			if got != a.Winner {
				return fail("winner "+a.Winner, "winner "+got)
			}
		}
	}
	return nil
}

func (f *FilterSpec) filter() projection.Filter {
	if f == nil {
		return projection.Filter{}
	}
	return projection.Filter{
		Author:   f.Author,
		Category: f.Category,
		Statuses: f.Status,
		Since:    f.Since,
		Order:    projection.Order(f.Order),
		Limit:    f.Limit,
	}
}
