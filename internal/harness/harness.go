package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/policy"
	"github.com/roach88/strata/internal/projection"
	"github.com/roach88/strata/internal/service"
	"github.com/roach88/strata/internal/store"
	"github.com/roach88/strata/internal/testutil"
)

// Harness executes one scenario against a fresh in-memory log with a
// deterministic clock and view token.
type Harness struct {
	store  *store.Store
	svc    *service.Service
	clock  *testutil.StepClock
	labels map[string]string // label -> record id
	names  map[string]string // record id -> label
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Step failures that match
// expect_error are recorded in the trace; unexpected failures and failed
// assertions mark the result as failed. Infrastructure errors are returned.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	start := scenario.Clock
	if start == 0 {
		start = DefaultClock
	}
	clock := testutil.NewStepClock(start)

	st, err := store.Open(":memory:", store.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	reg, err := policy.Load(scenario.Policies)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	opts := []service.Option{service.WithTokenGenerator(service.NewFixedGenerator("scenario-" + scenario.Name))}
	if scenario.Authority != "" {
		opts = append(opts, service.WithAuthority(scenario.Authority))
	}

	h := &Harness{
		store:  st,
		svc:    service.New(st, reg, opts...),
		clock:  clock,
		labels: make(map[string]string),
		names:  make(map[string]string),
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if err := h.relabelUnnamed(ctx); err != nil {
		return nil, err
	}
	for i := range result.Trace {
		if id := result.Trace[i].Record; id != "" {
			result.Trace[i].Record = h.label(id)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(msg)
	}

	for _, domain := range scenario.Views {
		view, err := h.snapshotDomain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", domain, err)
		}
		result.Views[domain] = view
	}

	slog.Debug("scenario executed", "scenario", scenario.Name, "steps", len(scenario.Steps), "pass", result.Pass)
	return result, nil
}

func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for _, ref := range setup.Blobs {
		if err := h.store.PutBlob(ctx, ref, 0); err != nil {
			return err
		}
	}
	authors := make([]string, 0, len(setup.Reputation))
	for a := range setup.Reputation {
		authors = append(authors, a)
	}
	sort.Strings(authors)
	for _, a := range authors {
		if err := h.store.SetReputation(ctx, a, setup.Reputation[a]); err != nil {
			return err
		}
	}
	return nil
}

// executeStep runs one step. Service errors are compared with the step's
// expectation rather than returned.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	if step.At > 0 {
		h.clock.Set(step.At - 1)
	}

	event := TraceEvent{Step: n, Action: step.Action, Domain: step.Domain, Author: step.Author}

	var (
		rec    ir.Record
		err    error
		target = h.resolve(step.Target)
	)
	switch step.Action {
	case ActionPublish, ActionEdit:
		fields, convErr := h.fields(step.Fields)
		if convErr != nil {
			return convErr
		}
		if step.Action == ActionPublish {
			rec, err = h.svc.Publish(ctx, step.Domain, step.Author, fields)
		} else {
			rec, err = h.svc.PublishEdit(ctx, step.Domain, step.Author, target, fields)
		}
	case ActionDelete:
		rec, err = h.svc.DeleteEntity(ctx, step.Domain, step.Author, target)
	case ActionSweep:
		var res []election.Resolution
		res, err = h.svc.Sweep(ctx, step.Domain, step.Now)
		event.Count = len(res)
	}

	if err != nil {
		code := service.Code(err)
		event.Error = code
		if code == service.CodeInternal {
			return err
		}
		if step.ExpectError != code {
			result.AddError(fmt.Sprintf("step %d (%s %s): unexpected error %s: %v", n, step.Action, step.Domain, code, err))
		}
	} else if step.ExpectError != "" {
		result.AddError(fmt.Sprintf("step %d (%s %s): expected error %s, got success", n, step.Action, step.Domain, step.ExpectError))
	}

	if rec.ID != "" {
		if step.As != "" {
			h.labels[step.As] = rec.ID
			h.names[rec.ID] = step.As
		}
		event.Record = rec.ID
	}
	result.Trace = append(result.Trace, event)
	return nil
}

// fields converts YAML values and substitutes label references.
func (h *Harness) fields(in map[string]any) (ir.Object, error) {
	obj, err := ir.ObjectFromMap(in)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	for k, v := range obj {
		if s, ok := v.(ir.String); ok {
			obj[k] = ir.String(h.resolve(string(s)))
		}
	}
	return obj, nil
}

// resolve maps "$label" to its record id; anything else is returned as is.
func (h *Harness) resolve(ref string) string {
	if name, ok := strings.CutPrefix(ref, "$"); ok {
		if id, ok := h.labels[name]; ok {
			return id
		}
	}
	return ref
}

// label maps a record id back to "$label", or "@seq" for unlabelled
// records once relabelUnnamed has run.
func (h *Harness) label(id string) string {
	if name, ok := h.names[id]; ok {
		if strings.HasPrefix(name, "@") {
			return name
		}
		return "$" + name
	}
	return id
}

// relabelUnnamed names every unlabelled record by its log sequence.
func (h *Harness) relabelUnnamed(ctx context.Context) error {
	records, err := h.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan log: %w", err)
	}
	for _, r := range records {
		if _, ok := h.names[r.ID]; !ok {
			h.names[r.ID] = "@" + strconv.FormatInt(r.Seq, 10)
		}
	}
	return nil
}

func (h *Harness) snapshotDomain(ctx context.Context, domain string) ([]EntitySnapshot, error) {
	entities, err := h.svc.ListEntities(ctx, domain, projection.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]EntitySnapshot, len(entities))
	for i, e := range entities {
		fields := make(map[string]any, len(e.Fields()))
		for k, v := range e.Fields() {
			fields[k] = h.relabelValue(v)
		}
		out[i] = EntitySnapshot{
			Key:    h.label(projection.DisplayKey(e.Key)),
			Tip:    h.label(e.Tip.ID),
			Owner:  e.Owner(),
			Fields: fields,
		}
	}
	return out, nil
}

// relabelValue replaces record ids inside string values with labels.
func (h *Harness) relabelValue(v ir.Value) ir.Value {
	if s, ok := v.(ir.String); ok {
		return ir.String(h.label(string(s)))
	}
	return v
}
