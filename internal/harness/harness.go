package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/storekit/internal/clock"
	"github.com/roach88/storekit/internal/durable"
	"github.com/roach88/storekit/internal/event"
	"github.com/roach88/storekit/internal/history"
	"github.com/roach88/storekit/internal/kv"
	"github.com/roach88/storekit/internal/schema"
	"github.com/roach88/storekit/internal/testutil"
)

// Final is the adapters' state after a run.
type Final struct {
	Durable durable.Envelope          `json:"durable"`
	History map[string]history.Record `json:"history"`
	Entries int                       `json:"entries"`
	Index   int                       `json:"index"`
}

// Harness executes one scenario.
type Harness struct {
	durable *durable.Adapter
	history *history.Adapter
	nav     *history.MemoryNavigator
	seq     *clock.Sequence
	watched map[string]bool
	result  *Result
}

// Run executes a scenario and returns the result.
//
// Each run gets fresh in-memory backends and deterministic clocks. A
// returned error means the scenario could not be set up; step and assertion
// failures are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	name := scenario.Store
	if name == "" {
		name = "scenario"
	}
	var validator schema.Validator
	if scenario.Schema != "" {
		v, err := schema.CompileCUE(name, scenario.Schema, "")
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema: %w", err)
		}
		validator = v
	}

	bus := event.NewBus(event.WithLogger(logger))
	nav := history.NewMemoryNavigator(bus)
	h := &Harness{
		durable: durable.New(name, kv.NewMemory(), validator,
			durable.WithBus(bus),
			durable.WithClock(testutil.NewDeterministicClock()),
			durable.WithLogger(logger),
			durable.WithStrict(),
		),
		history: history.New(nav, bus,
			history.WithClock(testutil.NewDeterministicClock()),
			history.WithLogger(logger),
		),
		nav:     nav,
		seq:     clock.NewSequence(),
		watched: map[string]bool{},
		result:  NewResult(),
	}
	defer h.history.Close()

	h.durable.Subscribe(func(cur, prev map[string]any) {
		h.record(TraceEvent{Kind: KindStorage, Value: cur, Prev: prev})
	})

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	final, err := h.final(ctx)
	if err != nil {
		return nil, err
	}
	h.result.Final = final

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) record(ev TraceEvent) int {
	ev.Seq = h.seq.Next()
	h.result.Trace = append(h.result.Trace, ev)
	return len(h.result.Trace) - 1
}

// watch records history notifications for key from now on.
func (h *Harness) watch(key string) {
	if h.watched[key] {
		return
	}
	h.watched[key] = true
	h.history.Subscribe(key, func(value, old any) {
		h.record(TraceEvent{Kind: KindHistory, Key: key, Value: value, Prev: old})
	})
}

// execute runs one step. The step event is recorded before the step runs so
// that notifications it causes follow it in the trace.
func (h *Harness) execute(ctx context.Context, index int, step Step) error {
	ev := TraceEvent{Kind: KindStep, Op: step.Op, Key: step.Key}
	switch step.Op {
	case OpSetItem, OpHistorySet:
		ev.Value = step.Value
	case OpSetStoreData:
		ev.Value = step.Data
	}
	if slices.Contains([]string{OpHistorySet, OpHistoryRemove, OpHistoryGet}, step.Op) {
		h.watch(step.Key)
	}
	at := h.record(ev)

	outcome, value, err := h.apply(ctx, step)
	if err != nil {
		return err
	}
	h.result.Trace[at].Outcome = outcome
	if value != nil {
		h.result.Trace[at].Value = value
	}

	if step.Expect != nil {
		h.check(index, step, outcome, value)
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, step Step) (outcome string, value any, err error) {
	switch step.Op {
	case OpSetItem:
		return durableOutcome(h.durable.SetItem(ctx, step.Key, step.Value))
	case OpSetStoreData:
		return durableOutcome(h.durable.SetStoreData(ctx, step.Data))
	case OpRemoveItem:
		if err := h.durable.RemoveItem(ctx, step.Key); err != nil {
			return "", nil, err
		}
		return OutcomeOK, nil, nil
	case OpGetItem:
		v, err := h.durable.GetItem(ctx, step.Key, nil)
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			return OutcomeMissing, nil, nil
		}
		return OutcomeOK, v, nil

	case OpHistorySet:
		if !h.history.SetValue(step.Key, step.Value) {
			return OutcomeSuppressed, nil, nil
		}
		return OutcomeOK, nil, nil
	case OpHistoryRemove:
		if !h.history.RemoveItem(step.Key) {
			return OutcomeMissing, nil, nil
		}
		return OutcomeOK, nil, nil
	case OpHistoryGet:
		v := h.history.GetValue(step.Key)
		if v == nil {
			return OutcomeMissing, nil, nil
		}
		return OutcomeOK, v, nil

	case OpPush:
		h.nav.PushState(step.Data)
		return OutcomeOK, h.nav.Index(), nil
	case OpReplace:
		h.nav.ReplaceState(step.Data)
		return OutcomeOK, h.nav.Index(), nil
	case OpBack, OpForward:
		moved := h.nav.Back
		if step.Op == OpForward {
			moved = h.nav.Forward
		}
		if !moved() {
			return OutcomeOutOfRange, h.nav.Index(), nil
		}
		return OutcomeOK, h.nav.Index(), nil
	case OpUnload:
		h.nav.Unload()
		return OutcomeOK, h.nav.Index(), nil
	}
	return "", nil, fmt.Errorf("unknown op %q", step.Op)
}

// durableOutcome maps a strict-mode write error to an outcome. Only schema
// rejections are outcomes; anything else aborts the run.
func durableOutcome(err error) (string, any, error) {
	switch {
	case err == nil:
		return OutcomeOK, nil, nil
	case schema.IsValidationError(err):
		return OutcomeRejected, nil, nil
	default:
		return OutcomeError, nil, err
	}
}

func (h *Harness) check(index int, step Step, outcome string, value any) {
	want := step.Expect.Outcome
	if want == "" {
		want = OutcomeOK
	}
	if outcome != want {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s", index, step.Op, want, outcome))
	}
	if step.Expect.Value != nil && !sameJSON(step.Expect.Value, value) {
		h.result.AddError(fmt.Sprintf("steps[%d] %s: expected value %v, got %v", index, step.Op, step.Expect.Value, value))
	}
}

func (h *Harness) final(ctx context.Context) (Final, error) {
	env, err := h.durable.GetEnvelope(ctx)
	if err != nil {
		return Final{}, fmt.Errorf("read durable state: %w", err)
	}
	records := map[string]history.Record{}
	for _, key := range h.history.Keys() {
		if rec, ok := h.history.GetItem(key); ok {
			records[key] = rec
		}
	}
	return Final{
		Durable: env,
		History: records,
		Entries: h.nav.Len(),
		Index:   h.nav.Index(),
	}, nil
}
