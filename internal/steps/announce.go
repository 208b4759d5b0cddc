package steps

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/appforge/internal/store"
	"github.com/randalmurphal/appforge/pkg/sequence"
)

// announce runs one step body in the uniform shape: status, produce,
// log, state. A failure from produce or from the log write is announced
// as an error for the step and returned, and no state is announced.
func announce[T any](ctx sequence.Context, d *Deps, flowID, step, status string, produce func() (T, error)) (T, error) {
	d.Notifier.Status(flowID, step, status)

	result, err := produce()
	if err != nil {
		var zero T
		return zero, d.fail(flowID, step, err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		var zero T
		return zero, d.fail(flowID, step, fmt.Errorf("encode log payload: %w", err))
	}
	if err := d.record(ctx, flowID, step, string(payload)); err != nil {
		var zero T
		return zero, d.fail(flowID, step, err)
	}

	d.Notifier.State(flowID, step, result)
	return result, nil
}

// fail announces err for step and returns it.
func (d *Deps) fail(flowID, step string, err error) error {
	d.Notifier.Error(flowID, step, err.Error())
	return err
}

func (d *Deps) record(ctx sequence.Context, flowID, step, payload string) error {
	err := d.Store.AppendLog(ctx, store.LogEntry{
		FlowID:  flowID,
		Step:    step,
		Outcome: store.OutcomeSuccess,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("append step log: %w", err)
	}
	return nil
}
