package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/topology"
)

// ErrSettled reports that the composition left the transition being
// dispatched, either because it completed or because it was removed.
var ErrSettled = fmt.Errorf("%w: composition left the transition", model.ErrInvalidState)

// Recorder persists the dispatcher's own state changes. Each call runs under
// the composition's coordination lock.
type Recorder interface {
	// AdvancePhase moves the composition to the next partition and returns
	// the stored snapshot. It fails when the composition left the transition
	// identified by order or already carries an error result.
	AdvancePhase(ctx context.Context, instanceID string, order model.Order, phase int) (*model.AutomationComposition, error)

	// MarkTimeout re-reads the composition and decides the outcome of
	// partition p whose deadline passed. It returns the stored snapshot with:
	//   - nil when p finished in the stored state; nothing is written
	//   - ErrSettled when the composition left the transition
	//   - model.ErrTimeout or model.ErrPartialFailure when the composition
	//     already carries that result
	//   - model.ErrTimeout after setting StateChangeResult=TIMEOUT and tagging
	//     each unfinished element with the participant that did not answer
	MarkTimeout(ctx context.Context, instanceID string, order model.Order, p topology.Partition) (*model.AutomationComposition, error)
}

// StoreRecorder is the Recorder backed by the composition store.
type StoreRecorder struct {
	repo     store.CompositionStore
	locker   coordination.Locker
	now      func() time.Time
	onChange func(*model.AutomationComposition)
}

// NewStoreRecorder creates a recorder writing through repo under locker.
func NewStoreRecorder(repo store.CompositionStore, locker coordination.Locker) *StoreRecorder {
	return &StoreRecorder{
		repo:   repo,
		locker: locker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetOnChange registers a callback receiving a copy of every composition
// the recorder saves.
func (r *StoreRecorder) SetOnChange(fn func(*model.AutomationComposition)) {
	r.onChange = fn
}

// AdvancePhase implements Recorder.
func (r *StoreRecorder) AdvancePhase(ctx context.Context, instanceID string, order model.Order, phase int) (*model.AutomationComposition, error) {
	unlock, err := r.locker.Lock(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ac, err := r.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := stillRunning(ac, order); err != nil {
		return nil, err
	}

	ac.Phase = model.IntPtr(phase)
	ac.LastMsg = r.now()
	if err := r.repo.Update(ctx, ac); err != nil {
		return nil, fmt.Errorf("advancing phase: %w", err)
	}
	r.changed(ac)
	return ac.DeepCopy(), nil
}

// MarkTimeout implements Recorder.
func (r *StoreRecorder) MarkTimeout(ctx context.Context, instanceID string, order model.Order, p topology.Partition) (*model.AutomationComposition, error) {
	unlock, err := r.locker.Lock(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ac, err := r.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := stillRunning(ac, order); err != nil {
		return ac, err
	}
	if topology.PartitionDone(ac, p) {
		return ac, nil
	}

	ac.StateChangeResult = model.StateChangeResultTimeout
	for _, id := range topology.Pending(ac, p) {
		e := ac.Element(id)
		e.Message = fmt.Sprintf("timed out waiting for participant %s", e.ParticipantID)
	}
	ac.LastMsg = r.now()
	if err := r.repo.Update(ctx, ac); err != nil {
		return nil, fmt.Errorf("recording timeout: %w", err)
	}
	r.changed(ac)
	return ac.DeepCopy(), model.ErrTimeout
}

// load reads the composition. A composition that is gone finished its
// delete, so it counts as settled.
func (r *StoreRecorder) load(ctx context.Context, instanceID string) (*model.AutomationComposition, error) {
	ac, err := r.repo.Get(ctx, instanceID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s was removed", ErrSettled, instanceID)
	}
	return ac, err
}

func (r *StoreRecorder) changed(ac *model.AutomationComposition) {
	if r.onChange != nil {
		r.onChange(ac.DeepCopy())
	}
}

func stillRunning(ac *model.AutomationComposition, order model.Order) error {
	if ac.CurrentOrder() != order {
		return fmt.Errorf("%w: %s is no longer in %s", ErrSettled, ac.InstanceID, order)
	}
	switch ac.StateChangeResult {
	case model.StateChangeResultFailed:
		return model.ErrPartialFailure
	case model.StateChangeResultTimeout:
		return model.ErrTimeout
	}
	return nil
}
