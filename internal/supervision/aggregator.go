package supervision

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/influxdb"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/metrics"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/topology"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

// shardBuffer is the per-worker backlog of status reports.
const shardBuffer = 64

// Logger is the subset of the runtime logger used by supervision.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StatsWriter records element and participant statistics.
// *influxdb.Client satisfies it.
type StatsWriter interface {
	WriteElementStatistics(r influxdb.ElementRecord)
	WriteParticipantStatistics(r influxdb.ParticipantRecord)
}

// Deps are the collaborators of an Aggregator. Compositions, Definitions,
// Participants and Locker are required.
type Deps struct {
	Compositions store.CompositionStore
	Definitions  store.DefinitionStore
	Participants store.ParticipantStore
	Locker       coordination.Locker
	Metrics      *metrics.Metrics
	Stats        StatsWriter
	Logger       Logger

	// Workers is the number of report workers. Reports for one composition
	// always go to the same worker, so they are applied in arrival order.
	Workers int
}

// Aggregator applies participant messages to stored state and notifies
// listeners of every change.
//
// Thread Safety: all methods are safe for concurrent use. Each message is
// applied under the coordination lock of the entity it changes.
type Aggregator struct {
	compositions store.CompositionStore
	definitions  store.DefinitionStore
	participants store.ParticipantStore
	locker       coordination.Locker
	metrics      *metrics.Metrics
	stats        StatsWriter
	logger       Logger
	workers      int
	now          func() time.Time

	listenerMu           sync.RWMutex
	compositionListeners []func(*model.AutomationComposition)
	definitionListeners  []func(*model.CompositionDefinition)
	participantListeners []func(*model.Participant)
}

// New creates an Aggregator.
func New(deps Deps) *Aggregator {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	return &Aggregator{
		compositions: deps.Compositions,
		definitions:  deps.Definitions,
		participants: deps.Participants,
		locker:       deps.Locker,
		metrics:      deps.Metrics,
		stats:        deps.Stats,
		logger:       deps.Logger,
		workers:      deps.Workers,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// OnComposition registers fn to receive a copy of every saved composition.
// Compositions removed by a finished delete are delivered in state DELETED.
func (a *Aggregator) OnComposition(fn func(*model.AutomationComposition)) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	a.compositionListeners = append(a.compositionListeners, fn)
}

// OnDefinition registers fn to receive a copy of every saved definition.
func (a *Aggregator) OnDefinition(fn func(*model.CompositionDefinition)) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	a.definitionListeners = append(a.definitionListeners, fn)
}

// OnParticipant registers fn to receive a copy of every saved participant.
func (a *Aggregator) OnParticipant(fn func(*model.Participant)) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	a.participantListeners = append(a.participantListeners, fn)
}

// Run applies reports until ctx is done or reports is closed.
func (a *Aggregator) Run(ctx context.Context, reports <-chan transport.StatusReport) error {
	g, ctx := errgroup.WithContext(ctx)

	shards := make([]chan transport.StatusReport, a.workers)
	for i := range shards {
		ch := make(chan transport.StatusReport, shardBuffer)
		shards[i] = ch
		g.Go(func() error {
			for r := range ch {
				a.handleLogged(ctx, r)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case r, ok := <-reports:
				if !ok {
					return nil
				}
				select {
				case shards[shardOf(r.InstanceID, len(shards))] <- r:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})

	return g.Wait()
}

// RunParticipants applies heartbeats and prime acknowledgements until ctx
// is done or both channels are closed.
func (a *Aggregator) RunParticipants(ctx context.Context, heartbeats <-chan transport.Heartbeat, acks <-chan transport.PrimeAck) error {
	for heartbeats != nil || acks != nil {
		select {
		case <-ctx.Done():
			return nil
		case hb, ok := <-heartbeats:
			if !ok {
				heartbeats = nil
				continue
			}
			if err := a.HandleHeartbeat(ctx, hb); err != nil {
				a.logger.Warn("heartbeat not applied", logging.ParticipantID(hb.ParticipantID), logging.Err(err))
			}
		case ack, ok := <-acks:
			if !ok {
				acks = nil
				continue
			}
			if err := a.HandlePrimeAck(ctx, ack); err != nil {
				a.logger.Warn("prime acknowledgement not applied",
					logging.ParticipantID(ack.ParticipantID),
					logging.CompositionID(ack.CompositionID),
					logging.Err(err))
			}
		}
	}
	return nil
}

func (a *Aggregator) handleLogged(ctx context.Context, r transport.StatusReport) {
	err := a.Handle(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, ErrDropped):
		a.logger.Warn("status report dropped",
			logging.InstanceID(r.InstanceID),
			logging.ElementID(r.ElementID),
			logging.ParticipantID(r.ParticipantID),
			logging.States(r.DeployState, r.LockState),
			"reason", err)
	default:
		a.logger.Error("status report not applied",
			logging.InstanceID(r.InstanceID),
			logging.ElementID(r.ElementID),
			logging.Err(err))
	}
}

// Handle applies one status report.
//
// Reports for an unknown composition or element, from a participant that
// does not own the element, or carrying states the element cannot reach are
// dropped with an error matching ErrDropped and change nothing. Once the
// composition settled, a report may only refresh the element's operational
// fields. Applying the same report twice leaves the same state.
func (a *Aggregator) Handle(ctx context.Context, r transport.StatusReport) error {
	unlock, err := a.locker.Lock(ctx, r.InstanceID)
	if err != nil {
		return err
	}

	ac, err := a.compositions.Get(ctx, r.InstanceID)
	if err != nil {
		unlock()
		if errors.Is(err, model.ErrNotFound) {
			a.metrics.StatusReport(metrics.ReportUnknownComposition)
			return fmt.Errorf("%w: %s", ErrUnknownComposition, r.InstanceID)
		}
		return err
	}

	e := ac.Element(r.ElementID)
	if e == nil {
		unlock()
		a.metrics.StatusReport(metrics.ReportUnknownElement)
		return fmt.Errorf("%w: %s in %s", ErrUnknownElement, r.ElementID, r.InstanceID)
	}
	if e.ParticipantID != r.ParticipantID {
		unlock()
		a.metrics.StatusReport(metrics.ReportStaleParticipant)
		return fmt.Errorf("%w: %s reported for %s owned by %s", ErrStaleParticipant, r.ParticipantID, r.ElementID, e.ParticipantID)
	}

	if !topology.Reachable(ac, *e, r.DeployState, r.LockState) {
		unlock()
		a.metrics.StatusReport(metrics.ReportStaleState)
		return fmt.Errorf("%w: %s reported %s/%s while %s/%s in %s %s/%s", ErrUnreachableState,
			r.ElementID, r.DeployState, r.LockState, e.DeployState, e.LockState,
			ac.InstanceID, ac.DeployState, ac.LockState)
	}

	if ac.InTransition() {
		applyReport(e, r)
		if r.StateChangeResult == model.StateChangeResultFailed {
			ac.StateChangeResult = model.StateChangeResultFailed
		}
	} else {
		applyOperational(e, r)
	}
	ac.LastMsg = a.now()

	result := Rollup(ac)
	if result == RollupDeleted {
		err = a.compositions.Delete(ctx, ac.InstanceID)
	} else {
		err = a.compositions.Update(ctx, ac)
	}
	unlock()
	if err != nil {
		return fmt.Errorf("saving composition %s: %w", ac.InstanceID, err)
	}

	a.metrics.StatusReport(metrics.ReportApplied)
	if a.stats != nil {
		a.stats.WriteElementStatistics(influxdb.ElementRecord{
			InstanceID:       ac.InstanceID,
			ElementID:        e.ID,
			ParticipantID:    e.ParticipantID,
			DeployState:      string(e.DeployState),
			LockState:        string(e.LockState),
			OperationalState: e.OperationalState,
			UseState:         e.UseState,
			Timestamp:        r.Timestamp,
		})
	}
	if result == RollupCompleted || result == RollupDeleted {
		a.logger.Info("composition transition completed",
			logging.InstanceID(ac.InstanceID),
			logging.States(ac.DeployState, ac.LockState))
	}

	a.notifyComposition(ac)
	return nil
}

func applyReport(e *model.Element, r transport.StatusReport) {
	e.DeployState = r.DeployState
	e.LockState = r.LockState
	e.SubState = r.SubState
	if r.Stage != nil {
		e.Stage = model.IntPtr(*r.Stage)
	} else {
		e.Stage = nil
	}
	applyOperational(e, r)
}

// applyOperational copies the fields a participant may refresh on a settled
// element. The lifecycle states stay as they are.
func applyOperational(e *model.Element, r transport.StatusReport) {
	if r.OperationalState != "" {
		e.OperationalState = r.OperationalState
	}
	if r.UseState != "" {
		e.UseState = r.UseState
	}
	if r.OutProperties != nil {
		e.OutProperties = model.DeepCopyProperties(r.OutProperties)
	}
	e.Message = r.Message
}

func (a *Aggregator) notifyComposition(ac *model.AutomationComposition) {
	a.listenerMu.RLock()
	listeners := a.compositionListeners
	a.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(ac.DeepCopy())
	}
}

func (a *Aggregator) notifyDefinition(def *model.CompositionDefinition) {
	a.listenerMu.RLock()
	listeners := a.definitionListeners
	a.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(def.DeepCopy())
	}
}

func (a *Aggregator) notifyParticipant(p *model.Participant) {
	a.listenerMu.RLock()
	listeners := a.participantListeners
	a.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(p.DeepCopy())
	}
}

func shardOf(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck // hash.Hash never returns an error
	return int(h.Sum32() % uint32(n))
}
