package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/influxdb"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/metrics"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/topology"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

const tracerName = "github.com/onap/policy-clamp-acm/internal/dispatch"

// Logger is the subset of the runtime logger used by the dispatcher.
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

// TransitionWriter records finished transitions. *influxdb.Client
// satisfies it.
type TransitionWriter interface {
	WriteTransition(r influxdb.TransitionRecord)
}

// Request describes one accepted transition to drive.
type Request struct {
	// Composition is the snapshot committed by the provider, already in the
	// transitional states.
	Composition *model.AutomationComposition

	// Template gives start phases and stages. For migration and precheck it
	// is the target definition's template.
	Template model.ServiceTemplate

	// Timeout bounds each partition.
	Timeout time.Duration
}

// Options carries the optional collaborators of a Dispatcher.
type Options struct {
	Metrics        *metrics.Metrics
	Stats          TransitionWriter
	TracerProvider trace.TracerProvider
	Logger         Logger
}

type watcher struct {
	mu sync.Mutex
	ch chan *model.AutomationComposition
}

// offer replaces any unread snapshot with snap.
func (w *watcher) offer(snap *model.AutomationComposition) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ch:
	default:
	}
	w.ch <- snap
}

// Dispatcher drives accepted transitions partition by partition.
//
// Each transition runs in its own goroutine, outside any lock. Progress is
// observed through Notify, which the status aggregator calls after every
// saved report.
//
// Thread Safety: all methods are safe for concurrent use.
type Dispatcher struct {
	sender   transport.Sender
	recorder Recorder
	metrics  *metrics.Metrics
	stats    TransitionWriter
	tracer   trace.Tracer
	logger   Logger

	mu       sync.Mutex
	watchers map[string][]*watcher

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher sending through sender and recording through
// recorder.
func New(sender transport.Sender, recorder Recorder, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:   sender,
		recorder: recorder,
		metrics:  opts.Metrics,
		stats:    opts.Stats,
		tracer:   opts.TracerProvider.Tracer(tracerName),
		logger:   opts.Logger,
		watchers: make(map[string][]*watcher),
		base:     base,
		cancel:   cancel,
	}
}

// Start drives req in the background and returns a channel receiving the
// outcome: nil when the transition completed, model.ErrTimeout,
// model.ErrPartialFailure or the error that stopped dispatch.
//
// The run is not bound to ctx's cancellation, only to Close. The span in
// ctx, if any, is linked from the transition span.
func (d *Dispatcher) Start(ctx context.Context, req Request) <-chan error {
	done := make(chan error, 1)
	ac := req.Composition.DeepCopy()
	req.Composition = ac

	w := d.watch(ac.InstanceID)
	link := trace.LinkFromContext(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.unwatch(ac.InstanceID, w)
		done <- d.run(d.base, req, w.ch, link)
	}()
	return done
}

// Notify hands a saved composition snapshot to the transitions waiting on
// it. Only the latest snapshot per transition is kept.
func (d *Dispatcher) Notify(ac *model.AutomationComposition) {
	d.mu.Lock()
	ws := append([]*watcher(nil), d.watchers[ac.InstanceID]...)
	d.mu.Unlock()

	for _, w := range ws {
		w.offer(ac)
	}
}

// Wait blocks until every running transition has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close abandons running transitions and waits for their goroutines.
// Abandoned compositions stay in flight until the supervision scanner
// times them out.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) watch(instanceID string) *watcher {
	w := &watcher{ch: make(chan *model.AutomationComposition, 1)}
	d.mu.Lock()
	d.watchers[instanceID] = append(d.watchers[instanceID], w)
	d.mu.Unlock()
	return w
}

func (d *Dispatcher) unwatch(instanceID string, w *watcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ws := d.watchers[instanceID]
	for i, x := range ws {
		if x == w {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) == 0 {
		delete(d.watchers, instanceID)
	} else {
		d.watchers[instanceID] = ws
	}
}

func (d *Dispatcher) run(ctx context.Context, req Request, updates <-chan *model.AutomationComposition, link trace.Link) error {
	ac := req.Composition
	order := ac.CurrentOrder()
	operation := operationName(ac)
	partitions := topology.Plan(ac, req.Template)

	ctx, span := d.tracer.Start(ctx, "acm.transition",
		trace.WithLinks(link),
		trace.WithAttributes(
			attribute.String("acm.instance_id", ac.InstanceID),
			attribute.String("acm.composition_id", ac.CompositionID),
			attribute.String("acm.order", string(order)),
			attribute.Int("acm.partitions", len(partitions)),
		))
	defer span.End()

	log := d.logger
	log.Info("dispatch started",
		logging.InstanceID(ac.InstanceID),
		logging.Order(order),
		"partitions", len(partitions),
		"timeout", req.Timeout)

	d.metrics.TransitionStarted()
	started := time.Now()

	latest := ac
	var outcome error
	for i, p := range partitions {
		if i > 0 {
			snap, err := d.recorder.AdvancePhase(ctx, ac.InstanceID, order, p.Index)
			if err != nil {
				outcome = err
				break
			}
			latest = snap
		}
		latest, outcome = d.runPartition(ctx, req, latest, p, updates)
		if outcome != nil {
			break
		}
	}
	if errors.Is(outcome, ErrSettled) {
		log.Debug("composition settled before its last partition",
			logging.InstanceID(ac.InstanceID),
			logging.Order(order))
		outcome = nil
	}

	elapsed := time.Since(started)
	result := resultOf(outcome)
	d.metrics.TransitionFinished(operation, result, elapsed)
	if d.stats != nil {
		d.stats.WriteTransition(influxdb.TransitionRecord{
			InstanceID:    ac.InstanceID,
			CompositionID: ac.CompositionID,
			Operation:     operation,
			Result:        result,
			Partitions:    len(partitions),
			Duration:      elapsed,
		})
	}

	span.SetAttributes(attribute.String("acm.result", result))
	if outcome != nil {
		span.RecordError(outcome)
		span.SetStatus(codes.Error, outcome.Error())
		log.Warn("dispatch finished with error",
			logging.InstanceID(ac.InstanceID),
			logging.Order(order),
			"result", result,
			"duration", elapsed,
			logging.Err(outcome))
	} else {
		span.SetStatus(codes.Ok, "")
		log.Info("dispatch finished",
			logging.InstanceID(ac.InstanceID),
			logging.Order(order),
			"duration", elapsed)
	}
	return outcome
}

// runPartition sends the partition's commands and waits for it to finish.
// It returns the latest snapshot observed.
func (d *Dispatcher) runPartition(ctx context.Context, req Request, latest *model.AutomationComposition, p topology.Partition, updates <-chan *model.AutomationComposition) (*model.AutomationComposition, error) {
	ctx, span := d.tracer.Start(ctx, "acm.partition",
		trace.WithAttributes(attribute.Int("acm.partition", p.Index)))
	defer span.End()

	pending := topology.Pending(latest, p)
	if len(pending) == 0 {
		return latest, nil
	}

	if err := d.send(ctx, req, p, pending); err != nil {
		span.RecordError(err)
		return latest, err
	}

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	for {
		select {
		case snap := <-updates:
			latest = snap
			switch snap.StateChangeResult {
			case model.StateChangeResultFailed:
				return latest, model.ErrPartialFailure
			case model.StateChangeResultTimeout:
				return latest, model.ErrTimeout
			}
			if topology.PartitionDone(snap, p) {
				return latest, nil
			}

		case <-timer.C:
			// The last snapshot seen may be older than the stored state.
			stored, err := d.recorder.MarkTimeout(ctx, latest.InstanceID, req.Composition.CurrentOrder(), p)
			if stored != nil {
				latest = stored
			}
			switch {
			case err == nil:
				return latest, nil
			case errors.Is(err, ErrSettled), errors.Is(err, model.ErrTimeout), errors.Is(err, model.ErrPartialFailure):
				return latest, err
			default:
				d.logger.Error("recording timeout failed", logging.InstanceID(latest.InstanceID), logging.Err(err))
				return latest, model.ErrTimeout
			}

		case <-ctx.Done():
			return latest, ctx.Err()
		}
	}
}

// send emits one command per participant owning a pending element.
func (d *Dispatcher) send(ctx context.Context, req Request, p topology.Partition, pending []string) error {
	ac := req.Composition
	order := ac.CurrentOrder()
	staged := order.IsStaged()

	byParticipant := make(map[string][]transport.CommandElement)
	for _, id := range pending {
		e := ac.Element(id)
		if e == nil {
			continue
		}
		byParticipant[e.ParticipantID] = append(byParticipant[e.ParticipantID], transport.CommandElement{
			ElementID:   e.ID,
			Definition:  e.Definition,
			DeployState: e.DeployState,
			LockState:   e.LockState,
			SubState:    e.SubState,
			Properties:  model.DeepCopyProperties(e.Properties),
		})
	}

	participants := make([]string, 0, len(byParticipant))
	for id := range byParticipant {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	g, gctx := errgroup.WithContext(ctx)
	for _, participantID := range participants {
		cmd := transport.Command{
			ParticipantID:       participantID,
			Order:               string(order),
			InstanceID:          ac.InstanceID,
			CompositionID:       ac.CompositionID,
			CompositionTargetID: ac.CompositionTargetID,
			Elements:            byParticipant[participantID],
		}
		if staged {
			cmd.Stage = model.IntPtr(p.Index)
		} else {
			cmd.StartPhase = model.IntPtr(p.Index)
		}
		g.Go(func() error {
			if err := d.sender.Send(gctx, cmd); err != nil {
				return fmt.Errorf("sending %s to participant %s: %w", order, cmd.ParticipantID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// operationName labels a transition by the axis that is in flight.
func operationName(ac *model.AutomationComposition) string {
	switch {
	case ac.DeployState.IsTransitional():
		return string(ac.DeployState)
	case ac.LockState.IsTransitional():
		return string(ac.LockState)
	case ac.SubState != "" && ac.SubState != model.SubStateNone:
		return string(ac.SubState)
	default:
		return string(ac.DeployState)
	}
}

func resultOf(outcome error) string {
	switch {
	case outcome == nil:
		return string(model.StateChangeResultNoError)
	case errors.Is(outcome, model.ErrTimeout):
		return string(model.StateChangeResultTimeout)
	case errors.Is(outcome, model.ErrPartialFailure):
		return string(model.StateChangeResultFailed)
	default:
		return "ABORTED"
	}
}
