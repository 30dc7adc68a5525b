package supervision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/topology"
)

// ScannerConfig tunes the supervision scanner.
type ScannerConfig struct {
	// Interval between scans.
	Interval time.Duration

	// DefaultTimeout bounds an operation whose template declares no timeout.
	DefaultTimeout time.Duration

	// UnhealthyAfter and OfflineAfter are heartbeat ages after which a
	// participant becomes NOT_HEALTHY and then OFF_LINE.
	UnhealthyAfter time.Duration
	OfflineAfter   time.Duration
}

// Scanner periodically times out stalled transitions and degrades the
// health of silent participants.
//
// The dispatcher enforces deadlines for transitions it drives. The scanner
// covers transitions whose dispatcher goroutine is gone, for instance after
// a restart, and definitions being primed.
type Scanner struct {
	agg *Aggregator
	cfg ScannerConfig
}

// NewScanner creates a scanner working on agg's stores.
func NewScanner(agg *Aggregator, cfg ScannerConfig) *Scanner {
	return &Scanner{agg: agg, cfg: cfg}
}

// Run scans every Interval until ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil && ctx.Err() == nil {
				s.agg.logger.Warn("supervision scan incomplete", logging.Err(err))
			}
		}
	}
}

// Scan runs one pass over compositions, definitions and participants.
func (s *Scanner) Scan(ctx context.Context) error {
	return errors.Join(
		s.scanCompositions(ctx),
		s.scanDefinitions(ctx),
		s.scanParticipants(ctx),
	)
}

// templateID returns the definition whose template governs the
// composition's in-flight transition.
func templateID(ac *model.AutomationComposition) string {
	if ac.CompositionTargetID != "" &&
		(ac.DeployState == model.DeployStateMigrating || ac.SubState == model.SubStateMigrationPrechecking) {
		return ac.CompositionTargetID
	}
	return ac.CompositionID
}

func (s *Scanner) scanCompositions(ctx context.Context) error {
	all, err := s.agg.compositions.List(ctx, store.CompositionFilter{})
	if err != nil {
		return fmt.Errorf("listing compositions: %w", err)
	}

	var errs []error
	for i := range all {
		ac := &all[i]
		if !ac.InTransition() || ac.StateChangeResult != model.StateChangeResultNoError {
			continue
		}
		if err := s.timeoutComposition(ctx, ac.InstanceID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scanner) timeoutComposition(ctx context.Context, instanceID string) error {
	unlock, err := s.agg.locker.Lock(ctx, instanceID)
	if err != nil {
		return err
	}
	defer unlock()

	ac, err := s.agg.compositions.Get(ctx, instanceID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !ac.InTransition() || ac.StateChangeResult != model.StateChangeResultNoError {
		return nil
	}

	limit := s.cfg.DefaultTimeout
	if def, err := s.agg.definitions.Get(ctx, templateID(ac)); err == nil {
		limit = topology.OperationTimeout(ac, def.Template, s.cfg.DefaultTimeout)
	}
	now := s.agg.now()
	if now.Sub(ac.LastMsg) <= limit {
		return nil
	}

	ac.StateChangeResult = model.StateChangeResultTimeout
	for i := range ac.Elements {
		e := &ac.Elements[i]
		if !topology.ElementDone(ac, *e) {
			e.Message = fmt.Sprintf("timed out waiting for participant %s", e.ParticipantID)
		}
	}
	ac.LastMsg = now
	if err := s.agg.compositions.Update(ctx, ac); err != nil {
		return fmt.Errorf("timing out composition %s: %w", instanceID, err)
	}

	s.agg.metrics.ScannerTimeout("composition")
	s.agg.logger.Warn("composition transition timed out",
		logging.InstanceID(ac.InstanceID),
		logging.States(ac.DeployState, ac.LockState),
		"timeout", limit)
	s.agg.notifyComposition(ac)
	return nil
}

func (s *Scanner) scanDefinitions(ctx context.Context) error {
	all, err := s.agg.definitions.List(ctx, store.DefinitionFilter{})
	if err != nil {
		return fmt.Errorf("listing definitions: %w", err)
	}

	var errs []error
	for i := range all {
		def := &all[i]
		if !def.State.IsTransitional() || def.StateChangeResult != model.StateChangeResultNoError {
			continue
		}
		if err := s.timeoutDefinition(ctx, def.CompositionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scanner) timeoutDefinition(ctx context.Context, compositionID string) error {
	unlock, err := s.agg.locker.Lock(ctx, coordination.DefinitionKey(compositionID))
	if err != nil {
		return err
	}
	defer unlock()

	def, err := s.agg.definitions.Get(ctx, compositionID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !def.State.IsTransitional() || def.StateChangeResult != model.StateChangeResultNoError {
		return nil
	}

	limit := topology.GetTimeout(def.Template.Metadata, topology.MaxOperationWaitMs, s.cfg.DefaultTimeout)
	now := s.agg.now()
	if now.Sub(def.LastMsg) <= limit {
		return nil
	}

	def.StateChangeResult = model.StateChangeResultTimeout
	def.LastMsg = now
	if err := s.agg.definitions.Update(ctx, def); err != nil {
		return fmt.Errorf("timing out definition %s: %w", compositionID, err)
	}

	s.agg.metrics.ScannerTimeout("definition")
	s.agg.logger.Warn("composition definition timed out", logging.CompositionID(compositionID), "state", def.State)
	s.agg.notifyDefinition(def)
	return nil
}

func (s *Scanner) scanParticipants(ctx context.Context) error {
	all, err := s.agg.participants.List(ctx)
	if err != nil {
		return fmt.Errorf("listing participants: %w", err)
	}

	now := s.agg.now()
	byHealth := map[string]int{
		string(model.HealthHealthy):    0,
		string(model.HealthNotHealthy): 0,
		string(model.HealthOffline):    0,
		string(model.HealthUnknown):    0,
	}

	var errs []error
	for i := range all {
		p := &all[i]
		health, state := degrade(p, now.Sub(p.LastSeen), s.cfg)
		if health != p.Health || state != p.State {
			updated, err := s.updateParticipant(ctx, p.ParticipantID, now)
			if err != nil {
				errs = append(errs, err)
			} else if updated != nil {
				p = updated
			}
		}
		byHealth[string(p.Health)]++
	}
	s.agg.metrics.SetParticipants(byHealth)
	return errors.Join(errs...)
}

// updateParticipant re-reads p under its lock, so a heartbeat that arrived
// since the listing wins.
func (s *Scanner) updateParticipant(ctx context.Context, participantID string, now time.Time) (*model.Participant, error) {
	unlock, err := s.agg.locker.Lock(ctx, coordination.ParticipantKey(participantID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.agg.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	health, state := degrade(p, now.Sub(p.LastSeen), s.cfg)
	if health == p.Health && state == p.State {
		return p, nil
	}

	p.Health = health
	p.State = state
	if err := s.agg.participants.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving participant %s: %w", participantID, err)
	}
	s.agg.logger.Warn("participant health changed",
		logging.ParticipantID(participantID),
		"health", health,
		"last_seen", p.LastSeen)
	s.agg.recordParticipant(p)
	s.agg.notifyParticipant(p)
	return p, nil
}

// degrade derives health and state from heartbeat age. It never improves
// health; only a heartbeat does.
func degrade(p *model.Participant, age time.Duration, cfg ScannerConfig) (model.ParticipantHealth, model.ParticipantState) {
	switch {
	case cfg.OfflineAfter > 0 && age > cfg.OfflineAfter:
		return model.HealthOffline, model.ParticipantStateOffline
	case cfg.UnhealthyAfter > 0 && age > cfg.UnhealthyAfter && p.Health != model.HealthOffline:
		return model.HealthNotHealthy, p.State
	default:
		return p.Health, p.State
	}
}
