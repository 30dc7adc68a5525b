package supervision

import (
	"context"
	"errors"
	"fmt"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/influxdb"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

// HandleHeartbeat registers a participant on its first heartbeat and
// refreshes its liveness afterwards. A heartbeat always brings the
// participant back ON_LINE and HEALTHY; the scanner degrades it again when
// heartbeats stop.
func (a *Aggregator) HandleHeartbeat(ctx context.Context, hb transport.Heartbeat) error {
	unlock, err := a.locker.Lock(ctx, coordination.ParticipantKey(hb.ParticipantID))
	if err != nil {
		return err
	}
	defer unlock()

	now := a.now()
	p, err := a.participants.Get(ctx, hb.ParticipantID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		p = &model.Participant{ParticipantID: hb.ParticipantID, CreatedAt: now}
		a.logger.Info("participant registered", logging.ParticipantID(hb.ParticipantID))
	case err != nil:
		return err
	}

	if p.State == model.ParticipantStateOffline {
		a.logger.Info("participant back online", logging.ParticipantID(p.ParticipantID))
	}
	p.State = model.ParticipantStateOnline
	p.Health = model.HealthHealthy
	p.LastSeen = now
	if len(hb.SupportedElementTypes) > 0 {
		p.SupportedElementTypes = append([]model.ElementType(nil), hb.SupportedElementTypes...)
	}

	if err := a.participants.Save(ctx, p); err != nil {
		return fmt.Errorf("saving participant %s: %w", p.ParticipantID, err)
	}
	a.recordParticipant(p)
	a.notifyParticipant(p)
	return nil
}

// HandlePrimeAck folds a participant's prime or deprime acknowledgement into
// the definition's element states. The definition completes to PRIMED or
// UNINITIALISED once every element definition reached that state; a FAILED
// acknowledgement marks the definition FAILED and leaves it in flight.
func (a *Aggregator) HandlePrimeAck(ctx context.Context, ack transport.PrimeAck) error {
	unlock, err := a.locker.Lock(ctx, coordination.DefinitionKey(ack.CompositionID))
	if err != nil {
		return err
	}
	defer unlock()

	def, err := a.definitions.Get(ctx, ack.CompositionID)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownDefinition, ack.CompositionID)
	}
	if err != nil {
		return err
	}

	final, ok := primeTarget(def.State)
	if !ok || final != ack.State {
		return fmt.Errorf("%w: %s is %s, ack says %s", ErrUnexpectedAck, def.CompositionID, def.State, ack.State)
	}

	if ack.StateChangeResult == model.StateChangeResultFailed {
		def.StateChangeResult = model.StateChangeResultFailed
	}
	for name, es := range def.ElementStates {
		if es.ParticipantID != ack.ParticipantID {
			continue
		}
		es.Message = ack.Message
		if ack.StateChangeResult != model.StateChangeResultFailed {
			es.State = ack.State
		}
		if out, ok := ack.OutProperties[name]; ok {
			es.OutProperties = model.DeepCopyProperties(out)
		}
		def.ElementStates[name] = es
	}

	if allInState(def, final) {
		def.State = final
		def.StateChangeResult = model.StateChangeResultNoError
		a.logger.Info("composition definition settled", logging.CompositionID(def.CompositionID), "state", def.State)
	}
	def.LastMsg = a.now()

	if err := a.definitions.Update(ctx, def); err != nil {
		return fmt.Errorf("saving definition %s: %w", def.CompositionID, err)
	}
	a.notifyDefinition(def)
	return nil
}

// primeTarget returns the state a priming or depriming definition settles in.
func primeTarget(s model.DefinitionState) (model.DefinitionState, bool) {
	switch s {
	case model.DefinitionStatePriming:
		return model.DefinitionStatePrimed, true
	case model.DefinitionStateDepriming:
		return model.DefinitionStateUninitialised, true
	default:
		return "", false
	}
}

func allInState(def *model.CompositionDefinition, s model.DefinitionState) bool {
	for _, es := range def.ElementStates {
		if es.State != s {
			return false
		}
	}
	return true
}

func (a *Aggregator) recordParticipant(p *model.Participant) {
	if a.stats == nil {
		return
	}
	a.stats.WriteParticipantStatistics(influxdb.ParticipantRecord{
		ParticipantID:  p.ParticipantID,
		State:          string(p.State),
		Health:         string(p.Health),
		SupportedTypes: len(p.SupportedElementTypes),
		Timestamp:      p.LastSeen,
	})
}
