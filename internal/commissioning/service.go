package commissioning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

// Logger defines the logging interface used by the Service.
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

// Deps are the collaborators of a Service.
type Deps struct {
	Definitions  store.DefinitionStore
	Compositions store.CompositionStore
	Participants store.ParticipantStore
	Locker       coordination.Locker
	Sender       transport.Sender
	Logger       Logger
}

// Service manages composition definitions: commissioning a template,
// priming it on the participants that will host its elements, depriming
// and decommissioning it.
//
// Priming is asynchronous. Prime and Deprime commit the transitional state
// and send commands; acknowledgements are folded in by the supervision
// aggregator.
//
// All public methods are thread-safe.
type Service struct {
	definitions  store.DefinitionStore
	compositions store.CompositionStore
	participants store.ParticipantStore
	locker       coordination.Locker
	sender       transport.Sender
	logger       Logger
	now          func() time.Time
}

// New creates a commissioning service.
func New(deps Deps) *Service {
	s := &Service{
		definitions:  deps.Definitions,
		compositions: deps.Compositions,
		participants: deps.Participants,
		locker:       deps.Locker,
		sender:       deps.Sender,
		logger:       deps.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.locker == nil {
		s.locker = coordination.NewLocalLocker()
	}
	return s
}

// Commission parses a YAML or JSON template document and stores it as a new
// UNINITIALISED definition.
func (s *Service) Commission(ctx context.Context, doc []byte) (*model.CompositionDefinition, error) {
	tmpl, err := ParseDocument(doc)
	if err != nil {
		return nil, err
	}
	return s.CommissionTemplate(ctx, *tmpl)
}

// CommissionTemplate stores an already decoded template as a new definition.
func (s *Service) CommissionTemplate(ctx context.Context, tmpl model.ServiceTemplate) (*model.CompositionDefinition, error) {
	if err := model.ValidateTemplate(&tmpl); err != nil {
		return nil, err
	}

	def := &model.CompositionDefinition{
		CompositionID:     model.GenerateID(),
		Name:              tmpl.Name,
		Version:           tmpl.Version,
		Template:          tmpl,
		State:             model.DefinitionStateUninitialised,
		StateChangeResult: model.StateChangeResultNoError,
		ElementStates:     initialElementStates(tmpl),
		LastMsg:           s.now(),
	}
	if err := s.definitions.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("commissioning %s:%s: %w", tmpl.Name, tmpl.Version, err)
	}

	s.logger.Info("composition definition commissioned",
		"composition_id", def.CompositionID,
		"name", def.Name,
		"version", def.Version,
		"elements", len(def.ElementStates))
	return def.DeepCopy(), nil
}

// Update replaces the template of a definition that is not primed.
func (s *Service) Update(ctx context.Context, compositionID string, doc []byte) (*model.CompositionDefinition, error) {
	tmpl, err := ParseDocument(doc)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, coordination.DefinitionKey(compositionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, err := s.definitions.Get(ctx, compositionID)
	if err != nil {
		return nil, err
	}
	if def.State != model.DefinitionStateUninitialised {
		return nil, fmt.Errorf("%w: definition %s is %s", model.ErrInvalidState, compositionID, def.State)
	}

	def.Name = tmpl.Name
	def.Version = tmpl.Version
	def.Template = *tmpl
	def.ElementStates = initialElementStates(*tmpl)
	def.StateChangeResult = model.StateChangeResultNoError
	def.LastMsg = s.now()
	if err := s.definitions.Update(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Get returns one definition.
func (s *Service) Get(ctx context.Context, compositionID string) (*model.CompositionDefinition, error) {
	return s.definitions.Get(ctx, compositionID)
}

// List returns definitions matching filter.
func (s *Service) List(ctx context.Context, filter store.DefinitionFilter) ([]model.CompositionDefinition, error) {
	return s.definitions.List(ctx, filter)
}

// GetElementDefinitions returns the element node templates of a definition,
// sorted by name.
func (s *Service) GetElementDefinitions(ctx context.Context, compositionID string) ([]model.ElementDefinition, error) {
	def, err := s.definitions.Get(ctx, compositionID)
	if err != nil {
		return nil, err
	}
	return def.Template.ElementDefinitions(), nil
}

// Prime assigns every element definition to an online participant that
// supports its type, moves the definition to PRIMING and sends one PRIME
// command per participant.
//
// A definition that failed or timed out while priming may be primed again.
func (s *Service) Prime(ctx context.Context, compositionID string) error {
	def, err := s.beginPrime(ctx, compositionID)
	if err != nil {
		return err
	}
	return s.sendDefinitionCommands(ctx, def, transport.OrderPrime)
}

func (s *Service) beginPrime(ctx context.Context, compositionID string) (*model.CompositionDefinition, error) {
	unlock, err := s.locker.Lock(ctx, coordination.DefinitionKey(compositionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, err := s.definitions.Get(ctx, compositionID)
	if err != nil {
		return nil, err
	}
	if !startable(def, model.DefinitionStateUninitialised, model.DefinitionStatePriming) {
		return nil, fmt.Errorf("%w: cannot prime definition %s in state %s (%s)",
			model.ErrInvalidState, compositionID, def.State, def.StateChangeResult)
	}

	online, err := s.onlineParticipants(ctx)
	if err != nil {
		return nil, err
	}

	var errs model.ErrorList
	states := make(map[string]model.ElementDefinitionState, len(def.ElementStates))
	for _, ed := range def.Template.ElementDefinitions() {
		p := pickParticipant(online, ed)
		if p == nil {
			errs.Addf("%s: no online participant supports %s:%s", ed.Name, ed.Type, ed.TypeVersion)
			continue
		}
		states[ed.Name] = model.ElementDefinitionState{
			NodeTemplateID: ed.Ref(),
			ParticipantID:  p.ParticipantID,
			State:          model.DefinitionStatePriming,
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParticipant, strings.Join(errs, "; "))
	}

	def.ElementStates = states
	def.State = model.DefinitionStatePriming
	def.StateChangeResult = model.StateChangeResultNoError
	def.LastMsg = s.now()
	if err := s.definitions.Update(ctx, def); err != nil {
		return nil, fmt.Errorf("saving definition %s: %w", compositionID, err)
	}

	s.logger.Info("priming composition definition",
		"composition_id", compositionID,
		"participants", participantsOf(def))
	return def, nil
}

// Deprime moves a primed definition to DEPRIMING and sends DEPRIME to the
// participants that primed it. Compositions must not reference it.
func (s *Service) Deprime(ctx context.Context, compositionID string) error {
	def, err := s.beginDeprime(ctx, compositionID)
	if err != nil {
		return err
	}
	return s.sendDefinitionCommands(ctx, def, transport.OrderDeprime)
}

func (s *Service) beginDeprime(ctx context.Context, compositionID string) (*model.CompositionDefinition, error) {
	unlock, err := s.locker.Lock(ctx, coordination.DefinitionKey(compositionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, err := s.definitions.Get(ctx, compositionID)
	if err != nil {
		return nil, err
	}
	if !startable(def, model.DefinitionStatePrimed, model.DefinitionStateDepriming) {
		return nil, fmt.Errorf("%w: cannot deprime definition %s in state %s (%s)",
			model.ErrInvalidState, compositionID, def.State, def.StateChangeResult)
	}
	if err := s.checkUnreferenced(ctx, compositionID); err != nil {
		return nil, err
	}

	for name, es := range def.ElementStates {
		es.State = model.DefinitionStateDepriming
		es.Message = ""
		def.ElementStates[name] = es
	}
	def.State = model.DefinitionStateDepriming
	def.StateChangeResult = model.StateChangeResultNoError
	def.LastMsg = s.now()
	if err := s.definitions.Update(ctx, def); err != nil {
		return nil, fmt.Errorf("saving definition %s: %w", compositionID, err)
	}

	s.logger.Info("depriming composition definition", "composition_id", compositionID)
	return def, nil
}

// Decommission deletes an UNINITIALISED definition that no composition
// references and returns what was deleted.
func (s *Service) Decommission(ctx context.Context, compositionID string) (*model.CompositionDefinition, error) {
	unlock, err := s.locker.Lock(ctx, coordination.DefinitionKey(compositionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	def, err := s.definitions.Get(ctx, compositionID)
	if err != nil {
		return nil, err
	}
	if def.State != model.DefinitionStateUninitialised {
		return nil, fmt.Errorf("%w: definition %s is %s", model.ErrInvalidState, compositionID, def.State)
	}
	if err := s.checkUnreferenced(ctx, compositionID); err != nil {
		return nil, err
	}
	if err := s.definitions.Delete(ctx, compositionID); err != nil {
		return nil, err
	}

	s.logger.Info("composition definition decommissioned", "composition_id", compositionID)
	return def, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// startable reports whether def may start moving toward inFlight: it rests
// in from, or a previous attempt at inFlight failed or timed out.
func startable(def *model.CompositionDefinition, from, inFlight model.DefinitionState) bool {
	switch def.State {
	case from:
		return true
	case inFlight:
		return def.StateChangeResult.IsError()
	default:
		return false
	}
}

func (s *Service) checkUnreferenced(ctx context.Context, compositionID string) error {
	all, err := s.compositions.List(ctx, store.CompositionFilter{})
	if err != nil {
		return fmt.Errorf("listing compositions: %w", err)
	}
	for i := range all {
		if all[i].CompositionID == compositionID || all[i].CompositionTargetID == compositionID {
			return fmt.Errorf("%w: %s used by %s", ErrInUse, compositionID, all[i].InstanceID)
		}
	}
	return nil
}

// onlineParticipants lists participants not OFF_LINE, sorted by id so the
// assignment is deterministic.
func (s *Service) onlineParticipants(ctx context.Context) ([]model.Participant, error) {
	all, err := s.participants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	online := all[:0]
	for _, p := range all {
		if p.State != model.ParticipantStateOffline {
			online = append(online, p)
		}
	}
	sort.Slice(online, func(i, j int) bool { return online[i].ParticipantID < online[j].ParticipantID })
	return online, nil
}

func pickParticipant(candidates []model.Participant, ed model.ElementDefinition) *model.Participant {
	for i := range candidates {
		if candidates[i].Supports(ed.Type, ed.TypeVersion) {
			return &candidates[i]
		}
	}
	return nil
}

func participantsOf(def *model.CompositionDefinition) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, es := range def.ElementStates {
		if _, ok := seen[es.ParticipantID]; ok || es.ParticipantID == "" {
			continue
		}
		seen[es.ParticipantID] = struct{}{}
		ids = append(ids, es.ParticipantID)
	}
	sort.Strings(ids)
	return ids
}

// sendDefinitionCommands sends order to each participant with the element
// definitions it hosts.
func (s *Service) sendDefinitionCommands(ctx context.Context, def *model.CompositionDefinition, order string) error {
	byParticipant := make(map[string][]model.ElementDefinition)
	for _, ed := range def.Template.ElementDefinitions() {
		es, ok := def.ElementStates[ed.Name]
		if !ok || es.ParticipantID == "" {
			continue
		}
		byParticipant[es.ParticipantID] = append(byParticipant[es.ParticipantID], ed)
	}

	var errs []error
	for _, id := range participantsOf(def) {
		cmd := transport.Command{
			ParticipantID: id,
			Order:         order,
			CompositionID: def.CompositionID,
			Definitions:   byParticipant[id],
		}
		if err := s.sender.Send(ctx, cmd); err != nil {
			s.logger.Error("failed to send definition command",
				"composition_id", def.CompositionID,
				"participant_id", id,
				"order", order,
				"error", err)
			errs = append(errs, fmt.Errorf("sending %s to %s: %w", order, id, err))
		}
	}
	return errors.Join(errs...)
}

func initialElementStates(tmpl model.ServiceTemplate) map[string]model.ElementDefinitionState {
	states := make(map[string]model.ElementDefinitionState)
	for _, ed := range tmpl.ElementDefinitions() {
		states[ed.Name] = model.ElementDefinitionState{
			NodeTemplateID: ed.Ref(),
			State:          model.DefinitionStateUninitialised,
		}
	}
	return states
}
