package instantiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/dispatch"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/supervision"
	"github.com/onap/policy-clamp-acm/internal/topology"
	"github.com/onap/policy-clamp-acm/internal/transition"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

// Logger defines the logging interface used by the Provider.
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

// Starter starts driving an accepted transition. *dispatch.Dispatcher
// satisfies it.
type Starter interface {
	Start(ctx context.Context, req dispatch.Request) <-chan error
}

// Reporter applies a participant status report. *supervision.Aggregator
// satisfies it.
type Reporter interface {
	Handle(ctx context.Context, r transport.StatusReport) error
}

// Deps are the collaborators of a Provider.
type Deps struct {
	Compositions store.CompositionStore
	Definitions  store.DefinitionStore
	Participants store.ParticipantStore
	Rollbacks    store.RollbackStore
	Locker       coordination.Locker
	Dispatcher   Starter
	Reporter     Reporter

	// DefaultTimeout bounds a transition whose template declares no
	// operation timeout.
	DefaultTimeout time.Duration

	Logger Logger
}

// defaultOperationWait matches the config default for max_operation_wait_ms.
const defaultOperationWait = 200 * time.Second

// Response is returned by create, update and delete.
type Response struct {
	InstanceID string   `json:"instance_id,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// CommandResponse is returned by IssueCommand.
type CommandResponse struct {
	AffectedInstanceIDs []string `json:"affected_instance_ids"`
}

// Provider is the entry point for every composition instance operation.
//
// Each mutation holds the coordination lock for the instance only while it
// reads, validates and writes. Commands to participants are dispatched
// after the lock is released, so a slow participant never blocks other
// callers.
//
// All public methods are thread-safe.
type Provider struct {
	compositions   store.CompositionStore
	definitions    store.DefinitionStore
	participants   store.ParticipantStore
	rollbacks      store.RollbackStore
	locker         coordination.Locker
	dispatcher     Starter
	reporter       Reporter
	defaultTimeout time.Duration
	logger         Logger
	now            func() time.Time
}

// New creates a provider.
func New(deps Deps) *Provider {
	p := &Provider{
		compositions:   deps.Compositions,
		definitions:    deps.Definitions,
		participants:   deps.Participants,
		rollbacks:      deps.Rollbacks,
		locker:         deps.Locker,
		dispatcher:     deps.Dispatcher,
		reporter:       deps.Reporter,
		defaultTimeout: deps.DefaultTimeout,
		logger:         deps.Logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	if p.locker == nil {
		p.locker = coordination.NewLocalLocker()
	}
	if p.defaultTimeout <= 0 {
		p.defaultTimeout = defaultOperationWait
	}
	return p
}

// pendingDispatch is a committed transition waiting to be dispatched once
// the lock is released.
type pendingDispatch struct {
	ac   *model.AutomationComposition
	tmpl model.ServiceTemplate
}

func (p *Provider) dispatch(ctx context.Context, jobs ...pendingDispatch) {
	if p.dispatcher == nil {
		return
	}
	for _, j := range jobs {
		p.dispatcher.Start(ctx, dispatch.Request{
			Composition: j.ac,
			Template:    j.tmpl,
			Timeout:     topology.OperationTimeout(j.ac, j.tmpl, p.defaultTimeout),
		})
	}
}

// ─── Create ─────────────────────────────────────────────────────────────────

// Create stores a new UNDEPLOYED composition.
//
// The definition must exist and be PRIMED, every element must reference a
// node template of that definition with the same version, and elements
// without a participant get the one that primed their definition.
//
// Returns:
//   - model.ErrValidation (as a model.ErrorList): malformed request
//   - model.ErrNotFound: unknown definition
//   - model.ErrInvalidState: definition not primed
//   - model.ErrDefinitionMismatch: element definition not in the template
//   - model.ErrAlreadyDefined: instance id or name/version already used
func (p *Provider) Create(ctx context.Context, req *model.AutomationComposition) (*Response, error) {
	if req == nil {
		return nil, model.ErrorList{"composition is required"}
	}
	ac := req.DeepCopy()
	if ac.InstanceID == "" {
		ac.InstanceID = model.GenerateID()
	}
	if err := model.ValidateComposition(ac); err != nil {
		return nil, err
	}

	def, err := p.primedDefinition(ctx, ac.CompositionID)
	if err != nil {
		return nil, err
	}
	if err := checkElements(ac.Elements, def.Template); err != nil {
		return nil, err
	}
	if err := p.resolveParticipants(ctx, ac, def); err != nil {
		return nil, err
	}
	resetIdle(ac, model.DeployStateUndeployed, model.LockStateNone)
	ac.CompositionTargetID = ""
	ac.LastMsg = p.now()
	ac.CreatedAt = time.Time{}

	unlock, err := p.locker.Lock(ctx, ac.InstanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	unlockDef, err := p.lockPrimed(ctx, ac.CompositionID)
	if err != nil {
		return nil, err
	}
	defer unlockDef()

	if _, err := p.compositions.Get(ctx, ac.InstanceID); err == nil {
		return nil, fmt.Errorf("%w: composition %s", model.ErrAlreadyDefined, ac.InstanceID)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if err := p.compositions.Create(ctx, ac); err != nil {
		return nil, err
	}

	p.logger.Info("composition created",
		logging.InstanceID(ac.InstanceID),
		logging.CompositionID(ac.CompositionID),
		"elements", len(ac.Elements))
	return &Response{InstanceID: ac.InstanceID}, nil
}

// ─── Update & Migrate ───────────────────────────────────────────────────────

// Update changes a composition.
//
// An UNDEPLOYED composition is edited in place. A DEPLOYED and LOCKED
// composition starts an UPDATE transition carrying the new element
// properties, or a MIGRATE transition when CompositionTargetID names another
// primed definition. Other states are rejected with model.ErrInvalidState.
func (p *Provider) Update(ctx context.Context, req *model.AutomationComposition) (*Response, error) {
	return p.update(ctx, req, false)
}

// PrecheckMigration asks participants whether a migration to
// req.CompositionTargetID would succeed, without changing the stored
// elements. The composition must be DEPLOYED and LOCKED.
func (p *Provider) PrecheckMigration(ctx context.Context, req *model.AutomationComposition) (*Response, error) {
	if req == nil || req.CompositionTargetID == "" {
		return nil, model.ErrorList{"composition_target_id is required for a migration precheck"}
	}
	return p.update(ctx, req, true)
}

func (p *Provider) update(ctx context.Context, req *model.AutomationComposition, precheck bool) (*Response, error) {
	if req == nil {
		return nil, model.ErrorList{"composition is required"}
	}
	if req.InstanceID == "" {
		return nil, model.ErrorList{"instance_id is required"}
	}

	job, err := p.commitUpdate(ctx, req.DeepCopy(), precheck)
	if err != nil {
		return nil, err
	}
	if job != nil {
		p.dispatch(ctx, *job)
	}
	return &Response{InstanceID: req.InstanceID}, nil
}

func (p *Provider) commitUpdate(ctx context.Context, req *model.AutomationComposition, precheck bool) (*pendingDispatch, error) {
	unlock, err := p.locker.Lock(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := p.compositions.Get(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}

	if current.DeployState == model.DeployStateUndeployed && !current.InTransition() && !precheck {
		return nil, p.editInPlace(ctx, current, req)
	}

	switch {
	case req.CompositionTargetID != "" && req.CompositionTargetID != current.CompositionID:
		return p.migrate(ctx, current, req, precheck)
	case precheck:
		return nil, model.ErrorList{"composition_target_id must differ from composition_id"}
	default:
		return p.updateDeployed(ctx, current, req)
	}
}

func (p *Provider) editInPlace(ctx context.Context, current, req *model.AutomationComposition) error {
	if req.CompositionID == "" {
		req.CompositionID = current.CompositionID
	}
	if err := model.ValidateComposition(req); err != nil {
		return err
	}
	def, err := p.primedDefinition(ctx, req.CompositionID)
	if err != nil {
		return err
	}
	if err := checkElements(req.Elements, def.Template); err != nil {
		return err
	}
	if err := p.resolveParticipants(ctx, req, def); err != nil {
		return err
	}

	current.Name = req.Name
	current.Version = req.Version
	current.Description = req.Description
	current.CompositionID = req.CompositionID
	current.CompositionTargetID = ""
	current.Elements = req.Elements
	resetIdle(current, model.DeployStateUndeployed, model.LockStateNone)
	current.LastMsg = p.now()

	unlockDef, err := p.lockPrimed(ctx, req.CompositionID)
	if err != nil {
		return err
	}
	defer unlockDef()
	if err := p.compositions.Update(ctx, current); err != nil {
		return err
	}

	p.logger.Info("composition updated", logging.InstanceID(current.InstanceID))
	return nil
}

func (p *Provider) updateDeployed(ctx context.Context, current, req *model.AutomationComposition) (*pendingDispatch, error) {
	def, err := p.definitions.Get(ctx, current.CompositionID)
	if err != nil {
		return nil, err
	}
	target, err := transition.Validate(current, model.OrderUpdate)
	if err != nil {
		return nil, err
	}
	if err := mergeProperties(current, req.Elements); err != nil {
		return nil, err
	}
	if err := p.checkParticipants(ctx, current); err != nil {
		return nil, err
	}
	if req.Description != "" {
		current.Description = req.Description
	}

	transition.Apply(current, target, def.Template, p.now())
	if err := p.compositions.Update(ctx, current); err != nil {
		return nil, err
	}

	p.logger.Info("composition update accepted", logging.InstanceID(current.InstanceID))
	return &pendingDispatch{ac: current.DeepCopy(), tmpl: def.Template}, nil
}

// migrate moves current to the target definition. Element ids are kept;
// each element takes the definition version and properties of the request.
// A full migration snapshots the elements first so it can be reverted.
func (p *Provider) migrate(ctx context.Context, current, req *model.AutomationComposition, precheck bool) (*pendingDispatch, error) {
	order := model.OrderMigrate
	if precheck {
		order = model.OrderMigratePrecheck
	}
	target, err := transition.Validate(current, order)
	if err != nil {
		return nil, err
	}

	def, err := p.primedDefinition(ctx, req.CompositionTargetID)
	if err != nil {
		return nil, err
	}
	migrated, err := migratedElements(current, req.Elements)
	if err != nil {
		return nil, err
	}
	if err := checkElements(migrated, def.Template); err != nil {
		return nil, err
	}
	if err := p.checkParticipants(ctx, current); err != nil {
		return nil, err
	}

	unlockDef, err := p.lockPrimed(ctx, req.CompositionTargetID)
	if err != nil {
		return nil, err
	}
	defer unlockDef()

	now := p.now()
	if !precheck {
		if err := p.rollbacks.Save(ctx, model.NewRollback(current, now)); err != nil {
			return nil, fmt.Errorf("saving rollback for %s: %w", current.InstanceID, err)
		}
		current.Elements = migrated
	}
	current.CompositionTargetID = req.CompositionTargetID

	transition.Apply(current, target, def.Template, now)
	if err := p.compositions.Update(ctx, current); err != nil {
		return nil, err
	}

	p.logger.Info("composition migration accepted",
		logging.InstanceID(current.InstanceID),
		"from", current.CompositionID,
		"to", current.CompositionTargetID,
		"precheck", precheck)
	return &pendingDispatch{ac: current.DeepCopy(), tmpl: def.Template}, nil
}

// RevertMigration takes a failed or timed out migration back to the
// elements saved before it started.
func (p *Provider) RevertMigration(ctx context.Context, instanceID string) (*Response, error) {
	job, err := p.commitRevert(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	p.dispatch(ctx, *job)
	return &Response{InstanceID: instanceID}, nil
}

func (p *Provider) commitRevert(ctx context.Context, instanceID string) (*pendingDispatch, error) {
	unlock, err := p.locker.Lock(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ac, err := p.compositions.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	target, err := transition.Validate(ac, model.OrderMigrationRevert)
	if err != nil {
		return nil, err
	}
	rb, err := p.rollbacks.Get(ctx, instanceID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: no migration snapshot for %s", model.ErrInvalidState, instanceID)
	}
	if err != nil {
		return nil, err
	}
	def, err := p.definitions.Get(ctx, rb.CompositionID)
	if err != nil {
		return nil, err
	}

	restoreElements(ac, rb)
	ac.CompositionID = rb.CompositionID
	transition.Apply(ac, target, def.Template, p.now())
	if err := p.compositions.Update(ctx, ac); err != nil {
		return nil, err
	}

	p.logger.Info("composition migration revert accepted", logging.InstanceID(instanceID), logging.CompositionID(rb.CompositionID))
	return &pendingDispatch{ac: ac.DeepCopy(), tmpl: def.Template}, nil
}

// ─── Delete ─────────────────────────────────────────────────────────────────

// Delete starts removing an UNDEPLOYED composition. The record disappears
// when every participant confirmed the delete.
func (p *Provider) Delete(ctx context.Context, instanceID string) (*Response, error) {
	job, err := p.commitOrder(ctx, instanceID, model.OrderDelete)
	if err != nil {
		return nil, err
	}
	p.dispatch(ctx, *job)
	return &Response{InstanceID: instanceID}, nil
}

func (p *Provider) commitOrder(ctx context.Context, instanceID string, order model.Order) (*pendingDispatch, error) {
	unlock, err := p.locker.Lock(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ac, err := p.compositions.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	def, err := p.definitions.Get(ctx, ac.CompositionID)
	if err != nil {
		return nil, err
	}
	if err := transition.Accept(ac, order, def.Template, p.now()); err != nil {
		return nil, err
	}
	if err := p.compositions.Update(ctx, ac); err != nil {
		return nil, err
	}
	p.logger.Info("composition order accepted", logging.InstanceID(instanceID), logging.Order(order))
	return &pendingDispatch{ac: ac.DeepCopy(), tmpl: def.Template}, nil
}

// ─── Commands ───────────────────────────────────────────────────────────────

// IssueCommand applies order to every listed composition.
//
// The whole batch is validated, then committed in one store transaction, so
// a rejected or failed batch leaves every composition unchanged. The participants hosting the
// elements must be registered and not OFF_LINE.
func (p *Provider) IssueCommand(ctx context.Context, instanceIDs []string, order model.Order) (*CommandResponse, error) {
	if !order.IsCommand() {
		return nil, fmt.Errorf("%w: %q is not a command", model.ErrInvalidOrder, order)
	}
	if len(instanceIDs) == 0 {
		return nil, model.ErrorList{"at least one instance id is required"}
	}

	jobs, err := p.commitCommand(ctx, instanceIDs, order)
	if err != nil {
		return nil, err
	}
	p.dispatch(ctx, jobs...)

	resp := &CommandResponse{AffectedInstanceIDs: make([]string, len(jobs))}
	for i, j := range jobs {
		resp.AffectedInstanceIDs[i] = j.ac.InstanceID
	}
	return resp, nil
}

func (p *Provider) commitCommand(ctx context.Context, instanceIDs []string, order model.Order) ([]pendingDispatch, error) {
	unlock, err := coordination.LockAll(ctx, p.locker, instanceIDs)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := p.now()
	seen := make(map[string]struct{}, len(instanceIDs))
	jobs := make([]pendingDispatch, 0, len(instanceIDs))
	for _, id := range instanceIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		ac, err := p.compositions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		def, err := p.definitions.Get(ctx, ac.CompositionID)
		if err != nil {
			return nil, err
		}
		if (order == model.OrderDeploy || order == model.OrderPrepare) && def.State != model.DefinitionStatePrimed {
			return nil, fmt.Errorf("%w: definition %s is %s", model.ErrInvalidState, def.CompositionID, def.State)
		}
		if err := p.checkParticipants(ctx, ac); err != nil {
			return nil, err
		}
		if err := transition.Accept(ac, order, def.Template, now); err != nil {
			return nil, fmt.Errorf("composition %s: %w", id, err)
		}
		jobs = append(jobs, pendingDispatch{ac: ac, tmpl: def.Template})
	}

	batch := make([]*model.AutomationComposition, len(jobs))
	for i, j := range jobs {
		batch[i] = j.ac
	}
	if err := p.compositions.UpdateAll(ctx, batch); err != nil {
		return nil, fmt.Errorf("committing %s for %d compositions: %w", order, len(batch), err)
	}
	for i := range jobs {
		jobs[i].ac = jobs[i].ac.DeepCopy()
	}

	p.logger.Info("command accepted", logging.Order(order), "instances", len(jobs))
	return jobs, nil
}

// ─── Queries & Reports ──────────────────────────────────────────────────────

// GetCompositionInstances lists compositions matching filter.
func (p *Provider) GetCompositionInstances(ctx context.Context, filter store.CompositionFilter) ([]model.AutomationComposition, error) {
	return p.compositions.List(ctx, filter)
}

// GetCompositionInstance returns one composition.
func (p *Provider) GetCompositionInstance(ctx context.Context, instanceID string) (*model.AutomationComposition, error) {
	return p.compositions.Get(ctx, instanceID)
}

// ReportElementStatus applies a status report for one element. Stale or
// unknown reports are logged and otherwise ignored; nothing is returned to
// the reporting participant.
func (p *Provider) ReportElementStatus(ctx context.Context, instanceID, elementID string, report transport.StatusReport) {
	report.InstanceID = instanceID
	report.ElementID = elementID
	if report.SubState == "" {
		report.SubState = model.SubStateNone
	}
	if report.StateChangeResult == "" {
		report.StateChangeResult = model.StateChangeResultNoError
	}

	err := p.reporter.Handle(ctx, report)
	switch {
	case err == nil:
	case errors.Is(err, supervision.ErrDropped):
		p.logger.Warn("element status ignored",
			logging.InstanceID(instanceID),
			logging.ElementID(elementID),
			logging.ParticipantID(report.ParticipantID),
			"reason", err)
	default:
		p.logger.Error("element status not applied",
			logging.InstanceID(instanceID),
			logging.ElementID(elementID),
			logging.Err(err))
	}
}
