package instantiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/model"
)

// primedDefinition loads a definition that instances may be created from.
func (p *Provider) primedDefinition(ctx context.Context, compositionID string) (*model.CompositionDefinition, error) {
	def, err := p.definitions.Get(ctx, compositionID)
	if err != nil {
		return nil, err
	}
	if def.State != model.DefinitionStatePrimed {
		return nil, fmt.Errorf("%w: definition %s is %s, not %s",
			model.ErrInvalidState, compositionID, def.State, model.DefinitionStatePrimed)
	}
	return def, nil
}

// lockPrimed takes the definition's lock and re-checks that it is PRIMED.
// While the lock is held the definition cannot be deprimed or
// decommissioned. Callers already holding an instance lock take this one
// second.
func (p *Provider) lockPrimed(ctx context.Context, compositionID string) (coordination.Unlock, error) {
	unlock, err := p.locker.Lock(ctx, coordination.DefinitionKey(compositionID))
	if err != nil {
		return nil, err
	}
	if _, err := p.primedDefinition(ctx, compositionID); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// checkElements verifies every element references a node template of tmpl
// with a matching version.
func checkElements(elements []model.Element, tmpl model.ServiceTemplate) error {
	var errs []error
	for _, e := range elements {
		node, ok := tmpl.Node(e.Definition.Name)
		switch {
		case !ok || node.Type == model.CompositionNodeType:
			errs = append(errs, fmt.Errorf("%w: element %s references unknown definition %s",
				model.ErrDefinitionMismatch, e.ID, e.Definition))
		case node.Version != e.Definition.Version:
			errs = append(errs, fmt.Errorf("%w: element %s references %s, template has version %s",
				model.ErrDefinitionMismatch, e.ID, e.Definition, node.Version))
		}
	}
	return errors.Join(errs...)
}

// resolveParticipants fills in missing participant ids. The participant that
// primed the element's definition is preferred; otherwise the first
// registered participant supporting the node type is used.
func (p *Provider) resolveParticipants(ctx context.Context, ac *model.AutomationComposition, def *model.CompositionDefinition) error {
	var registered []model.Participant
	var errs model.ErrorList
	for i := range ac.Elements {
		e := &ac.Elements[i]
		if e.ParticipantID != "" {
			continue
		}
		if es, ok := def.ElementStates[e.Definition.Name]; ok && es.ParticipantID != "" {
			e.ParticipantID = es.ParticipantID
			continue
		}

		if registered == nil {
			all, err := p.participants.List(ctx)
			if err != nil {
				return fmt.Errorf("listing participants: %w", err)
			}
			registered = all
		}
		node, _ := def.Template.Node(e.Definition.Name)
		for j := range registered {
			if registered[j].Supports(node.Type, node.TypeVersion) {
				e.ParticipantID = registered[j].ParticipantID
				break
			}
		}
		if e.ParticipantID == "" {
			errs.Addf("element %s: no participant supports %s", e.ID, node.Type)
		}
	}
	return errs.Err()
}

// checkParticipants verifies every participant hosting an element of ac is
// registered and reachable.
func (p *Provider) checkParticipants(ctx context.Context, ac *model.AutomationComposition) error {
	for _, id := range ac.ParticipantIDs() {
		participant, err := p.participants.Get(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: participant %s of composition %s", model.ErrNotFound, id, ac.InstanceID)
		}
		if err != nil {
			return err
		}
		if participant.State == model.ParticipantStateOffline {
			return fmt.Errorf("%w: participant %s is %s", model.ErrInvalidState, id, participant.State)
		}
	}
	return nil
}

// resetIdle puts ac and its elements in the given terminal states with no
// transition in flight.
func resetIdle(ac *model.AutomationComposition, deploy model.DeployState, lock model.LockState) {
	ac.DeployState = deploy
	ac.LockState = lock
	ac.SubState = model.SubStateNone
	ac.StateChangeResult = model.StateChangeResultNoError
	ac.Phase = nil
	for i := range ac.Elements {
		e := &ac.Elements[i]
		e.DeployState = deploy
		e.LockState = lock
		e.SubState = model.SubStateNone
		e.Stage = nil
		e.Message = ""
	}
}

// mergeProperties copies the properties of each requested element onto the
// stored element with the same id. Unknown ids are rejected.
func mergeProperties(ac *model.AutomationComposition, updates []model.Element) error {
	var errs model.ErrorList
	for _, u := range updates {
		e := ac.Element(u.ID)
		if e == nil {
			errs.Addf("element %s: not part of composition %s", u.ID, ac.InstanceID)
			continue
		}
		if u.Definition != (model.ElementDefinitionRef{}) && u.Definition != e.Definition {
			errs.Addf("element %s: definition can only change through a migration", u.ID)
			continue
		}
		if e.Properties == nil {
			e.Properties = make(map[string]any, len(u.Properties))
		}
		for k, v := range model.DeepCopyProperties(u.Properties) {
			e.Properties[k] = v
		}
		if u.Description != "" {
			e.Description = u.Description
		}
	}
	return errs.Err()
}

// migratedElements returns the stored elements moved to the definitions
// and properties of the request. A migration keeps the set of element ids.
func migratedElements(current *model.AutomationComposition, requested []model.Element) ([]model.Element, error) {
	byID := make(map[string]model.Element, len(requested))
	for _, r := range requested {
		byID[r.ID] = r
	}

	var errs model.ErrorList
	if len(byID) != len(current.Elements) {
		errs.Addf("migration must list the %d elements of %s", len(current.Elements), current.InstanceID)
	}

	migrated := make([]model.Element, 0, len(current.Elements))
	for _, e := range current.Elements {
		r, ok := byID[e.ID]
		if !ok {
			errs.Addf("element %s: missing from migration", e.ID)
			continue
		}
		m := e.DeepCopy()
		if r.Definition.Name != "" {
			m.Definition = r.Definition
		}
		if r.Properties != nil {
			m.Properties = model.DeepCopyProperties(r.Properties)
		}
		migrated = append(migrated, m)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return migrated, nil
}

// restoreElements puts back the definitions and properties saved before a
// migration.
func restoreElements(ac *model.AutomationComposition, rb *model.Rollback) {
	for _, saved := range rb.Elements {
		e := ac.Element(saved.ID)
		if e == nil {
			continue
		}
		e.Definition = saved.Definition
		e.Properties = model.DeepCopyProperties(saved.Properties)
	}
}
