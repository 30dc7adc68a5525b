package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

// OrderRequest is the body of PUT .../instances/{id}/state.
type OrderRequest struct {
	Order string `json:"order"`
}

// CommandRequest is the body of POST /instances/commands.
type CommandRequest struct {
	InstanceIDs []string `json:"instance_ids"`
	Order       string   `json:"order"`
}

// handleListInstances returns the compositions of one definition.
//
// Query parameters:
//   - name: exact composition name
//   - version: exact composition version
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.listInstances(w, r, store.CompositionFilter{
		Name:          q.Get("name"),
		Version:       q.Get("version"),
		CompositionID: chi.URLParam(r, "compositionID"),
	})
}

// handleListAllInstances returns compositions across definitions.
//
// Query parameters:
//   - name, version: exact composition name and version
//   - composition_id: definition the compositions were created from
func (s *Server) handleListAllInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.listInstances(w, r, store.CompositionFilter{
		Name:          q.Get("name"),
		Version:       q.Get("version"),
		CompositionID: q.Get("composition_id"),
	})
}

func (s *Server) listInstances(w http.ResponseWriter, r *http.Request, filter store.CompositionFilter) {
	instances, err := s.provider.GetCompositionInstances(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": instances, "count": len(instances)})
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	ac, err := s.instanceOf(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

// handleCreateInstance creates an UNDEPLOYED composition from the primed
// definition in the path.
func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeInstance(w, r)
	if !ok {
		return
	}

	resp, err := s.provider.Create(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.publishInstance(r.Context(), resp.InstanceID)
	writeJSON(w, http.StatusCreated, resp)
}

// handleUpdateInstance edits, updates or migrates a composition depending
// on its state and on composition_target_id.
func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeInstance(w, r)
	if !ok {
		return
	}
	if _, err := s.instanceOf(r); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp, err := s.provider.Update(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.publishInstance(r.Context(), resp.InstanceID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrecheckInstance(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeInstance(w, r)
	if !ok {
		return
	}
	if _, err := s.instanceOf(r); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp, err := s.provider.PrecheckMigration(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.publishInstance(r.Context(), resp.InstanceID)
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleRevertInstance(w http.ResponseWriter, r *http.Request) {
	ac, err := s.instanceOf(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp, err := s.provider.RevertMigration(r.Context(), ac.InstanceID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.publishInstance(r.Context(), resp.InstanceID)
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	ac, err := s.instanceOf(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp, err := s.provider.Delete(r.Context(), ac.InstanceID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.publishInstance(r.Context(), resp.InstanceID)
	writeJSON(w, http.StatusAccepted, resp)
}

// handleInstanceOrder issues a lifecycle command to one composition.
func (s *Server) handleInstanceOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	ac, err := s.instanceOf(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.issueCommand(w, r, []string{ac.InstanceID}, req.Order)
}

// handleIssueCommand applies one order to a batch of compositions. Either
// every composition accepts the order or none does.
func (s *Server) handleIssueCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	s.issueCommand(w, r, req.InstanceIDs, req.Order)
}

func (s *Server) issueCommand(w http.ResponseWriter, r *http.Request, instanceIDs []string, raw string) {
	order, ok := model.ParseOrder(raw)
	if !ok {
		s.writeDomainError(w, r, fmt.Errorf("%w: unknown order %q", model.ErrInvalidOrder, raw))
		return
	}

	resp, err := s.provider.IssueCommand(r.Context(), instanceIDs, order)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	for _, id := range resp.AffectedInstanceIDs {
		s.publishInstance(r.Context(), id)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleElementStatus accepts a status report for one element. It always
// answers 204: stale or unknown reports are dropped by the aggregator.
func (s *Server) handleElementStatus(w http.ResponseWriter, r *http.Request) {
	var report transport.StatusReport
	if err := decodeJSON(r, &report); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if report.ParticipantID == "" {
		writeBadRequest(w, "participant_id is required")
		return
	}

	s.provider.ReportElementStatus(r.Context(),
		chi.URLParam(r, "instanceID"),
		chi.URLParam(r, "elementID"),
		report)
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// instanceOf loads the composition named in the path and checks it belongs
// to the definition in the path.
func (s *Server) instanceOf(r *http.Request) (*model.AutomationComposition, error) {
	compositionID := chi.URLParam(r, "compositionID")
	instanceID := chi.URLParam(r, "instanceID")

	ac, err := s.provider.GetCompositionInstance(r.Context(), instanceID)
	if err != nil {
		return nil, err
	}
	if ac.CompositionID != compositionID {
		return nil, fmt.Errorf("%w: composition %s is not an instance of %s", model.ErrNotFound, instanceID, compositionID)
	}
	return ac, nil
}

// decodeInstance reads a composition body and binds it to the path ids.
func (s *Server) decodeInstance(w http.ResponseWriter, r *http.Request) (*model.AutomationComposition, bool) {
	var req model.AutomationComposition
	if err := decodeJSON(r, &req); err != nil {
		s.writeDomainError(w, r, fmt.Errorf("%w: invalid JSON: %w", model.ErrValidation, err))
		return nil, false
	}

	compositionID := chi.URLParam(r, "compositionID")
	switch req.CompositionID {
	case "":
		req.CompositionID = compositionID
	case compositionID:
	default:
		writeBadRequest(w, "composition_id does not match the path")
		return nil, false
	}

	if instanceID := chi.URLParam(r, "instanceID"); instanceID != "" {
		if req.InstanceID != "" && req.InstanceID != instanceID {
			writeBadRequest(w, "instance_id does not match the path")
			return nil, false
		}
		req.InstanceID = instanceID
	}
	return &req, true
}

// publishInstance pushes the committed state of a composition to WebSocket
// subscribers.
func (s *Server) publishInstance(ctx context.Context, instanceID string) {
	ac, err := s.provider.GetCompositionInstance(ctx, instanceID)
	if err != nil {
		s.logger.Debug("composition not published", "instance_id", instanceID, "error", err)
		return
	}
	s.Hub().PublishComposition(ac)
}
