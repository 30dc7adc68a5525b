package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/onap/policy-clamp-acm/internal/model"
	"github.com/onap/policy-clamp-acm/internal/store"
)

// Prime orders accepted by PUT /compositions/{id}/priming.
const (
	PrimeOrderPrime   = "PRIME"
	PrimeOrderDeprime = "DEPRIME"
)

// CommissioningResponse is returned by commission, update and decommission.
type CommissioningResponse struct {
	CompositionID       string                       `json:"composition_id"`
	AffectedDefinitions []model.ElementDefinitionRef `json:"affected_definitions"`
}

// PrimingRequest is the body of PUT /compositions/{id}/priming.
type PrimingRequest struct {
	PrimeOrder string `json:"prime_order"`
}

func commissioningResponse(def *model.CompositionDefinition) CommissioningResponse {
	eds := def.Template.ElementDefinitions()
	refs := make([]model.ElementDefinitionRef, len(eds))
	for i, ed := range eds {
		refs[i] = ed.Ref()
	}
	return CommissioningResponse{CompositionID: def.CompositionID, AffectedDefinitions: refs}
}

// handleCommission stores a new definition from a YAML or JSON template
// document carried as the raw request body.
func (s *Server) handleCommission(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	def, err := s.commissioning.Commission(r.Context(), data)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.Hub().PublishDefinition(def)
	writeJSON(w, http.StatusCreated, commissioningResponse(def))
}

// handleListDefinitions returns definitions, optionally filtered.
//
// Query parameters:
//   - name: exact definition name
//   - version: exact definition version
func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	defs, err := s.commissioning.List(r.Context(), store.DefinitionFilter{
		Name:    q.Get("name"),
		Version: q.Get("version"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"definitions": defs, "count": len(defs)})
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.commissioning.Get(r.Context(), chi.URLParam(r, "compositionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateDefinition replaces the template of a definition that has not
// been primed.
func (s *Server) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	def, err := s.commissioning.Update(r.Context(), chi.URLParam(r, "compositionID"), data)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.Hub().PublishDefinition(def)
	writeJSON(w, http.StatusOK, commissioningResponse(def))
}

func (s *Server) handleDecommission(w http.ResponseWriter, r *http.Request) {
	def, err := s.commissioning.Decommission(r.Context(), chi.URLParam(r, "compositionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commissioningResponse(def))
}

func (s *Server) handleGetElementDefinitions(w http.ResponseWriter, r *http.Request) {
	eds, err := s.commissioning.GetElementDefinitions(r.Context(), chi.URLParam(r, "compositionID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"element_definitions": eds, "count": len(eds)})
}

// handlePriming primes or deprimes a definition. The work completes
// asynchronously; the response only confirms the order was accepted.
func (s *Server) handlePriming(w http.ResponseWriter, r *http.Request) {
	var req PrimingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	id := chi.URLParam(r, "compositionID")
	var err error
	switch strings.ToUpper(strings.TrimSpace(req.PrimeOrder)) {
	case PrimeOrderPrime:
		err = s.commissioning.Prime(r.Context(), id)
	case PrimeOrderDeprime:
		err = s.commissioning.Deprime(r.Context(), id)
	default:
		writeBadRequest(w, "prime_order must be PRIME or DEPRIME")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if def, err := s.commissioning.Get(r.Context(), id); err == nil {
		s.Hub().PublishDefinition(def)
	}
	w.WriteHeader(http.StatusAccepted)
}
