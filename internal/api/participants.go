package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/onap/policy-clamp-acm/internal/model"
)

// handleListParticipants returns every registered participant.
//
// Query parameters:
//   - state: ON_LINE or OFF_LINE
func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	all, err := s.participants.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	state := r.URL.Query().Get("state")
	participants := make([]model.Participant, 0, len(all))
	for _, p := range all {
		if state == "" || string(p.State) == state {
			participants = append(participants, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants, "count": len(participants)})
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.participants.Get(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
