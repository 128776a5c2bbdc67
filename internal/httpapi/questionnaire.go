package httpapi

import (
	"errors"
	"net/http"

	"github.com/ent0n29/intake/internal/engine"
	"github.com/ent0n29/intake/internal/records"
	"github.com/ent0n29/intake/internal/validate"
)

type startRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type answerRequest struct {
	Value string `json:"value"`
}

type persistResponse struct {
	RecordID records.RecordID `json:"record_id"`
	Status   records.Status   `json:"status"`
}

// resolveProfile registers the caller on first contact.
func (s *Server) resolveProfile(w http.ResponseWriter, r *http.Request) (int64, bool) {
	externalID, ok := externalIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_external_id", "external id must be a positive integer")
		return 0, false
	}
	var req startRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return 0, false
	}
	userID, err := s.users.ResolveUser(r.Context(), records.Profile{
		ExternalID: externalID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("external_id", externalID).Msg("resolve user")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "could not resolve user")
		return 0, false
	}
	return userID, true
}

// lookupUser finds an already registered caller without creating one.
func (s *Server) lookupUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	externalID, ok := externalIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_external_id", "external id must be a positive integer")
		return 0, false
	}
	u, err := s.users.GetUser(r.Context(), externalID)
	if errors.Is(err, records.ErrNotFound) {
		respondError(w, http.StatusNotFound, "user_not_found", "user is not registered")
		return 0, false
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("external_id", externalID).Msg("get user")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "could not load user")
		return 0, false
	}
	return u.ID, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}
	p, err := s.engine.Start(r.Context(), userID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}
	rec, err := s.users.LatestQuestionnaire(r.Context(), userID)
	if errors.Is(err, records.ErrNotFound) {
		respondError(w, http.StatusNotFound, "record_not_found", "no saved questionnaire to edit")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("load questionnaire for edit")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "could not load questionnaire")
		return
	}
	p, err := s.engine.StartFrom(r.Context(), userID, rec.Data)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	// A blank value is meaningful (it skips optional fields), so the body
	// itself must be present and well formed.
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", `body must be a JSON object like {"value": "..."}`)
		return
	}
	p, err := s.engine.UpdateField(r.Context(), userID, req.Value)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	if err := s.engine.Cancel(r.Context(), userID); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.persist(w, r, records.StatusDraft)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.persist(w, r, records.StatusCompleted)
}

func (s *Server) persist(w http.ResponseWriter, r *http.Request, status records.Status) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	var (
		id  records.RecordID
		err error
	)
	if status == records.StatusCompleted {
		id, err = s.engine.Submit(r.Context(), userID)
	} else {
		id, err = s.engine.Save(r.Context(), userID)
	}
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, persistResponse{RecordID: id, Status: status})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	p, err := s.engine.Progress(r.Context(), userID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	snap, err := s.engine.Snapshot(r.Context(), userID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	rec, err := s.users.LatestQuestionnaire(r.Context(), userID)
	if errors.Is(err, records.ErrNotFound) {
		respondError(w, http.StatusNotFound, "record_not_found", "no saved questionnaire")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("load questionnaire")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "could not load questionnaire")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	n, err := s.users.DeleteQuestionnaires(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("delete questionnaires")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "could not delete questionnaire")
		return
	}
	if n == 0 {
		respondError(w, http.StatusNotFound, "record_not_found", "no saved questionnaire")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// respondEngineError maps engine failures onto HTTP status codes. Storage and
// unexpected errors are logged; clients only see a fixed message.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	var (
		verr *validate.ValidationError
		serr *engine.StorageError
	)
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  verr.Error(),
			Code:   "validation_failed",
			Field:  verr.Field,
			Reason: verr.Reason,
		})
	case errors.Is(err, engine.ErrAlreadyActive):
		respondError(w, http.StatusConflict, "session_already_active", err.Error())
	case errors.Is(err, engine.ErrNoActiveSession):
		respondError(w, http.StatusNotFound, "no_active_session", err.Error())
	case errors.Is(err, engine.ErrNotComplete):
		respondError(w, http.StatusConflict, "not_complete", err.Error())
	case errors.Is(err, engine.ErrNotInProgress):
		respondError(w, http.StatusConflict, "not_in_progress", err.Error())
	case errors.As(err, &serr):
		s.logger.Error().Err(err).Str("op", serr.Op).Bool("retryable", serr.Retryable).Msg("storage failure")
		retryable := serr.Retryable
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:     "storage unavailable",
			Code:      "storage_unavailable",
			Retryable: &retryable,
		})
	default:
		s.logger.Error().Err(err).Msg("unexpected engine error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
