// Package engine drives one user's questionnaire from start to a durable
// record. Callers invoke operations sequentially per user; distinct users may
// be served concurrently.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/intake/internal/observability"
	"github.com/ent0n29/intake/internal/policy"
	"github.com/ent0n29/intake/internal/records"
	"github.com/ent0n29/intake/internal/reliability"
	"github.com/ent0n29/intake/internal/schema"
	"github.com/ent0n29/intake/internal/session"
	"github.com/ent0n29/intake/internal/validate"
)

// Progress summarizes a session for the driver.
type Progress struct {
	Status    session.Status          `json:"status"`
	Collected int                     `json:"collected"`
	Required  int                     `json:"required"`
	Filled    int                     `json:"filled"`
	Total     int                     `json:"total"`
	Percent   int                     `json:"percent"`
	Pending   *schema.FieldDefinition `json:"pending,omitempty"`
	// Previous is the saved value of the pending field when editing.
	Previous any `json:"previous,omitempty"`
}

// Snapshot is the set of values recorded so far.
type Snapshot struct {
	Status session.Status `json:"status"`
	Values map[string]any `json:"values"`
}

type Engine struct {
	schema  *schema.Schema
	store   session.Store
	gateway records.Gateway
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New builds an engine. metrics may be nil.
func New(sch *schema.Schema, store session.Store, gateway records.Gateway, logger zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		schema:  sch,
		store:   store,
		gateway: gateway,
		logger:  logger.With().Str("component", "engine").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Start opens an empty session positioned at the first field.
func (e *Engine) Start(ctx context.Context, userID int64) (Progress, error) {
	return e.open(ctx, userID, nil, "start")
}

// StartFrom opens an edit session. previous holds the values of an existing
// record; they are offered as defaults but not recorded until confirmed.
func (e *Engine) StartFrom(ctx context.Context, userID int64, previous map[string]any) (Progress, error) {
	seed := make(map[string]any, len(previous))
	for k, v := range previous {
		if e.schema.Has(k) {
			seed[k] = v
		}
	}
	return e.open(ctx, userID, seed, "edit")
}

func (e *Engine) open(ctx context.Context, userID int64, previous map[string]any, event string) (Progress, error) {
	_, err := e.store.Get(ctx, userID)
	switch {
	case err == nil:
		e.protocolMistake(userID, event, ErrAlreadyActive)
		return Progress{}, ErrAlreadyActive
	case !errors.Is(err, session.ErrNotFound):
		return Progress{}, e.storageError("session_get", err)
	}

	now := e.now()
	st := &session.State{
		UserID:    userID,
		Values:    map[string]any{},
		Previous:  previous,
		Cursor:    0,
		Status:    session.StatusInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Put(ctx, st); err != nil {
		return Progress{}, e.storageError("session_put", err)
	}

	e.event(event)
	if e.metrics != nil {
		e.metrics.ActiveSessions.Inc()
	}
	e.logger.Info().Int64("user_id", userID).Str("event", event).Msg("questionnaire session started")
	return e.progress(st), nil
}

// UpdateField validates raw against the pending field. A rejected value
// leaves the session untouched.
func (e *Engine) UpdateField(ctx context.Context, userID int64, raw string) (Progress, error) {
	st, err := e.load(ctx, userID, "update_field")
	if err != nil {
		return Progress{}, err
	}
	if st.Status != session.StatusInProgress {
		e.protocolMistake(userID, "update_field", ErrNotInProgress)
		return Progress{}, ErrNotInProgress
	}

	def, ok := e.schema.At(st.Cursor)
	if !ok {
		return Progress{}, ErrNotInProgress
	}

	res, err := e.validateWithDefault(def, st, raw)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			if e.metrics != nil {
				e.metrics.ValidationFailures.WithLabelValues(verr.Field, verr.Reason).Inc()
			}
			redacted := policy.RedactInput(def.Kind, raw)
			e.logger.Debug().
				Int64("user_id", userID).
				Str("field", verr.Field).
				Str("reason", verr.Reason).
				Str("input", redacted).
				Msg("field value rejected")
		}
		return Progress{}, err
	}

	if !res.Skipped {
		st.Values[def.Name] = res.Value
	}
	st.Cursor++
	if st.Cursor >= e.schema.Len() {
		st.Status = session.StatusComplete
	}
	st.UpdatedAt = e.now()

	if err := e.store.Put(ctx, st); err != nil {
		return Progress{}, e.storageError("session_put", err)
	}
	if st.Status == session.StatusComplete {
		e.event("complete")
	}
	return e.progress(st), nil
}

// validateWithDefault keeps the previously saved value when an edit session
// receives blank input for a field that had one.
func (e *Engine) validateWithDefault(def schema.FieldDefinition, st *session.State, raw string) (validate.Result, error) {
	if prev, ok := st.Previous[def.Name]; ok && strings.TrimSpace(raw) == "" {
		return validate.Result{Value: prev}, nil
	}
	return validate.Field(def, raw)
}

func (e *Engine) Progress(ctx context.Context, userID int64) (Progress, error) {
	st, err := e.load(ctx, userID, "progress")
	if err != nil {
		return Progress{}, err
	}
	return e.progress(st), nil
}

func (e *Engine) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	st, err := e.load(ctx, userID, "snapshot")
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Status: st.Status, Values: st.Values}, nil
}

// Cancel discards the session and everything collected in it.
func (e *Engine) Cancel(ctx context.Context, userID int64) error {
	removed, err := e.store.Remove(ctx, userID)
	if err != nil {
		return e.storageError("session_remove", err)
	}
	if !removed {
		e.protocolMistake(userID, "cancel", ErrNoActiveSession)
		return ErrNoActiveSession
	}
	e.event("cancel")
	if e.metrics != nil {
		e.metrics.ActiveSessions.Dec()
	}
	e.logger.Info().Int64("user_id", userID).Msg("questionnaire session cancelled")
	return nil
}

// Save persists a complete session as a draft record and removes it.
func (e *Engine) Save(ctx context.Context, userID int64) (records.RecordID, error) {
	return e.persist(ctx, userID, records.StatusDraft, "save")
}

// Submit persists a complete session as a completed record and removes it.
func (e *Engine) Submit(ctx context.Context, userID int64) (records.RecordID, error) {
	return e.persist(ctx, userID, records.StatusCompleted, "submit")
}

func (e *Engine) persist(ctx context.Context, userID int64, status records.Status, event string) (records.RecordID, error) {
	st, err := e.load(ctx, userID, event)
	if err != nil {
		return "", err
	}
	if st.Status != session.StatusComplete {
		e.protocolMistake(userID, event, ErrNotComplete)
		return "", ErrNotComplete
	}

	doc := make(records.Document, len(st.Values))
	for k, v := range st.Values {
		doc[k] = v
	}

	started := e.now()
	id, err := e.gateway.UpsertQuestionnaire(ctx, userID, doc, status)
	if e.metrics != nil {
		e.metrics.ObserveSaveLatency(e.now().Sub(started))
	}
	if err != nil {
		serr := e.storageError("upsert_questionnaire", err)
		e.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Bool("retryable", serr.Retryable).
			Msg("questionnaire write failed; session kept")
		return "", serr
	}

	removed, err := e.store.Remove(ctx, userID)
	if err != nil {
		// The record is durable; a leftover session is reclaimed by the next
		// cancel or by idle expiry.
		e.logger.Warn().Err(err).Int64("user_id", userID).Msg("remove saved session")
	}
	e.event(event)
	// The janitor may have reclaimed the session during the write and already
	// accounted for it.
	if removed && e.metrics != nil {
		e.metrics.ActiveSessions.Dec()
	}
	e.logger.Info().
		Int64("user_id", userID).
		Str("record_id", string(id)).
		Str("status", string(status)).
		Msg("questionnaire persisted")
	return id, nil
}

// Expired is the hook for sessions reclaimed by the store's idle janitor.
func (e *Engine) Expired(st *session.State) {
	e.event("expire")
	if e.metrics != nil {
		e.metrics.ActiveSessions.Dec()
	}
	e.logger.Info().
		Int64("user_id", st.UserID).
		Time("updated_at", st.UpdatedAt).
		Msg("idle questionnaire session reclaimed")
}

// SyncActiveSessions sets the active session gauge from the store's own count.
// Stores that expire keys on their own (Redis TTL) fire no hook, so the gauge
// is only accurate when refreshed this way.
func (e *Engine) SyncActiveSessions(ctx context.Context) error {
	if e.metrics == nil {
		return nil
	}
	n, err := e.store.Count(ctx)
	if err != nil {
		return e.storageError("session_count", err)
	}
	e.metrics.ActiveSessions.Set(float64(n))
	return nil
}

// StartGaugeSync runs SyncActiveSessions every interval until ctx is done.
func (e *Engine) StartGaugeSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.SyncActiveSessions(ctx); err != nil && ctx.Err() == nil {
					e.logger.Warn().Err(err).Msg("sync active sessions")
				}
			}
		}
	}()
}

func (e *Engine) load(ctx context.Context, userID int64, op string) (*session.State, error) {
	st, err := e.store.Get(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		e.protocolMistake(userID, op, ErrNoActiveSession)
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, e.storageError("session_get", err)
	}
	if st.Values == nil {
		st.Values = map[string]any{}
	}
	return st, nil
}

func (e *Engine) progress(st *session.State) Progress {
	p := Progress{
		Status:   st.Status,
		Required: e.schema.RequiredCount(),
		Total:    e.schema.Len(),
	}
	for _, f := range e.schema.Fields() {
		if _, ok := st.Values[f.Name]; !ok {
			continue
		}
		p.Filled++
		if f.Required {
			p.Collected++
		}
	}
	if p.Total > 0 {
		p.Percent = p.Filled * 100 / p.Total
	}
	if def, ok := e.schema.At(st.Cursor); ok && st.Status == session.StatusInProgress {
		p.Pending = &def
		if prev, ok := st.Previous[def.Name]; ok {
			p.Previous = prev
		}
	}
	return p
}

func (e *Engine) storageError(op string, err error) *StorageError {
	if e.metrics != nil {
		e.metrics.StorageErrors.WithLabelValues(op).Inc()
	}
	return &StorageError{Op: op, Cause: err, Retryable: reliability.IsTransientStorageError(err)}
}

func (e *Engine) protocolMistake(userID int64, op string, err error) {
	e.logger.Warn().Int64("user_id", userID).Str("op", op).Err(err).Msg("out-of-sequence call")
}

func (e *Engine) event(name string) {
	if e.metrics != nil {
		e.metrics.SessionEvents.WithLabelValues(name).Inc()
	}
}
