// Package dialog turns chat text into questionnaire operations and renders
// the replies shown to the user.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/intake/internal/catalog"
	"github.com/ent0n29/intake/internal/engine"
	"github.com/ent0n29/intake/internal/records"
	"github.com/ent0n29/intake/internal/session"
	"github.com/ent0n29/intake/internal/validate"
)

// Menu actions. Users may send them as text or as button presses.
const (
	ActionFill     = "fill"
	ActionCancel   = "cancel"
	ActionSave     = "save"
	ActionSubmit   = "submit"
	ActionView     = "view"
	ActionEdit     = "edit"
	ActionDelete   = "delete"
	ActionCatalog  = "catalog"
	ActionProgress = "progress"
	ActionInfo     = "info"
	ActionMenu     = "menu"
)

var (
	mainMenu    = []string{ActionCatalog, ActionFill, ActionInfo}
	fillingMenu = []string{ActionCancel}
	reviewMenu  = []string{ActionSave, ActionSubmit, ActionCancel}
	recordMenu  = []string{ActionView, ActionEdit, ActionDelete, ActionMenu}
)

// Reply is what the transport sends back for one inbound message.
type Reply struct {
	Text     string
	Actions  []string
	Progress *engine.Progress
}

// Users is the part of the record store the router reads and writes.
type Users interface {
	ResolveUser(ctx context.Context, p records.Profile) (int64, error)
	GetUser(ctx context.Context, externalID int64) (records.User, error)
	LatestQuestionnaire(ctx context.Context, userID int64) (records.Record, error)
	DeleteQuestionnaires(ctx context.Context, userID int64) (int64, error)
}

type Catalog interface {
	List(ctx context.Context) ([]catalog.Item, error)
}

type Router struct {
	engine  *engine.Engine
	users   Users
	catalog Catalog
	logger  zerolog.Logger
}

// NewRouter builds a router. cat may be nil when no catalog is configured.
func NewRouter(eng *engine.Engine, users Users, cat Catalog, logger zerolog.Logger) *Router {
	return &Router{
		engine:  eng,
		users:   users,
		catalog: cat,
		logger:  logger.With().Str("component", "dialog").Logger(),
	}
}

// Handle processes one typed message. While a questionnaire is being filled,
// typed text is the answer to the pending field; commands then need a leading
// slash (/cancel, /save). A non-nil error is an infrastructure failure; the
// returned Reply still carries text suitable for the user.
func (r *Router) Handle(ctx context.Context, profile records.Profile, text string) (Reply, error) {
	return r.dispatch(ctx, profile, text, false)
}

// HandleAction processes a menu button press. It is always a command.
func (r *Router) HandleAction(ctx context.Context, profile records.Profile, action string) (Reply, error) {
	return r.dispatch(ctx, profile, action, true)
}

func (r *Router) dispatch(ctx context.Context, profile records.Profile, text string, pressed bool) (Reply, error) {
	userID, err := r.users.ResolveUser(ctx, profile)
	if err != nil {
		return Reply{Text: msgTryLater}, fmt.Errorf("resolve user: %w", err)
	}

	cmd := strings.ToLower(strings.TrimSpace(text))
	slashed := strings.HasPrefix(cmd, "/")
	cmd = strings.TrimPrefix(cmd, "/")
	if !pressed && !slashed {
		filling, err := r.filling(ctx, userID)
		if err != nil {
			return Reply{Text: msgTryLater}, err
		}
		if filling {
			return r.answer(ctx, userID, text)
		}
	}

	switch cmd {
	case "start":
		name := profile.FirstName
		if name == "" {
			name = profile.Username
		}
		return Reply{Text: welcomeText(name), Actions: mainMenu}, nil
	case "help":
		return Reply{Text: helpText, Actions: mainMenu}, nil
	case "profile":
		return r.profile(ctx, profile.ExternalID)
	case ActionInfo:
		return Reply{Text: infoText, Actions: mainMenu}, nil
	case ActionMenu, "back":
		return Reply{Text: msgMainMenu, Actions: mainMenu}, nil
	case ActionCatalog:
		return r.listCatalog(ctx)
	case ActionFill:
		return r.fill(ctx, userID)
	case ActionCancel:
		return r.cancel(ctx, userID)
	case ActionSave:
		return r.persist(ctx, userID, false)
	case ActionSubmit:
		return r.persist(ctx, userID, true)
	case ActionView:
		return r.view(ctx, userID)
	case ActionEdit:
		return r.edit(ctx, userID)
	case ActionDelete:
		return r.delete(ctx, userID)
	case ActionProgress:
		return r.progress(ctx, userID)
	}

	if pressed {
		return Reply{Text: msgUnknownCommand, Actions: mainMenu}, nil
	}
	return r.answer(ctx, userID, text)
}

// filling reports whether the user has a session waiting for field answers.
func (r *Router) filling(ctx context.Context, userID int64) (bool, error) {
	p, err := r.engine.Progress(ctx, userID)
	if errors.Is(err, engine.ErrNoActiveSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Status == session.StatusInProgress, nil
}

func (r *Router) profile(ctx context.Context, externalID int64) (Reply, error) {
	u, err := r.users.GetUser(ctx, externalID)
	if errors.Is(err, records.ErrNotFound) {
		return Reply{Text: msgUnknownUser}, nil
	}
	if err != nil {
		return Reply{Text: msgTryLater}, fmt.Errorf("get user: %w", err)
	}
	return Reply{Text: profileText(u), Actions: mainMenu}, nil
}

func (r *Router) listCatalog(ctx context.Context) (Reply, error) {
	if r.catalog == nil {
		return Reply{Text: msgCatalogUnavailable, Actions: mainMenu}, nil
	}
	items, err := r.catalog.List(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("list catalog")
		return Reply{Text: msgCatalogUnavailable, Actions: mainMenu}, nil
	}
	if len(items) == 0 {
		return Reply{Text: msgCatalogUnavailable, Actions: mainMenu}, nil
	}
	return Reply{Text: catalogText(items), Actions: mainMenu}, nil
}

func (r *Router) fill(ctx context.Context, userID int64) (Reply, error) {
	_, err := r.users.LatestQuestionnaire(ctx, userID)
	switch {
	case err == nil:
		return Reply{Text: msgHaveRecord, Actions: recordMenu}, nil
	case !errors.Is(err, records.ErrNotFound):
		return Reply{Text: msgTryLater}, fmt.Errorf("load questionnaire: %w", err)
	}

	p, err := r.engine.Start(ctx, userID)
	if errors.Is(err, engine.ErrAlreadyActive) {
		return r.progress(ctx, userID)
	}
	if err != nil {
		return Reply{Text: msgTryLater}, err
	}
	return r.prompt(msgFillIntro, p), nil
}

func (r *Router) edit(ctx context.Context, userID int64) (Reply, error) {
	rec, err := r.users.LatestQuestionnaire(ctx, userID)
	if errors.Is(err, records.ErrNotFound) {
		return Reply{Text: msgNoRecord, Actions: mainMenu}, nil
	}
	if err != nil {
		return Reply{Text: msgTryLater}, fmt.Errorf("load questionnaire: %w", err)
	}

	p, err := r.engine.StartFrom(ctx, userID, rec.Data)
	if errors.Is(err, engine.ErrAlreadyActive) {
		return r.progress(ctx, userID)
	}
	if err != nil {
		return Reply{Text: msgTryLater}, err
	}
	return r.prompt(msgEditIntro, p), nil
}

func (r *Router) cancel(ctx context.Context, userID int64) (Reply, error) {
	err := r.engine.Cancel(ctx, userID)
	if errors.Is(err, engine.ErrNoActiveSession) {
		return Reply{Text: msgNothingToCancel, Actions: mainMenu}, nil
	}
	if err != nil {
		return Reply{Text: msgTryLater}, err
	}
	return Reply{Text: msgCancelled, Actions: mainMenu}, nil
}

func (r *Router) persist(ctx context.Context, userID int64, submit bool) (Reply, error) {
	var err error
	if submit {
		_, err = r.engine.Submit(ctx, userID)
	} else {
		_, err = r.engine.Save(ctx, userID)
	}

	var serr *engine.StorageError
	switch {
	case err == nil:
		if submit {
			return Reply{Text: msgSubmitted, Actions: mainMenu}, nil
		}
		return Reply{Text: msgSaved, Actions: mainMenu}, nil
	case errors.Is(err, engine.ErrNoActiveSession):
		return Reply{Text: msgNoSession, Actions: mainMenu}, nil
	case errors.Is(err, engine.ErrNotComplete):
		p, perr := r.engine.Progress(ctx, userID)
		if perr != nil {
			return Reply{Text: msgTryLater}, perr
		}
		return r.prompt(msgNotComplete, p), nil
	case errors.As(err, &serr):
		return Reply{Text: msgSaveFailed, Actions: reviewMenu}, err
	default:
		return Reply{Text: msgTryLater}, err
	}
}

func (r *Router) view(ctx context.Context, userID int64) (Reply, error) {
	rec, err := r.users.LatestQuestionnaire(ctx, userID)
	if errors.Is(err, records.ErrNotFound) {
		return Reply{Text: msgNoRecord, Actions: mainMenu}, nil
	}
	if err != nil {
		return Reply{Text: msgTryLater}, fmt.Errorf("load questionnaire: %w", err)
	}
	return Reply{Text: recordText(r.engine.Schema(), rec), Actions: recordMenu}, nil
}

func (r *Router) delete(ctx context.Context, userID int64) (Reply, error) {
	n, err := r.users.DeleteQuestionnaires(ctx, userID)
	if err != nil {
		return Reply{Text: msgTryLater}, fmt.Errorf("delete questionnaire: %w", err)
	}
	if n == 0 {
		return Reply{Text: msgNoRecord, Actions: mainMenu}, nil
	}
	return Reply{Text: msgDeleted, Actions: mainMenu}, nil
}

func (r *Router) progress(ctx context.Context, userID int64) (Reply, error) {
	p, err := r.engine.Progress(ctx, userID)
	if errors.Is(err, engine.ErrNoActiveSession) {
		return Reply{Text: msgNoSession, Actions: mainMenu}, nil
	}
	if err != nil {
		return Reply{Text: msgTryLater}, err
	}
	return r.prompt(progressText(p), p), nil
}

func (r *Router) answer(ctx context.Context, userID int64, text string) (Reply, error) {
	p, err := r.engine.UpdateField(ctx, userID, text)
	var verr *validate.ValidationError
	switch {
	case err == nil:
		return r.prompt(msgAccepted, p), nil
	case errors.Is(err, engine.ErrNoActiveSession):
		return Reply{Text: msgUnknownCommand, Actions: mainMenu}, nil
	case errors.Is(err, engine.ErrNotInProgress):
		return Reply{Text: msgReadyToSave, Actions: reviewMenu}, nil
	case errors.As(err, &verr):
		p, perr := r.engine.Progress(ctx, userID)
		if perr != nil {
			return Reply{Text: msgTryLater}, perr
		}
		return r.prompt(reasonText(verr.Reason), p), nil
	default:
		return Reply{Text: msgTryLater}, err
	}
}

// prompt appends the pending field's question, or the review summary once
// every field has been visited.
func (r *Router) prompt(lead string, p engine.Progress) Reply {
	if p.Pending == nil {
		return Reply{
			Text:     lead + "\n\n" + reviewText(p),
			Actions:  reviewMenu,
			Progress: &p,
		}
	}
	return Reply{
		Text:     lead + "\n\n" + fieldPrompt(*p.Pending, p.Previous),
		Actions:  fillingMenu,
		Progress: &p,
	}
}
