// Package conversation drives profile intake and editing as an explicit state
// machine. Drafts live in a SessionStore between replies and are committed to
// the profile repository as whole profiles.
package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"psymatch/internal/models"
	"psymatch/internal/observability"
	"psymatch/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Messenger is the outbound side the engine talks through.
type Messenger interface {
	Notify(ctx context.Context, userID int64, text string)
	Prompt(ctx context.Context, userID int64, text string, choices []models.Choice)
}

// Input is one inbound reply routed to an active session.
type Input struct {
	Kind     InputKind
	Text     string
	PhotoRef string
	// Contact is recorded on the user row when the role is selected.
	Contact models.Contact
}

// Outcome reports what Handle did with an input.
type Outcome int

const (
	// OutcomeNoSession means the user has no active session; the input was not consumed.
	OutcomeNoSession Outcome = iota
	// OutcomeContinued means the session is still open.
	OutcomeContinued
	// OutcomeCompleted means the session finished normally and was discarded.
	OutcomeCompleted
)

// Engine runs the intake and edit flows. Callers must serialize calls for the
// same user; different users may be handled concurrently.
type Engine struct {
	profiles repository.ProfileRepository
	sessions SessionStore
	out      Messenger
}

// NewEngine creates an Engine.
func NewEngine(profiles repository.ProfileRepository, sessions SessionStore, out Messenger) *Engine {
	return &Engine{profiles: profiles, sessions: sessions, out: out}
}

// Start opens the intake flow at role selection, replacing any open session.
func (e *Engine) Start(ctx context.Context, userID int64) error {
	s := &Session{
		UserID: userID,
		Flow:   FlowIntake,
		State:  StateAwaitingRole,
		Draft:  map[models.Field]string{},
	}
	if err := e.sessions.Save(ctx, s); err != nil {
		return e.fail(ctx, s, "start", err)
	}
	e.event(s.Flow, "started")
	e.prompt(ctx, s)
	return nil
}

// StartEdit opens the edit flow with a draft seeded from the stored profile.
// A user without a profile is told to run intake and no session is created;
// in that case the returned bool is false.
func (e *Engine) StartEdit(ctx context.Context, userID int64) (bool, error) {
	s := &Session{UserID: userID, Flow: FlowEdit, State: StateEditMenu}

	user, err := e.profiles.GetUser(ctx, userID)
	if err != nil {
		return false, e.fail(ctx, s, "start_edit", err)
	}
	if user == nil {
		e.out.Notify(ctx, userID, noProfileText)
		return false, nil
	}

	draft, err := e.loadDraft(ctx, user)
	if err != nil {
		return false, e.fail(ctx, s, "start_edit", err)
	}
	if draft == nil {
		e.out.Notify(ctx, userID, noProfileText)
		return false, nil
	}

	s.Role = user.Role
	s.Draft = draft
	if err := e.sessions.Save(ctx, s); err != nil {
		return false, e.fail(ctx, s, "start_edit", err)
	}
	e.event(s.Flow, "started")
	e.prompt(ctx, s)
	return true, nil
}

func (e *Engine) loadDraft(ctx context.Context, user *models.User) (map[models.Field]string, error) {
	switch user.Role {
	case models.RoleProvider:
		p, err := e.profiles.GetProviderProfile(ctx, user.ID)
		if err != nil || p == nil {
			return nil, err
		}
		return p.Draft(), nil
	case models.RoleSeeker:
		p, err := e.profiles.GetSeekerProfile(ctx, user.ID)
		if err != nil || p == nil {
			return nil, err
		}
		return p.Draft(), nil
	}
	return nil, nil
}

// Active reports whether the user has an open session.
func (e *Engine) Active(ctx context.Context, userID int64) (bool, error) {
	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return s != nil && s.State != StateEnded, nil
}

// Handle feeds one input to the user's session.
func (e *Engine) Handle(ctx context.Context, userID int64, in Input) (outcome Outcome, err error) {
	span, ctx := observability.StartSpan(ctx, "conversation.handle",
		attribute.Int64("user.id", userID),
		attribute.String("input.kind", in.Kind.String()),
	)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End()
	}()

	s, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return OutcomeNoSession, e.fail(ctx, &Session{UserID: userID}, "load_session", err)
	}
	if s == nil || s.State == StateEnded {
		return OutcomeNoSession, nil
	}
	span.AddAttributes(attribute.String("conversation.state", string(s.State)))

	switch s.State {
	case StateAwaitingRole:
		return e.selectRole(ctx, s, in)
	case StateEditMenu:
		return e.selectField(ctx, s, in)
	}

	t, ok := transitions[s.State]
	if !ok {
		return OutcomeNoSession, e.fail(ctx, s, "handle", fmt.Errorf("session in unknown state %q", s.State))
	}
	if in.Kind == InputText && t.Accepts.allows(InputSkip) {
		if _, ok := matchChoice(in.Text, []models.Choice{skipChoice}); ok {
			in = Input{Kind: InputSkip, Contact: in.Contact}
		}
	}
	if !t.Accepts.allows(in.Kind) {
		e.reprompt(ctx, s)
		return OutcomeContinued, nil
	}

	capture(s, t.Field, in)

	switch t.Next {
	case StateEnded:
		if err := e.commit(ctx, s); err != nil {
			return OutcomeNoSession, e.fail(ctx, s, "commit", err)
		}
		if err := e.sessions.Delete(ctx, s.UserID); err != nil {
			return OutcomeNoSession, e.fail(ctx, s, "end_session", err)
		}
		e.event(s.Flow, "completed")
		e.out.Notify(ctx, s.UserID, intakeDoneText)
		return OutcomeCompleted, nil

	case StateEditMenu:
		if err := e.commit(ctx, s); err != nil {
			return OutcomeNoSession, e.fail(ctx, s, "commit", err)
		}
		s.State = StateEditMenu
		if err := e.sessions.Save(ctx, s); err != nil {
			return OutcomeNoSession, e.fail(ctx, s, "save_session", err)
		}
		e.event(s.Flow, "field_saved")
		if t.Field == models.FieldPhoto && in.Kind == InputSkip {
			e.out.Notify(ctx, s.UserID, photoRemovedText)
		} else {
			e.out.Notify(ctx, s.UserID, updatedText(t.Field))
		}
		e.prompt(ctx, s)
		return OutcomeContinued, nil

	default:
		s.State = t.Next
		if err := e.sessions.Save(ctx, s); err != nil {
			return OutcomeNoSession, e.fail(ctx, s, "save_session", err)
		}
		e.event(s.Flow, "advanced")
		e.prompt(ctx, s)
		return OutcomeContinued, nil
	}
}

// capture writes the input into the draft. A skip clears the field.
func capture(s *Session, field models.Field, in Input) {
	if s.Draft == nil {
		s.Draft = map[models.Field]string{}
	}
	switch in.Kind {
	case InputPhoto:
		s.Draft[field] = in.PhotoRef
	case InputSkip:
		delete(s.Draft, field)
	default:
		s.Draft[field] = in.Text
	}
}

func (e *Engine) selectRole(ctx context.Context, s *Session, in Input) (Outcome, error) {
	role, ok := parseRole(in.Text)
	if in.Kind != InputText || !ok {
		e.reprompt(ctx, s)
		return OutcomeContinued, nil
	}

	if _, err := e.profiles.CreateOrReplaceUser(ctx, s.UserID, in.Contact, role); err != nil {
		return OutcomeNoSession, e.fail(ctx, s, "select_role", err)
	}
	s.Role = role
	s.State = firstIntakeState[role]
	if err := e.sessions.Save(ctx, s); err != nil {
		return OutcomeNoSession, e.fail(ctx, s, "save_session", err)
	}
	e.event(s.Flow, "advanced")
	e.prompt(ctx, s)
	return OutcomeContinued, nil
}

func (e *Engine) selectField(ctx context.Context, s *Session, in Input) (Outcome, error) {
	token, ok := matchChoice(in.Text, editMenuChoices(s.Role))
	if in.Kind != InputText || !ok {
		e.reprompt(ctx, s)
		return OutcomeContinued, nil
	}

	if token == finishToken {
		if err := e.sessions.Delete(ctx, s.UserID); err != nil {
			return OutcomeNoSession, e.fail(ctx, s, "end_session", err)
		}
		e.event(s.Flow, "completed")
		e.out.Notify(ctx, s.UserID, editDoneText)
		return OutcomeCompleted, nil
	}

	s.State = editStates[models.Field(token)]
	if err := e.sessions.Save(ctx, s); err != nil {
		return OutcomeNoSession, e.fail(ctx, s, "save_session", err)
	}
	e.event(s.Flow, "advanced")
	e.prompt(ctx, s)
	return OutcomeContinued, nil
}

// commit upserts the whole draft as the user's profile.
func (e *Engine) commit(ctx context.Context, s *Session) error {
	switch s.Role {
	case models.RoleProvider:
		return e.profiles.UpsertProviderProfile(ctx, models.ProviderFromDraft(s.UserID, s.Draft))
	case models.RoleSeeker:
		return e.profiles.UpsertSeekerProfile(ctx, models.SeekerFromDraft(s.UserID, s.Draft))
	}
	return models.NewValidationError("session has no role", models.ErrRoleMismatch)
}

// Cancel discards the user's session without committing and confirms it.
func (e *Engine) Cancel(ctx context.Context, userID int64) error {
	flow := Flow("none")
	if s, err := e.sessions.Get(ctx, userID); err == nil && s != nil {
		flow = s.Flow
	}
	if err := e.sessions.Delete(ctx, userID); err != nil {
		return err
	}
	e.event(flow, "cancelled")
	e.out.Notify(ctx, userID, cancelledText)
	return nil
}

// Discard drops the user's session without notifying them.
func (e *Engine) Discard(ctx context.Context, userID int64) error {
	return e.sessions.Delete(ctx, userID)
}

// Restart purges everything stored for the user and reopens intake.
func (e *Engine) Restart(ctx context.Context, userID int64) error {
	s := &Session{UserID: userID, Flow: FlowIntake}
	if err := e.sessions.Delete(ctx, userID); err != nil {
		return e.fail(ctx, s, "restart", err)
	}
	if err := e.profiles.PurgeUser(ctx, userID); err != nil {
		return e.fail(ctx, s, "restart", err)
	}
	e.event(FlowIntake, "restarted")
	return e.Start(ctx, userID)
}

func (e *Engine) prompt(ctx context.Context, s *Session) {
	text, choices := promptFor(s)
	e.out.Prompt(ctx, s.UserID, text, choices)
}

func (e *Engine) reprompt(ctx context.Context, s *Session) {
	e.event(s.Flow, "reprompted")
	e.out.Notify(ctx, s.UserID, notUnderstoodText)
	e.prompt(ctx, s)
}

// fail drops the session, tells the user and returns err. The session never
// outlives a failed step.
func (e *Engine) fail(ctx context.Context, s *Session, op string, err error) error {
	if delErr := e.sessions.Delete(ctx, s.UserID); delErr != nil {
		observability.LogAsyncOperationError(ctx, "conversation.drop_session", delErr,
			slog.Int64("user_id", s.UserID))
	}
	flow := s.Flow
	if flow == "" {
		flow = "none"
	}
	e.event(flow, "failed")
	observability.GlobalLogger.ErrorContext(ctx, "conversation step failed",
		slog.String("operation", op),
		slog.Int64("user_id", s.UserID),
		slog.String("state", string(s.State)),
		slog.String("error", err.Error()),
	)
	e.out.Notify(ctx, s.UserID, failedText)
	return err
}

func (e *Engine) event(flow Flow, name string) {
	observability.SessionEventsTotal.WithLabelValues(string(flow), name).Inc()
}
