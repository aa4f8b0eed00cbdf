// Package bot routes inbound transport updates. Replies to an active
// conversation go to the conversation engine; everything else is a stateless
// command or button handled here.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"psymatch/internal/conversation"
	"psymatch/internal/keylock"
	"psymatch/internal/middleware"
	"psymatch/internal/models"
	"psymatch/internal/notifications"
	"psymatch/internal/observability"
	"psymatch/internal/repository"
	"psymatch/internal/service"

	"go.opentelemetry.io/otel/attribute"
)

// Outbound is everything the dispatcher sends to users.
type Outbound interface {
	Notify(ctx context.Context, userID int64, text string)
	Prompt(ctx context.Context, userID int64, text string, choices []models.Choice)
	PresentCandidate(ctx context.Context, userID int64, view notifications.ProfileView, actions []models.Choice)
}

// Dispatcher handles updates one user at a time.
type Dispatcher struct {
	profiles repository.ProfileRepository
	engine   *conversation.Engine
	deck     *service.Deck
	matches  *service.MatchService
	out      Outbound
	users    keylock.Map[int64]
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(
	profiles repository.ProfileRepository,
	engine *conversation.Engine,
	deck *service.Deck,
	matches *service.MatchService,
	out Outbound,
) *Dispatcher {
	return &Dispatcher{
		profiles: profiles,
		engine:   engine,
		deck:     deck,
		matches:  matches,
		out:      out,
	}
}

// Dispatch processes one update to completion. Updates for the same user are
// serialized; different users proceed concurrently.
func (d *Dispatcher) Dispatch(ctx context.Context, u Update) (err error) {
	if err := u.Validate(); err != nil {
		return err
	}

	unlock := d.users.Lock(u.UserID)
	defer unlock()

	ctx = observability.EnsureCorrelationID(ctx)
	ctx = middleware.WithUserID(ctx, u.UserID)
	span, ctx := observability.StartSpan(ctx, "bot.dispatch",
		attribute.Int64("user.id", u.UserID),
		attribute.String("update.kind", string(u.Kind)),
	)
	start := time.Now()
	defer func() {
		observability.UpdatesTotal.WithLabelValues(string(u.Kind)).Inc()
		observability.UpdateDuration.WithLabelValues(string(u.Kind)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.SetError(err)
			middleware.Logger.ErrorContext(ctx, "update failed", "kind", u.Kind, "error", err)
		}
		span.End()
	}()

	user, err := d.profiles.GetUser(ctx, u.UserID)
	if err != nil {
		d.out.Notify(ctx, u.UserID, errorText)
		return err
	}
	if user != nil {
		if err := d.profiles.TouchLastActive(ctx, u.UserID); err != nil {
			d.out.Notify(ctx, u.UserID, errorText)
			return err
		}
	}

	switch u.Kind {
	case KindCommand:
		err = d.command(ctx, user, u)
	case KindButton:
		err = d.button(ctx, user, u)
	case KindText:
		err = d.reply(ctx, user, u.UserID, conversation.Input{Kind: conversation.InputText, Text: u.Text, Contact: u.Contact()})
	case KindPhoto:
		err = d.reply(ctx, user, u.UserID, conversation.Input{Kind: conversation.InputPhoto, PhotoRef: u.PhotoRef, Contact: u.Contact()})
	}
	return err
}

// PurgeUser removes the user's session and all stored data, serialized with
// the user's in-flight updates.
func (d *Dispatcher) PurgeUser(ctx context.Context, userID int64) error {
	unlock := d.users.Lock(userID)
	defer unlock()

	if err := d.engine.Discard(ctx, userID); err != nil {
		return models.NewInternalError(err)
	}
	return d.profiles.PurgeUser(ctx, userID)
}

// reply routes a free-form reply to the active conversation. The engine has
// already told the user about any failure it returns.
func (d *Dispatcher) reply(ctx context.Context, user *models.User, userID int64, in conversation.Input) error {
	outcome, err := d.engine.Handle(ctx, userID, in)
	if err != nil {
		return err
	}
	switch outcome {
	case conversation.OutcomeCompleted:
		d.showMainMenu(ctx, userID)
	case conversation.OutcomeNoSession:
		switch {
		case in.Kind == conversation.InputPhoto:
			d.out.Notify(ctx, userID, photoOutsideFlow)
		case in.Kind == conversation.InputSkip:
			d.out.Notify(ctx, userID, notUnderstood)
		case user != nil:
			d.out.Notify(ctx, userID, notUnderstood)
			d.showMainMenu(ctx, userID)
		default:
			d.out.Notify(ctx, userID, noProfileText)
		}
	}
	return nil
}

func (d *Dispatcher) command(ctx context.Context, user *models.User, u Update) error {
	cmd := u.command()
	switch cmd {
	case "start":
		return d.start(ctx, user, u.UserID)
	case "edit":
		_, err := d.engine.StartEdit(ctx, u.UserID)
		return err
	case "restart":
		return d.engine.Restart(ctx, u.UserID)
	case "cancel":
		return d.engine.Cancel(ctx, u.UserID)
	case "skip":
		return d.reply(ctx, user, u.UserID, conversation.Input{Kind: conversation.InputSkip, Contact: u.Contact()})
	case "help":
		d.out.Notify(ctx, u.UserID, helpText)
		return nil
	}

	if busy, err := d.busy(ctx, u.UserID); err != nil || busy {
		return err
	}

	switch cmd {
	case "profile":
		return d.showProfile(ctx, user, u.UserID)
	case "stats":
		return d.showUserStats(ctx, user, u.UserID)
	case "search":
		return d.showNext(ctx, user, u.UserID)
	case "matches":
		return d.showMatches(ctx, user, u.UserID)
	case "likes":
		return d.showIncomingLikes(ctx, user, u.UserID)
	default:
		d.out.Notify(ctx, u.UserID, unknownCommand)
		return nil
	}
}

func (d *Dispatcher) button(ctx context.Context, user *models.User, u Update) error {
	data := strings.TrimSpace(u.Data)
	if data == btnRestartBot {
		return d.engine.Restart(ctx, u.UserID)
	}
	active, err := d.engine.Active(ctx, u.UserID)
	if err != nil {
		d.out.Notify(ctx, u.UserID, errorText)
		return err
	}
	if active {
		if menuAction(data) {
			d.out.Notify(ctx, u.UserID, busyText)
			return nil
		}
		return d.reply(ctx, user, u.UserID, buttonInput(data, u))
	}

	switch {
	case data == btnViewProfiles:
		return d.showNext(ctx, user, u.UserID)
	case data == btnViewMatches:
		return d.showMatches(ctx, user, u.UserID)
	case data == btnMyStats:
		return d.showUserStats(ctx, user, u.UserID)
	case data == btnTechFunctions:
		d.out.Prompt(ctx, u.UserID, techMenuText, techMenu)
		return nil
	case data == btnBackToMain:
		d.showMainMenu(ctx, u.UserID)
		return nil
	case data == btnEditProfile:
		_, err := d.engine.StartEdit(ctx, u.UserID)
		return err
	case data == btnResetViewed:
		return d.resetViewed(ctx, user, u.UserID)
	case data == btnGlobalStats:
		return d.showGlobalStats(ctx, u.UserID)
	case strings.HasPrefix(data, likePrefix):
		return d.like(ctx, user, u.UserID, strings.TrimPrefix(data, likePrefix))
	case strings.HasPrefix(data, skipPrefix):
		return d.showNext(ctx, user, u.UserID)
	default:
		d.out.Notify(ctx, u.UserID, unknownAction)
		return nil
	}
}

// menuAction reports whether data belongs to the stateless menus rather than
// to a conversation prompt.
func menuAction(data string) bool {
	switch data {
	case btnViewProfiles, btnViewMatches, btnMyStats, btnTechFunctions, btnBackToMain,
		btnEditProfile, btnResetViewed, btnGlobalStats:
		return true
	}
	return strings.HasPrefix(data, likePrefix) || strings.HasPrefix(data, skipPrefix)
}

// buttonInput turns a pressed conversation choice into an engine reply.
func buttonInput(data string, u Update) conversation.Input {
	if data == conversation.SkipToken {
		return conversation.Input{Kind: conversation.InputSkip, Contact: u.Contact()}
	}
	return conversation.Input{Kind: conversation.InputText, Text: data, Contact: u.Contact()}
}

// busy tells the user to finish the open conversation before using the menu.
func (d *Dispatcher) busy(ctx context.Context, userID int64) (bool, error) {
	active, err := d.engine.Active(ctx, userID)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return false, err
	}
	if active {
		d.out.Notify(ctx, userID, busyText)
	}
	return active, nil
}

// start shows the menu to users with a profile and runs intake for everyone
// else. A user row left over from an abandoned intake is purged first so the
// role can be chosen again.
func (d *Dispatcher) start(ctx context.Context, user *models.User, userID int64) error {
	if user == nil {
		return d.engine.Start(ctx, userID)
	}
	has, err := d.hasProfile(ctx, user)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	if !has {
		return d.engine.Restart(ctx, userID)
	}
	active, err := d.engine.Active(ctx, userID)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	if active {
		if err := d.engine.Cancel(ctx, userID); err != nil {
			return err
		}
	}
	d.showMainMenu(ctx, userID)
	return nil
}

func (d *Dispatcher) hasProfile(ctx context.Context, user *models.User) (bool, error) {
	switch user.Role {
	case models.RoleProvider:
		p, err := d.profiles.GetProviderProfile(ctx, user.ID)
		return p != nil, err
	case models.RoleSeeker:
		p, err := d.profiles.GetSeekerProfile(ctx, user.ID)
		return p != nil, err
	}
	return false, nil
}

// registered redirects users without a profile to intake.
func (d *Dispatcher) registered(ctx context.Context, user *models.User, userID int64) (bool, error) {
	if user == nil {
		d.out.Notify(ctx, userID, noProfileText)
		return false, nil
	}
	has, err := d.hasProfile(ctx, user)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return false, err
	}
	if !has {
		d.out.Notify(ctx, userID, noProfileText)
	}
	return has, nil
}

func (d *Dispatcher) showMainMenu(ctx context.Context, userID int64) {
	d.out.Prompt(ctx, userID, mainMenuText, mainMenu)
}

func (d *Dispatcher) showProfile(ctx context.Context, user *models.User, userID int64) error {
	if user == nil {
		d.out.Notify(ctx, userID, noProfileText)
		return nil
	}
	var view notifications.ProfileView
	switch user.Role {
	case models.RoleProvider:
		p, err := d.profiles.GetProviderProfile(ctx, userID)
		if err != nil {
			d.out.Notify(ctx, userID, errorText)
			return err
		}
		if p != nil {
			view = notifications.ProfileView{
				CandidateID: userID,
				Text:        "Your psychologist profile:\n\n" + renderProvider(p),
				PhotoRef:    p.PhotoRef,
			}
		}
	case models.RoleSeeker:
		p, err := d.profiles.GetSeekerProfile(ctx, userID)
		if err != nil {
			d.out.Notify(ctx, userID, errorText)
			return err
		}
		if p != nil {
			view = notifications.ProfileView{
				CandidateID: userID,
				Text:        "Your client profile:\n\n" + renderSeeker(p),
			}
		}
	}
	if view.Text == "" {
		d.out.Notify(ctx, userID, noProfileText)
		return nil
	}
	d.out.PresentCandidate(ctx, userID, view, []models.Choice{
		{Token: btnEditProfile, Label: "Edit profile"},
		{Token: btnBackToMain, Label: "Main menu"},
	})
	return nil
}

// showNext draws from the deck and presents the candidate, or the exhausted menu.
func (d *Dispatcher) showNext(ctx context.Context, user *models.User, userID int64) error {
	if ok, err := d.registered(ctx, user, userID); !ok {
		return err
	}
	draw, err := d.deck.Next(ctx, user)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	if draw.Exhausted() {
		d.out.Prompt(ctx, userID, exhaustedText, exhaustedMenu)
		return nil
	}
	d.out.PresentCandidate(ctx, userID, candidateView(draw.Candidate), candidateActions(draw.Candidate.UserID))
	return nil
}

func (d *Dispatcher) like(ctx context.Context, user *models.User, userID int64, rawTarget string) error {
	if ok, err := d.registered(ctx, user, userID); !ok {
		return err
	}
	target, err := strconv.ParseInt(rawTarget, 10, 64)
	if err != nil {
		d.out.Notify(ctx, userID, unknownAction)
		return nil
	}

	if _, err := d.matches.Like(ctx, userID, target); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
			d.out.Notify(ctx, userID, unavailableText)
			return d.showNext(ctx, user, userID)
		}
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	return d.showNext(ctx, user, userID)
}

func (d *Dispatcher) resetViewed(ctx context.Context, user *models.User, userID int64) error {
	if ok, err := d.registered(ctx, user, userID); !ok {
		return err
	}
	n, err := d.deck.ResetViews(ctx, userID)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	d.out.Notify(ctx, userID, "Viewed profiles reset ("+strconv.FormatInt(n, 10)+"). You can browse them again.")
	d.showMainMenu(ctx, userID)
	return nil
}

func (d *Dispatcher) showMatches(ctx context.Context, user *models.User, userID int64) error {
	if ok, err := d.registered(ctx, user, userID); !ok {
		return err
	}
	partners, err := d.matches.Matches(ctx, userID)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	d.out.Prompt(ctx, userID, renderMatches(partners), mainMenu)
	return nil
}

func (d *Dispatcher) showIncomingLikes(ctx context.Context, user *models.User, userID int64) error {
	if ok, err := d.registered(ctx, user, userID); !ok {
		return err
	}
	likes, err := d.matches.IncomingLikes(ctx, userID)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	d.out.Notify(ctx, userID, renderIncomingLikes(likes))
	return nil
}

func (d *Dispatcher) showUserStats(ctx context.Context, user *models.User, userID int64) error {
	if ok, err := d.registered(ctx, user, userID); !ok {
		return err
	}
	stats, err := d.matches.UserStats(ctx, user)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	d.out.Prompt(ctx, userID, renderUserStats(stats), mainMenu)
	return nil
}

func (d *Dispatcher) showGlobalStats(ctx context.Context, userID int64) error {
	stats, err := d.matches.GlobalStats(ctx)
	if err != nil {
		d.out.Notify(ctx, userID, errorText)
		return err
	}
	d.out.Prompt(ctx, userID, renderGlobalStats(stats), techMenu)
	return nil
}
