package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"psymatch/internal/conversation"
	"psymatch/internal/models"
	"psymatch/internal/notifications"
	"psymatch/internal/repository"
	"psymatch/internal/service"
	"psymatch/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sent struct {
	Kind    string
	UserID  int64
	Text    string
	Choices []models.Choice
	View    notifications.ProfileView
}

type recorder struct {
	mu  sync.Mutex
	all []sent
}

func (r *recorder) add(s sent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, s)
}

func (r *recorder) Notify(_ context.Context, userID int64, text string) {
	r.add(sent{Kind: "text", UserID: userID, Text: text})
}

func (r *recorder) Prompt(_ context.Context, userID int64, text string, choices []models.Choice) {
	r.add(sent{Kind: "prompt", UserID: userID, Text: text, Choices: choices})
}

func (r *recorder) PresentCandidate(_ context.Context, userID int64, view notifications.ProfileView, actions []models.Choice) {
	r.add(sent{Kind: "candidate", UserID: userID, View: view, Choices: actions})
}

func (r *recorder) last(userID int64) sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.all) - 1; i >= 0; i-- {
		if r.all[i].UserID == userID {
			return r.all[i]
		}
	}
	return sent{}
}

func (r *recorder) texts(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.all {
		if s.UserID == userID {
			out = append(out, s.Text)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
}

type env struct {
	db   *gorm.DB
	out  *recorder
	bot  *Dispatcher
	prof repository.ProfileRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	out := &recorder{}
	profiles := repository.NewProfileRepository(db)
	likes := repository.NewLikeRepository(db)
	viewed := repository.NewViewedRepository(db)
	engine := conversation.NewEngine(profiles, conversation.NewMemorySessionStore(0), out)
	d := NewDispatcher(profiles, engine, service.NewDeck(profiles, likes, viewed),
		service.NewMatchService(profiles, likes, out), out)
	return &env{db: db, out: out, bot: d, prof: profiles}
}

func (e *env) send(t *testing.T, u Update) {
	t.Helper()
	require.NoError(t, e.bot.Dispatch(context.Background(), u))
}

func (e *env) cmd(t *testing.T, userID int64, c string) {
	t.Helper()
	e.send(t, Update{UserID: userID, Kind: KindCommand, Command: c})
}

func (e *env) press(t *testing.T, userID int64, data string) {
	t.Helper()
	e.send(t, Update{UserID: userID, Kind: KindButton, Data: data})
}

func (e *env) say(t *testing.T, userID int64, handle string, texts ...string) {
	t.Helper()
	for _, s := range texts {
		e.send(t, Update{UserID: userID, Handle: handle, FirstName: "First" + strconv.FormatInt(userID, 10), Kind: KindText, Text: s})
	}
}

func (e *env) registerProvider(t *testing.T, id int64, name, handle string) {
	t.Helper()
	e.cmd(t, id, "/start")
	e.say(t, id, handle, "provider", name, "Female", "45", "University", "About me", "CBT", "Anxiety", "Negotiable")
	e.cmd(t, id, "/skip")
}

func (e *env) registerSeeker(t *testing.T, id int64, name, handle string) {
	t.Helper()
	e.cmd(t, id, "/start")
	e.say(t, id, handle, "seeker", name, "Male", "30", "Stress at work")
}

func TestDispatcher_RegistrationEndsInMainMenu(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Anna", "anna_psy")

	last := e.out.last(1)
	assert.Equal(t, mainMenuText, last.Text)
	assert.Equal(t, mainMenu, last.Choices)

	p, err := e.prof.GetProviderProfile(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Anna", p.Name)
	assert.Nil(t, p.PhotoRef)
	require.NotNil(t, p.Owner.Handle)
	assert.Equal(t, "anna_psy", *p.Owner.Handle)
}

func TestDispatcher_BrowseLikeAndMatch(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Anna", "anna_psy")
	e.registerProvider(t, 2, "Boris", "")
	e.registerSeeker(t, 10, "Ivan", "ivan")

	e.press(t, 10, btnViewProfiles)
	card := e.out.last(10)
	require.Equal(t, "candidate", card.Kind)
	assert.Equal(t, int64(1), card.View.CandidateID)
	assert.Contains(t, card.View.Text, "Name: Anna")
	assert.Equal(t, candidateActions(1), card.Choices)

	e.press(t, 10, "like_1")
	assert.Contains(t, e.out.texts(1), "You have a new like from Ivan (Client). Open the deck to find them.")
	next := e.out.last(10)
	require.Equal(t, "candidate", next.Kind)
	assert.Equal(t, int64(2), next.View.CandidateID)

	e.press(t, 10, "skip_2")
	assert.Equal(t, exhaustedText, e.out.last(10).Text)

	e.out.reset()
	e.press(t, 1, btnViewProfiles)
	require.Equal(t, int64(10), e.out.last(1).View.CandidateID)
	e.press(t, 1, "like_10")

	var annaGot, ivanGot string
	for _, s := range e.out.texts(1) {
		if strings.HasPrefix(s, "It's a match!") {
			annaGot = s
		}
	}
	for _, s := range e.out.texts(10) {
		if strings.HasPrefix(s, "It's a match!") {
			ivanGot = s
		}
	}
	assert.Contains(t, annaGot, "Ivan (Client)")
	assert.Contains(t, annaGot, "@ivan")
	assert.Contains(t, ivanGot, "Anna (Psychologist)")
	assert.Contains(t, ivanGot, "@anna_psy")

	e.press(t, 10, btnViewMatches)
	assert.Contains(t, e.out.last(10).Text, "Anna (@anna_psy) - Psychologist")

	e.cmd(t, 1, "stats")
	stats := e.out.last(1).Text
	assert.Contains(t, stats, "Likes given: 1")
	assert.Contains(t, stats, "Likes received: 1")
	assert.Contains(t, stats, "Mutual matches: 1")

	e.press(t, 1, btnGlobalStats)
	global := e.out.last(1).Text
	assert.Contains(t, global, "Psychologists: 2")
	assert.Contains(t, global, "Clients: 1")
	assert.Contains(t, global, "Total likes: 2")
	assert.Contains(t, global, "Mutual matches: 1")
}

func TestDispatcher_MatchWithoutHandleSaysSo(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Boris", "")
	e.registerSeeker(t, 10, "Ivan", "ivan")

	e.press(t, 10, "like_1")
	e.press(t, 1, "like_10")

	var got string
	for _, s := range e.out.texts(10) {
		if strings.HasPrefix(s, "It's a match!") {
			got = s
		}
	}
	assert.Contains(t, got, "Boris has no public handle")
}

func TestDispatcher_ResetViewedMakesCandidatesEligible(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Anna", "")
	e.registerSeeker(t, 10, "Ivan", "")

	e.press(t, 10, btnViewProfiles)
	e.press(t, 10, "skip_1")
	assert.Equal(t, exhaustedText, e.out.last(10).Text)

	e.press(t, 10, btnResetViewed)
	assert.Contains(t, e.out.texts(10), "Viewed profiles reset (1). You can browse them again.")

	e.cmd(t, 10, "search")
	assert.Equal(t, int64(1), e.out.last(10).View.CandidateID)
}

func TestDispatcher_DuplicateLike(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Anna", "")
	e.registerSeeker(t, 10, "Ivan", "")

	e.press(t, 10, "like_1")
	e.press(t, 10, "like_1")
	assert.Contains(t, e.out.texts(10), "You have already liked this profile.")
}

func TestDispatcher_LikeUnknownUser(t *testing.T) {
	e := newEnv(t)
	e.registerSeeker(t, 10, "Ivan", "")

	e.press(t, 10, "like_999")
	assert.Contains(t, e.out.texts(10), unavailableText)

	e.press(t, 10, "like_abc")
	assert.Contains(t, e.out.texts(10), unknownAction)
}

func TestDispatcher_MenuIsBlockedDuringConversation(t *testing.T) {
	e := newEnv(t)
	e.cmd(t, 5, "start")
	e.say(t, 5, "", "seeker")

	e.cmd(t, 5, "search")
	assert.Equal(t, busyText, e.out.last(5).Text)
	for _, data := range []string{btnMyStats, btnViewProfiles, likePrefix + "1", skipPrefix + "1"} {
		e.press(t, 5, data)
		assert.Equal(t, busyText, e.out.last(5).Text, data)
	}

	e.cmd(t, 5, "cancel")
	assert.Contains(t, e.out.last(5).Text, "Cancelled")
}

func TestDispatcher_ButtonsDriveIntake(t *testing.T) {
	e := newEnv(t)
	e.cmd(t, 1, "start")
	require.Equal(t, models.RoleChoices, e.out.last(1).Choices)

	e.send(t, Update{UserID: 1, Handle: "anna_psy", Kind: KindButton, Data: "provider"})
	user, err := e.prof.GetUser(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, models.RoleProvider, user.Role)

	e.say(t, 1, "anna_psy", "Anna")
	e.press(t, 1, "Female")
	e.say(t, 1, "anna_psy", "45", "University", "About me")
	e.press(t, 1, "CBT")
	e.say(t, 1, "anna_psy", "Anxiety")
	e.press(t, 1, "Negotiable")
	e.press(t, 1, "skip")
	assert.Equal(t, mainMenuText, e.out.last(1).Text)

	p, err := e.prof.GetProviderProfile(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Female", p.Gender)
	assert.Equal(t, "CBT", p.Approach)
	assert.Equal(t, "Negotiable", p.Price)
	assert.Nil(t, p.PhotoRef)
}

func TestDispatcher_ButtonsDriveEditMenu(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Anna", "")

	e.press(t, 1, btnEditProfile)
	e.press(t, 1, string(models.FieldName))
	e.say(t, 1, "", "Anna Petrova")
	e.press(t, 1, "finish")
	assert.Equal(t, mainMenuText, e.out.last(1).Text)

	p, err := e.prof.GetProviderProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Anna Petrova", p.Name)
}

func TestDispatcher_SkipTextFinishesIntake(t *testing.T) {
	e := newEnv(t)
	e.cmd(t, 1, "/start")
	e.say(t, 1, "", "provider", "Anna", "Female", "45", "University", "About me", "CBT", "Anxiety", "Negotiable", "skip")
	assert.Equal(t, mainMenuText, e.out.last(1).Text)

	p, err := e.prof.GetProviderProfile(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.PhotoRef)
}

func TestDispatcher_StartForRegisteredUserShowsMenu(t *testing.T) {
	e := newEnv(t)
	e.registerSeeker(t, 10, "Ivan", "")

	e.out.reset()
	e.cmd(t, 10, "/Start@psymatch_bot")
	assert.Equal(t, mainMenuText, e.out.last(10).Text)
	assert.NotContains(t, e.out.texts(10), "Cancelled. Use /start to open the menu.")

	p, err := e.prof.GetSeekerProfile(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestDispatcher_StartAfterAbandonedIntakeAllowsNewRole(t *testing.T) {
	e := newEnv(t)
	e.cmd(t, 5, "start")
	e.say(t, 5, "", "provider", "Anna")
	e.cmd(t, 5, "cancel")

	e.registerSeeker(t, 5, "Ivan", "")
	user, err := e.prof.GetUser(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeeker, user.Role)
}

func TestDispatcher_RedirectsWithoutProfile(t *testing.T) {
	e := newEnv(t)

	e.cmd(t, 7, "edit")
	assert.Equal(t, noProfileText, e.out.last(7).Text)
	e.press(t, 7, btnViewProfiles)
	assert.Equal(t, noProfileText, e.out.last(7).Text)
	e.cmd(t, 7, "profile")
	assert.Equal(t, noProfileText, e.out.last(7).Text)
	e.say(t, 7, "", "hello")
	assert.Equal(t, noProfileText, e.out.last(7).Text)
}

func TestDispatcher_PhotoOutsideConversation(t *testing.T) {
	e := newEnv(t)
	e.registerSeeker(t, 10, "Ivan", "")
	e.send(t, Update{UserID: 10, Kind: KindPhoto, PhotoRef: "file"})
	assert.Equal(t, photoOutsideFlow, e.out.last(10).Text)
}

func TestDispatcher_ProfileAndEdit(t *testing.T) {
	e := newEnv(t)
	e.registerProvider(t, 1, "Anna", "")

	e.cmd(t, 1, "profile")
	view := e.out.last(1)
	require.Equal(t, "candidate", view.Kind)
	assert.Contains(t, view.View.Text, "Price: Negotiable")

	e.press(t, 1, btnEditProfile)
	e.say(t, 1, "", "Price", "Free first session", "Finish editing")
	assert.Equal(t, mainMenuText, e.out.last(1).Text)

	p, err := e.prof.GetProviderProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Free first session", p.Price)
	assert.Equal(t, "University", p.Education)
}

func TestDispatcher_RestartPurges(t *testing.T) {
	e := newEnv(t)
	e.registerSeeker(t, 10, "Ivan", "")

	e.press(t, 10, btnRestartBot)
	user, err := e.prof.GetUser(context.Background(), 10)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, models.RoleChoices, e.out.last(10).Choices)
}

func TestDispatcher_TouchesLastActive(t *testing.T) {
	e := newEnv(t)
	e.registerSeeker(t, 10, "Ivan", "")
	old := time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", 10).Update("last_active_at", old).Error)

	e.cmd(t, 10, "help")
	user, err := e.prof.GetUser(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, user.LastActiveAt.After(old.Add(time.Hour)))
	assert.Equal(t, helpText, e.out.last(10).Text)
}

func TestDispatcher_RejectsInvalidUpdates(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		u    Update
	}{
		{"missing user", Update{Kind: KindText, Text: "x"}},
		{"unknown kind", Update{UserID: 1, Kind: "sticker"}},
		{"command without name", Update{UserID: 1, Kind: KindCommand}},
		{"button without data", Update{UserID: 1, Kind: KindButton}},
		{"photo without ref", Update{UserID: 1, Kind: KindPhoto}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.bot.Dispatch(context.Background(), tt.u)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeValidation))
		})
	}
}

func TestDispatcher_UnknownCommandAndButton(t *testing.T) {
	e := newEnv(t)
	e.cmd(t, 3, "dance")
	assert.Equal(t, unknownCommand, e.out.last(3).Text)
	e.press(t, 3, "nope")
	assert.Equal(t, unknownAction, e.out.last(3).Text)
}
