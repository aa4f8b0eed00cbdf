package bot

import (
	"fmt"
	"strconv"
	"strings"

	"psymatch/internal/models"
	"psymatch/internal/notifications"
	"psymatch/internal/service"
)

// Button tokens.
const (
	btnViewProfiles  = "view_profiles"
	btnViewMatches   = "view_matches"
	btnMyStats       = "my_stats"
	btnTechFunctions = "tech_functions"
	btnBackToMain    = "back_to_main"
	btnEditProfile   = "edit_profile"
	btnResetViewed   = "reset_viewed"
	btnRestartBot    = "restart_bot"
	btnGlobalStats   = "global_stats"
	likePrefix       = "like_"
	skipPrefix       = "skip_"
)

var mainMenu = []models.Choice{
	{Token: btnViewProfiles, Label: "Browse profiles"},
	{Token: btnViewMatches, Label: "My matches"},
	{Token: btnMyStats, Label: "My stats"},
	{Token: btnTechFunctions, Label: "Settings"},
}

var techMenu = []models.Choice{
	{Token: btnEditProfile, Label: "Edit profile"},
	{Token: btnResetViewed, Label: "Reset viewed profiles"},
	{Token: btnRestartBot, Label: "Start over"},
	{Token: btnGlobalStats, Label: "Global stats"},
	{Token: btnBackToMain, Label: "Back"},
}

var exhaustedMenu = []models.Choice{
	{Token: btnResetViewed, Label: "Reset viewed profiles"},
	{Token: btnBackToMain, Label: "Main menu"},
}

const (
	mainMenuText     = "Main menu:"
	techMenuText     = "Settings:\n\nEdit your profile, reset viewed profiles or start over."
	exhaustedText    = "You have seen every profile for now. Reset viewed profiles or check back later."
	noProfileText    = "You do not have a profile yet. Use /start to create one."
	busyText         = "Finish the current step first, or send /cancel."
	notUnderstood    = "I did not understand that. Use /help to see what I can do."
	unknownCommand   = "Unknown command. Use /help to see what I can do."
	unknownAction    = "That button is no longer available."
	unavailableText  = "That profile is no longer available."
	noMatchesText    = "You have no mutual likes yet. Keep browsing!"
	noLikesText      = "Nobody has liked you yet."
	photoOutsideFlow = "Photos are only accepted while filling in your profile."
	errorText        = "Something went wrong. Please try again or use /start."
)

const helpText = `Available commands:

/start - open the menu or create your profile
/profile - show your profile
/edit - edit your profile
/search - browse profiles
/matches - your mutual likes
/likes - who liked you
/stats - your statistics
/restart - delete all your data and start over
/cancel - stop the current step
/help - this message`

func candidateActions(id int64) []models.Choice {
	s := strconv.FormatInt(id, 10)
	return []models.Choice{
		{Token: likePrefix + s, Label: "Like"},
		{Token: skipPrefix + s, Label: "Skip"},
		{Token: btnBackToMain, Label: "Main menu"},
	}
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		value = "not set"
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func renderProvider(p *models.ProviderProfile) string {
	var b strings.Builder
	writeLine(&b, "Name", p.Name)
	writeLine(&b, "Gender", p.Gender)
	writeLine(&b, "Age", p.Age)
	writeLine(&b, "Education", p.Education)
	writeLine(&b, "About", p.About)
	writeLine(&b, "Approach", p.Approach)
	writeLine(&b, "Works with", p.Focus)
	writeLine(&b, "Price", p.Price)
	return strings.TrimRight(b.String(), "\n")
}

func renderSeeker(p *models.SeekerProfile) string {
	var b strings.Builder
	writeLine(&b, "Name", p.Name)
	writeLine(&b, "Gender", p.Gender)
	writeLine(&b, "Age", p.Age)
	writeLine(&b, "Request", p.Request)
	return strings.TrimRight(b.String(), "\n")
}

// candidateView renders a deck candidate for presentCandidate.
func candidateView(c *models.Candidate) notifications.ProfileView {
	view := notifications.ProfileView{CandidateID: c.UserID}
	switch {
	case c.Provider != nil:
		view.Text = "Psychologist\n\n" + renderProvider(c.Provider)
		view.PhotoRef = c.Provider.PhotoRef
	case c.Seeker != nil:
		view.Text = "Client\n\n" + renderSeeker(c.Seeker)
	}
	return view
}

func renderUserStats(s models.UserStats) string {
	return fmt.Sprintf("Your statistics:\n\nRole: %s\nLikes given: %d\nLikes received: %d\nMutual matches: %d",
		s.Role.Label(), s.LikesGiven, s.LikesReceived, s.Mutual)
}

func renderGlobalStats(s models.GlobalStats) string {
	return fmt.Sprintf("Global statistics:\n\nPsychologists: %d\nClients: %d\nTotal likes: %d\nMutual matches: %d",
		s.Providers, s.Seekers, s.TotalLikes, s.MutualPairs)
}

func renderMatches(partners []models.MutualPartner) string {
	if len(partners) == 0 {
		return noMatchesText
	}
	var b strings.Builder
	b.WriteString("Your mutual likes:\n")
	for _, p := range partners {
		name := p.Name
		if name == "" {
			name = p.DisplayName()
		}
		contact := "no handle"
		if h := p.HandleOrEmpty(); h != "" {
			contact = "@" + h
		}
		fmt.Fprintf(&b, "\n%s (%s) - %s", name, contact, p.Role.Label())
	}
	return b.String()
}

func renderIncomingLikes(likes []service.IncomingLike) string {
	if len(likes) == 0 {
		return noLikesText
	}
	var b strings.Builder
	b.WriteString("People who liked you:\n")
	for _, l := range likes {
		suffix := ""
		if l.Mutual {
			suffix = ", mutual"
		}
		fmt.Fprintf(&b, "\n%s (%s%s) on %s", l.Name, l.Role.Label(), suffix, l.LikedAt.UTC().Format("2006-01-02"))
	}
	return b.String()
}
