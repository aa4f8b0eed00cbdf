package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"psymatch/internal/conversation"
	"psymatch/internal/database"
	"psymatch/internal/models"
	"psymatch/internal/notifications"
	"psymatch/internal/repository"
	"psymatch/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type deps struct {
	db       *gorm.DB
	redis    *redis.Client
	profiles repository.ProfileRepository
	matches  *service.MatchService
	deck     *service.Deck
	engine   *conversation.Engine
}

type depsLoader func(cmd *cobra.Command) (*deps, error)

var errNoRedis = errors.New("redis is not configured")

func newRootCmd(load depsLoader) *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Inspect and maintain psymatch data",
		SilenceUsage: true,
	}

	// run wraps a command body with dependency loading.
	run := func(fn func(cmd *cobra.Command, d *deps, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			d, err := load(cmd)
			if err != nil {
				return err
			}
			return fn(cmd, d, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show global counts",
			Args:  cobra.NoArgs,
			RunE:  run(runStats),
		},
		&cobra.Command{
			Use:   "user [user-id]",
			Short: "Show a user with profile and like counts",
			Args:  cobra.ExactArgs(1),
			RunE:  run(runUser),
		},
		&cobra.Command{
			Use:   "purge [user-id]",
			Short: "Delete a user and everything that references them",
			Args:  cobra.ExactArgs(1),
			RunE:  run(runPurge),
		},
		&cobra.Command{
			Use:   "reset-views [user-id]",
			Short: "Clear the candidates a user has already seen",
			Args:  cobra.ExactArgs(1),
			RunE:  run(runResetViews),
		},
		&cobra.Command{
			Use:   "matches [user-id]",
			Short: "List a user's mutual matches",
			Args:  cobra.ExactArgs(1),
			RunE:  run(runMatches),
		},
		&cobra.Command{
			Use:   "likes [user-id]",
			Short: "List who liked a user",
			Args:  cobra.ExactArgs(1),
			RunE:  run(runLikes),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			Args:  cobra.NoArgs,
			RunE:  run(runMigrate),
		},
		&cobra.Command{
			Use:   "tail",
			Short: "Print notifications as they are published",
			Long:  `Subscribes to every user notification channel and prints each payload until interrupted.`,
			Args:  cobra.NoArgs,
			RunE:  run(runTail),
		},
	)
	return root
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func runStats(cmd *cobra.Command, d *deps, _ []string) error {
	stats, err := d.matches.GlobalStats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Psychologists:  %d\n", stats.Providers)
	_, _ = fmt.Fprintf(out, "Clients:        %d\n", stats.Seekers)
	_, _ = fmt.Fprintf(out, "Total likes:    %d\n", stats.TotalLikes)
	_, _ = fmt.Fprintf(out, "Mutual matches: %d\n", stats.MutualPairs)
	return nil
}

func runUser(cmd *cobra.Command, d *deps, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	user, err := d.profiles.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %d not found", id)
	}

	report := map[string]any{"user": user}
	switch user.Role {
	case models.RoleProvider:
		report["profile"], err = d.profiles.GetProviderProfile(ctx, id)
	case models.RoleSeeker:
		report["profile"], err = d.profiles.GetSeekerProfile(ctx, id)
	}
	if err != nil {
		return err
	}
	if report["stats"], err = d.matches.UserStats(ctx, user); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runPurge(cmd *cobra.Command, d *deps, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := d.engine.Discard(ctx, id); err != nil {
		return err
	}
	if err := d.profiles.PurgeUser(ctx, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Purged user %d\n", id)
	return nil
}

func runResetViews(cmd *cobra.Command, d *deps, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	n, err := d.deck.ResetViews(cmd.Context(), id)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d viewed candidates for user %d\n", n, id)
	return nil
}

func handleOf(o models.Owner) string {
	if o.Handle == nil || *o.Handle == "" {
		return "-"
	}
	return "@" + *o.Handle
}

func runMatches(cmd *cobra.Command, d *deps, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	partners, err := d.matches.Matches(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(partners) == 0 {
		_, _ = fmt.Fprintln(out, "No matches")
		return nil
	}
	for _, p := range partners {
		_, _ = fmt.Fprintf(out, "%d\t%s (%s)\t%s\n", p.PartnerID, p.Name, p.Role.Label(), handleOf(p.Owner))
	}
	return nil
}

func runLikes(cmd *cobra.Command, d *deps, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	likers, err := d.matches.IncomingLikes(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(likers) == 0 {
		_, _ = fmt.Fprintln(out, "No likes")
		return nil
	}
	for _, l := range likers {
		mark := ""
		if l.Mutual {
			mark = "\tmutual"
		}
		_, _ = fmt.Fprintf(out, "%d\t%s (%s)\t%s%s\n", l.UserID, l.Name, l.Role.Label(),
			l.LikedAt.Format("2006-01-02 15:04"), mark)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, d *deps, _ []string) error {
	if err := database.Migrate(d.db); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
	return nil
}

func runTail(cmd *cobra.Command, d *deps, _ []string) error {
	if d.redis == nil {
		return errNoRedis
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	err := notifications.NewNotifier(d.redis).StartPatternSubscriber(ctx, func(channel, payload string) {
		_, _ = fmt.Fprintf(out, "%s %s\n", channel, payload)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
