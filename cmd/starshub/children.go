package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kidlearn/stars-hub/config"
	"github.com/kidlearn/stars-hub/internal/application/command"
	"github.com/kidlearn/stars-hub/internal/application/query"
	"github.com/kidlearn/stars-hub/internal/interface/http/handlers"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a child's monthly streak report as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		childID, _ := cmd.Flags().GetString("child")
		month, _ := cmd.Flags().GetString("month")
		withCalendar, _ := cmd.Flags().GetBool("calendar")

		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			h := query.NewGetMonthlyStreakHandler(a.queryDeps())

			var out interface{}
			var err error
			if withCalendar {
				out, err = h.Calendar(ctx, childID, month)
			} else {
				out, err = h.Streak(ctx, childID, month)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a child profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		var c command.CreateChildCommand
		c.Name, _ = cmd.Flags().GetString("name")
		c.Nickname, _ = cmd.Flags().GetString("nickname")
		c.ID, _ = cmd.Flags().GetString("id")

		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			kid, err := command.NewCreateChildHandler(a.children, timeutil.SystemClock{}, a.log).Handle(ctx, c)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"id": kid.ID.String(), "name": kid.Name})
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a child with all progress and activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		childID, _ := cmd.Flags().GetString("child")

		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			var opts []command.DeleteChildOption
			if a.leaderboard != nil {
				opts = append(opts, command.WithCacheInvalidator(a.leaderboard))
			}
			return command.NewDeleteChildHandler(a.children, a.log, opts...).Handle(ctx, childID)
		})
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key KEY",
	Short: "Print the bcrypt hash of an API key for HTTP_API_KEY_HASHES",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := handlers.HashAPIKey(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

func init() {
	reportCmd.Flags().String("child", "", "Child ID")
	reportCmd.Flags().String("month", "", "Month as YYYY-MM (defaults to the current month)")
	reportCmd.Flags().Bool("calendar", false, "Print the day-by-day streak calendar instead")
	_ = reportCmd.MarkFlagRequired("child")

	seedCmd.Flags().String("name", "", "Display name")
	seedCmd.Flags().String("nickname", "", "Optional nickname")
	seedCmd.Flags().String("id", "", "Child ID (a UUID is generated when empty)")
	_ = seedCmd.MarkFlagRequired("name")

	deleteCmd.Flags().String("child", "", "Child ID")
	_ = deleteCmd.MarkFlagRequired("child")
}

// withApp runs fn against the configured store, with the Redis leaderboard
// when withCache is set. The memory store starts empty, so it is refused here.
func withApp(cmd *cobra.Command, withCache bool, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.App.Store == config.StoreMemory {
		return errors.New("this command needs the postgres store")
	}
	log := setupLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	a, err := openApp(ctx, cfg, log, withCache)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
