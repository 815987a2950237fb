// goalsync is the desktop client: it owns a per-device SQLite store and
// drives the full reconciliation sequence against the cloud document store.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/config"
	"codeGoalsAPI/internal/localdb"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/resolver"
	"codeGoalsAPI/internal/types/target"
	"codeGoalsAPI/services"
)

type clientContext struct {
	db       *sql.DB
	provider auth.AccountProvider
	targets  *services.TargetService
	sync     *services.SyncService
	rating   *services.RatingService
	friends  *services.FriendService
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "goalsync",
		Short:         "Competitive-programming goal tracker, desktop client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDoneCommand())
	cmd.AddCommand(newFriendCommand())

	return cmd
}

// open wires the device's services from environment configuration. Without
// cloud credentials the client still works against an in-memory remote,
// which effectively means local-only operation.
func open(ctx context.Context) (*clientContext, error) {
	cfg := config.Load()

	if cfg.Account.UID == "" || cfg.Account.Email == "" {
		return nil, fmt.Errorf("ACCOUNT_UID and ACCOUNT_EMAIL must be set")
	}
	provider := auth.StaticProvider{UID: cfg.Account.UID, Email: cfg.Account.Email}

	db, err := localdb.Open(localdb.DriverSQLite, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	var store remote.Store
	var directory auth.Directory
	app, err := auth.NewFirebaseApp(ctx, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Printf("Warning: could not initialize Firebase (%v), running local-only", err)
		store = remote.NewMemoryStore()
	} else {
		client, err := app.Firestore(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		store = remote.NewFirestoreStore(client)
		if dir, err := auth.NewFirebaseDirectory(ctx, app); err != nil {
			log.Printf("Warning: admin directory unavailable: %v", err)
		} else {
			directory = dir
		}
	}

	chain := resolver.NewChain(
		resolver.CachedUID{},
		resolver.ProfileDoc{Store: store},
		resolver.AccountQuery{Store: store},
		resolver.AdminLookup{Directory: directory},
	)

	targets := services.NewTargetService(db)
	return &clientContext{
		db:       db,
		provider: provider,
		targets:  targets,
		sync:     services.NewSyncService(targets, store, cfg.Sync.PushHistory),
		rating:   services.NewRatingService(db, store),
		friends:  services.NewFriendService(db, store, chain),
	}, nil
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run the full push/pull reconciliation sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			report, err := c.sync.FullSync(ctx, c.provider)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func newAddCommand() *cobra.Command {
	var (
		link     string
		topic    string
		deadline string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a problem or topic target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			req := &target.CreateTargetRequest{
				Type:        target.TypeProblem,
				Name:        args[0],
				ProblemLink: link,
			}
			if topic != "" {
				req.Type = target.TypeTopic
				req.TopicName = topic
			}
			if deadline != "" {
				d, err := time.Parse(time.RFC3339, deadline)
				if err != nil {
					return fmt.Errorf("invalid deadline (want RFC3339): %w", err)
				}
				req.Deadline = &d
			}

			email, _ := c.provider.CurrentAccountEmail()
			created, err := c.targets.CreateTarget(ctx, email, req)
			if err != nil {
				return err
			}
			return printJSON(created)
		},
	}

	cmd.Flags().StringVar(&link, "link", "", "problem URL (problem targets)")
	cmd.Flags().StringVar(&topic, "topic", "", "topic name (topic targets)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, RFC3339")
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			email, _ := c.provider.CurrentAccountEmail()
			targets, err := c.targets.ListActive(ctx, email)
			if err != nil {
				return err
			}
			for _, t := range targets {
				status := string(t.Status)
				if t.Deadline != nil {
					status += ", due " + t.Deadline.Format(time.RFC3339)
				}
				fmt.Printf("%4d  %-8s %-40s (%s)\n", t.ID, t.Type, t.Name, status)
			}
			return nil
		},
	}
}

func newDoneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a target achieved and apply the rating delta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target id: %w", err)
			}

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			email, _ := c.provider.CurrentAccountEmail()
			updated, err := c.targets.SetStatus(ctx, email, id, target.StatusAchieved)
			if err != nil {
				return err
			}

			newRating, err := c.rating.OnTargetCompleted(ctx, c.provider, updated.Deadline, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("Achieved %q, rating now %.2f\n", updated.Name, services.ClampDisplay(newRating))
			return nil
		},
	}
}

func newFriendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friend",
		Short: "Manage the friend list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <email>",
		Short: "Follow another account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			edge, err := c.friends.AddFriend(ctx, c.provider, args[0])
			if err != nil {
				return err
			}
			return printJSON(edge)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <email>",
		Short: "Stop following an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			return c.friends.RemoveFriend(ctx, c.provider, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List followed accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			email, _ := c.provider.CurrentAccountEmail()
			friends, err := c.friends.ListFriends(ctx, email)
			if err != nil {
				return err
			}
			for _, f := range friends {
				fmt.Printf("%-40s added %s\n", f.FriendEmail, f.AddedAt.Format("2006-01-02"))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats <email>",
		Short: "Show a friend's public rating and solve count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c, err := open(ctx)
			if err != nil {
				return err
			}
			defer c.db.Close()

			stats, err := c.friends.GetFriendPublicStats(ctx, c.provider, args[0])
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	})

	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
