package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"chatpulse/backend/internal/api/handler"
	"chatpulse/backend/internal/config"
	"chatpulse/backend/internal/presence"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is filled by the root command before any subcommand runs.
type env struct {
	cfg   *config.Config
	rdb   *redis.Client
	store *presence.Store
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect presence markers and issue debug tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.rdb != nil {
				return e.rdb.Close()
			}
			return nil
		},
	}

	root.AddCommand(newPresenceCmd(e), newTokenCmd(e))
	return root
}

func (e *env) presenceStore(ctx context.Context) (*presence.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	e.rdb = redis.NewClient(&redis.Options{
		Addr:     e.cfg.RedisAddr,
		Password: e.cfg.RedisPassword,
		DB:       e.cfg.RedisDB,
	})
	if err := e.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", e.cfg.RedisAddr, err)
	}
	e.store = presence.NewStore(e.rdb)
	return e.store, nil
}

func newPresenceCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presence",
		Short: "Read or clear presence markers",
	}

	room := &cobra.Command{
		Use:   "room <chat_id>",
		Short: "List users active in a chat room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.presenceStore(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), store.ActiveUsersInRoom(cmd.Context(), args[0]))
			return nil
		},
	}

	online := &cobra.Command{
		Use:   "online",
		Short: "List users with a live online marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.presenceStore(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), store.AllOnlineUsers(cmd.Context()))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <chat_id> <user_id>",
		Short: "Remove a user's room marker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.presenceStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.ClearRoom(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", presence.RoomKey(args[0], args[1]))
			return nil
		},
	}

	cmd.AddCommand(room, online, clearCmd)
	return cmd
}

func newTokenCmd(e *env) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue a signed token for a user (debug only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := handler.NewAuthenticator(e.cfg.JWTSecret).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 72*time.Hour, "token lifetime")
	return cmd
}

func printUsers(w io.Writer, users presence.UserSet) {
	if users.Len() == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for _, id := range users.Sorted() {
		fmt.Fprintln(w, id)
	}
}
