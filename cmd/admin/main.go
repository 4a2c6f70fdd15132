// Command lanxat-admin is the operator tool: schema migrations, invites and the search log.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/and161185/lanxat/internal/config"
	"github.com/and161185/lanxat/internal/invite"
	"github.com/and161185/lanxat/internal/migrate"
	"github.com/and161185/lanxat/internal/model"
	"github.com/and161185/lanxat/internal/repository"
	"github.com/and161185/lanxat/internal/repository/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:          "lanxat-admin",
		Short:        "LanXat operator tool",
		SilenceUsage: true,
	}
	if err := config.BindFlags(root, v); err != nil {
		panic(err)
	}
	root.AddCommand(newMigrateCmd(v), newInviteCmd(v), newHistoryCmd(v))
	return root
}

func requireDSN(v *viper.Viper) (string, error) {
	dsn := v.GetString(config.KeyDSN)
	if dsn == "" {
		return "", fmt.Errorf("missing database DSN (--%s or LANXAT_DSN)", config.KeyDSN)
	}
	return dsn, nil
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := requireDSN(v)
			if err != nil {
				return err
			}
			if err := migrate.Up(cmd.Context(), dsn); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			ver, err := migrate.Version(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", ver)
			return nil
		},
	}
}

func newInviteCmd(v *viper.Viper) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Issue an invite enabling a user's profile on the server credential",
		Long:  "Prints a token; the user sends \"/start <token>\" to the bot to enable their profile.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := v.GetString(config.KeyInviteKey)
			if key == "" {
				return fmt.Errorf("missing invite key (--%s or LANXAT_INVITE_KEY)", config.KeyInviteKey)
			}
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			iss, err := invite.New([]byte(key))
			if err != nil {
				return err
			}
			tok, err := iss.Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	cmd.Flags().DurationVar(&ttl, "ttl", invite.DefaultTTL, "invite lifetime")
	return cmd
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var (
		f     repository.SearchFilter
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent translations from the search log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := requireDSN(v)
			if err != nil {
				return err
			}
			db, err := postgres.New(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if since > 0 {
				f.Since = time.Now().Add(-since)
			}
			entries, err := postgres.NewSearchRepo(db).Recent(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().Int64Var(&f.UserID, "user", 0, "only this Telegram user id")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this, e.g. 24h")
	cmd.Flags().Uint64Var(&f.Limit, "limit", 50, "maximum number of entries")
	return cmd
}

func printHistory(w io.Writer, entries []model.SearchEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tDIRECTION\tSOURCE\tTARGET")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s -> %s\t%s\t%s\n",
			e.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatInt(e.UserID, 10),
			e.ResolvedFrom, e.ResolvedTo,
			oneLine(e.SourceText), oneLine(e.TargetText),
		)
	}
	return tw.Flush()
}

// oneLine keeps multi-line texts on a single table row.
func oneLine(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}
