package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fenggwsx/NovaMind/internal/storage"
)

func newDBCmd(open OpenStoreFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database diagnostics",
	}
	cmd.AddCommand(newCheckCmd(open))
	return cmd
}

// newCheckCmd round-trips a throwaway thread to prove the database is usable.
func newCheckCmd(open OpenStoreFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Ping the database and round-trip a test thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			fmt.Fprintln(out, "Connected to database")

			now := time.Now().UTC()
			sample := &storage.Thread{
				ThreadID:  "check-" + uuid.NewString(),
				UserID:    "admin-check",
				UserEmail: "admin-check@novamind.com",
				Title:     "Test Thread",
				Messages:  []storage.Message{{Role: storage.RoleUser, Content: "Test message"}},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := store.SaveThread(ctx, sample); err != nil {
				return fmt.Errorf("save test thread: %w", err)
			}
			found, err := store.GetThread(ctx, sample.ThreadID, sample.UserID)
			cleanupErr := store.DeleteThread(ctx, sample.ThreadID, sample.UserID)
			if err != nil {
				return fmt.Errorf("read test thread: %w", err)
			}
			if len(found.Messages) != 1 || found.Messages[0].Content != "Test message" {
				return errors.New("test thread came back altered")
			}
			if cleanupErr != nil {
				return fmt.Errorf("delete test thread: %w", cleanupErr)
			}
			fmt.Fprintln(out, "Test thread round-trip ok")
			return nil
		},
	}
}
