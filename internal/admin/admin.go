// Package admin implements the maintenance commands of novamind-admin.
package admin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenggwsx/NovaMind/internal/storage"
)

// OpenStoreFunc opens a migrated store; the caller closes it.
type OpenStoreFunc func() (storage.Store, error)

// NewRootCmd builds the admin command tree.
func NewRootCmd(open OpenStoreFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "novamind-admin",
		Short:         "Maintenance tasks for the NovaMind database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newThreadsCmd(open), newDBCmd(open))
	return root
}

func newThreadsCmd(open OpenStoreFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Inspect or remove stored threads",
	}
	cmd.AddCommand(newListCmd(open), newPurgeCmd(open))
	return cmd
}

// newListCmd instantiates and returns the threads list command.
func newListCmd(open OpenStoreFunc) *cobra.Command {
	var opts struct {
		User string
	}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			var threads []storage.Thread
			if opts.User != "" {
				threads, err = store.ListThreads(cmd.Context(), opts.User)
			} else {
				threads, err = store.ListAllThreads(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list threads: %w", err)
			}
			sort.SliceStable(threads, func(i, j int) bool { return threads[i].UpdatedAt.After(threads[j].UpdatedAt) })

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d threads\n", len(threads))
			if len(threads) == 0 {
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "THREAD\tUSER\tMESSAGES\tUPDATED\tTITLE")
			for _, th := range threads {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					th.ThreadID, th.UserID, len(th.Messages), th.UpdatedAt.Format(time.RFC3339), oneLine(th.Title))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "Only list threads owned by this userId")
	return cmd
}

func newPurgeCmd(open OpenStoreFunc) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all threads without --yes")
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.DeleteAllThreads(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge threads: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d threads\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
