package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/id"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/store"
)

var guestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Inspect guest sessions",
}

var guestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List guest sessions with stored data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGuestStore(func(ctx context.Context, st *store.Store) error {
			guests, err := st.Guests(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), guests)
			}
			for _, g := range guests {
				fmt.Fprintln(cmd.OutOrStdout(), g)
			}
			return nil
		})
	},
}

var guestShowCmd = &cobra.Command{
	Use:   "show <guest-id>",
	Short: "Show a guest's entries, counter and allergen notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runGuestShow,
}

func init() {
	guestCmd.AddCommand(guestListCmd, guestShowCmd)
}

// withGuestStore opens the guest store read-only, so it can be inspected
// while the server holds it.
func withGuestStore(fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.OpenReadOnly(cfg.GuestStorePath(), logger.Discard().Logger)
	if err != nil {
		return fmt.Errorf("open guest store: %w", err)
	}
	defer st.Close()
	return fn(context.Background(), st)
}

func runGuestShow(cmd *cobra.Command, args []string) error {
	guestID := args[0]
	if !id.ValidGuestID(guestID) {
		return fmt.Errorf("%q is not a guest ID", guestID)
	}

	return withGuestStore(func(ctx context.Context, st *store.Store) error {
		slot, err := st.Slot(ctx, guestID)
		if err != nil {
			return err
		}
		notes, err := st.Annotations(ctx, domain.GuestSession(guestID).Key())
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"guest_id":    guestID,
				"count":       slot.Count,
				"entries":     slot.Entries,
				"annotations": notes,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "guest %s: %d entries logged, %d stored\n\n", guestID, slot.Count, len(slot.Entries))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tTIME\tFOOD\tREACTION\tALLERGENS")
		for _, e := range slot.Entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", e.Date, e.Time, e.FoodName, e.Reaction, e.Allergens)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for tag, note := range notes {
			fmt.Fprintf(out, "\n%s: marked=%v reactions=%q", tag, note.MarkedOn != nil, note.Reactions)
		}
		if len(notes) > 0 {
			fmt.Fprintln(out)
		}
		return nil
	})
}
