package root

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/gami-engine/progression"
)

func newStatusCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity, xp, level and live stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			mgr := app.Manager
			out := cmd.OutOrStdout()

			id := mgr.Identity()
			stats := mgr.GetUserStats(ctx)
			live := mgr.LiveStats(ctx)

			nextAt := int64(stats.Level) * progression.XPPerLevel
			toNext := nextAt - stats.XP
			if toNext < 0 {
				toNext = 0
			}

			fmt.Fprintln(out, heading(iconSparkle, "Player Status"))
			if id.IsAuthenticated {
				fmt.Fprintln(out, labelValue("Principal", id.Principal))
			} else {
				fmt.Fprintln(out, labelValue("Principal", mutedStyle.Render("not logged in")))
			}
			fmt.Fprintln(out, labelValue("Level", stats.Level))
			fmt.Fprintln(out, labelValue("XP", fmt.Sprintf("%d (next at %d, %d to go)", stats.XP, nextAt, toNext)))
			fmt.Fprintln(out, labelValue("Quests completed", len(stats.CompletedQuestIDs)))
			fmt.Fprintln(out, "")

			fmt.Fprintln(out, h2Style.Render("📊 Live stats"))
			fmt.Fprintf(out, "- %s $%s\n", keyStyle.Render("Earned:"), live.TotalEarned.StringFixed(2))
			fmt.Fprintf(out, "- %s %d\n", keyStyle.Render("Completions:"), live.QuestsCompleted)
			fmt.Fprintf(out, "- %s %d\n", keyStyle.Render("Streak:"), live.CurrentStreak)

			if w := mgr.Wallet(); w != nil {
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, labelValue("Balance", w.Balance.StringFixed(2)+" "+w.Network))
			}
			return nil
		},
	}
}
