package root

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/gami-engine/progression"
	"github.com/warp/gami-engine/quests"
)

func newQuestsCmd(open opener) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "quests",
		Short: "List the quest catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			catalog := app.Manager.Catalog()
			list := catalog.All()
			if category != "" {
				cat := quests.Category(strings.ToLower(category))
				if !cat.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}
				list = catalog.ByCategory(cat)
			}

			stats := app.Manager.GetUserStats(commandContext(cmd))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading(iconQuest, "Quests"))
			for _, q := range list {
				mark := "  "
				if stats.HasCompleted(q.ID) {
					mark = iconDone
				}
				chain := ""
				if q.OnChain {
					chain = " " + goldStyle.Render("on-chain")
				}
				fmt.Fprintf(out, "%s %s %s %s%s\n",
					mark,
					keyStyle.Render("#"+q.ID),
					q.Title,
					mutedStyle.Render(fmt.Sprintf("(%s, %s, +%d xp)", q.Category, q.Difficulty, q.XPReward)),
					chain,
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only quests in this category")
	return cmd
}

func newCompleteCmd(open opener) *cobra.Command {
	var onChainOnly bool

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a quest",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("quest id is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := open(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()
			id := args[0]

			if onChainOnly {
				res, err := app.Manager.CompleteQuestOnChain(ctx, id)
				if err != nil {
					return err
				}
				if !res.Success {
					fmt.Fprintln(out, warnStyle.Render("reward was not granted, try again"))
					return nil
				}
				fmt.Fprintln(out, goodStyle.Render(fmt.Sprintf("%s reward %s granted for quest %s", iconDone, res.Reward, id)))
				return nil
			}

			res, err := app.Manager.RecordQuestCompletion(ctx, id)
			if err != nil {
				return err
			}
			if !res.Success {
				fmt.Fprintln(out, warnStyle.Render("reward was not granted, quest stays open"))
				return nil
			}
			printCompletion(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onChainOnly, "onchain", false, "only claim the on-chain reward, leave xp untouched")
	return cmd
}

func printCompletion(cmd *cobra.Command, res progression.CompletionResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, heading(iconDone, "Quest "+res.QuestID+" completed"))
	fmt.Fprintln(out, labelValue("XP", fmt.Sprintf("+%d (total %d)", res.XPGained, res.Stats.XP)))
	level := fmt.Sprint(res.Stats.Level)
	if res.LeveledUp {
		level += " " + levelUpBadge
	}
	fmt.Fprintln(out, labelValue("Level", level))
	if res.Transaction != nil {
		fmt.Fprintln(out, labelValue("Reward", res.Transaction.Amount.String()+" "+res.Transaction.Token))
	}
}
