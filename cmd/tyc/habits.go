package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	cl "habittycoon/internal/cli"
	"habittycoon/internal/game"
	"habittycoon/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// resolveHabit accepts a list number as shown by `tyc today`, a habit id, or
// prompts when arg is empty.
func (a *app) resolveHabit(ctx context.Context, token, arg string) (game.HabitBusiness, error) {
	habits, err := a.client().Habits(ctx, token)
	if err != nil {
		return game.HabitBusiness{}, err
	}
	if len(habits) == 0 {
		return game.HabitBusiness{}, fmt.Errorf("no habit businesses yet")
	}
	arg = strings.TrimSpace(arg)
	if arg == "" {
		renderHabits(habits)
		n, err := promptInt64("Habit #", 1)
		if err != nil {
			return game.HabitBusiness{}, err
		}
		arg = strconv.FormatInt(n, 10)
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(habits) {
			return game.HabitBusiness{}, fmt.Errorf("habit #%d does not exist", n)
		}
		return habits[n-1], nil
	}
	for _, h := range habits {
		if h.ID == arg {
			return h, nil
		}
	}
	return game.HabitBusiness{}, fmt.Errorf("habit %q not found", arg)
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func (a *app) newTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's habits and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().TodaysHabits(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderToday(out)
			return nil
		},
	}
}

func (a *app) newDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "done [habit]",
		Aliases: []string{"complete"},
		Short:   "Record a completion and collect earnings",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			now := time.Now()
			idem := uuid.NewString()
			out, err := a.client().CompleteHabit(ctx, sess.AccessToken, h.ID, now, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/habits/" + h.ID + "/complete",
					Body:           cl.CompleteBody(now),
					IdempotencyKey: idem,
				})
			}
			renderCompletion(h.BusinessName, out)
			return nil
		},
	}
}

func (a *app) newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo [habit]",
		Short: "Remove today's latest completion and its earnings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			idem := uuid.NewString()
			out, err := a.client().UndoHabit(ctx, sess.AccessToken, h.ID, idem)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method:         "POST",
					Path:           "/v1/habits/" + h.ID + "/undo",
					IdempotencyKey: idem,
				})
			}
			printSuccess(fmt.Sprintf("Undid %s. Progress %d, streak %d.", h.BusinessName, out.CurrentProgress, out.Streak))
			fmt.Printf("Refunded:  %s\n", colorizeMicros(-out.RefundedMicros))
			fmt.Printf("Cash:      $%s\n", formatMicros(out.CashMicros))
			return nil
		},
	}
}

func (a *app) newHabitCmd() *cobra.Command {
	habit := &cobra.Command{
		Use:     "habit",
		Short:   "Manage habit businesses",
		Aliases: []string{"habits", "biz"},
	}
	habit.AddCommand(
		a.newHabitListCmd(),
		a.newHabitTypesCmd(),
		a.newHabitCreateCmd(),
		a.newHabitEditCmd(),
		a.newHabitSellCmd(),
		a.newHabitHistoryCmd(),
		a.newHabitUpgradeCmd(),
		a.newHabitCleanupCmd(),
	)
	return habit
}

func (a *app) newHabitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your active habit businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Habits(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderHabits(out)
			return nil
		},
	}
}

func (a *app) newHabitTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List business types you can open",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().BusinessTypes(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderBusinessTypes(out)
			return nil
		},
	}
}

func (a *app) newHabitCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Buy a business and attach a habit to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			client := a.client()
			types, err := client.BusinessTypes(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderBusinessTypes(types)
			typeID, err := promptInt64("Business type ID", 1)
			if err != nil {
				return err
			}
			name, err := promptRequired("Business name")
			if err != nil {
				return err
			}
			desc, err := promptOptional("Habit (e.g. run 5km)")
			if err != nil {
				return err
			}
			freq, err := promptChoice("Frequency", []string{"daily", "weekly"}, "daily")
			if err != nil {
				return err
			}
			goal, err := promptInt64(fmt.Sprintf("Completions per period (%d-%d)", game.MinGoalValue, game.MaxGoalValue), game.MinGoalValue)
			if err != nil {
				return err
			}
			if err := game.ValidateGoalValue(int(goal)); err != nil {
				return err
			}
			out, err := client.CreateHabit(ctx, sess.AccessToken, cl.CreateHabitRequest{
				BusinessTypeID:   typeID,
				BusinessName:     name,
				HabitDescription: desc,
				Frequency:        freq,
				GoalValue:        int(goal),
			}, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Opened %s %s for $%s. Each completion pays $%s.",
				out.BusinessIcon, out.BusinessName, formatMicros(out.CostMicros), formatMicros(out.EarningsPerCompletionMicros)))
			return nil
		},
	}
}

func (a *app) newHabitEditCmd() *cobra.Command {
	var (
		name, desc, freq string
		goal             int
	)
	cmd := &cobra.Command{
		Use:   "edit [habit]",
		Short: "Rename a business or change its habit goal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{}
			if cmd.Flags().Changed("name") {
				fields["business_name"] = name
			}
			if cmd.Flags().Changed("habit") {
				fields["habit_description"] = desc
			}
			if cmd.Flags().Changed("frequency") {
				fields["frequency"] = freq
			}
			if cmd.Flags().Changed("goal") {
				if err := game.ValidateGoalValue(goal); err != nil {
					return err
				}
				fields["goal_value"] = goal
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change, pass --name, --habit, --frequency or --goal")
			}
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			out, err := a.client().UpdateHabit(ctx, sess.AccessToken, h.ID, fields)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Updated %s: %s %d/%d, pays $%s per completion.",
				out.BusinessName, out.Frequency, out.CurrentProgress, out.GoalValue, formatMicros(out.EarningsPerCompletionMicros)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new business name")
	cmd.Flags().StringVar(&desc, "habit", "", "new habit description")
	cmd.Flags().StringVar(&freq, "frequency", "", "daily or weekly")
	cmd.Flags().IntVar(&goal, "goal", 0, "completions per period")
	return cmd
}

func (a *app) newHabitSellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sell [habit]",
		Short: "Sell a business for 70% of its cost and refund its shareholders",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			confirm, err := promptChoice(fmt.Sprintf("Sell %s for $%s", h.BusinessName, formatMicros(game.SellRefund(h.CostMicros))), []string{"yes", "no"}, "no")
			if err != nil || confirm != "yes" {
				return err
			}
			out, err := a.client().SellHabit(ctx, sess.AccessToken, h.ID, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sold %s for $%s.", h.BusinessName, formatMicros(out.SellValueMicros)))
			if out.HoldersRefunded > 0 {
				printInfo(fmt.Sprintf("%d shareholder(s) were paid $%s for their shares.", out.HoldersRefunded, formatMicros(out.RefundedMicros)))
			}
			fmt.Printf("Cash:      $%s\n", formatMicros(out.CashMicros))
			return nil
		},
	}
}

func (a *app) newHabitHistoryCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history [habit]",
		Short: "Show a completion calendar",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			out, err := a.client().History(ctx, sess.AccessToken, h.ID, days)
			if err != nil {
				return err
			}
			renderHistory(h.BusinessName, out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 28, "number of days to show")
	return cmd
}

func (a *app) newHabitUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade [habit] [type-id]",
		Short: "Trade a business up to a pricier type using its streak value",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			client := a.client()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			calc, err := client.UpgradeOptions(ctx, sess.AccessToken, h.ID)
			if err != nil {
				return err
			}
			renderUpgradeOptions(calc)
			if len(calc.UpgradeOptions) == 0 {
				return nil
			}
			typeID, err := positiveInt64Arg(args, 1, "Upgrade to type ID")
			if err != nil {
				return err
			}
			name, err := promptOptional("New business name (blank keeps the type name)")
			if err != nil {
				return err
			}
			out, err := client.Upgrade(ctx, sess.AccessToken, h.ID, typeID, name, uuid.NewString())
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Upgraded to %s %s.", out.NewBusiness.BusinessIcon, out.NewBusiness.BusinessName))
			fmt.Printf("Profit:    %s\n", colorizeMicros(out.ProfitMicros))
			fmt.Printf("Cash:      $%s\n", formatMicros(out.CashMicros))
			return nil
		},
	}
}

func (a *app) newHabitCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup [habit]",
		Short: "Remove duplicate completions recorded for the same day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			h, err := a.resolveHabit(ctx, sess.AccessToken, firstArg(args))
			if err != nil {
				return err
			}
			out, err := a.client().CleanupDuplicates(ctx, sess.AccessToken, h.ID)
			if err != nil {
				return err
			}
			if out.Deleted == 0 {
				printInfo("No duplicates found.")
				return nil
			}
			printSuccess(fmt.Sprintf("Removed %d duplicate(s), kept %d.", out.Deleted, out.Kept))
			return nil
		},
	}
}
