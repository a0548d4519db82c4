package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"habittycoon/internal/game"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) newStocksCmd() *cobra.Command {
	stocks := &cobra.Command{
		Use:     "stocks",
		Short:   "Trade shares in other players' habit businesses",
		Aliases: []string{"stock", "market"},
	}
	stocks.AddCommand(
		a.newStocksListCmd(),
		a.newStocksTradeCmd("buy"),
		a.newStocksTradeCmd("sell"),
		a.newHoldingsCmd(),
		a.newDividendsCmd(),
	)
	return stocks
}

func (a *app) newStocksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List shares for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Stocks(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderStocks(out)
			return nil
		},
	}
}

// resolveStock maps a list number from `tyc stocks list` (or `holdings` when
// selling) onto a stock id. Anything else is taken as an id.
func resolveStock(arg string, ids []string) (string, error) {
	arg = strings.TrimSpace(arg)
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	if n < 1 || n > len(ids) {
		return "", fmt.Errorf("stock #%d does not exist", n)
	}
	return ids[n-1], nil
}

func (a *app) newStocksTradeCmd(side string) *cobra.Command {
	short := "Buy shares"
	if side == "sell" {
		short = "Sell shares (2%+ fee, cheaper for long streaks)"
	}
	return &cobra.Command{
		Use:   side + " [stock] [shares]",
		Short: short,
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := a.client()

			var ids []string
			if side == "buy" {
				stocks, err := client.Stocks(ctx, sess.AccessToken)
				if err != nil {
					return err
				}
				for _, s := range stocks {
					ids = append(ids, s.ID)
				}
				if len(args) == 0 {
					renderStocks(stocks)
				}
			} else {
				holdings, err := client.Holdings(ctx, sess.AccessToken)
				if err != nil {
					return err
				}
				for _, h := range holdings {
					ids = append(ids, h.StockID)
				}
				if len(args) == 0 {
					renderHoldings(holdings)
				}
			}

			arg := firstArg(args)
			if arg == "" {
				n, err := promptInt64("Stock #", 1)
				if err != nil {
					return err
				}
				arg = strconv.FormatInt(n, 10)
			}
			stockID, err := resolveStock(arg, ids)
			if err != nil {
				return err
			}
			shares, err := positiveInt64Arg(args, 1, "Shares")
			if err != nil {
				return err
			}

			idem := uuid.NewString()
			if side == "buy" {
				out, err := client.BuyShares(ctx, sess.AccessToken, stockID, shares, idem)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Bought %d share(s) for $%s.", out.SharesPurchased, formatMicros(out.TotalCostMicros)))
				fmt.Printf("Cash:      $%s\n", formatMicros(out.CashMicros))
				return nil
			}
			out, err := client.SellShares(ctx, sess.AccessToken, stockID, shares, idem)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sold %d share(s).", out.SharesSold))
			fmt.Printf("Gross:     $%s\n", formatMicros(out.GrossMicros))
			fmt.Printf("Fee:       %s\n", colorizeMicros(-out.FeeMicros))
			fmt.Printf("Net:       $%s\n", formatMicros(out.NetProceedsMicros))
			fmt.Printf("Cash:      $%s\n", formatMicros(out.CashMicros))
			return nil
		},
	}
}

func (a *app) newHoldingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Show the shares you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Holdings(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			accent.Println("\n== HOLDINGS ==")
			renderHoldings(out)
			fmt.Println()
			return nil
		},
	}
}

func (a *app) newDividendsCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "dividends",
		Short: "Show today's earnings and dividends",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := a.client()
			earned, err := client.EarningsToday(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			dividends, err := client.DividendsToday(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			fmt.Printf("Habit earnings today:  %s\n", colorizeMicros(earned))
			fmt.Printf("Dividends today:       %s\n", colorizeMicros(dividends))
			if !debug {
				return nil
			}
			info, err := client.DividendDebug(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderDividendDebug(info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "details", false, "list recent distributions and pending payments")
	return cmd
}

func renderDividendDebug(info game.DividendDebugInfo) {
	fmt.Println()
	accent.Println("Recent distributions")
	if len(info.RecentDividendDistributions) == 0 {
		printInfo("None yet.")
	}
	for _, d := range info.RecentDividendDistributions {
		fmt.Printf("%s  %6d sh x %s  = $%s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
			d.SharesOwned, d.DividendPerShare.StringFixed(6), formatMicros(d.TotalDividendMicros))
	}
	fmt.Printf("Stocks you issued: %d  Pending payments: %d\n", len(info.OwnedBusinessStocks), info.PendingPayments)
}

