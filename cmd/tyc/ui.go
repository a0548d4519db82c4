package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"habittycoon/internal/game"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	cellDone  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).SetString("■")
	cellMiss  = lipgloss.NewStyle().Foreground(lipgloss.Color("238")).SetString("□")
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptPassword hides input on a terminal and falls back to a plain read otherwise.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderDashboard(d game.Dashboard) {
	p := d.Profile
	summary := strings.Join([]string{
		boldStyle.Render(fmt.Sprintf("%s (%s)", p.Username, p.Timezone)),
		fmt.Sprintf("Cash:             $%s", formatMicros(p.CashMicros)),
		fmt.Sprintf("Net Worth:        $%s", formatMicros(p.NetWorthMicros)),
		fmt.Sprintf("Earned Today:     %s", colorizeMicros(d.TodaysEarningsMicros)),
		fmt.Sprintf("Dividends Today:  %s", colorizeMicros(d.TodaysDividendsMicros)),
	}, "\n")
	fmt.Println(boxStyle.Render(summary))
	if len(d.ResetHabitIDs) > 0 {
		printWarn(fmt.Sprintf("%d daily habit(s) rolled over to a new day.", len(d.ResetHabitIDs)))
	}

	fmt.Println()
	accent.Println("Businesses")
	renderHabits(d.Businesses)

	if len(d.Holdings) > 0 {
		fmt.Println()
		accent.Println("Holdings")
		renderHoldings(d.Holdings)
	}
	fmt.Println()
}

func renderHabits(habits []game.HabitBusiness) {
	if len(habits) == 0 {
		printInfo("No habit businesses yet. Run `tyc habit create`.")
		return
	}
	fmt.Printf("%-3s %-2s %-24s %-7s %9s %7s %12s %14s\n", "#", "", "NAME", "FREQ", "PROGRESS", "STREAK", "PER DONE", "TOTAL EARNED")
	for i, h := range habits {
		fmt.Printf("%-3d %-2s %-24s %-7s %9s %7d %12s %14s\n",
			i+1,
			h.BusinessIcon,
			truncate(h.BusinessName, 24),
			h.Frequency,
			fmt.Sprintf("%d/%d", h.CurrentProgress, h.GoalValue),
			h.Streak,
			formatMicros(h.EarningsPerCompletionMicros),
			formatMicros(h.TotalEarningsMicros),
		)
	}
}

func renderToday(habits []game.TodayHabit) {
	accent.Println("\n== TODAY ==")
	if len(habits) == 0 {
		printInfo("Nothing scheduled.")
		return
	}
	for i, h := range habits {
		mark := warn.Sprint("…")
		if h.GoalMet {
			mark = success.Sprint("✓")
		}
		fmt.Printf("%s %2d. %s %-24s %s  streak %d\n",
			mark, i+1, h.BusinessIcon, truncate(h.BusinessName, 24),
			progressBar(h.EffectiveProgress, h.GoalValue, 10), h.Streak)
	}
	fmt.Println()
}

func progressBar(done, goal, width int) string {
	if goal <= 0 {
		goal = 1
	}
	filled := done * width / goal
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat("-", width-filled), done, goal)
}

func renderCompletion(name string, out game.CompleteResult) {
	if out.GoalCompleted {
		printSuccess(fmt.Sprintf("%s goal met! Streak %d.", name, out.Streak))
	} else {
		printSuccess(fmt.Sprintf("%s progress %d/%d.", name, out.CurrentProgress, out.GoalValue))
	}
	fmt.Printf("Earned:    %s\n", colorizeMicros(out.Earnings.TotalMicros))
	if out.Earnings.StreakBonusMicros > 0 {
		fmt.Printf("  streak bonus: %s\n", colorizeMicros(out.Earnings.StreakBonusMicros))
	}
	if out.Earnings.StockBoostMicros > 0 {
		fmt.Printf("  stock boost:  %s\n", colorizeMicros(out.Earnings.StockBoostMicros))
	}
	if out.DividendPoolMicros > 0 {
		fmt.Printf("Dividends paid to shareholders: $%s\n", formatMicros(out.DividendPoolMicros))
	}
	fmt.Printf("Cash:      $%s\n", formatMicros(out.CashMicros))
}

// renderHistory draws one cell per day, oldest first, wrapped into weeks.
func renderHistory(name string, days []game.HistoryDay) {
	accent.Printf("\n== %s: last %d days ==\n", name, len(days))
	var rows []string
	var row strings.Builder
	completed := 0
	for i, d := range days {
		if d.Completed {
			completed++
			row.WriteString(cellDone.String())
		} else {
			row.WriteString(cellMiss.String())
		}
		row.WriteByte(' ')
		if (i+1)%7 == 0 || i == len(days)-1 {
			rows = append(rows, row.String())
			row.Reset()
		}
	}
	grid := lipgloss.JoinVertical(lipgloss.Left, rows...)
	legend := dimStyle.Render(fmt.Sprintf("%d of %d days completed", completed, len(days)))
	if len(days) > 0 {
		legend = dimStyle.Render(fmt.Sprintf("%s .. %s, %d of %d days completed",
			days[0].Date, days[len(days)-1].Date, completed, len(days)))
	}
	fmt.Println(boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, grid, "", legend)))
}

func renderStocks(stocks []game.BusinessStock) {
	accent.Println("\n== STOCK MARKET ==")
	if len(stocks) == 0 {
		printInfo("No shares for sale right now.")
		return
	}
	fmt.Printf("%-3s %-2s %-24s %7s %12s %10s %6s\n", "#", "", "BUSINESS", "STREAK", "PRICE", "AVAILABLE", "MULT")
	for i, s := range stocks {
		fmt.Printf("%-3d %-2s %-24s %7d %12s %10d %6.2f\n",
			i+1,
			s.BusinessIcon,
			truncate(s.BusinessName, 24),
			s.Streak,
			formatMicros(s.CurrentPriceMicros),
			s.SharesAvailable,
			s.PriceMultiplier,
		)
	}
	fmt.Println()
}

func renderHoldings(holdings []game.StockHolding) {
	if len(holdings) == 0 {
		printInfo("No holdings yet.")
		return
	}
	fmt.Printf("%-3s %-24s %8s %12s %12s %12s %12s\n", "#", "BUSINESS", "SHARES", "AVG", "NOW", "P/L", "DIVIDENDS")
	for i, h := range holdings {
		pl := (h.CurrentPriceMicros - h.AveragePurchasePriceMicros) * h.SharesOwned
		fmt.Printf("%-3d %-24s %8d %12s %12s %12s %12s\n",
			i+1,
			truncate(h.BusinessName, 24),
			h.SharesOwned,
			formatMicros(h.AveragePurchasePriceMicros),
			formatMicros(h.CurrentPriceMicros),
			colorizeMicros(pl),
			formatMicros(h.TotalDividendsEarnedMicros),
		)
	}
}

func renderUpgradeOptions(calc game.UpgradeCalculation) {
	accent.Println("\n== UPGRADES ==")
	fmt.Printf("Business value: $%s  x%d streak  = $%s\n",
		formatMicros(calc.CurrentBusinessValueMicros), calc.StreakMultiplier, formatMicros(calc.TotalStreakValueMicros))
	if len(calc.UpgradeOptions) == 0 {
		printInfo("No upgrades available.")
		return
	}
	for _, o := range calc.UpgradeOptions {
		line := fmt.Sprintf("%3d  %s %-22s cost $%s  profit %s",
			o.BusinessType.ID, o.BusinessType.Icon, truncate(o.BusinessType.Name, 22),
			formatMicros(o.UpgradeCostMicros), colorizeMicros(o.ProfitMicros))
		if o.CanAfford {
			fmt.Println(line)
		} else {
			fmt.Println(dimStyle.Render(line + "  (not affordable)"))
		}
	}
	fmt.Println()
}

func renderBusinessTypes(types []game.BusinessType) {
	fmt.Printf("%-4s %-2s %-22s %12s %12s\n", "ID", "", "TYPE", "COST", "BASE PAY")
	for _, t := range types {
		fmt.Printf("%-4d %-2s %-22s %12s %12s\n", t.ID, t.Icon, truncate(t.Name, 22),
			formatMicros(t.BaseCostMicros), formatMicros(t.BasePayMicros))
	}
}

func colorizeMicros(v int64) string {
	text := signedMicros(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMicros(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / game.MicrosPerDollar
	frac := (v % game.MicrosPerDollar) / game.MicrosPerCent
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func signedMicros(v int64) string {
	if v > 0 {
		return "+" + formatMicros(v)
	}
	return formatMicros(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// localTimezone names the machine's zone so the server computes days the way the user sees them.
func localTimezone() string {
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		return tz
	}
	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			return target[i+len("zoneinfo/"):]
		}
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return ""
}
