package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// modeSummary agrega los trades cerrados de un modo.
type modeSummary struct {
	trades int
	wins   int
	net    decimal.Decimal
}

// Report imprime el informe completo de paper trading.
func (c *Console) Report(_ context.Context, trades []domain.Trade, initial decimal.Decimal) error {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "\n  No paper trading data yet. Run the agent first.")
		return nil
	}

	first, last := trades[0].OpenedAt, trades[0].OpenedAt
	for _, t := range trades {
		if t.OpenedAt.Before(first) {
			first = t.OpenedAt
		}
		if t.OpenedAt.After(last) {
			last = t.OpenedAt
		}
	}

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PAPER TRADING REPORT\n")
	fmt.Fprintf(c.out, "  %s to %s (%d trades)\n",
		first.Format("2006-01-02"), last.Format("2006-01-02"), len(trades))
	fmt.Fprintf(c.out, "========================================================\n\n")

	c.printTrades(trades)

	var (
		wins, losses, open int
		gross, fees        decimal.Decimal
		slippage, invested decimal.Decimal
		byMode             = map[domain.TradeMode]*modeSummary{}
		byReason           = map[domain.ExitReason]int{}
	)
	for _, t := range trades {
		if t.IsOpen() {
			open++
			invested = invested.Add(t.BetSize)
			continue
		}
		if t.Status == domain.StatusWon {
			wins++
		} else {
			losses++
		}
		gross = gross.Add(t.PnL)
		fees = fees.Add(t.Costs.Fees())
		slippage = slippage.Add(t.Costs.EntrySlippage).Add(t.Costs.ExitSlippage)

		ms, ok := byMode[t.Mode]
		if !ok {
			ms = &modeSummary{}
			byMode[t.Mode] = ms
		}
		ms.trades++
		if t.Status == domain.StatusWon {
			ms.wins++
		}
		ms.net = ms.net.Add(t.NetPnL())
		byReason[t.ExitReason]++
	}
	closed := wins + losses
	net := gross.Sub(fees)

	fmt.Fprintf(c.out, "\n  --- AGGREGATE ---\n")
	fmt.Fprintf(c.out, "  Initial balance:       %s\n", domain.USD(initial))
	fmt.Fprintf(c.out, "  Closed trades:         %d (W%d / L%d)\n", closed, wins, losses)
	if closed > 0 {
		rate := decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(closed)))
		fmt.Fprintf(c.out, "  Win rate:              %s\n", domain.Pct(rate))
	}
	fmt.Fprintf(c.out, "  Open positions:        %d (%s at risk)\n", open, domain.USD(invested))

	fmt.Fprintf(c.out, "\n  --- P&L ---\n")
	fmt.Fprintf(c.out, "  Gross PnL:             %s\n", signedUSD(gross))
	fmt.Fprintf(c.out, "  Fees (gas+platform):   %s\n", domain.USD(fees))
	fmt.Fprintf(c.out, "  Slippage (in prices):  %s\n", domain.USD(slippage))
	fmt.Fprintf(c.out, "  Net PnL:               %s\n", signedUSD(net))
	if initial.IsPositive() {
		fmt.Fprintf(c.out, "  ROI:                   %s\n", domain.Pct(net.Div(initial)))
	}

	if len(byMode) > 0 {
		fmt.Fprintf(c.out, "\n  --- BY MODE ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Mode", "Trades", "Wins", "Net PnL")
		modes := make([]domain.TradeMode, 0, len(byMode))
		for m := range byMode {
			modes = append(modes, m)
		}
		sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
		for _, m := range modes {
			ms := byMode[m]
			tbl.Append(m.String(), fmt.Sprintf("%d", ms.trades), fmt.Sprintf("%d", ms.wins), signedUSD(ms.net))
		}
		tbl.Render()
	}

	if len(byReason) > 0 {
		fmt.Fprintf(c.out, "\n  --- EXITS ---\n")
		reasons := make([]domain.ExitReason, 0, len(byReason))
		for r := range byReason {
			reasons = append(reasons, r)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
		for _, r := range reasons {
			fmt.Fprintf(c.out, "  %-22s %d\n", r.String()+":", byReason[r])
		}
	}

	fmt.Fprintf(c.out, "\n  --- VERDICT ---\n")
	switch {
	case closed < 10:
		fmt.Fprintf(c.out, "  Need at least 10 closed trades. Currently %d.\n", closed)
	case net.IsPositive():
		fmt.Fprintf(c.out, "  POSITIVE: paper trading is net profitable after costs.\n")
	default:
		fmt.Fprintf(c.out, "  NEGATIVE: paper trading is not profitable after costs.\n")
	}

	fmt.Fprintln(c.out)
	return nil
}

func signedUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + domain.USD(d.Neg())
	}
	return "+" + domain.USD(d)
}

func priceLabel(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return d.StringFixed(4)
}
