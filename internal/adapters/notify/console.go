package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout. Con table=true cada
// resumen de ciclo incluye la tabla de posiciones recientes.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// NotifyTrade imprime una línea por apertura o cierre.
func (c *Console) NotifyTrade(_ context.Context, t domain.Trade) error {
	ts := c.now().Format("15:04:05")
	name := truncate(t.Question, 40)

	if t.IsOpen() {
		fmt.Fprintf(c.out, "[%s] OPEN  %-10s %-3s %-40s @ %s  %s  tp %s sl %s\n",
			ts, t.Mode, t.Direction, name,
			t.EntryPrice.StringFixed(4), domain.USD(t.BetSize),
			priceLabel(t.TakeProfit), priceLabel(t.StopLoss))
		return nil
	}

	fmt.Fprintf(c.out, "[%s] CLOSE %-10s %-3s %-40s %s → %s  %s %s (%s, %s)\n",
		ts, t.Mode, t.Direction, name,
		t.EntryPrice.StringFixed(4), t.ExitPrice.StringFixed(4),
		t.Status, signedUSD(t.NetPnL()), t.ExitReason, t.HoldDuration.Round(time.Second))
	return nil
}

// Notify imprime el estado del portfolio en una línea.
func (c *Console) Notify(_ context.Context, st domain.PortfolioStats) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] bal %s | pnl %s (%s) | open %d | W%d/L%d (%s) | dd %s | api %s",
		st.Timestamp.Format("15:04:05"),
		domain.USD(st.Balance), signedUSD(st.TotalPnL), st.ROIPct.StringFixed(1)+"%",
		st.OpenPositions, st.Wins, st.Losses, st.WinRate.StringFixed(0)+"%",
		st.MaxDrawdownPct.StringFixed(1)+"%", domain.USD(st.APICost))
	if st.ConsecutiveLosses > 0 {
		fmt.Fprintf(&sb, " | streak -%d", st.ConsecutiveLosses)
	}
	if st.Elapsed > 0 {
		fmt.Fprintf(&sb, " | up %.1fh", st.ElapsedHours())
	}
	fmt.Fprintln(c.out, sb.String())

	if c.table && len(st.RecentTrades) > 0 {
		c.printTrades(st.RecentTrades)
	}
	return nil
}

// printTrades imprime la tabla de trades.
func (c *Console) printTrades(trades []domain.Trade) {
	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("ID", "Opened", "Mode", "Dir", "Market", "Entry", "Exit", "Bet", "Net PnL", "Status", "Reason")

	for _, t := range trades {
		exit := "-"
		pnl := "-"
		if !t.IsOpen() {
			exit = t.ExitPrice.StringFixed(4)
			pnl = signedUSD(t.NetPnL())
		}
		tbl.Append(
			t.ID,
			t.OpenedAt.Format("01-02 15:04"),
			t.Mode.String(),
			string(t.Direction),
			truncate(t.Question, 30),
			t.EntryPrice.StringFixed(4),
			exit,
			domain.USD(t.BetSize),
			pnl,
			string(t.Status),
			t.ExitReason.String(),
		)
	}
	tbl.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
