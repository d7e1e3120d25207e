package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	appservice "github.com/tpa/backend/internal/application/transferpricing"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

var (
	successSymbol = "✓"
	warnSymbol    = "!"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FFAF00", Dark: "#FFAF00"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", successStyle.Render(successSymbol), message)
}

func printWarn(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", warnStyle.Render(warnSymbol), warnStyle.Render(message))
}

func printInfof(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", infoStyle.Render(infoSymbol), fmt.Sprintf(format, args...))
}

// printTable pads every column to its widest cell. Padding happens before
// styling so escape sequences do not skew the widths.
func printTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Render(fmt.Sprintf("%-*s", widths[i], cell))
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(header, headerStyle)
	for _, row := range rows {
		line(row, lipgloss.NewStyle())
	}
}

func renderReport(w io.Writer, outputs []*tp.OutputRecord, report *appservice.Report, all bool) {
	printSuccess(w, fmt.Sprintf("%d of %d records ruled, %d passes, final sum %s",
		report.Ruled, report.Pairings, report.Passes, report.FinalSum.String()))
	if report.Forced {
		printWarn(w, "pass budget shrunk after a stall")
	}
	_, _ = fmt.Fprintln(w)

	rows := make([][]string, 0, len(outputs))
	for _, o := range outputs {
		if !all && o.Adjustment == nil {
			continue
		}
		kpi := "-"
		if o.KPIValue.Valid {
			kpi = o.KPIValue.Decimal.String()
		}
		rows = append(rows, []string{
			strconv.FormatInt(o.Input.ID, 10),
			o.Input.Taxpayer,
			o.KPI.String(),
			kpi,
			o.FiredBand.String(),
			money(o.Adjustment),
			money(o.Lines.ProfitIndicator),
		})
	}
	printTable(w, []string{"ID", "TAXPAYER", "KPI", "VALUE", "BAND", "ADJUSTMENT", "PROFIT INDICATOR"}, rows)

	if len(report.Taxpayers) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	rows = rows[:0]
	for _, t := range report.Taxpayers {
		rows = append(rows, []string{
			t.ID,
			strconv.Itoa(len(t.Members)),
			t.Money(t.DeltaPBT).String(),
			t.Money(t.FiscalPBT).String(),
			t.Money(t.DeltaTax).String(),
			t.Money(t.NewTLCFBalance).String(),
		})
	}
	printTable(w, []string{"TAXPAYER", "MEMBERS", "DELTA PBT", "FISCAL PBT", "DELTA TAX", "TLCF BALANCE"}, rows)
}

func renderCandidates(w io.Writer, candidates []tp.Candidates) {
	matched := 0
	for _, c := range candidates {
		if len(c.Rules) == 0 {
			printInfof(w, "record %d %s", c.Record.ID, mutedStyle.Render("no rule"))
			continue
		}
		matched++
		ids := make([]string, len(c.Rules))
		for i := range c.Rules {
			ids[i] = strconv.FormatInt(c.Rules[i].ID, 10)
		}
		printInfof(w, "record %d rules %s", c.Record.ID, strings.Join(ids, ", "))
	}
	printSuccess(w, fmt.Sprintf("%d of %d records matched", matched, len(candidates)))
}

func renderMethods(w io.Writer, strategies []strategy.MethodStrategy) {
	rows := make([][]string, 0, len(strategies))
	for _, s := range strategies {
		rows = append(rows, []string{s.Method().String(), s.Method().KPI().String(), s.Name()})
	}
	printTable(w, []string{"METHOD", "KPI", "STRATEGY"}, rows)
}

func money(m *valueobject.Money) string {
	if m == nil {
		return "-"
	}
	return m.String()
}
