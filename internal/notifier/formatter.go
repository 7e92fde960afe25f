package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"HorizonTrader/internal/ledger"
	"HorizonTrader/internal/model"
)

var actionIcon = map[model.Action]string{
	model.ActionBuy:        "🟢",
	model.ActionSell:       "🔴",
	model.ActionSellFailed: "⚠️",
	model.ActionBuyFailed:  "⚠️",
	model.ActionSuggestBuy: "💡",
}

// FormatRun renders one run record as a Telegram HTML message.
func FormatRun(rec *model.RunRecord) string {
	var b strings.Builder
	icon := actionIcon[rec.Action]
	if icon == "" {
		icon = "•"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s %s</b> | %s\n", icon, rec.Action, html.EscapeString(rec.Symbol), rec.Trigger))
	b.WriteString(fmt.Sprintf("decision: %s conf=%.2f", rec.Decision.Action, rec.Decision.Confidence))
	if rec.Decision.TargetHorizon != model.HorizonNone {
		b.WriteString(" horizon=" + string(rec.Decision.TargetHorizon))
	}
	b.WriteString("\n")
	if rec.Qty != nil {
		b.WriteString(fmt.Sprintf("qty: %g", *rec.Qty))
		if rec.EntryPrice != nil {
			b.WriteString(fmt.Sprintf(" @ %.2f", *rec.EntryPrice))
		}
		b.WriteString("\n")
	}
	if rec.OrderID != "" {
		b.WriteString("order: <code>" + html.EscapeString(rec.OrderID) + "</code>\n")
	}
	if rec.Error != "" {
		b.WriteString("error: " + html.EscapeString(rec.Error) + "\n")
	}
	b.WriteString("<pre>" + html.EscapeString(rec.Reason) + "</pre>")
	return b.String()
}

// FormatPositions renders the ledger, one line per symbol.
func FormatPositions(led ledger.Ledger, now time.Time) string {
	if len(led) == 0 {
		return "📦 <b>Positions</b>\n\nno open positions"
	}
	var b strings.Builder
	b.WriteString("📦 <b>Positions</b>\n\n")
	for _, sym := range led.Symbols() {
		p := led[sym]
		line := fmt.Sprintf("%s  %g @ %.2f  (%s)", sym, p.Qty, p.EntryPrice, p.Horizon)
		if p.TimeboxUntil != nil {
			left := p.TimeboxUntil.Sub(now).Truncate(time.Minute)
			line += fmt.Sprintf("  timebox %s", p.TimeboxUntil)
			if left > 0 {
				line += fmt.Sprintf(" (%s left)", left)
			} else {
				line += " (expired)"
			}
		}
		b.WriteString(html.EscapeString(line) + "\n")
	}
	return b.String()
}

// FormatRuns renders recent run records, newest last.
func FormatRuns(recs []model.RunRecord) string {
	if len(recs) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	b.WriteString("🗒 <b>Recent runs</b>\n\n")
	for _, r := range recs {
		line := fmt.Sprintf("%s %s %s conf=%.2f", r.When, r.Symbol, r.Action, r.Decision.Confidence)
		if r.Qty != nil {
			line += fmt.Sprintf(" qty=%g", *r.Qty)
		}
		b.WriteString(html.EscapeString(line) + "\n")
	}
	return b.String()
}

// FormatStats renders action counts.
func FormatStats(counts map[model.Action]int, since time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Runs since %s</b>\n\n", since.UTC().Format("2006-01-02")))
	if len(counts) == 0 {
		b.WriteString("none")
		return b.String()
	}
	actions := make([]string, 0, len(counts))
	for a := range counts {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	for _, a := range actions {
		b.WriteString(fmt.Sprintf("%s: %d\n", a, counts[model.Action(a)]))
	}
	return b.String()
}
