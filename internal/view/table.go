package view

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
)

const emptyMessage = "No cryptocurrencies found."

// Table prints result sets as an aligned terminal table. The 24h change is
// green when non-negative and red otherwise.
type Table struct {
	mu      sync.Mutex
	w       io.Writer
	p       *message.Printer
	up      *color.Color
	down    *color.Color
	failure *color.Color
}

var _ domrepo.Renderer = (*Table)(nil)

func NewTable(w io.Writer, noColor bool) *Table {
	t := &Table{
		w:       w,
		p:       message.NewPrinter(language.English),
		up:      color.New(color.FgGreen),
		down:    color.New(color.FgRed),
		failure: color.New(color.FgRed, color.Bold),
	}
	if noColor {
		t.up.DisableColor()
		t.down.DisableColor()
		t.failure.DisableColor()
	}
	return t
}

func (t *Table) Render(assets []models.Asset) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tw := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tSYMBOL\tPRICE\tMARKET CAP\tVOLUME\t24H")
	for i, a := range assets {
		change := t.up
		if a.IsNegative() {
			change = t.down
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%s\t$%s\t$%s\t%s\n",
			i+1,
			a.Name,
			a.Symbol,
			t.price(a.Price),
			t.p.Sprintf("%.0f", a.MarketCap),
			t.p.Sprintf("%.0f", a.Volume24h),
			change.Sprintf("%.2f%%", a.PriceChangePercent24h),
		)
	}
	_ = tw.Flush()
}

func (t *Table) RenderEmpty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, emptyMessage)
}

func (t *Table) RenderError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failure.Fprintln(t.w, msg)
}

// price keeps sub-dollar coins readable.
func (t *Table) price(v float64) string {
	if v != 0 && v < 1 {
		return t.p.Sprintf("%.6f", v)
	}
	return t.p.Sprintf("%.2f", v)
}
