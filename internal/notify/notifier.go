package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"number-stock-alerts/internal/marketplace"
)

// Notification 封装一次可用性/购买结果的通知上下文。
type Notification struct {
	Service   string
	Country   int
	Count     int
	Price     *decimal.Decimal
	CheckedAt time.Time
	Purchased []marketplace.PurchaseRecord
}

// Notifier 定义通知输送接口。
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// Fanout delivers a notification to every configured channel. It fails only
// when every channel fails; partial delivery counts as success.
type Fanout struct {
	channels []Notifier
	logger   zerolog.Logger
}

// NewFanout builds a fanout over the given channels.
func NewFanout(logger zerolog.Logger, channels ...Notifier) *Fanout {
	return &Fanout{
		channels: channels,
		logger:   logger.With().Str("component", "notify_fanout").Logger(),
	}
}

// Notify dispatches to all channels sequentially.
func (f *Fanout) Notify(ctx context.Context, note Notification) error {
	if len(f.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	for _, ch := range f.channels {
		if err := ch.Notify(ctx, note); err != nil {
			f.logger.Error().Err(err).Msg("notification channel failed")
			errs = append(errs, err)
		}
	}
	if len(errs) == len(f.channels) {
		return errors.Join(errs...)
	}
	return nil
}

func renderSubject(note Notification) string {
	target := fmt.Sprintf("%s numbers in country %d", titleCase(note.Service), note.Country)
	if len(note.Purchased) > 0 {
		return fmt.Sprintf("Purchased %d %s", len(note.Purchased), target)
	}
	return fmt.Sprintf("%s available (%d found)", target, note.Count)
}

func renderText(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s numbers are available for country %d.\n\n", titleCase(note.Service), note.Country))
	builder.WriteString(fmt.Sprintf("Count: %d\n", note.Count))
	builder.WriteString(fmt.Sprintf("Price: %s per number\n", formatPrice(note.Price)))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.CheckedAt.UTC().Format(time.RFC3339)))

	if len(note.Purchased) > 0 {
		builder.WriteString("\nPurchased numbers:\n")
		for i, rec := range note.Purchased {
			builder.WriteString(fmt.Sprintf("%d. %s (tzid=%s) price=%s\n", i+1, rec.Number, rec.TransactionID, formatPrice(rec.Price)))
		}
	}

	builder.WriteString("\nManage your numbers: https://onlinesim.io\n")
	return builder.String()
}

func renderHTML(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("<html><body>")
	if len(note.Purchased) > 0 {
		builder.WriteString("<h2>Numbers purchased</h2>")
	} else {
		builder.WriteString("<h2>Numbers available</h2>")
	}
	builder.WriteString(fmt.Sprintf("<p><strong>%s</strong> numbers are available for country <strong>%d</strong>.</p>", titleCase(note.Service), note.Country))
	builder.WriteString("<table>")
	builder.WriteString(fmt.Sprintf("<tr><td>Count</td><td>%d</td></tr>", note.Count))
	builder.WriteString(fmt.Sprintf("<tr><td>Price</td><td>%s</td></tr>", formatPrice(note.Price)))
	builder.WriteString(fmt.Sprintf("<tr><td>Time</td><td>%s UTC</td></tr>", note.CheckedAt.UTC().Format(time.RFC3339)))
	builder.WriteString("</table>")

	if len(note.Purchased) > 0 {
		builder.WriteString("<h3>Purchased numbers</h3><table border=\"1\">")
		builder.WriteString("<tr><th>#</th><th>Number</th><th>Transaction</th><th>Price</th></tr>")
		for i, rec := range note.Purchased {
			builder.WriteString(fmt.Sprintf("<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>", i+1, rec.Number, rec.TransactionID, formatPrice(rec.Price)))
		}
		builder.WriteString("</table>")
	}

	builder.WriteString(`<p><a href="https://onlinesim.io">Manage numbers</a></p>`)
	builder.WriteString("</body></html>")
	return builder.String()
}

func formatPrice(price *decimal.Decimal) string {
	if price == nil {
		return "N/A"
	}
	return "$" + price.StringFixed(2)
}

var _ Notifier = (*Fanout)(nil)

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
