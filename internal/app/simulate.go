package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"number-stock-alerts/internal/notify"
)

// SimulateNotify 通过合成的可用性快照验证已配置的通知通道。
func (a *App) SimulateNotify(ctx context.Context, count int, price decimal.Decimal) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何通知通道")
	}

	note := notify.Notification{
		Service:   a.Config.Target.Service,
		Country:   a.Config.Target.Country,
		Count:     count,
		CheckedAt: time.Now().UTC(),
	}
	if price.IsPositive() {
		note.Price = &price
	}

	return notifier.Notify(ctx, note)
}
