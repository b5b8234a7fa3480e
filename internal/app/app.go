package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"number-stock-alerts/internal/config"
	"number-stock-alerts/internal/marketplace"
	"number-stock-alerts/internal/monitor"
	"number-stock-alerts/internal/notify"
	"number-stock-alerts/internal/state"
	"number-stock-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() *marketplace.Client {
	return marketplace.NewClient(marketplace.Options{
		BaseURL:         a.Config.Marketplace.BaseURL,
		APIKey:          a.Config.Marketplace.APIKey,
		Service:         a.Config.Target.Service,
		Country:         a.Config.Target.Country,
		StatsTimeout:    a.Config.Marketplace.RequestTimeout,
		PurchaseTimeout: a.Config.Purchase.RequestTimeout,
		UserAgent:       a.Config.Marketplace.UserAgent,
	}, a.Logger)
}

// newNotifier assembles the enabled channels; nil means notifications are
// administratively disabled.
func (a *App) newNotifier() notify.Notifier {
	var channels []notify.Notifier

	if a.Config.Email.Enabled {
		channels = append(channels, notify.NewEmailNotifier(notify.EmailOptions{
			Host:     a.Config.Email.SMTPHost,
			Port:     a.Config.Email.SMTPPort,
			Username: a.Config.Email.Username,
			Password: a.Config.Email.Password,
			From:     a.Config.Email.From,
			To:       a.Config.Email.To,
		}, a.Logger))
	}
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		channels = append(channels, notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}

	if len(channels) == 0 {
		return nil
	}
	return notify.NewFanout(a.Logger, channels...)
}

// openStores returns the state store and purchase log, backed by PostgreSQL
// when a DSN is configured and by flat JSON files otherwise.
func (a *App) openStores(ctx context.Context) (state.Store, state.PurchaseLog, func(), error) {
	if a.Config.Database.DSN != "" {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		store := storage.NewStore(pool, storage.TargetKey(a.Config.Target.Service, a.Config.Target.Country))
		return store, store, store.Close, nil
	}

	fileStore := state.NewFileStore(a.Config.State.Path)
	purchaseLog := state.NewFilePurchaseLog(a.Config.State.PurchasesPath)
	return fileStore, purchaseLog, nil, nil
}

func (a *App) newController(stateStore state.Store, purchaseLog state.PurchaseLog) *monitor.Controller {
	client := a.newClient()

	var purchaser *monitor.Purchaser
	if a.Config.Purchase.Enabled && a.Config.Purchase.Quantity > 0 {
		purchaser = monitor.NewPurchaser(client, purchaseLog, a.Config.Purchase.Delay, a.Logger)
	} else {
		a.Logger.Info().Msg("auto-purchase disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no notification channels configured; availability will only be logged")
	}

	return monitor.New(monitor.Options{
		Service:  a.Config.Target.Service,
		Country:  a.Config.Target.Country,
		Quantity: a.Config.Purchase.Quantity,
		Intervals: monitor.Intervals{
			Poll:     a.Config.Monitor.PollInterval,
			Cooldown: a.Config.Monitor.Cooldown,
			Recheck:  a.Config.Monitor.RecheckInterval,
		},
	}, client, purchaser, notifier, stateStore, a.Logger)
}

// PurchasesOptions configure the purchases command.
type PurchasesOptions struct {
	Limit int
}
