package app

import (
	"context"
	"log/slog"

	"github.com/freshmanacadamy/gebeyabot/app/media"
	"github.com/freshmanacadamy/gebeyabot/app/services"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
	apptelegram "github.com/freshmanacadamy/gebeyabot/app/telegram"
	"github.com/freshmanacadamy/gebeyabot/core/database"
	"github.com/freshmanacadamy/gebeyabot/core/logger"
	coretelegram "github.com/freshmanacadamy/gebeyabot/core/telegram"

	"github.com/jmoiron/sqlx"
)

// App is the bootstrapped application.
type App struct {
	cfg   *Config
	store *storage.Store
	gw    *apptelegram.DeferredGateway
	bot   *apptelegram.Bot
}

// Bootstrap connects storage, builds the services and assembles the bot
// surface. A database failure is not fatal: the store runs cache-only.
func Bootstrap(cfg *Config) (*App, error) {
	var db *sqlx.DB
	if cfg.Database.Enabled() {
		if err := database.RunMigrations(cfg.Database); err != nil {
			logger.L.With("component", "app").Warn("migrations failed, running cache-only",
				slog.String("event", "bootstrap"),
				slog.String("err", err.Error()),
			)
		} else if conn, err := database.Connect(cfg.Database); err != nil {
			logger.L.With("component", "app").Warn("db unavailable, running cache-only",
				slog.String("event", "bootstrap"),
				slog.String("err", err.Error()),
			)
		} else {
			db = conn
		}
	}

	store := storage.New(db)
	_ = store.Hydrate(context.Background())

	var mediaStore media.Store
	if cfg.Media.Enabled() {
		mediaStore = media.NewHTTPStore(cfg.Media)
	}

	gw := apptelegram.NewDeferredGateway()
	admins := cfg.Core.Telegram.AdminIDs

	bot := apptelegram.NewBot(apptelegram.Deps{
		Config:     &cfg.Core,
		Store:      store,
		Users:      services.NewUsers(store),
		Listings:   services.NewListings(store, gw, mediaStore, admins),
		Moderation: services.NewModeration(store, gw, cfg.Market.ChannelID, cfg.Core.Telegram.Username),
		Chats:      services.NewChats(store, gw, admins),
		Broadcast:  services.NewBroadcast(store, gw, admins),
	})

	return &App{cfg: cfg, store: store, gw: gw, bot: bot}, nil
}

// TelegramRunOptions builds the run options consumed by the core runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := a.bot.Registry()

	mws := coretelegram.DefaultMiddlewares(&a.cfg.Core, nil)
	mws = append(mws, coretelegram.Middleware{Name: "ban_gate", Use: a.bot.BanGate})

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: mws,
		Routes:      a.bot.Routes(reg),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.gw.Bind(rt.Bot)
			a.bot.SetRunContext(ctx)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.store.Flush(ctx)
		},
	}, nil
}
