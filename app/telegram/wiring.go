package telegram

import (
	"context"
	"sync/atomic"

	"github.com/freshmanacadamy/gebeyabot/app/services"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
	coreconfig "github.com/freshmanacadamy/gebeyabot/core/config"
	tg "github.com/freshmanacadamy/gebeyabot/core/telegram"
	tghelpers "github.com/freshmanacadamy/gebeyabot/core/telegram/helpers"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/router"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Bot groups the services and conversation machinery behind the handlers.
type Bot struct {
	cfg *coreconfig.Config

	users      *services.Users
	listings   *services.Listings
	moderation *services.Moderation
	chats      *services.Chats
	broadcast  *services.Broadcast

	fsm state.Manager
	nav *Navigator

	// runCtx is the process run context; long jobs started from handlers
	// (broadcast fan-out) inherit it so shutdown stops them.
	runCtx atomic.Pointer[context.Context]
}

// Deps carries everything the surface needs from bootstrap.
type Deps struct {
	Config     *coreconfig.Config
	Store      *storage.Store
	Users      *services.Users
	Listings   *services.Listings
	Moderation *services.Moderation
	Chats      *services.Chats
	Broadcast  *services.Broadcast
}

// NewBot assembles the handler surface.
func NewBot(d Deps) *Bot {
	b := &Bot{
		cfg:        d.Config,
		users:      d.Users,
		listings:   d.Listings,
		moderation: d.Moderation,
		chats:      d.Chats,
		broadcast:  d.Broadcast,
		fsm:        state.NewMemoryManager(),
	}
	b.nav = NewNavigator(b)
	b.registerWizardStates()
	return b
}

// SetRunContext wires the process run context once the bot is live.
func (b *Bot) SetRunContext(ctx context.Context) {
	b.runCtx.Store(&ctx)
}

func (b *Bot) runContext() context.Context {
	if p := b.runCtx.Load(); p != nil {
		return *p
	}
	return context.Background()
}

// handlerContext builds the per-update context carrying rid and sender meta.
func handlerContext(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.cfg.Telegram.IsAdmin(userID)
}

// Registry builds the command and callback tables.
func (b *Bot) Registry() *tg.Registry {
	reg := tg.NewRegistry()

	b.registerMenuCommands(reg)
	b.registerSellCommands(reg)
	b.registerAdminCommands(reg)
	b.registerNavCallbacks(reg)
	b.registerModerationCallbacks(reg)
	b.registerChatCallbacks(reg)
	b.registerBroadcastCallbacks(reg)

	reg.SetTextFallback(b.handleMenuText)
	return reg
}

// Routes assembles command, text/photo and callback routes.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		IsAdmin: b.isAdmin,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "This command is for administrators.")
		},
	})
	routes = append(routes, router.TextRoutes(b.fsm, reg, router.TextOptions{
		Relay:        b,
		UnknownText:  b.handleUnknownText,
		UnknownPhoto: b.handleUnexpectedPhoto,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return routes
}

// TryRelay implements router.Relay: free text from a paired participant is
// consumed by the chat relay before command lookup.
func (b *Bot) TryRelay(c tele.Context) (bool, error) {
	text := c.Text()
	if text == "" || text[0] == '/' {
		return false, nil
	}
	return b.chats.Relay(handlerContext(c), c.Sender().ID, text)
}

// BanGate refuses service to banned users. Administrators bypass it.
func (b *Bot) BanGate(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}
		if b.isAdmin(sender.ID) {
			return next(c)
		}
		if b.users.IsBanned(sender.ID) {
			return tghelpers.SendText(c, "Your account is suspended.")
		}
		return next(c)
	}
}
