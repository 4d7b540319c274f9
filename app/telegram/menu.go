package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/services"
	tg "github.com/freshmanacadamy/gebeyabot/core/telegram"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/callbacks"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/commands"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/format"
	tghelpers "github.com/freshmanacadamy/gebeyabot/core/telegram/helpers"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const (
	labelBrowse     = "🛍 Browse"
	labelSell       = "📦 Sell"
	labelMyListings = "📋 My listings"
	labelHelp       = "❓ Help"

	// browseCardLimit caps the photo cards sent per /browse.
	browseCardLimit = 5
)

func (b *Bot) registerMenuCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Description: "Register and open the main menu",
		Handler:     b.handleStart,
	})
	reg.RegisterCommand("/browse", commands.Command{
		Description: "Browse approved listings",
		Handler:     b.handleBrowse,
	})
	reg.RegisterCommand("/mylistings", commands.Command{
		Description: "Show your own listings",
		Handler:     b.handleMyListings,
	})
	reg.RegisterCommand("/endchat", commands.Command{
		Description: "Leave your active chat",
		Handler:     b.handleEndChat,
	})
	reg.RegisterCommand("/help", commands.Command{
		Description: "How the marketplace works",
		Handler:     b.handleHelp,
	})
}

func (b *Bot) registerChatCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback("chat_open", b.handleChatOpen)
	_ = reg.RegisterCallback("chat_end", b.handleEndChat)
}

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{labelBrowse, labelSell},
		[]string{labelMyListings, labelHelp},
	)
}

// handleStart registers the sender and opens the main menu. A deep-link
// payload "buy_<id>" (from a channel post) jumps straight into a chat with
// that listing's seller.
func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	user := b.users.Register(handlerContext(c), sender.ID, strings.TrimSpace(sender.FirstName+" "+sender.LastName))
	if user.Banned && !b.isAdmin(sender.ID) {
		return tghelpers.SendText(c, "Your account is suspended.")
	}

	if payload := strings.TrimSpace(c.Message().Payload); strings.HasPrefix(payload, "buy_") {
		if productID, err := strconv.ParseInt(strings.TrimPrefix(payload, "buy_"), 10, 64); err == nil {
			return b.openChat(c, productID)
		}
	}

	return tghelpers.SendMD(c,
		fmt.Sprintf("Welcome, %s! Buy and sell within your campus.\nUse the menu below to get going.", format.EscapeMD(user.Name)),
		mainMenu())
}

func (b *Bot) handleBrowse(c tele.Context) error {
	approved := b.listings.ListApproved()
	if len(approved) == 0 {
		return tghelpers.SendText(c, "Nothing is on sale right now. Check back later!")
	}

	// newest first
	shown := 0
	ctx := handlerContext(c)
	gw := NewGateway(contextBot(c))
	for i := len(approved) - 1; i >= 0 && shown < browseCardLimit; i-- {
		p := approved[i]
		caption := fmt.Sprintf("%s\nPrice: %d\nCategory: %s\n\n%s", p.Title, p.Price, p.Category, p.Description)
		rows := [][]services.Button{{{
			Text:   "💬 Contact seller",
			Action: "chat_open",
			Data:   strconv.FormatInt(p.ID, 10),
		}}}
		if _, err := gw.SendPhoto(ctx, c.Sender().ID, p.PhotoURL, caption, rows...); err == nil {
			shown++
		}
	}
	if shown == 0 {
		return tghelpers.SendText(c, "Could not load the listings, please try again.")
	}
	return nil
}

func (b *Bot) handleMyListings(c tele.Context) error {
	mine := b.listings.ListBySeller(c.Sender().ID)
	if len(mine) == 0 {
		return tghelpers.SendText(c, "You have no listings yet. Tap "+labelSell+" to create one.")
	}

	var sb strings.Builder
	sb.WriteString("*Your listings*\n")
	for _, p := range mine {
		sb.WriteString(fmt.Sprintf("\n#%d %s — %d (%s)", p.ID, format.EscapeMD(p.Title), p.Price, statusLabel(p.Status)))
	}
	return tghelpers.SendMD(c, sb.String())
}

func statusLabel(s models.ProductStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳ pending review"
	case models.StatusApproved:
		return "✅ live"
	case models.StatusRejected:
		return "🚫 rejected"
	}
	return string(s)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return tghelpers.SendMD(c,
		"*How it works*\n"+
			"• "+labelSell+" walks you through listing an item; a moderator reviews it before it goes live.\n"+
			"• "+labelBrowse+" shows what is on sale; tap Contact seller to start a chat.\n"+
			"• While chatting, plain messages are forwarded to the other side. /endchat leaves the chat.")
}

// handleChatOpen is the "contact seller" button on a listing card.
func (b *Bot) handleChatOpen(c tele.Context) error {
	productID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.SendText(c, "This listing link is broken.")
	}
	return b.openChat(c, productID)
}

func (b *Bot) openChat(c tele.Context, productID int64) error {
	_, err := b.chats.Open(handlerContext(c), c.Sender().ID, productID)
	if err != nil {
		return b.replyDomainError(c, err)
	}
	return nil
}

func (b *Bot) handleEndChat(c tele.Context) error {
	if _, err := b.chats.End(handlerContext(c), c.Sender().ID); err != nil {
		if cb := c.Callback(); cb != nil {
			_ = c.Respond(&tele.CallbackResponse{Text: "No active chat."})
			return nil
		}
		return tghelpers.SendText(c, "You have no active chat.")
	}
	if c.Callback() != nil && c.Message() != nil {
		// disable the End chat button on the originating message
		_ = NewGateway(contextBot(c)).ClearButtons(handlerContext(c), ref(c.Message()))
	}
	return nil
}

// handleMenuText maps reply-keyboard labels onto their commands.
func (b *Bot) handleMenuText(c tele.Context) error {
	switch strings.TrimSpace(c.Text()) {
	case labelBrowse:
		return b.handleBrowse(c)
	case labelSell:
		return b.handleSell(c)
	case labelMyListings:
		return b.handleMyListings(c)
	case labelHelp:
		return b.handleHelp(c)
	}
	return b.handleUnknownText(c)
}

func (b *Bot) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, "I did not understand that. Try /help.")
}

func (b *Bot) handleUnexpectedPhoto(c tele.Context) error {
	return tghelpers.SendText(c, "Nice photo! Tap "+labelSell+" if you want to list something.")
}

// replyDomainError converts a domain error into a user-visible reply and
// swallows it so the summary log records the outcome without a handler
// failure for expected cases.
func (b *Bot) replyDomainError(c tele.Context, err error) error {
	me, ok := err.(*market.Error)
	if !ok {
		return err
	}
	switch me.ErrCode {
	case market.CodeValidation, market.CodeNotFound, market.CodeConflict:
		return tghelpers.SendText(c, me.Message)
	case market.CodePermission:
		return tghelpers.SendText(c, "You are not allowed to do that.")
	}
	return err
}
