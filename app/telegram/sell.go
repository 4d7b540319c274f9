package telegram

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/services"
	"github.com/freshmanacadamy/gebeyabot/core/logger"
	tg "github.com/freshmanacadamy/gebeyabot/core/telegram"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/commands"
	tghelpers "github.com/freshmanacadamy/gebeyabot/core/telegram/helpers"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/keyboard"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Listing wizard states, entered in order.
const (
	stateSellImage       state.State = "sell_awaiting_image"
	stateSellTitle       state.State = "sell_awaiting_title"
	stateSellPrice       state.State = "sell_awaiting_price"
	stateSellDescription state.State = "sell_awaiting_description"
	stateSellCategory    state.State = "sell_awaiting_category"
)

// Wizard payload keys.
const (
	draftKeyPhoto       = "photo_file_id"
	draftKeyTitle       = "title"
	draftKeyPrice       = "price"
	draftKeyDescription = "description"
)

func (b *Bot) registerSellCommands(reg *tg.Registry) {
	reg.RegisterCommand("/sell", commands.Command{
		Description: "List an item for sale",
		Handler:     b.handleSell,
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Description: "Abort the current listing",
		Handler:     b.handleSellCancel,
	})
	_ = reg.RegisterCallback("sell_cancel", b.handleSellCancel)
}

func (b *Bot) registerWizardStates() {
	b.fsm.RegisterHandler(stateSellImage, b.wizardImage)
	b.fsm.RegisterHandler(stateSellTitle, b.wizardTitle)
	b.fsm.RegisterHandler(stateSellPrice, b.wizardPrice)
	b.fsm.RegisterHandler(stateSellDescription, b.wizardDescription)
	b.fsm.RegisterHandler(stateSellCategory, b.wizardCategory)
	b.fsm.RegisterHandler(stateBroadcastText, b.broadcastText)
}

// handleSell starts the wizard. Any in-progress conversation is discarded.
func (b *Bot) handleSell(c tele.Context) error {
	b.fsm.Begin(c.Sender().ID, stateSellImage)
	return tghelpers.SendMD(c,
		"Let's list your item! 📸 Send *one photo* of it.",
		keyboard.SingleCancelMarkup("sell_cancel"))
}

// handleSellCancel aborts from any wizard step. Valid as both the /cancel
// command and the inline cancel button.
func (b *Bot) handleSellCancel(c tele.Context) error {
	userID := c.Sender().ID
	if !b.fsm.InProgress(userID) {
		if c.Callback() != nil {
			_ = c.Respond(&tele.CallbackResponse{Text: "Nothing to cancel."})
			return nil
		}
		return tghelpers.SendText(c, "Nothing to cancel.")
	}
	b.fsm.Clear(userID)
	return tghelpers.SendMD(c, "Listing cancelled.", mainMenu())
}

func (b *Bot) wizardImage(c tele.Context) error {
	photo := c.Message().Photo
	if photo == nil {
		// wrong input type: re-prompt, state unchanged
		return tghelpers.SendText(c, "Please send a photo of the item (or /cancel).")
	}
	b.fsm.SetData(c.Sender().ID, draftKeyPhoto, photo.FileID)
	b.fsm.SetState(c.Sender().ID, stateSellTitle)
	return tghelpers.SendText(c, "Got it! Now send a short title for your item.")
}

func (b *Bot) wizardTitle(c tele.Context) error {
	title, err := services.ValidateTitle(c.Text())
	if err != nil {
		return tghelpers.SendText(c, "The title cannot be empty. Try again.")
	}
	b.fsm.SetData(c.Sender().ID, draftKeyTitle, title)
	b.fsm.SetState(c.Sender().ID, stateSellPrice)
	return tghelpers.SendText(c, "How much does it cost? Send the price, e.g. \"1500 ETB\".")
}

func (b *Bot) wizardPrice(c tele.Context) error {
	price, err := services.ParsePrice(c.Text())
	if err != nil {
		return tghelpers.SendText(c, "I need a positive number for the price. Try again, e.g. \"1500\".")
	}
	b.fsm.SetData(c.Sender().ID, draftKeyPrice, price)
	b.fsm.SetState(c.Sender().ID, stateSellDescription)
	return tghelpers.SendText(c, "Describe the item, or send "+services.SkipToken+" to leave it blank.")
}

func (b *Bot) wizardDescription(c tele.Context) error {
	b.fsm.SetData(c.Sender().ID, draftKeyDescription, services.NormalizeDescription(c.Text()))
	b.fsm.SetState(c.Sender().ID, stateSellCategory)
	return tghelpers.SendText(c, "Last step: pick a category.", &tele.SendOptions{ReplyMarkup: categoryKeyboard()})
}

func categoryKeyboard() *tele.ReplyMarkup {
	rows := make([][]string, 0, (len(models.Categories)+1)/2)
	for i := 0; i < len(models.Categories); i += 2 {
		end := i + 2
		if end > len(models.Categories) {
			end = len(models.Categories)
		}
		rows = append(rows, models.Categories[i:end])
	}
	return keyboard.ReplyButtons(rows...)
}

func (b *Bot) wizardCategory(c tele.Context) error {
	category := strings.TrimSpace(c.Text())
	if !models.ValidCategory(category) {
		return tghelpers.SendText(c, "Please pick one of the categories from the keyboard.", &tele.SendOptions{ReplyMarkup: categoryKeyboard()})
	}

	userID := c.Sender().ID
	draft := b.collectDraft(userID, category)

	product, err := b.listings.Finalize(handlerContext(c), userID, draft)
	if err != nil {
		// a processing fault aborts the wizard; the user restarts cleanly
		b.fsm.Clear(userID)
		logger.SVCListings.Warn("wizard finalize failed",
			slog.String("event", "finalize"),
			slog.Int64("seller_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
		if market.IsCode(err, market.CodeValidation) {
			return tghelpers.SendMD(c, "Something went wrong with your listing: "+err.Error()+"\nSend /sell to start over.", mainMenu())
		}
		return tghelpers.SendMD(c, "Something went wrong, please send /sell to start over.", mainMenu())
	}

	b.fsm.Clear(userID)
	return tghelpers.SendMD(c,
		"All set! 🎉 Your listing *#"+strconv.FormatInt(product.ID, 10)+"* is waiting for moderator review. We will let you know.",
		mainMenu())
}

func (b *Bot) collectDraft(userID int64, category string) services.Draft {
	draft := services.Draft{Category: category}
	if v, ok := b.fsm.GetString(userID, draftKeyPhoto); ok {
		draft.PhotoFileID = v
	}
	if v, ok := b.fsm.GetString(userID, draftKeyTitle); ok {
		draft.Title = v
	}
	if v, ok := b.fsm.GetInt64(userID, draftKeyPrice); ok {
		draft.Price = v
	}
	if v, ok := b.fsm.GetString(userID, draftKeyDescription); ok {
		draft.Description = v
	}
	return draft
}
