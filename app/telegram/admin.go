package telegram

import (
	"fmt"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	tg "github.com/freshmanacadamy/gebeyabot/core/telegram"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/callbacks"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) registerAdminCommands(reg *tg.Registry) {
	reg.RegisterCommand("/admin", commands.Command{
		Description: "Open the admin panel",
		AdminOnly:   true,
		Hidden:      true,
		Handler:     b.nav.Home,
	})
}

func (b *Bot) registerModerationCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback("mod_approve", b.adminOnlyCallback(func(c tele.Context) error {
		return b.handleDecision(c, true)
	}))
	_ = reg.RegisterCallback("mod_reject", b.adminOnlyCallback(func(c tele.Context) error {
		return b.handleDecision(c, false)
	}))
	_ = reg.RegisterCallback("usr_ban", b.adminOnlyCallback(func(c tele.Context) error {
		return b.handleBanToggle(c, true)
	}))
	_ = reg.RegisterCallback("usr_unban", b.adminOnlyCallback(func(c tele.Context) error {
		return b.handleBanToggle(c, false)
	}))
}

// handleDecision resolves an approve/reject button press. The originating
// message is updated to reflect the final verdict whichever admin won; that
// update is best-effort and never rolls the decision back.
func (b *Bot) handleDecision(c tele.Context, approve bool) error {
	productID, err := callbacks.PayloadInt64(c)
	if err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "Broken button."})
		return nil
	}

	ctx := handlerContext(c)
	adminID := c.Sender().ID
	if approve {
		_, err = b.moderation.Approve(ctx, productID, adminID)
	} else {
		_, err = b.moderation.Reject(ctx, productID, adminID)
	}

	switch {
	case err == nil:
	case market.IsCode(err, market.CodeConflict):
		_ = c.Respond(&tele.CallbackResponse{Text: "Already decided by another moderator."})
	case market.IsCode(err, market.CodeNotFound):
		_ = c.Respond(&tele.CallbackResponse{Text: "This listing no longer exists."})
		return nil
	default:
		return err
	}

	b.reflectDecision(c, productID)
	return nil
}

// reflectDecision rewrites the decision message with the committed status
// and strips the action buttons.
func (b *Bot) reflectDecision(c tele.Context, productID int64) {
	product, err := b.listings.Get(productID)
	if err != nil {
		return
	}
	verdict := "✅ Approved"
	if product.Status == models.StatusRejected {
		verdict = "🚫 Rejected"
	}
	note := fmt.Sprintf("%s by moderator %d", verdict, product.ModeratorID)

	msg := c.Message()
	if msg == nil {
		return
	}
	if msg.Photo != nil {
		_ = c.Edit(&tele.Photo{
			File:    msg.Photo.File,
			Caption: msg.Caption + "\n\n" + note,
		})
	} else {
		_ = c.Edit(msg.Text + "\n\n" + note)
	}
	_ = NewGateway(contextBot(c)).ClearButtons(handlerContext(c), ref(msg))
}

func (b *Bot) handleBanToggle(c tele.Context, ban bool) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "Broken button."})
		return nil
	}
	if b.isAdmin(userID) {
		_ = c.Respond(&tele.CallbackResponse{Text: "Administrators cannot be banned."})
		return nil
	}
	if _, err := b.users.SetBanned(handlerContext(c), userID, ban); err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: "Unknown user."})
		return nil
	}
	return b.nav.Refresh(c)
}
