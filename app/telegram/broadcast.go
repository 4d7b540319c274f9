package telegram

import (
	"fmt"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	tg "github.com/freshmanacadamy/gebeyabot/core/telegram"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/callbacks"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/format"
	tghelpers "github.com/freshmanacadamy/gebeyabot/core/telegram/helpers"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/keyboard"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// stateBroadcastText waits for the announcement text after scope selection.
const stateBroadcastText state.State = "bcast_awaiting_text"

// broadcastTokenKey stores the draft token in the conversation payload.
const broadcastTokenKey = "bcast_token"

func (b *Bot) registerBroadcastCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback("bcast_scope", b.adminOnlyCallback(b.handleBroadcastScope))
	_ = reg.RegisterCallback("bcast_confirm", b.adminOnlyCallback(b.handleBroadcastConfirm))
	_ = reg.RegisterCallback("bcast_cancel", b.adminOnlyCallback(b.handleBroadcastCancel))
}

// handleBroadcastScope opens a draft for the chosen scope and asks for text.
func (b *Bot) handleBroadcastScope(c tele.Context) error {
	scope := models.BroadcastScope(callbacks.CallbackPayload(c))
	job, err := b.broadcast.Compose(c.Sender().ID, scope)
	if err != nil {
		return b.replyDomainError(c, err)
	}

	b.fsm.Begin(c.Sender().ID, stateBroadcastText)
	b.fsm.SetData(c.Sender().ID, broadcastTokenKey, job.Token)

	return tghelpers.SendMD(c,
		fmt.Sprintf("Composing a broadcast to *%d* recipients. Send the announcement text, or /cancel.", len(job.Recipients)))
}

// broadcastText receives the announcement text and shows the confirmation.
// The confirm button carries only the job token; scope and text replay from
// the stored draft.
func (b *Bot) broadcastText(c tele.Context) error {
	adminID := c.Sender().ID
	token, ok := b.fsm.GetString(adminID, broadcastTokenKey)
	if !ok {
		b.fsm.Clear(adminID)
		return tghelpers.SendText(c, "This broadcast draft expired, start again from the admin panel.")
	}

	job, err := b.broadcast.SetText(token, c.Text())
	if err != nil {
		if market.IsCode(err, market.CodeValidation) {
			return tghelpers.SendText(c, "The announcement cannot be empty. Send the text, or /cancel.")
		}
		b.fsm.Clear(adminID)
		return b.replyDomainError(c, err)
	}
	b.fsm.Clear(adminID)

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Send it", Unique: "bcast_confirm", Data: token},
		{Text: "❌ Cancel", Unique: "bcast_cancel", Data: token},
	})
	return tghelpers.SendMD(c,
		fmt.Sprintf("*Ready to send to %d recipients:*\n\n%s", len(job.Recipients), format.EscapeMD(job.Text)),
		markup)
}

func (b *Bot) handleBroadcastConfirm(c tele.Context) error {
	token := callbacks.CallbackPayload(c)
	// fan-out inherits the run context, not the update context: it must
	// outlive this handler and stop only on shutdown
	job, err := b.broadcast.Confirm(b.runContext(), token)
	if err != nil {
		return b.replyDomainError(c, err)
	}

	if c.Message() != nil {
		_ = NewGateway(contextBot(c)).ClearButtons(handlerContext(c), ref(c.Message()))
	}
	return tghelpers.SendText(c, fmt.Sprintf("Sending to %d recipients…", len(job.Recipients)))
}

func (b *Bot) handleBroadcastCancel(c tele.Context) error {
	token := callbacks.CallbackPayload(c)
	if err := b.broadcast.Cancel(token); err != nil {
		return b.replyDomainError(c, err)
	}
	if c.Message() != nil {
		_ = NewGateway(contextBot(c)).ClearButtons(handlerContext(c), ref(c.Message()))
	}
	return tghelpers.SendText(c, "Broadcast cancelled, nothing was sent.")
}
