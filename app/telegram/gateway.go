// Package telegram is the bot surface of the marketplace: command and
// callback handlers, the listing wizard states, the admin panels and the
// wiring that assembles them into a runnable bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/freshmanacadamy/gebeyabot/app/services"

	tele "gopkg.in/telebot.v4"
)

// ErrGatewayNotReady is returned by a DeferredGateway before the bot exists.
var ErrGatewayNotReady = errors.New("telegram gateway not ready")

// DeferredGateway is a services.Gateway whose backing bot is attached after
// construction. Services are built at bootstrap, before the telebot instance
// exists; the run lifecycle binds the live bot on start.
type DeferredGateway struct {
	inner atomic.Pointer[botGateway]
}

// NewDeferredGateway returns an unbound gateway.
func NewDeferredGateway() *DeferredGateway {
	return &DeferredGateway{}
}

// Bind attaches the live bot.
func (d *DeferredGateway) Bind(bot *tele.Bot) {
	d.inner.Store(&botGateway{bot: bot})
}

func (d *DeferredGateway) gw() (*botGateway, error) {
	if g := d.inner.Load(); g != nil {
		return g, nil
	}
	return nil, ErrGatewayNotReady
}

func (d *DeferredGateway) Send(ctx context.Context, recipientID int64, text string, rows ...[]services.Button) (services.MessageRef, error) {
	g, err := d.gw()
	if err != nil {
		return services.MessageRef{}, err
	}
	return g.Send(ctx, recipientID, text, rows...)
}

func (d *DeferredGateway) SendPhoto(ctx context.Context, recipientID int64, photoURL, caption string, rows ...[]services.Button) (services.MessageRef, error) {
	g, err := d.gw()
	if err != nil {
		return services.MessageRef{}, err
	}
	return g.SendPhoto(ctx, recipientID, photoURL, caption, rows...)
}

func (d *DeferredGateway) Edit(ctx context.Context, mr services.MessageRef, text string) error {
	g, err := d.gw()
	if err != nil {
		return err
	}
	return g.Edit(ctx, mr, text)
}

func (d *DeferredGateway) ClearButtons(ctx context.Context, mr services.MessageRef) error {
	g, err := d.gw()
	if err != nil {
		return err
	}
	return g.ClearButtons(ctx, mr)
}

func (d *DeferredGateway) MediaURL(ctx context.Context, fileID string) (string, error) {
	g, err := d.gw()
	if err != nil {
		return "", err
	}
	return g.MediaURL(ctx, fileID)
}

// botGateway implements services.Gateway on top of a live telebot instance.
// Calls are synchronous so services observe real delivery failures; handler
// replies go through the async helpers instead.
type botGateway struct {
	bot *tele.Bot
}

// NewGateway wraps the bot in the services.Gateway contract.
func NewGateway(bot *tele.Bot) services.Gateway {
	return &botGateway{bot: bot}
}

// contextBot recovers the concrete bot from a handler context; telebot v4's
// Context.Bot() returns the tele.API interface.
func contextBot(c tele.Context) *tele.Bot {
	return c.Bot().(*tele.Bot)
}

func (g *botGateway) Send(_ context.Context, recipientID int64, text string, rows ...[]services.Button) (services.MessageRef, error) {
	msg, err := g.bot.Send(&tele.User{ID: recipientID}, text, sendOptions(rows))
	if err != nil {
		return services.MessageRef{}, err
	}
	return ref(msg), nil
}

func (g *botGateway) SendPhoto(_ context.Context, recipientID int64, photoURL, caption string, rows ...[]services.Button) (services.MessageRef, error) {
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	msg, err := g.bot.Send(&tele.User{ID: recipientID}, photo, sendOptions(rows))
	if err != nil {
		return services.MessageRef{}, err
	}
	return ref(msg), nil
}

func (g *botGateway) Edit(_ context.Context, mr services.MessageRef, text string) error {
	_, err := g.bot.Edit(storedMessage(mr), text)
	return err
}

func (g *botGateway) ClearButtons(_ context.Context, mr services.MessageRef) error {
	_, err := g.bot.EditReplyMarkup(storedMessage(mr), nil)
	return err
}

func (g *botGateway) MediaURL(_ context.Context, fileID string) (string, error) {
	file, err := g.bot.FileByID(fileID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/file/bot%s/%s", g.bot.URL, g.bot.Token, file.FilePath), nil
}

func ref(msg *tele.Message) services.MessageRef {
	return services.MessageRef{
		ChatID:    msg.Chat.ID,
		MessageID: strconv.Itoa(msg.ID),
	}
}

func storedMessage(mr services.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: mr.MessageID, ChatID: mr.ChatID}
}

func sendOptions(rows [][]services.Button) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if len(rows) == 0 {
		return opts
	}
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, *markup.Data(b.Text, b.Action, b.Data).Inline())
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	opts.ReplyMarkup = markup
	return opts
}
