package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
	"github.com/freshmanacadamy/gebeyabot/core/logger"
)

// Chats pairs buyers with sellers and relays their messages. A user
// participates in at most one active chat across all products.
type Chats struct {
	store  *storage.Store
	gw     Gateway
	admins []int64
}

// NewChats builds the chat relay service.
func NewChats(store *storage.Store, gw Gateway, admins []int64) *Chats {
	return &Chats{store: store, gw: gw, admins: admins}
}

// Open pairs the buyer with the product's seller. Fails when the product is
// not approved, the buyer is the seller, or either side already chats.
func (c *Chats) Open(ctx context.Context, buyerID, productID int64) (*models.ChatSession, error) {
	product, ok := c.store.GetProduct(productID)
	if !ok {
		return nil, market.NotFound("product %d does not exist", productID)
	}
	if product.Status != models.StatusApproved {
		return nil, market.Validation("this listing is not available for chat")
	}
	if buyerID == product.SellerID {
		return nil, market.Validation("you cannot open a chat on your own listing")
	}

	sess, ok := c.store.OpenChat(buyerID, product.SellerID, productID)
	if !ok {
		return nil, market.Conflict("one of the participants is already in a chat")
	}

	logger.SVCChats.Info("chat opened",
		slog.String("event", "open"),
		slog.Int64("product_id", productID),
		slog.Int64("buyer_id", buyerID),
		slog.Int64("seller_id", product.SellerID),
	)

	endRow := [][]Button{{{Text: "🔚 End chat", Action: "chat_end", Data: ""}}}
	c.notify(ctx, buyerID,
		fmt.Sprintf("You are now chatting with the seller of \"%s\". Messages you send here are forwarded.", product.Title),
		endRow)
	c.notify(ctx, product.SellerID,
		fmt.Sprintf("A buyer is interested in your listing \"%s\". Messages you send here are forwarded.", product.Title),
		endRow)

	monitor := fmt.Sprintf("👀 Chat started on \"%s\": buyer %d ↔ seller %d", product.Title, buyerID, product.SellerID)
	for _, adminID := range c.admins {
		c.notify(ctx, adminID, monitor, nil)
	}
	return sess, nil
}

// Relay forwards the sender's message to the other participant. Returns
// false when the sender has no active session; the caller then lets the
// message fall through to other handling. Only plain text is relayed.
func (c *Chats) Relay(ctx context.Context, senderID int64, text string) (bool, error) {
	sess, ok := c.store.AppendChatMessage(senderID, text)
	if !ok {
		return false, nil
	}

	role := sess.RoleOf(senderID)
	title := ""
	if product, found := c.store.GetProduct(sess.ProductID); found {
		title = product.Title
	}

	label := "Buyer"
	if role == models.RoleSeller {
		label = "Seller"
	}
	forwarded := fmt.Sprintf("💬 %s (%s): %s", label, title, text)
	if _, err := c.gw.Send(ctx, sess.Peer(senderID), forwarded); err != nil {
		logger.SVCChats.Warn("relay delivery failed",
			slog.String("event", "relay"),
			slog.Int64("product_id", sess.ProductID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
	}
	c.notify(ctx, senderID, "✔️ Delivered", nil)
	return true, nil
}

// Active reports whether the user is currently in a chat.
func (c *Chats) Active(userID int64) bool {
	_, ok := c.store.ChatByUser(userID)
	return ok
}

// Count returns the number of active chats.
func (c *Chats) Count() int {
	return c.store.CountChats()
}

// Sessions lists all active chats for the admin monitor panel.
func (c *Chats) Sessions() []*models.ChatSession {
	return c.store.ActiveChats()
}

// End tears the requester's session down under both participant keys and
// notifies both parties.
func (c *Chats) End(ctx context.Context, requesterID int64) (*models.ChatSession, error) {
	sess, ok := c.store.EndChat(ctx, requesterID)
	if !ok {
		return nil, market.NotFound("you have no active chat")
	}

	logger.SVCChats.Info("chat ended",
		slog.String("event", "end"),
		slog.Int64("product_id", sess.ProductID),
		slog.Int64("buyer_id", sess.BuyerID),
		slog.Int64("seller_id", sess.SellerID),
		slog.Int("messages", len(sess.Messages)),
	)

	c.notify(ctx, sess.BuyerID, "The chat has ended.", nil)
	c.notify(ctx, sess.SellerID, "The chat has ended.", nil)
	return sess, nil
}

func (c *Chats) notify(ctx context.Context, recipientID int64, text string, rows [][]Button) {
	if _, err := c.gw.Send(ctx, recipientID, text, rows...); err != nil {
		logger.SVCChats.Warn("chat notification failed",
			slog.String("event", "notify"),
			slog.Int64("user_id", recipientID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
	}
}
