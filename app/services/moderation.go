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

// Moderation decides pending listings. Decisions race-protect each other:
// for any product exactly one approve or reject takes effect, and exactly
// one publication and one seller notification follow an approval.
type Moderation struct {
	store     *storage.Store
	gw        Gateway
	channelID int64
	botName   string
}

// NewModeration builds the moderation service. channelID is the public
// channel approved listings are published to; 0 disables publication.
func NewModeration(store *storage.Store, gw Gateway, channelID int64, botName string) *Moderation {
	return &Moderation{store: store, gw: gw, channelID: channelID, botName: botName}
}

// Approve moves a pending product to approved, publishes it and notifies the
// seller. A product already decided yields a Conflict error and no side
// effects.
func (m *Moderation) Approve(ctx context.Context, productID, adminID int64) (*models.Product, error) {
	product, err := m.decide(ctx, productID, adminID, models.StatusApproved)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, product)
	m.notifySeller(ctx, product,
		fmt.Sprintf("🎉 Your listing \"%s\" was approved and published!", product.Title))
	return product, nil
}

// Reject moves a pending product to rejected and notifies the seller.
func (m *Moderation) Reject(ctx context.Context, productID, adminID int64) (*models.Product, error) {
	product, err := m.decide(ctx, productID, adminID, models.StatusRejected)
	if err != nil {
		return nil, err
	}

	m.notifySeller(ctx, product,
		fmt.Sprintf("Your listing \"%s\" was rejected by a moderator.", product.Title))
	return product, nil
}

func (m *Moderation) decide(ctx context.Context, productID, adminID int64, status models.ProductStatus) (*models.Product, error) {
	product, won, found := m.store.DecideIfPending(ctx, productID, status, adminID)
	if !found {
		return nil, market.NotFound("product %d does not exist", productID)
	}
	if !won {
		logger.SVCModeration.Info("decision lost race",
			slog.String("event", "decide"),
			slog.String("status", "conflict"),
			slog.Int64("product_id", productID),
			slog.Int64("admin_id", adminID),
			slog.String("state", string(product.Status)),
		)
		return nil, market.Conflict("listing already decided: %s", product.Status)
	}

	logger.SVCModeration.Info("listing decided",
		slog.String("event", "decide"),
		slog.String("status", "ok"),
		slog.Int64("product_id", productID),
		slog.Int64("admin_id", adminID),
		slog.String("state", string(status)),
	)
	return product, nil
}

// publish posts the approved listing to the public channel. Best-effort: the
// status transition is already committed.
func (m *Moderation) publish(ctx context.Context, p *models.Product) {
	if m.channelID == 0 {
		return
	}
	caption := fmt.Sprintf(
		"%s\nPrice: %d\nCategory: %s\n\n%s\n\nContact the seller: https://t.me/%s?start=buy_%d",
		p.Title, p.Price, p.Category, p.Description, m.botName, p.ID,
	)
	if _, err := m.gw.SendPhoto(ctx, m.channelID, p.PhotoURL, caption); err != nil {
		logger.SVCModeration.Warn("channel publication failed",
			slog.String("event", "publish"),
			slog.Int64("product_id", p.ID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
	}
}

func (m *Moderation) notifySeller(ctx context.Context, p *models.Product, text string) {
	if _, err := m.gw.Send(ctx, p.SellerID, text); err != nil {
		logger.SVCModeration.Warn("seller notification failed",
			slog.String("event", "notify.seller"),
			slog.Int64("product_id", p.ID),
			slog.Int64("seller_id", p.SellerID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
	}
}
