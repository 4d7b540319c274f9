package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/media"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
	"github.com/freshmanacadamy/gebeyabot/core/logger"
)

// SkipToken is the command a seller sends to skip the description step.
const SkipToken = "/skip"

// Draft accumulates the fields collected by the listing wizard.
type Draft struct {
	PhotoFileID string
	Title       string
	Price       int64
	Description string
	Category    string
}

// Listings turns completed wizard drafts into pending products and serves
// listing views.
type Listings struct {
	store  *storage.Store
	gw     Gateway
	media  media.Store
	admins []int64
	client *http.Client
}

// NewListings builds the listing service. mediaStore may be nil; listings
// then keep the transport-resolved photo URL.
func NewListings(store *storage.Store, gw Gateway, mediaStore media.Store, admins []int64) *Listings {
	return &Listings{
		store:  store,
		gw:     gw,
		media:  mediaStore,
		admins: admins,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// ParsePrice extracts the numeric characters from free text and parses them
// as a positive integer in minor currency units. "1500 ETB" parses as 1500.
func ParsePrice(text string) (int64, error) {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, market.Validation("price must contain a number")
	}
	price, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, market.Validation("price is out of range")
	}
	if price <= 0 {
		return 0, market.Validation("price must be a positive amount")
	}
	return price, nil
}

// ValidateTitle accepts non-empty trimmed text.
func ValidateTitle(text string) (string, error) {
	title := strings.TrimSpace(text)
	if title == "" {
		return "", market.Validation("title must not be empty")
	}
	return title, nil
}

// NormalizeDescription substitutes the placeholder when the seller skips.
func NormalizeDescription(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.EqualFold(trimmed, SkipToken) {
		return models.DescriptionPlaceholder
	}
	return trimmed
}

// Finalize validates the completed draft, resolves its photo to a durable
// URL, persists the product as pending and notifies every administrator with
// decision buttons. Returns the created product.
func (l *Listings) Finalize(ctx context.Context, sellerID int64, draft Draft) (*models.Product, error) {
	if draft.PhotoFileID == "" {
		return nil, market.Validation("listing is missing its photo")
	}
	title, err := ValidateTitle(draft.Title)
	if err != nil {
		return nil, err
	}
	if draft.Price <= 0 {
		return nil, market.Validation("listing price must be positive")
	}
	if !models.ValidCategory(draft.Category) {
		return nil, market.Validation("unknown category %q", draft.Category)
	}

	photoURL, err := l.resolvePhoto(ctx, sellerID, draft.PhotoFileID)
	if err != nil {
		return nil, err
	}

	product := l.store.CreateProduct(ctx, models.Product{
		SellerID:    sellerID,
		Title:       title,
		Price:       draft.Price,
		Category:    draft.Category,
		Description: NormalizeDescription(draft.Description),
		PhotoURL:    photoURL,
	})

	logger.SVCListings.Info("listing submitted",
		slog.String("event", "submit"),
		slog.Int64("product_id", product.ID),
		slog.Int64("seller_id", sellerID),
		slog.String("category", product.Category),
	)

	l.notifyModerators(ctx, product)
	return product, nil
}

// ListApproved returns the public catalogue.
func (l *Listings) ListApproved() []*models.Product {
	return l.store.ListByStatus(models.StatusApproved)
}

// ListPending returns the moderation queue.
func (l *Listings) ListPending() []*models.Product {
	return l.store.ListByStatus(models.StatusPending)
}

// ListBySeller returns a seller's own listings, any status.
func (l *Listings) ListBySeller(sellerID int64) []*models.Product {
	return l.store.ListBySeller(sellerID)
}

// Counts returns total and per-status listing counts.
func (l *Listings) Counts() (total, pending, approved, rejected int) {
	return l.store.CountProducts()
}

// Get returns a product or a NotFound error.
func (l *Listings) Get(productID int64) (*models.Product, error) {
	p, ok := l.store.GetProduct(productID)
	if !ok {
		return nil, market.NotFound("product %d does not exist", productID)
	}
	return p, nil
}

// resolvePhoto turns the transport file id into a durable URL. With an
// object store configured the photo is mirrored there; otherwise the
// transport URL is kept as-is.
func (l *Listings) resolvePhoto(ctx context.Context, sellerID int64, fileID string) (string, error) {
	srcURL, err := l.gw.MediaURL(ctx, fileID)
	if err != nil {
		return "", market.Validation("could not read the uploaded photo, please try again")
	}
	if l.media == nil {
		return srcURL, nil
	}

	resp, err := l.fetch(ctx, srcURL)
	if err != nil {
		logger.SVCListings.Warn("photo mirror skipped",
			slog.String("event", "media.mirror"),
			slog.Int64("seller_id", sellerID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
		return srcURL, nil
	}
	defer resp.Body.Close()

	path := fmt.Sprintf("listings/%d/%d.jpg", sellerID, time.Now().UnixNano())
	url, err := l.media.Upload(ctx, resp.Body, path)
	if err != nil {
		logger.SVCListings.Warn("photo mirror failed",
			slog.String("event", "media.mirror"),
			slog.Int64("seller_id", sellerID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
		return srcURL, nil
	}
	return url, nil
}

func (l *Listings) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("media fetch status: %s", resp.Status)
	}
	return resp, nil
}

// notifyModerators sends each administrator the submission with decision
// buttons. Send failures only log; the product is already persisted.
func (l *Listings) notifyModerators(ctx context.Context, p *models.Product) {
	caption := fmt.Sprintf(
		"New listing #%d\n%s\nPrice: %d\nCategory: %s\n\n%s",
		p.ID, p.Title, p.Price, p.Category, p.Description,
	)
	rows := [][]Button{{
		{Text: "✅ Approve", Action: "mod_approve", Data: strconv.FormatInt(p.ID, 10)},
		{Text: "🚫 Reject", Action: "mod_reject", Data: strconv.FormatInt(p.ID, 10)},
	}}
	for _, adminID := range l.admins {
		if _, err := l.gw.SendPhoto(ctx, adminID, p.PhotoURL, caption, rows...); err != nil {
			logger.SVCListings.Warn("moderator notification failed",
				slog.String("event", "notify.moderator"),
				slog.Int64("product_id", p.ID),
				slog.Int64("admin_id", adminID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
			)
		}
	}
}
