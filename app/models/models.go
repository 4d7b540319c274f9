// Package models defines the marketplace entities shared by storage,
// services and the Telegram surface.
package models

import "time"

// User is a registered bot user. Users are created on first /start and are
// never deleted; moderation only flips the banned flag.
type User struct {
	ID       int64     `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Banned   bool      `db:"banned" json:"banned"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// ProductStatus is the moderation lifecycle of a listing.
type ProductStatus string

const (
	StatusPending  ProductStatus = "pending"
	StatusApproved ProductStatus = "approved"
	StatusRejected ProductStatus = "rejected"
)

// Categories is the fixed set of listing categories offered at the wizard's
// category step. Selection is by exact value; free text is not accepted.
var Categories = []string{
	"Academic Books",
	"Electronics",
	"Clothing",
	"Dorm & Furniture",
	"Services",
	"Other",
}

// ValidCategory reports whether the value is one of Categories.
func ValidCategory(v string) bool {
	for _, c := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// DescriptionPlaceholder is stored when the seller skips the description step.
const DescriptionPlaceholder = "No description provided."

// Product is a listing created by a completed wizard run. Status transitions
// happen only through the moderation service; once decided, the record is
// immutable except for the moderator fields set by that decision.
type Product struct {
	ID          int64         `db:"id" json:"id"`
	SellerID    int64         `db:"seller_id" json:"seller_id"`
	Title       string        `db:"title" json:"title"`
	Price       int64         `db:"price" json:"price"`
	Category    string        `db:"category" json:"category"`
	Description string        `db:"description" json:"description"`
	PhotoURL    string        `db:"photo_url" json:"photo_url"`
	Status      ProductStatus `db:"status" json:"status"`
	ModeratorID int64         `db:"moderator_id" json:"moderator_id"`
	DecidedAt   *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// Decided reports whether a moderation verdict has been recorded.
func (p *Product) Decided() bool {
	return p.Status != StatusPending
}

// ChatRole tags a relayed message with the sender's side of the deal.
type ChatRole string

const (
	RoleBuyer  ChatRole = "buyer"
	RoleSeller ChatRole = "seller"
)

// ChatMessage is one relayed message inside a chat session.
type ChatMessage struct {
	Role   ChatRole  `json:"role"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// ChatSession pairs a buyer with a seller over one product. A user id
// participates in at most one active session system-wide.
type ChatSession struct {
	ID        int64         `json:"id"`
	BuyerID   int64         `json:"buyer_id"`
	SellerID  int64         `json:"seller_id"`
	ProductID int64         `json:"product_id"`
	StartedAt time.Time     `json:"started_at"`
	Messages  []ChatMessage `json:"messages"`
}

// RoleOf returns the role the given user plays in the session, or "" if the
// user is not a participant.
func (s *ChatSession) RoleOf(userID int64) ChatRole {
	switch userID {
	case s.BuyerID:
		return RoleBuyer
	case s.SellerID:
		return RoleSeller
	}
	return ""
}

// Peer returns the other participant's id, or 0 if the user is not a
// participant.
func (s *ChatSession) Peer(userID int64) int64 {
	switch userID {
	case s.BuyerID:
		return s.SellerID
	case s.SellerID:
		return s.BuyerID
	}
	return 0
}

// BroadcastStatus is the lifecycle of a broadcast job.
type BroadcastStatus string

const (
	BroadcastComposing BroadcastStatus = "composing"
	BroadcastAwaiting  BroadcastStatus = "awaiting_confirmation"
	BroadcastSending   BroadcastStatus = "sending"
	BroadcastCompleted BroadcastStatus = "completed"
	BroadcastCancelled BroadcastStatus = "cancelled"
)

// BroadcastScope selects the recipient set of a broadcast.
type BroadcastScope string

const (
	ScopeAllUsers BroadcastScope = "all"
	ScopeAdmins   BroadcastScope = "admins"
)

// BroadcastJob is a one-shot announcement fan-out. The job is referenced by a
// server-side token; callback payloads never carry the message text.
type BroadcastJob struct {
	Token       string          `json:"token"`
	RequesterID int64           `json:"requester_id"`
	Scope       BroadcastScope  `json:"scope"`
	Recipients  []int64         `json:"recipients"`
	Text        string          `json:"text"`
	Status      BroadcastStatus `json:"status"`
	Sent        int             `json:"sent"`
	Failed      int             `json:"failed"`
	CreatedAt   time.Time       `json:"created_at"`
}
