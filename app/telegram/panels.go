package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/core/buildinfo"
	tg "github.com/freshmanacadamy/gebeyabot/core/telegram"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/callbacks"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/format"
	tghelpers "github.com/freshmanacadamy/gebeyabot/core/telegram/helpers"
	"github.com/freshmanacadamy/gebeyabot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// pageSize is the number of rows per listing panel page.
const pageSize = 10

// panelID names one screen of the admin surface. Navigation stores these
// identifiers, never handler references, so "back" survives restarts of the
// rendering path.
type panelID string

const (
	panelRoot      panelID = "root"
	panelPending   panelID = "pending"
	panelUsers     panelID = "users"
	panelChats     panelID = "chats"
	panelBroadcast panelID = "broadcast"
	panelStats     panelID = "stats"
	panelSettings  panelID = "settings"
)

// frame is one entry of an admin's navigation stack.
type frame struct {
	panel panelID
	page  int
}

// Navigator keeps a per-admin stack of panel frames and renders panels
// through a fixed dispatch table.
type Navigator struct {
	bot *Bot

	mu     sync.Mutex
	stacks map[int64][]frame

	render map[panelID]func(c tele.Context, page int) error
}

// NewNavigator builds the navigator and its dispatch table.
func NewNavigator(b *Bot) *Navigator {
	n := &Navigator{
		bot:    b,
		stacks: make(map[int64][]frame),
	}
	n.render = map[panelID]func(c tele.Context, page int) error{
		panelRoot:      n.renderRoot,
		panelPending:   n.renderPending,
		panelUsers:     n.renderUsers,
		panelChats:     n.renderChats,
		panelBroadcast: n.renderBroadcast,
		panelStats:     n.renderStats,
		panelSettings:  n.renderSettings,
	}
	return n
}

// Home clears the stack and renders the root panel.
func (n *Navigator) Home(c tele.Context) error {
	adminID := c.Sender().ID
	n.mu.Lock()
	n.stacks[adminID] = []frame{{panel: panelRoot}}
	n.mu.Unlock()
	return n.renderRoot(c, 0)
}

// Open pushes the current frame as the back target and renders the panel.
func (n *Navigator) Open(c tele.Context, panel panelID, page int) error {
	n.pushFrame(c.Sender().ID, panel, page)
	return n.show(c, panel, page)
}

// Back pops one level; the root panel is the floor.
func (n *Navigator) Back(c tele.Context) error {
	target := n.popFrame(c.Sender().ID)
	return n.show(c, target.panel, target.page)
}

func (n *Navigator) pushFrame(adminID int64, panel panelID, page int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	stack := n.stacks[adminID]
	if len(stack) > 0 && stack[len(stack)-1].panel == panel {
		// same panel: only the page changes, no push
		stack[len(stack)-1].page = page
	} else {
		stack = append(stack, frame{panel: panel, page: page})
	}
	n.stacks[adminID] = stack
}

func (n *Navigator) popFrame(adminID int64) frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	stack := n.stacks[adminID]
	if len(stack) > 0 {
		stack = stack[:len(stack)-1]
	}
	target := frame{panel: panelRoot}
	if len(stack) > 0 {
		target = stack[len(stack)-1]
	} else {
		stack = []frame{target}
	}
	n.stacks[adminID] = stack
	return target
}

// Refresh re-renders the current frame.
func (n *Navigator) Refresh(c tele.Context) error {
	adminID := c.Sender().ID
	n.mu.Lock()
	stack := n.stacks[adminID]
	target := frame{panel: panelRoot}
	if len(stack) > 0 {
		target = stack[len(stack)-1]
	}
	n.mu.Unlock()
	return n.show(c, target.panel, target.page)
}

func (n *Navigator) show(c tele.Context, panel panelID, page int) error {
	renderFn, ok := n.render[panel]
	if !ok {
		return n.renderRoot(c, 0)
	}
	return renderFn(c, page)
}

// pageWindow computes the [lo, hi) slice of a page plus which pagination
// controls apply. Page p shows items [p*size, p*size+size).
func pageWindow(total, page, size int) (lo, hi int, hasPrev, hasNext bool) {
	if page < 0 {
		page = 0
	}
	lo = page * size
	if lo > total {
		lo = total
	}
	hi = lo + size
	if hi > total {
		hi = total
	}
	return lo, hi, page > 0, hi < total
}

// navRows builds the shared pagination/back/home button rows.
func navRows(panel panelID, page int, hasPrev, hasNext bool) [][]keyboard.InlineBtn {
	var rows [][]keyboard.InlineBtn
	var pager []keyboard.InlineBtn
	if hasPrev {
		pager = append(pager, keyboard.InlineBtn{
			Text: "⬅️ Prev", Unique: "nav_page", Data: fmt.Sprintf("%s|%d", panel, page-1),
		})
	}
	if hasNext {
		pager = append(pager, keyboard.InlineBtn{
			Text: "Next ➡️", Unique: "nav_page", Data: fmt.Sprintf("%s|%d", panel, page+1),
		})
	}
	if len(pager) > 0 {
		rows = append(rows, pager)
	}
	rows = append(rows, []keyboard.InlineBtn{
		{Text: "🔙 Back", Unique: "nav_back", Data: ""},
		{Text: "🏠 Home", Unique: "nav_home", Data: ""},
	})
	return rows
}

func (n *Navigator) renderRoot(c tele.Context, _ int) error {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "⏳ Pending", Unique: "nav_open", Data: string(panelPending)},
			{Text: "👥 Users", Unique: "nav_open", Data: string(panelUsers)},
		},
		[]keyboard.InlineBtn{
			{Text: "💬 Chats", Unique: "nav_open", Data: string(panelChats)},
			{Text: "📣 Broadcast", Unique: "nav_open", Data: string(panelBroadcast)},
		},
		[]keyboard.InlineBtn{
			{Text: "📊 Stats", Unique: "nav_open", Data: string(panelStats)},
			{Text: "⚙️ Settings", Unique: "nav_open", Data: string(panelSettings)},
		},
	)
	return tghelpers.EditOrSendMD(c, "*Admin panel*\nPick a section.", markup)
}

func (n *Navigator) renderPending(c tele.Context, page int) error {
	pending := n.bot.listings.ListPending()
	lo, hi, hasPrev, hasNext := pageWindow(len(pending), page, pageSize)

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Pending listings* (%d)\n", len(pending))
	for _, p := range pending[lo:hi] {
		fmt.Fprintf(&sb, "\n#%d %s — %d by seller %d", p.ID, format.EscapeMD(p.Title), p.Price, p.SellerID)
	}
	if len(pending) == 0 {
		sb.WriteString("\nThe queue is empty. 🎉")
	}

	rows := [][]keyboard.InlineBtn{}
	if hi > lo {
		// decision buttons target the first listing of the visible page
		first := pending[lo]
		rows = append(rows, []keyboard.InlineBtn{
			{Text: fmt.Sprintf("✅ Approve #%d", first.ID), Unique: "mod_approve", Data: strconv.FormatInt(first.ID, 10)},
			{Text: fmt.Sprintf("🚫 Reject #%d", first.ID), Unique: "mod_reject", Data: strconv.FormatInt(first.ID, 10)},
		})
	}
	rows = append(rows, navRows(panelPending, page, hasPrev, hasNext)...)
	return tghelpers.EditOrSendMD(c, sb.String(), keyboard.InlineButtonsRows(rows...))
}

func (n *Navigator) renderUsers(c tele.Context, page int) error {
	users := n.bot.users.List()
	lo, hi, hasPrev, hasNext := pageWindow(len(users), page, pageSize)

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Users* (%d) — page %d\n", len(users), page+1)
	for _, u := range users[lo:hi] {
		flag := ""
		if u.Banned {
			flag = " 🚫"
		}
		fmt.Fprintf(&sb, "\n%d %s%s", u.ID, format.EscapeMD(u.Name), flag)
	}

	rows := [][]keyboard.InlineBtn{}
	if hi > lo {
		// the ban toggle targets the first user of the visible page
		first := users[lo]
		if first.Banned {
			rows = append(rows, []keyboard.InlineBtn{{
				Text: fmt.Sprintf("✅ Unban %d", first.ID), Unique: "usr_unban", Data: strconv.FormatInt(first.ID, 10),
			}})
		} else {
			rows = append(rows, []keyboard.InlineBtn{{
				Text: fmt.Sprintf("🚫 Ban %d", first.ID), Unique: "usr_ban", Data: strconv.FormatInt(first.ID, 10),
			}})
		}
	}
	rows = append(rows, navRows(panelUsers, page, hasPrev, hasNext)...)
	return tghelpers.EditOrSendMD(c, sb.String(), keyboard.InlineButtonsRows(rows...))
}

func (n *Navigator) renderChats(c tele.Context, page int) error {
	sessions := n.bot.chats.Sessions()
	lo, hi, hasPrev, hasNext := pageWindow(len(sessions), page, pageSize)

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Active chats* (%d)\n", len(sessions))
	for _, s := range sessions[lo:hi] {
		fmt.Fprintf(&sb, "\nproduct %d: buyer %d ↔ seller %d (%d messages)", s.ProductID, s.BuyerID, s.SellerID, len(s.Messages))
	}
	if len(sessions) == 0 {
		sb.WriteString("\nNo chats are running.")
	}

	rows := navRows(panelChats, page, hasPrev, hasNext)
	return tghelpers.EditOrSendMD(c, sb.String(), keyboard.InlineButtonsRows(rows...))
}

func (n *Navigator) renderBroadcast(c tele.Context, _ int) error {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "📣 All users", Unique: "bcast_scope", Data: string(models.ScopeAllUsers)},
			{Text: "🧪 Admins only", Unique: "bcast_scope", Data: string(models.ScopeAdmins)},
		},
		[]keyboard.InlineBtn{
			{Text: "🔙 Back", Unique: "nav_back", Data: ""},
			{Text: "🏠 Home", Unique: "nav_home", Data: ""},
		},
	)
	return tghelpers.EditOrSendMD(c, "*Broadcast*\nWho should receive the announcement?", markup)
}

func (n *Navigator) renderStats(c tele.Context, _ int) error {
	total, pending, approved, rejected := n.bot.listings.Counts()
	text := fmt.Sprintf(
		"*Marketplace stats*\nUsers: %d\nListings: %d (⏳ %d / ✅ %d / 🚫 %d)\nActive chats: %d",
		n.bot.users.Count(), total, pending, approved, rejected, n.bot.chats.Count(),
	)
	rows := navRows(panelStats, 0, false, false)
	return tghelpers.EditOrSendMD(c, text, keyboard.InlineButtonsRows(rows...))
}

func (n *Navigator) renderSettings(c tele.Context, _ int) error {
	text := fmt.Sprintf(
		"*Runtime*\nVersion: %s (%s)\nRun mode: %s\nAdmins: %d",
		buildinfo.Version, buildinfo.Commit,
		n.bot.cfg.Telegram.RunMode, len(n.bot.cfg.Telegram.AdminIDs),
	)
	rows := navRows(panelSettings, 0, false, false)
	return tghelpers.EditOrSendMD(c, text, keyboard.InlineButtonsRows(rows...))
}

func (b *Bot) registerNavCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback("nav_open", b.adminOnlyCallback(func(c tele.Context) error {
		return b.nav.Open(c, panelID(callbacks.CallbackPayload(c)), 0)
	}))
	_ = reg.RegisterCallback("nav_page", b.adminOnlyCallback(func(c tele.Context) error {
		parts, err := callbacks.PayloadParts(c, "|")
		if err != nil || len(parts) != 2 {
			return b.nav.Refresh(c)
		}
		page, err := strconv.Atoi(parts[1])
		if err != nil || page < 0 {
			page = 0
		}
		return b.nav.Open(c, panelID(parts[0]), page)
	}))
	_ = reg.RegisterCallback("nav_back", b.adminOnlyCallback(b.nav.Back))
	_ = reg.RegisterCallback("nav_home", b.adminOnlyCallback(b.nav.Home))
}

// adminOnlyCallback rejects callback presses from non-administrators. Inline
// buttons can outlive permission changes, so the check runs per press.
func (b *Bot) adminOnlyCallback(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !b.isAdmin(c.Sender().ID) {
			_ = c.Respond(&tele.CallbackResponse{Text: "Administrators only."})
			return nil
		}
		return next(c)
	}
}
