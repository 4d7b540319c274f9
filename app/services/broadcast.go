package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/freshmanacadamy/gebeyabot/app/market"
	"github.com/freshmanacadamy/gebeyabot/app/models"
	"github.com/freshmanacadamy/gebeyabot/app/storage"
	"github.com/freshmanacadamy/gebeyabot/core/logger"

	"github.com/google/uuid"
)

const (
	// progressEvery is the cadence of progress reports during a fan-out.
	progressEvery = 10
	// defaultSendDelay paces deliveries to respect transport rate limits.
	defaultSendDelay = 100 * time.Millisecond
)

// Broadcast composes and runs announcement fan-outs. Jobs are held in memory
// keyed by an opaque token; confirmation callbacks carry the token only, so
// the recipient scope and text are replayed from the stored draft.
type Broadcast struct {
	store  *storage.Store
	gw     Gateway
	admins []int64
	delay  time.Duration

	mu   sync.Mutex
	jobs map[string]*models.BroadcastJob
}

// NewBroadcast builds the broadcast service.
func NewBroadcast(store *storage.Store, gw Gateway, admins []int64) *Broadcast {
	return &Broadcast{
		store:  store,
		gw:     gw,
		admins: admins,
		delay:  defaultSendDelay,
		jobs:   make(map[string]*models.BroadcastJob),
	}
}

func (b *Broadcast) isAdmin(userID int64) bool {
	for _, id := range b.admins {
		if id == userID {
			return true
		}
	}
	return false
}

// Compose opens a new draft for the requester with a snapshot of the chosen
// recipient scope and returns its token. Only administrators may broadcast;
// the check holds even if a stale inline button reaches a demoted account.
func (b *Broadcast) Compose(requesterID int64, scope models.BroadcastScope) (*models.BroadcastJob, error) {
	if !b.isAdmin(requesterID) {
		return nil, market.Permission("only administrators can send broadcasts")
	}

	var recipients []int64
	switch scope {
	case models.ScopeAdmins:
		recipients = append(recipients, b.admins...)
	case models.ScopeAllUsers:
		for _, u := range b.store.ListUsers() {
			recipients = append(recipients, u.ID)
		}
	default:
		return nil, market.Validation("unknown broadcast scope %q", scope)
	}

	job := &models.BroadcastJob{
		Token:       uuid.NewString(),
		RequesterID: requesterID,
		Scope:       scope,
		Recipients:  recipients,
		Status:      models.BroadcastComposing,
		CreatedAt:   time.Now().UTC(),
	}

	b.mu.Lock()
	b.jobs[job.Token] = job
	b.mu.Unlock()

	logger.SVCBroadcast.Info("broadcast composed",
		slog.String("event", "compose"),
		slog.String("job", job.Token),
		slog.String("scope", string(scope)),
		slog.Int("recipients", len(recipients)),
	)
	return job, nil
}

// SetText attaches the message text and moves the job to
// awaiting-confirmation.
func (b *Broadcast) SetText(token, text string) (*models.BroadcastJob, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, market.Validation("broadcast text must not be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[token]
	if !ok {
		return nil, market.NotFound("broadcast draft expired, start again")
	}
	if job.Status != models.BroadcastComposing {
		return nil, market.Conflict("broadcast is already %s", job.Status)
	}
	job.Text = text
	job.Status = models.BroadcastAwaiting
	snapshot := *job
	return &snapshot, nil
}

// Get returns the job for the given token.
func (b *Broadcast) Get(token string) (*models.BroadcastJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[token]
	if !ok {
		return nil, market.NotFound("broadcast draft expired, start again")
	}
	snapshot := *job
	return &snapshot, nil
}

// Cancel aborts a job that has not started sending. No messages go out.
func (b *Broadcast) Cancel(token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	job, ok := b.jobs[token]
	if !ok {
		return market.NotFound("broadcast draft expired")
	}
	if job.Status == models.BroadcastSending || job.Status == models.BroadcastCompleted {
		return market.Conflict("broadcast is already %s", job.Status)
	}
	job.Status = models.BroadcastCancelled
	logger.SVCBroadcast.Info("broadcast cancelled",
		slog.String("event", "cancel"),
		slog.String("job", token),
	)
	return nil
}

// Confirm transitions the job to sending and runs the fan-out in the
// background. The returned job is the snapshot at confirmation time.
func (b *Broadcast) Confirm(ctx context.Context, token string) (*models.BroadcastJob, error) {
	b.mu.Lock()
	job, ok := b.jobs[token]
	if !ok {
		b.mu.Unlock()
		return nil, market.NotFound("broadcast draft expired, start again")
	}
	if job.Status != models.BroadcastAwaiting {
		status := job.Status
		b.mu.Unlock()
		return nil, market.Conflict("broadcast is already %s", status)
	}
	job.Status = models.BroadcastSending
	snapshot := *job
	b.mu.Unlock()

	go b.run(ctx, token)
	return &snapshot, nil
}

// run is the fan-out loop: sequential sends with a pacing delay, failures
// counted rather than aborting, progress every progressEvery deliveries and
// a final report with the success rate. There is no user-facing mid-flight
// cancel; the loop stops early only when ctx is done (process shutdown).
func (b *Broadcast) run(ctx context.Context, token string) {
	b.mu.Lock()
	job, ok := b.jobs[token]
	if !ok {
		b.mu.Unlock()
		return
	}
	requester := job.RequesterID
	recipients := append([]int64(nil), job.Recipients...)
	text := job.Text
	b.mu.Unlock()

	start := time.Now()
	announcement := "📣 " + text

	var sent, failed int
	var progressRef MessageRef
	var haveProgress bool
	for i, recipientID := range recipients {
		if ctx.Err() != nil {
			logger.SVCBroadcast.Warn("broadcast interrupted by shutdown",
				slog.String("event", "run"),
				slog.String("job", token),
				slog.Int("sent", sent),
				slog.Int("failed", failed),
			)
			break
		}

		if _, err := b.gw.Send(ctx, recipientID, announcement); err != nil {
			failed++
			logger.SVCBroadcast.Debug("broadcast delivery failed",
				slog.String("event", "run"),
				slog.String("job", token),
				slog.Int64("user_id", recipientID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
			)
		} else {
			sent++
		}

		b.mu.Lock()
		job.Sent = sent
		job.Failed = failed
		b.mu.Unlock()

		done := sent + failed
		if done%progressEvery == 0 && done < len(recipients) {
			status := fmt.Sprintf("Broadcast progress: %d/%d delivered, %d failed", sent, len(recipients), failed)
			// one progress message, edited in place as the job advances
			if !haveProgress {
				if ref, err := b.gw.Send(ctx, requester, status); err == nil {
					progressRef = ref
					haveProgress = true
				}
			} else if err := b.gw.Edit(ctx, progressRef, status); err != nil {
				logger.SVCBroadcast.Warn("broadcast progress update failed",
					slog.String("event", "report"),
					slog.String("job", token),
					slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
				)
			}
		}

		if i < len(recipients)-1 && b.delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(b.delay):
			}
		}
	}

	b.mu.Lock()
	job.Sent = sent
	job.Failed = failed
	job.Status = models.BroadcastCompleted
	b.mu.Unlock()

	rate := 0.0
	if len(recipients) > 0 {
		rate = float64(sent) / float64(len(recipients)) * 100
	}
	logger.SVCBroadcast.Info("broadcast completed",
		slog.String("event", "run"),
		slog.String("job", token),
		slog.Int("recipients", len(recipients)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	b.report(ctx, requester,
		fmt.Sprintf("Broadcast finished: %d sent, %d failed (%.1f%% success)", sent, failed, rate))
}

func (b *Broadcast) report(ctx context.Context, requesterID int64, text string) {
	if _, err := b.gw.Send(ctx, requesterID, text); err != nil {
		logger.SVCBroadcast.Warn("broadcast report failed",
			slog.String("event", "report"),
			slog.Int64("user_id", requesterID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 200)),
		)
	}
}
