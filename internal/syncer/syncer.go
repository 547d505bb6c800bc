// Package syncer uploads ratings captured offline to the ratings API.
package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/internal/client"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = 30 * time.Second
	DefaultMaxBackoff  = 8 * time.Minute
)

// PendingRating is one queued rating plus its upload bookkeeping.
type PendingRating struct {
	LocalID         string     `json:"id"`
	Identifier      string     `json:"identifier"`
	Rating          int        `json:"rating"`
	Comments        *string    `json:"comments,omitempty"`
	Timestamp       string     `json:"timestamp,omitempty"`
	Synced          bool       `json:"synced"`
	SyncAttempts    int        `json:"syncAttempts"`
	LastSyncAttempt *time.Time `json:"lastSyncAttempt,omitempty"`
	ServerID        int64      `json:"serverId,omitempty"`
}

// Pusher submits a single rating. *client.Client satisfies it.
type Pusher interface {
	CreateRating(ctx context.Context, req client.CreateRequest) (int64, error)
}

// Summary counts the outcome of one Run.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Options tunes the retry policy. Zero values fall back to the defaults.
type Options struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

// Syncer pushes unsynced ratings one at a time.
type Syncer struct {
	pusher      Pusher
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// New builds a Syncer around pusher.
func New(pusher Pusher, opts Options) *Syncer {
	s := &Syncer{
		pusher:      pusher,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		maxBackoff:  opts.MaxBackoff,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if s.baseBackoff <= 0 {
		s.baseBackoff = DefaultBaseBackoff
	}
	if s.maxBackoff <= 0 {
		s.maxBackoff = DefaultMaxBackoff
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Backoff is the wait required after the given number of failed attempts:
// base doubled per extra attempt, capped at max. Zero attempts need no wait.
func (s *Syncer) Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	wait := s.baseBackoff
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= s.maxBackoff {
			return s.maxBackoff
		}
	}
	if wait > s.maxBackoff {
		return s.maxBackoff
	}
	return wait
}

// Run pushes every eligible item and updates items in place. It stops early
// when ctx is canceled, leaving the remaining items untouched.
func (s *Syncer) Run(ctx context.Context, items []PendingRating) (Summary, error) {
	start := s.now()
	var summary Summary

	for i := range items {
		if err := ctx.Err(); err != nil {
			summary.Duration = s.now().Sub(start)
			return summary, err
		}

		item := &items[i]
		if item.Synced {
			continue
		}
		if item.SyncAttempts >= s.maxRetries {
			s.logger.Warn("rating exceeded maximum retry attempts",
				zap.String("local_id", item.LocalID),
				zap.Int("max_retries", s.maxRetries),
			)
			summary.Skipped++
			continue
		}
		if item.SyncAttempts > 0 && item.LastSyncAttempt != nil {
			wait := s.Backoff(item.SyncAttempts)
			if elapsed := s.now().Sub(*item.LastSyncAttempt); elapsed < wait {
				s.logger.Debug("backoff not elapsed",
					zap.String("local_id", item.LocalID),
					zap.Duration("next_attempt_in", wait-elapsed),
				)
				summary.Skipped++
				continue
			}
		}

		id, err := s.pusher.CreateRating(ctx, client.CreateRequest{
			Identifier: item.Identifier,
			Rating:     item.Rating,
			Comments:   item.Comments,
			Timestamp:  item.Timestamp,
		})
		if err != nil {
			attemptAt := s.now()
			item.SyncAttempts++
			item.LastSyncAttempt = &attemptAt
			summary.Failed++
			if client.IsValidation(err) {
				s.logger.Warn("server rejected rating",
					zap.String("local_id", item.LocalID),
					zap.Int("attempt", item.SyncAttempts),
					zap.Error(err),
				)
				continue
			}
			s.logger.Error("failed to sync rating",
				zap.String("local_id", item.LocalID),
				zap.Int("attempt", item.SyncAttempts),
				zap.Int("max_retries", s.maxRetries),
				zap.Error(err),
			)
			continue
		}

		item.Synced = true
		item.ServerID = id
		summary.Succeeded++
	}

	summary.Duration = s.now().Sub(start)
	s.logger.Info("sync completed",
		zap.Duration("duration", summary.Duration),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// Pending counts the items that still need uploading.
func Pending(items []PendingRating) int {
	n := 0
	for _, item := range items {
		if !item.Synced {
			n++
		}
	}
	return n
}
