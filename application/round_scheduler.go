package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"taixiu/models"
	"taixiu/service"
)

// retryDelay is how long the scheduler waits after a failed step
const retryDelay = 2 * time.Second

// RoundScheduler drives rounds through betting, rolling and cooldown.
// All state lives in the database, so a restarted scheduler resumes wherever
// the previous process stopped.
type RoundScheduler struct {
	rounds   service.RoundService
	cooldown time.Duration
	now      func() time.Time
	wake     chan struct{}
}

// NewRoundScheduler creates a new round scheduler
func NewRoundScheduler(rounds service.RoundService, cooldown time.Duration) *RoundScheduler {
	return &RoundScheduler{
		rounds:   rounds,
		cooldown: cooldown,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// Nudge makes the scheduler re-read the round state without waiting for its timer,
// e.g. after an admin rolled the round early
func (s *RoundScheduler) Nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start begins the scheduler loop and returns a function that stops it
func (s *RoundScheduler) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("cooldown", s.cooldown).Info("Round scheduler started")

		for {
			wait, err := s.Tick(ctx)
			if err != nil {
				log.WithError(err).Error("Round scheduler step failed")
				wait = retryDelay
			}

			select {
			case <-ctx.Done():
				log.Info("Round scheduler shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Round scheduler shutting down (stop requested)...")
				return
			case <-s.wake:
				// State changed elsewhere, loop to re-read it
			case <-time.After(wait):
				// Timer fired, loop to process
			}
		}
	}()

	// Return cleanup function
	return func() {
		close(stopChan)
	}
}

// Tick performs the step due for the current round and returns how long to wait before the next one
func (s *RoundScheduler) Tick(ctx context.Context) (time.Duration, error) {
	round, err := s.rounds.GetCurrentRound(ctx)
	if errors.Is(err, service.ErrRoundNotFound) {
		return s.open(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get current round: %w", err)
	}

	now := s.now()

	switch round.Status {
	case models.RoundStatusBetting:
		if !round.IsBettingWindowElapsed(now) {
			return round.BettingEndsAt.Sub(now), nil
		}
		if _, err := s.rounds.TriggerRoll(ctx, round.ID); err != nil && !errors.Is(err, service.ErrAlreadySettled) {
			return 0, fmt.Errorf("failed to roll round %d: %w", round.ID, err)
		}
		return 0, nil

	case models.RoundStatusRolling:
		// Left over from a crash between lock and settlement
		log.WithField("round_id", round.ID).Warn("Resuming round stuck in rolling")
		if _, err := s.rounds.CompleteRound(ctx, round.ID); err != nil && !errors.Is(err, service.ErrAlreadySettled) {
			return 0, fmt.Errorf("failed to complete round %d: %w", round.ID, err)
		}
		return 0, nil

	case models.RoundStatusFinished:
		finishedAt := round.CreatedAt
		if round.FinishedAt != nil {
			finishedAt = *round.FinishedAt
		}
		if remaining := finishedAt.Add(s.cooldown).Sub(now); remaining > 0 {
			return remaining, nil
		}
		return s.open(ctx)
	}

	return 0, fmt.Errorf("round %d has unknown status %q", round.ID, round.Status)
}

func (s *RoundScheduler) open(ctx context.Context) (time.Duration, error) {
	round, err := s.rounds.OpenRound(ctx)
	if errors.Is(err, service.ErrRoundAlreadyActive) {
		// Another instance opened it first
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open round: %w", err)
	}
	return round.BettingEndsAt.Sub(s.now()), nil
}
