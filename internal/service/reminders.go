package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atharva0712/revision-app/internal/domain/entities"
)

const (
	reminderBatchSize     = 100
	maxConcurrentReminder = 10
)

var (
	ErrNotifierNotSet      = errors.New("reminder notifier not set")
	ErrInvalidNotification = errors.New("invalid notification settings")
)

type ReminderConfig struct {
	Schedule string // cron spec, evaluated in UTC
	Window   entities.ReminderWindow
}

// ReminderService notifies learners who have flashcards due.
type ReminderService struct {
	reminderRepo ReminderRepository
	notifier     ReminderNotifier
	cfg          ReminderConfig
	logger       *zap.Logger
}

func NewReminderService(reminderRepo ReminderRepository, cfg ReminderConfig, logger *zap.Logger) *ReminderService {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	return &ReminderService{
		reminderRepo: reminderRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// SetNotifier sets the notifier (called after the delivery layer is created).
func (s *ReminderService) SetNotifier(notifier ReminderNotifier) {
	s.notifier = notifier
}

// Subscribe enables or updates reminders for a learner.
func (s *ReminderService) Subscribe(ctx context.Context, n *entities.LearnerNotification) error {
	if n.Timezone == "" {
		n.Timezone = "UTC"
	}
	if _, err := entities.LoadTimezone(n.Timezone); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNotification, err)
	}
	if n.ChatID == 0 {
		return fmt.Errorf("%w: chat id is required", ErrInvalidNotification)
	}

	if err := s.reminderRepo.Upsert(ctx, n); err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}

	s.logger.Info("reminder subscription updated",
		zap.String("learner_id", n.LearnerID.String()),
		zap.Bool("enabled", n.Enabled),
		zap.String("timezone", n.Timezone),
	)
	return nil
}

// Start runs the reminder cron until ctx is cancelled.
func (s *ReminderService) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.SendDueReminders(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("failed to send due reminders", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	c.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", s.cfg.Schedule))

	<-ctx.Done()

	<-c.Stop().Done()
	s.logger.Info("reminder scheduler stopped")
	return nil
}

// SendDueReminders walks all learners with due cards in batches and sends
// the ones whose window allows it. It returns how many were sent.
func (s *ReminderService) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	if s.notifier == nil {
		return 0, ErrNotifierNotSet
	}

	// Sending moves last_sent_at, so pages follow learner ids rather than offsets.
	sentBefore := now.Add(-s.cfg.Window.MinInterval)
	after := uuid.Nil

	total := 0
	for {
		batch, err := s.reminderRepo.GetDueRemindersBatch(ctx, now, sentBefore, after, reminderBatchSize)
		if err != nil {
			return total, fmt.Errorf("get due reminders batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		total += s.processBatch(ctx, batch, now)
		after = batch[len(batch)-1].LearnerID

		if len(batch) < reminderBatchSize {
			break
		}
	}

	s.logger.Info("reminders processed", zap.Int("total_sent", total), zap.Time("now", now))
	return total, nil
}

func (s *ReminderService) processBatch(ctx context.Context, batch []*entities.DueReminder, now time.Time) int {
	var sent atomic.Int64

	var g errgroup.Group
	g.SetLimit(maxConcurrentReminder)

	for _, r := range batch {
		g.Go(func() error {
			ok, err := s.processReminder(ctx, r, now)
			if err != nil {
				s.logger.Error("failed to process reminder",
					zap.String("learner_id", r.LearnerID.String()),
					zap.Error(err),
				)
				return nil
			}
			if ok {
				sent.Add(1)
			}
			return nil
		})
	}

	_ = g.Wait()
	return int(sent.Load())
}

func (s *ReminderService) processReminder(ctx context.Context, r *entities.DueReminder, now time.Time) (bool, error) {
	if !r.CanSendNow(now, s.cfg.Window) {
		return false, nil
	}

	if err := s.notifier.SendReminder(r.ChatID, r.Payload()); err != nil {
		return false, fmt.Errorf("send notification: %w", err)
	}

	if err := s.reminderRepo.MarkAsSent(ctx, r.LearnerID, now); err != nil {
		return false, fmt.Errorf("mark as sent: %w", err)
	}

	s.logger.Debug("reminder sent",
		zap.String("learner_id", r.LearnerID.String()),
		zap.Int("due_count", r.DueCount),
	)
	return true, nil
}
