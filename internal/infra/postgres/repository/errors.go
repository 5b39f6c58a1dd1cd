package repository

import "errors"

var (
	ErrReviewStateNotFound = errors.New("review state not found")
	ErrFlashcardNotFound   = errors.New("flashcard not found")
	ErrTopicNotFound       = errors.New("topic not found")
	ErrProgressNotFound    = errors.New("progress not found")
	ErrReminderNotFound    = errors.New("reminder not found")

	// ErrOptimisticLock is returned when a review state changed between read and write.
	ErrOptimisticLock = errors.New("review state was modified by another process")
)
