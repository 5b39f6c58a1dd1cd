package postgres

import (
	"context"
	"fmt"
)

const schema = `
	CREATE TABLE IF NOT EXISTS topics (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'processing',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_topics_user ON topics (user_id);

	CREATE TABLE IF NOT EXISTS flashcards (
		id       UUID PRIMARY KEY,
		topic_id UUID NOT NULL REFERENCES topics (id) ON DELETE CASCADE,
		sequence INT NOT NULL DEFAULT 0,
		front    TEXT NOT NULL,
		back     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_flashcards_topic ON flashcards (topic_id, sequence);

	CREATE TABLE IF NOT EXISTS review_states (
		learner_id     UUID NOT NULL,
		flashcard_id   UUID NOT NULL REFERENCES flashcards (id) ON DELETE CASCADE,
		topic_id       UUID NOT NULL REFERENCES topics (id) ON DELETE CASCADE,
		due            TIMESTAMPTZ NOT NULL,
		stability      DOUBLE PRECISION NOT NULL DEFAULT 0,
		difficulty     DOUBLE PRECISION NOT NULL DEFAULT 0,
		elapsed_days   DOUBLE PRECISION NOT NULL DEFAULT 0,
		scheduled_days DOUBLE PRECISION NOT NULL DEFAULT 0,
		reps           INT NOT NULL DEFAULT 0 CHECK (reps >= 0),
		lapses         INT NOT NULL DEFAULT 0 CHECK (lapses >= 0),
		learning_steps INT NOT NULL DEFAULT 0 CHECK (learning_steps >= 0),
		state          SMALLINT NOT NULL DEFAULT 0 CHECK (state BETWEEN 0 AND 3),
		last_review    TIMESTAMPTZ,
		version        BIGINT NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (learner_id, flashcard_id)
	);

	CREATE INDEX IF NOT EXISTS idx_review_states_due ON review_states (learner_id, due);
	CREATE INDEX IF NOT EXISTS idx_review_states_topic ON review_states (learner_id, topic_id, due);

	CREATE TABLE IF NOT EXISTS review_logs (
		id             BIGSERIAL PRIMARY KEY,
		learner_id     UUID NOT NULL,
		flashcard_id   UUID NOT NULL REFERENCES flashcards (id) ON DELETE CASCADE,
		rating         SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 4),
		state          SMALLINT NOT NULL CHECK (state BETWEEN 0 AND 3),
		due            TIMESTAMPTZ NOT NULL,
		stability      DOUBLE PRECISION NOT NULL,
		difficulty     DOUBLE PRECISION NOT NULL,
		elapsed_days   DOUBLE PRECISION NOT NULL,
		scheduled_days DOUBLE PRECISION NOT NULL,
		reviewed_at    TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs (learner_id, flashcard_id, reviewed_at);

	CREATE TABLE IF NOT EXISTS topic_progress (
		learner_id             UUID NOT NULL,
		topic_id               UUID NOT NULL REFERENCES topics (id) ON DELETE CASCADE,
		total                  INT NOT NULL DEFAULT 0,
		started                INT NOT NULL DEFAULT 0,
		mastered               INT NOT NULL DEFAULT 0,
		learning               INT NOT NULL DEFAULT 0,
		new_count              INT NOT NULL DEFAULT 0,
		topic_started_at       TIMESTAMPTZ,
		flashcards_mastered_at TIMESTAMPTZ,
		mastery_achieved_at    TIMESTAMPTZ,
		last_studied_at        TIMESTAMPTZ,
		assessment_attempts    INT NOT NULL DEFAULT 0,
		best_assessment_score  INT NOT NULL DEFAULT 0,
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (learner_id, topic_id)
	);

	CREATE TABLE IF NOT EXISTS learner_notifications (
		learner_id   UUID PRIMARY KEY,
		chat_id      BIGINT NOT NULL,
		enabled      BOOLEAN NOT NULL DEFAULT TRUE,
		timezone     TEXT NOT NULL DEFAULT 'UTC',
		last_sent_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// Migrate creates any missing tables and indexes. It is safe to run on every start.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
