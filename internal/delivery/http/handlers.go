package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/service"
)

type ReviewUsecase interface {
	Submit(ctx context.Context, learnerID, flashcardID uuid.UUID, rating entities.Rating, now time.Time) (*service.ReviewOutcome, error)
	Preview(ctx context.Context, learnerID, flashcardID uuid.UUID, now time.Time) (map[entities.Rating]*service.ReviewOutcome, error)
	Get(ctx context.Context, learnerID, flashcardID uuid.UUID) (*entities.ReviewState, error)
	History(ctx context.Context, learnerID, flashcardID uuid.UUID) ([]*entities.ReviewLog, error)
	Rebuild(ctx context.Context, learnerID, flashcardID uuid.UUID, now time.Time) (*entities.ReviewState, error)
	Retrievability(state *entities.ReviewState, now time.Time) float64
}

type StudyUsecase interface {
	DueItems(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time) (*entities.DueSet, error)
	Session(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time, limit int) ([]uuid.UUID, error)
}

type ProgressUsecase interface {
	TopicProgress(ctx context.Context, learnerID, topicID uuid.UUID, now time.Time) (*entities.TopicProgress, error)
	RecordAssessment(ctx context.Context, learnerID, topicID uuid.UUID, answers []entities.AssessmentAnswer, now time.Time) (*entities.TopicProgress, error)
	AllProgress(ctx context.Context, learnerID uuid.UUID, now time.Time) (map[uuid.UUID]int, error)
}

type ResetUsecase interface {
	ResetTopic(ctx context.Context, learnerID, topicID uuid.UUID) error
}

type NotificationUsecase interface {
	Subscribe(ctx context.Context, n *entities.LearnerNotification) error
}

var (
	errInvalidBody = errors.New("invalid request body")
	errInvalidID   = errors.New("invalid id")
)

type reviewOutcomeResponse struct {
	FlashcardID     uuid.UUID       `json:"flashcardId"`
	Rating          entities.Rating `json:"rating"`
	Due             time.Time       `json:"due"`
	State           entities.State  `json:"state"`
	IntervalSeconds int64           `json:"intervalSeconds"`
	ScheduledDays   float64         `json:"scheduledDays"`
	Stability       float64         `json:"stability"`
	Difficulty      float64         `json:"difficulty"`
	Reps            int             `json:"reps"`
	Lapses          int             `json:"lapses"`
}

func newReviewOutcomeResponse(o *service.ReviewOutcome) reviewOutcomeResponse {
	return reviewOutcomeResponse{
		FlashcardID:     o.FlashcardID,
		Rating:          o.Rating,
		Due:             o.Due,
		State:           o.State,
		IntervalSeconds: int64(o.Interval / time.Second),
		ScheduledDays:   o.ScheduledDays,
		Stability:       o.Stability,
		Difficulty:      o.Difficulty,
		Reps:            o.Reps,
		Lapses:          o.Lapses,
	}
}

type reviewStateResponse struct {
	FlashcardID    uuid.UUID      `json:"flashcardId"`
	TopicID        uuid.UUID      `json:"topicId"`
	Due            time.Time      `json:"due"`
	State          entities.State `json:"state"`
	Stability      float64        `json:"stability"`
	Difficulty     float64        `json:"difficulty"`
	ElapsedDays    float64        `json:"elapsedDays"`
	ScheduledDays  float64        `json:"scheduledDays"`
	Reps           int            `json:"reps"`
	Lapses         int            `json:"lapses"`
	LearningSteps  int            `json:"learningSteps"`
	LastReview     *time.Time     `json:"lastReview,omitempty"`
	Retrievability float64        `json:"retrievability"`
}

type reviewLogResponse struct {
	Rating        entities.Rating `json:"rating"`
	State         entities.State  `json:"state"`
	Due           time.Time       `json:"due"`
	Stability     float64         `json:"stability"`
	Difficulty    float64         `json:"difficulty"`
	ElapsedDays   float64         `json:"elapsedDays"`
	ScheduledDays float64         `json:"scheduledDays"`
	ReviewedAt    time.Time       `json:"reviewedAt"`
}

// ReviewHandler serves rating submission and review state reads.
type ReviewHandler struct {
	reviews ReviewUsecase
	logger  *zap.Logger
	now     func() time.Time
}

func NewReviewHandler(reviews ReviewUsecase, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger, now: time.Now}
}

type submitReviewRequest struct {
	FlashcardID string `json:"flashcardId" binding:"required"`
	Rating      *int   `json:"rating" binding:"required"`
}

// Submit handles POST /api/reviews.
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errInvalidBody)
		return
	}

	flashcardID, err := uuid.Parse(req.FlashcardID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errInvalidID)
		return
	}

	rating, err := entities.ParseRating(*req.Rating)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out, err := h.reviews.Submit(c.Request.Context(), learnerID(c), flashcardID, rating, h.now().UTC())
	if err != nil {
		h.fail(c, "submit review", err)
		return
	}

	RespondOK(c, newReviewOutcomeResponse(out))
}

// Get handles GET /api/reviews/:flashcardId.
func (h *ReviewHandler) Get(c *gin.Context) {
	flashcardID, ok := pathID(c, "flashcardId")
	if !ok {
		return
	}

	state, err := h.reviews.Get(c.Request.Context(), learnerID(c), flashcardID)
	if err != nil {
		h.fail(c, "get review state", err)
		return
	}

	RespondOK(c, h.stateResponse(state))
}

// Rebuild handles POST /api/reviews/:flashcardId/rebuild.
func (h *ReviewHandler) Rebuild(c *gin.Context) {
	flashcardID, ok := pathID(c, "flashcardId")
	if !ok {
		return
	}

	state, err := h.reviews.Rebuild(c.Request.Context(), learnerID(c), flashcardID, h.now().UTC())
	if err != nil {
		h.fail(c, "rebuild review state", err)
		return
	}

	RespondOK(c, h.stateResponse(state))
}

func (h *ReviewHandler) stateResponse(state *entities.ReviewState) reviewStateResponse {
	return reviewStateResponse{
		FlashcardID:    state.FlashcardID,
		TopicID:        state.TopicID,
		Due:            state.Due,
		State:          state.State,
		Stability:      state.Stability,
		Difficulty:     state.Difficulty,
		ElapsedDays:    state.ElapsedDays,
		ScheduledDays:  state.ScheduledDays,
		Reps:           state.Reps,
		Lapses:         state.Lapses,
		LearningSteps:  state.LearningSteps,
		LastReview:     state.LastReview,
		Retrievability: h.reviews.Retrievability(state, h.now().UTC()),
	}
}

// Preview handles GET /api/reviews/:flashcardId/preview.
func (h *ReviewHandler) Preview(c *gin.Context) {
	flashcardID, ok := pathID(c, "flashcardId")
	if !ok {
		return
	}

	preview, err := h.reviews.Preview(c.Request.Context(), learnerID(c), flashcardID, h.now().UTC())
	if err != nil {
		h.fail(c, "preview review", err)
		return
	}

	out := make(map[string]reviewOutcomeResponse, len(preview))
	for rating, o := range preview {
		out[rating.String()] = newReviewOutcomeResponse(o)
	}
	RespondOK(c, out)
}

// History handles GET /api/reviews/:flashcardId/history.
func (h *ReviewHandler) History(c *gin.Context) {
	flashcardID, ok := pathID(c, "flashcardId")
	if !ok {
		return
	}

	logs, err := h.reviews.History(c.Request.Context(), learnerID(c), flashcardID)
	if err != nil {
		h.fail(c, "review history", err)
		return
	}

	out := make([]reviewLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, reviewLogResponse{
			Rating:        l.Rating,
			State:         l.State,
			Due:           l.Due,
			Stability:     l.Stability,
			Difficulty:    l.Difficulty,
			ElapsedDays:   l.ElapsedDays,
			ScheduledDays: l.ScheduledDays,
			ReviewedAt:    l.ReviewedAt,
		})
	}
	RespondOK(c, out)
}

func (h *ReviewHandler) fail(c *gin.Context, op string, err error) {
	logServiceError(h.logger, c, op, err)
	respondServiceError(c, err)
}

// TopicHandler serves the study queue of a topic.
type TopicHandler struct {
	study  StudyUsecase
	logger *zap.Logger
	now    func() time.Time
}

func NewTopicHandler(study StudyUsecase, logger *zap.Logger) *TopicHandler {
	return &TopicHandler{study: study, logger: logger, now: time.Now}
}

// Due handles GET /api/topics/:id/due.
func (h *TopicHandler) Due(c *gin.Context) {
	topicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	set, err := h.study.DueItems(c.Request.Context(), learnerID(c), topicID, h.now().UTC())
	if err != nil {
		logServiceError(h.logger, c, "due items", err)
		respondServiceError(c, err)
		return
	}

	RespondOK(c, set)
}

// Session handles GET /api/topics/:id/session?limit=N.
func (h *TopicHandler) Session(c *gin.Context) {
	topicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	items, err := h.study.Session(c.Request.Context(), learnerID(c), topicID, h.now().UTC(), limit)
	if err != nil {
		logServiceError(h.logger, c, "study session", err)
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"items": items})
}

// ProgressHandler serves topic progress and assessment results.
type ProgressHandler struct {
	progress ProgressUsecase
	resets   ResetUsecase
	logger   *zap.Logger
	now      func() time.Time
}

func NewProgressHandler(progress ProgressUsecase, resets ResetUsecase, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, resets: resets, logger: logger, now: time.Now}
}

// Topic handles GET /api/topics/:id/progress.
func (h *ProgressHandler) Topic(c *gin.Context) {
	topicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.progress.TopicProgress(c.Request.Context(), learnerID(c), topicID, h.now().UTC())
	if err != nil {
		logServiceError(h.logger, c, "topic progress", err)
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"progress": p, "percent": p.Percent()})
}

// Reset handles DELETE /api/topics/:id/progress.
func (h *ProgressHandler) Reset(c *gin.Context) {
	topicID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.resets.ResetTopic(c.Request.Context(), learnerID(c), topicID); err != nil {
		logServiceError(h.logger, c, "reset topic", err)
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// All handles GET /api/progress.
func (h *ProgressHandler) All(c *gin.Context) {
	all, err := h.progress.AllProgress(c.Request.Context(), learnerID(c), h.now().UTC())
	if err != nil {
		logServiceError(h.logger, c, "all progress", err)
		respondServiceError(c, err)
		return
	}

	out := make(map[string]int, len(all))
	for topicID, percent := range all {
		out[topicID.String()] = percent
	}
	RespondOK(c, out)
}

type assessmentRequest struct {
	TopicID            string                      `json:"topicId" binding:"required"`
	CompletedQuestions []entities.AssessmentAnswer `json:"completedQuestions"`
}

// Assessment handles POST /api/progress/assessment.
func (h *ProgressHandler) Assessment(c *gin.Context) {
	var req assessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errInvalidBody)
		return
	}

	topicID, err := uuid.Parse(req.TopicID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errInvalidID)
		return
	}

	p, err := h.progress.RecordAssessment(c.Request.Context(), learnerID(c), topicID, req.CompletedQuestions, h.now().UTC())
	if err != nil {
		logServiceError(h.logger, c, "record assessment", err)
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"progress": p, "percent": p.Percent()})
}

// NotificationHandler manages reminder subscriptions.
type NotificationHandler struct {
	notifications NotificationUsecase
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationUsecase, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

type notificationRequest struct {
	ChatID   int64  `json:"chatId" binding:"required"`
	Timezone string `json:"timezone"`
	Enabled  *bool  `json:"enabled"`
}

// Put handles PUT /api/notifications.
func (h *NotificationHandler) Put(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errInvalidBody)
		return
	}

	n := &entities.LearnerNotification{
		LearnerID: learnerID(c),
		ChatID:    req.ChatID,
		Timezone:  req.Timezone,
		Enabled:   req.Enabled == nil || *req.Enabled,
	}
	if err := h.notifications.Subscribe(c.Request.Context(), n); err != nil {
		logServiceError(h.logger, c, "subscribe notifications", err)
		respondServiceError(c, err)
		return
	}

	RespondOK(c, n)
}

func HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func logServiceError(logger *zap.Logger, c *gin.Context, op string, err error) {
	_ = c.Error(err)
	logger.Debug(op+" failed",
		zap.String("learner_id", learnerID(c).String()),
		zap.Error(err),
	)
}
