package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kidlearn/stars-hub/internal/application/command"
	"github.com/kidlearn/stars-hub/internal/application/query"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness endpoint. A failing optional check
// keeps the service ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// CHILD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// ChildDTO is the wire form of a child profile.
type ChildDTO struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	Nickname              string  `json:"nickname,omitempty"`
	TotalStars            int     `json:"totalStars"`
	Level                 int     `json:"level"`
	Streak                int     `json:"streak"`
	LastActiveDate        *string `json:"lastActiveDate,omitempty"`
	TotalLessonsCompleted int     `json:"totalLessonsCompleted"`
	FavoriteModule        *string `json:"favoriteModule,omitempty"`
}

// handleCreateChild handles POST /api/v1/children
func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateChildCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}

	c, err := s.deps.CreateChild.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	dto := ChildDTO{
		ID:                    c.ID.String(),
		Name:                  c.Name,
		Nickname:              c.Nickname,
		TotalStars:            c.TotalStars,
		Level:                 c.Level,
		Streak:                c.Streak,
		TotalLessonsCompleted: c.TotalLessonsCompleted,
	}
	if c.LastActiveDate != nil {
		d := c.LastActiveDate.Format(time.DateOnly)
		dto.LastActiveDate = &d
	}
	if c.FavoriteModule != nil {
		f := c.FavoriteModule.String()
		dto.FavoriteModule = &f
	}
	writeJSON(w, r, http.StatusCreated, dto)
}

// handleDeleteChild handles DELETE /api/v1/children/{childID}
func (s *Server) handleDeleteChild(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DeleteChild.Handle(r.Context(), chi.URLParam(r, "childID")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptResponse is returned after an attempt is folded in.
type RecordAttemptResponse struct {
	Progress              query.ProgressRecordDTO `json:"progress"`
	StarsAdded            int                     `json:"starsAdded"`
	TotalStars            int                     `json:"totalStars"`
	Level                 int                     `json:"level"`
	LevelTitle            string                  `json:"levelTitle"`
	StarsToNextLevel      int                     `json:"starsToNextLevel"`
	LevelUp               bool                    `json:"levelUp"`
	Streak                int                     `json:"streak"`
	StreakOutcome         string                  `json:"streakOutcome"`
	TotalLessonsCompleted int                     `json:"totalLessonsCompleted"`
	FavoriteModule        *string                 `json:"favoriteModule,omitempty"`
}

func newRecordAttemptResponse(res *command.RecordAttemptResult) RecordAttemptResponse {
	out := RecordAttemptResponse{
		Progress:              query.NewProgressRecordDTO(res.Record),
		StarsAdded:            res.StarsAdded,
		TotalStars:            res.TotalStars,
		Level:                 res.Level,
		LevelTitle:            res.LevelTitle,
		StarsToNextLevel:      res.StarsToNextLevel,
		LevelUp:               res.LevelUp,
		Streak:                res.Streak,
		StreakOutcome:         res.StreakOutcome.String(),
		TotalLessonsCompleted: res.TotalLessonsCompleted,
	}
	if res.FavoriteModule != nil {
		f := res.FavoriteModule.String()
		out.FavoriteModule = &f
	}
	return out
}

// handleRecordAttempt handles POST /api/v1/children/{childID}/progress
func (s *Server) handleRecordAttempt(w http.ResponseWriter, r *http.Request) {
	var cmd command.RecordAttemptCommand
	if !decodeJSON(w, r, &cmd) {
		return
	}
	// The path wins over whatever the body says.
	cmd.ChildID = chi.URLParam(r, "childID")

	res, err := s.deps.RecordAttempt.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newRecordAttemptResponse(res))
}

// handleListProgress handles GET /api/v1/children/{childID}/progress
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.ListProgress.All(r.Context(), chi.URLParam(r, "childID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

// handleGetContentProgress handles GET /api/v1/children/{childID}/progress/{contentType}
func (s *Server) handleGetContentProgress(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.ListProgress.ByContentType(r.Context(),
		chi.URLParam(r, "childID"),
		chi.URLParam(r, "contentType"),
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, records, &ResponseMeta{TotalCount: len(records)})
}

// handleGetProgressSummary handles GET /api/v1/children/{childID}/progress/summary
func (s *Server) handleGetProgressSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.ProgressSummary.Handle(r.Context(), chi.URLParam(r, "childID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & ACTIVITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/v1/children/{childID}/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.ProfileSummary.Handle(r.Context(), chi.URLParam(r, "childID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleGetActivityCalendar handles GET /api/v1/children/{childID}/calendar
func (s *Server) handleGetActivityCalendar(w http.ResponseWriter, r *http.Request) {
	days, err := s.deps.ActivityCalendar.Handle(r.Context(), query.GetActivityCalendarQuery{
		ChildID:   chi.URLParam(r, "childID"),
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, days, &ResponseMeta{TotalCount: len(days)})
}

// handleGetMonthlyStreak handles GET /api/v1/children/{childID}/streak
func (s *Server) handleGetMonthlyStreak(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.MonthlyStreak.Streak(r.Context(), chi.URLParam(r, "childID"), r.URL.Query().Get("month"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// handleGetStreakCalendar handles GET /api/v1/children/{childID}/streak/calendar
func (s *Server) handleGetStreakCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := s.deps.MonthlyStreak.Calendar(r.Context(), chi.URLParam(r, "childID"), r.URL.Query().Get("month"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cal)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.config.DefaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_parameter", "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := s.deps.Leaderboard.Handle(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, entries, &ResponseMeta{TotalCount: len(entries)})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the standard JSON response wrapper.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a JSON response with custom metadata.
func writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *ResponseMeta) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()
	meta.Version = "v1"

	response := JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: getRequestID(r.Context()),
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeJSONError writes an error JSON response.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	response := JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
		},
		RequestID: getRequestID(r.Context()),
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeDomainError maps a domain error to its HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}

	switch {
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", message)
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", message)
	case shared.IsConflict(err):
		writeJSONError(w, r, http.StatusConflict, "conflict", message)
	case shared.IsRetryable(err):
		writeJSONError(w, r, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
	default:
		logger.FromContextOr(r.Context(), s.logger).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

// decodeJSON reads the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return false
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}
