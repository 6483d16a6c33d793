package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/54b3r/fitcoach-go/internal/coach"
	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/logging"
	"github.com/54b3r/fitcoach-go/internal/profile"
	"github.com/54b3r/fitcoach-go/internal/store"
	"github.com/54b3r/fitcoach-go/internal/transcribe"
	"github.com/54b3r/fitcoach-go/internal/video"
)

// Request bounds enforced at the HTTP boundary.
const (
	maxQuestionChars   = 500
	maxCommentChars    = 500
	minSearchChars     = 2
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	defaultVideoLimit  = 5
	previewChars       = 100
	journalTimeout     = 2 * time.Second
)

// testQuestion is the fixed question answered by GET /api/test.
const testQuestion = "Comment faire des pompes correctement ?"

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInputError(w, r, err)
		return
	}
	question, err := validateQuestion("message", req.Message)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	fam, err := resolveModel(req.Model, req.ModelType)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	if err := req.Profile.validate(); err != nil {
		writeInputError(w, r, err)
		return
	}
	s.answer(w, r, "chat", question, fam)
}

// handleAdvice handles POST /api/advice.
func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInputError(w, r, err)
		return
	}
	question, err := validateQuestion("question", req.Question)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	fam, err := resolveModel(req.Model, req.ModelType)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	if err := req.Profile.validate(); err != nil {
		writeInputError(w, r, err)
		return
	}
	s.answer(w, r, "advice", question, fam)
}

// answer runs the pipeline under ChatTimeout, journals the exchange, and
// writes the answerResponse. The pipeline never fails, so the status is
// always 200.
func (s *Server) answer(w http.ResponseWriter, r *http.Request, handler, question string, fam profile.Family) {
	res := s.run(r.Context(), handler, question, fam)
	s.recordExchange(r.Context(), question, res)
	writeJSON(w, r, http.StatusOK, toAnswerResponse(res))
}

// run executes one pipeline call with metrics and the chat timeout applied.
func (s *Server) run(ctx context.Context, handler, question string, fam profile.Family) coach.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	s.metrics.answersInFlight.Inc()
	defer s.metrics.answersInFlight.Dec()

	ctx = logging.With(ctx, slog.String("handler", handler))

	start := time.Now()
	res := s.coach.Answer(ctx, question, fam)
	s.metrics.answersTotal.WithLabelValues(handler, string(res.Source)).Inc()
	s.metrics.answerDurationSeconds.WithLabelValues(handler).Observe(time.Since(start).Seconds())

	logging.FromContext(ctx).Info("answer served",
		slog.String("model", res.Model.String()),
		slog.String("source", string(res.Source)),
		slog.String("fallback_reason", string(res.FallbackReason)),
		slog.Duration("latency", res.Latency),
	)
	return res
}

// recordExchange persists res when a journal is configured. Failures are
// logged and never affect the response.
func (s *Server) recordExchange(ctx context.Context, question string, res coach.Result) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	_, err := s.journal.RecordExchange(ctx, store.Exchange{
		Model:          res.Model.String(),
		Source:         string(res.Source),
		FallbackReason: string(res.FallbackReason),
		Question:       question,
		Response:       res.Text,
		ContextUsed:    res.ContextUsed,
		Latency:        res.Latency,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("journal: exchange not recorded", slog.Any("error", err))
	}
}

// handleSearch handles POST /api/exercises/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInputError(w, r, err)
		return
	}
	query := strings.TrimSpace(req.Query)
	if utf8.RuneCountInString(query) < minSearchChars {
		writeInputError(w, r, badInput("query must be at least %d characters", minSearchChars))
		return
	}
	limit := defaultSearchLimit
	if req.MaxResults != nil {
		limit = *req.MaxResults
		if limit < 1 || limit > maxSearchLimit {
			writeInputError(w, r, badInput("max_results must be between 1 and %d", maxSearchLimit))
			return
		}
	}
	difficulty, err := corpus.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeInputError(w, r, badInput("%v", err))
		return
	}

	start := time.Now()
	matches := s.coach.SearchExercises(r.Context(), query, corpus.Filter{
		Difficulty:   difficulty,
		MuscleGroups: req.MuscleGroups,
	}, limit)

	resp := searchResponse{Exercises: make([]exerciseHit, 0, len(matches))}
	for _, m := range matches {
		hit := exerciseHit{Document: m.Doc}
		if m.Scored {
			score := m.Score
			hit.RelevanceScore = &score
		}
		resp.Exercises = append(resp.Exercises, hit)
	}
	resp.TotalFound = len(resp.Exercises)
	resp.QueryTime = time.Since(start).Seconds()
	writeJSON(w, r, http.StatusOK, resp)
}

// handleCategories handles GET /api/exercises/categories.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.coach.Categories())
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.coach.Stats()
	resp := statsResponse{
		Status:              st.Status,
		Models:              s.modelInfos(),
		CurrentModel:        st.CurrentModel.String(),
		RAGEnabled:          st.RAGEnabled,
		InitializationTime:  st.InitializationTime.Seconds(),
		InitializationError: st.InitializationError,
		TotalRequests:       st.Total,
		SuccessfulRequests:  st.Successful,
		FallbackRequests:    st.Fallback,
		AverageResponseTime: st.AvgLatencySeconds,
		ModelUsage:          st.PerModelUsage,
		ExerciseDBSize:      st.CorpusSize,
		Timestamp:           time.Now().UTC(),
	}
	if !st.LastRequestTime.IsZero() {
		last := st.LastRequestTime.UTC()
		resp.LastRequestTime = &last
	}
	if s.journal != nil {
		sum, err := s.journal.FeedbackSummary(r.Context())
		if err != nil {
			logging.FromContext(r.Context()).Warn("journal: feedback summary unavailable", slog.Any("error", err))
		} else {
			resp.Feedback = &sum
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleModels handles GET /api/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	infos := s.modelInfos()
	resp := modelsResponse{Models: infos}
	for _, m := range infos {
		if m.Current {
			resp.CurrentModel = m.ID
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleSwitch handles POST /api/models/switch.
func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInputError(w, r, err)
		return
	}
	fam, err := resolveModel(req.Model, req.ModelType)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	if fam == profile.Unspecified {
		writeInputError(w, r, badInput("model is required"))
		return
	}

	old, err := s.coach.SwitchModel(r.Context(), fam)
	if err != nil {
		if errors.Is(err, coach.ErrUnknownModel) {
			writeInputError(w, r, badInput("unknown model %q", fam.String()))
			return
		}
		logging.FromContext(r.Context()).Error("model switch failed",
			slog.String("model", fam.String()),
			slog.Any("error", err),
		)
		writeError(w, r, http.StatusServiceUnavailable, "model "+fam.String()+" could not be loaded")
		return
	}

	resp := switchResponse{
		Success:      true,
		OldModel:     old.String(),
		CurrentModel: fam.String(),
	}
	for _, m := range s.modelInfos() {
		if m.ID == fam.String() {
			info := m
			resp.ModelInfo = &info
			resp.Message = "Modèle changé vers " + m.Name
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleFeedback handles POST /api/feedback.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInputError(w, r, err)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeInputError(w, r, badInput("rating must be between 1 and 5"))
		return
	}
	if utf8.RuneCountInString(req.Comment) > maxCommentChars {
		writeInputError(w, r, badInput("comment must be at most %d characters", maxCommentChars))
		return
	}
	if req.ModelUsed != "" {
		if _, err := profile.Parse(req.ModelUsed); err != nil {
			writeInputError(w, r, badInput("%v", err))
			return
		}
	}

	log := logging.FromContext(r.Context())
	fb := store.Feedback{
		Rating:    req.Rating,
		Comment:   req.Comment,
		Question:  req.Question,
		Helpful:   req.ResponseHelpful,
		ModelUsed: req.ModelUsed,
	}

	var id string
	if s.journal == nil {
		id = "fb_" + uuid.NewString()
		log.Info("feedback received (journal disabled)",
			slog.String("feedback_id", id),
			slog.Int("rating", fb.Rating),
		)
	} else {
		var err error
		id, err = s.journal.SaveFeedback(r.Context(), fb)
		if err != nil {
			log.Error("journal: feedback not saved", slog.Any("error", err))
			writeError(w, r, http.StatusInternalServerError, "feedback could not be saved")
			return
		}
		log.Info("feedback saved", slog.String("feedback_id", id), slog.Int("rating", fb.Rating))
	}

	writeJSON(w, r, http.StatusOK, feedbackResponse{
		Success:    true,
		Message:    "Merci pour votre feedback !",
		FeedbackID: id,
		Timestamp:  time.Now().UTC(),
	})
}

// handleVideos handles GET /api/videos?q=&max=.
func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < minSearchChars {
		writeInputError(w, r, badInput("q must be at least %d characters", minSearchChars))
		return
	}
	limit := defaultVideoLimit
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > video.MaxResults {
			writeInputError(w, r, badInput("max must be between 1 and %d", video.MaxResults))
			return
		}
		limit = n
	}

	resp := videosResponse{Query: q, Videos: []video.Video{}}
	if s.videos == nil || !s.videos.Enabled() {
		writeJSON(w, r, http.StatusOK, resp)
		return
	}

	vids, err := s.videos.Search(r.Context(), q, limit)
	if err != nil {
		log := logging.FromContext(r.Context())
		if errors.Is(err, video.ErrQuotaExhausted) {
			log.Warn("video search quota exhausted", slog.Any("error", err))
			writeError(w, r, http.StatusServiceUnavailable, "video search temporarily unavailable")
			return
		}
		log.Error("video search failed", slog.Any("error", err))
		writeError(w, r, http.StatusBadGateway, "video search failed")
		return
	}
	resp.Videos = append(resp.Videos, vids...)
	writeJSON(w, r, http.StatusOK, resp)
}

// handleTranscribe handles POST /api/transcribe with a multipart "audio" file.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil || !s.transcriber.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, transcribe.MaxAudioBytes+1<<20)
	file, hdr, err := r.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeInputError(w, r, badInput("audio file exceeds %d bytes", transcribe.MaxAudioBytes))
			return
		}
		writeInputError(w, r, badInput("multipart field \"audio\" is required"))
		return
	}
	defer file.Close()

	text, err := s.transcriber.Transcribe(r.Context(), hdr.Filename, file)
	if err != nil {
		log := logging.FromContext(r.Context())
		switch {
		case errors.Is(err, transcribe.ErrUnsupportedFormat):
			writeInputError(w, r, badInput("unsupported audio format %q", hdr.Filename))
		case errors.Is(err, transcribe.ErrNotConfigured):
			writeError(w, r, http.StatusServiceUnavailable, "transcription is not configured")
		default:
			log.Error("transcription failed", slog.Any("error", err))
			writeError(w, r, http.StatusBadGateway, "transcription failed")
		}
		return
	}
	writeJSON(w, r, http.StatusOK, transcribeResponse{Text: text})
}

// handleTest handles GET /api/test by answering a fixed question with the
// current model.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	res := s.run(r.Context(), "test", testQuestion, profile.Unspecified)
	writeJSON(w, r, http.StatusOK, testResponse{
		Status:          "success",
		TestQuestion:    testQuestion,
		ResponsePreview: preview(res.Text, previewChars),
		ModelUsed:       res.Model.String(),
		Source:          string(res.Source),
		ResponseTime:    res.Latency.Seconds(),
		RAGEnabled:      res.RAGEnabled,
	})
}

// modelInfos converts the coach model listing into its wire form.
func (s *Server) modelInfos() []modelInfo {
	models := s.coach.Models()
	out := make([]modelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, modelInfo{
			ID:          m.Profile.Family.String(),
			Name:        m.Profile.Name,
			Description: m.Profile.Description,
			Path:        m.Profile.Source,
			IsLocal:     m.Profile.Local,
			Loaded:      m.Loaded,
			Current:     m.Current,
			Language:    string(m.Profile.Language),
		})
	}
	return out
}

// toAnswerResponse converts a pipeline Result into its wire form.
func toAnswerResponse(res coach.Result) answerResponse {
	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	return answerResponse{
		Response:       res.Text,
		Sources:        sources,
		ContextUsed:    res.ContextUsed,
		ModelUsed:      res.Model.String(),
		ModelName:      res.ModelName,
		ResponseTime:   res.Latency.Seconds(),
		Confidence:     string(res.Confidence),
		RAGEnabled:     res.RAGEnabled,
		Source:         string(res.Source),
		FallbackReason: string(res.FallbackReason),
	}
}

// validateQuestion trims q and enforces the 1..500 character bound.
func validateQuestion(field, q string) (string, error) {
	q = strings.TrimSpace(q)
	n := utf8.RuneCountInString(q)
	if n == 0 {
		return "", badInput("%s is required", field)
	}
	if n > maxQuestionChars {
		return "", badInput("%s must be at most %d characters", field, maxQuestionChars)
	}
	return q, nil
}

// resolveModel parses the model id from either field, model winning.
// Both empty yields Unspecified, meaning the current model.
func resolveModel(model, modelType string) (profile.Family, error) {
	id := model
	if id == "" {
		id = modelType
	}
	if id == "" {
		return profile.Unspecified, nil
	}
	f, err := profile.Parse(id)
	if err != nil {
		return profile.Unspecified, badInput("unknown model %q", id)
	}
	return f, nil
}

// validate enforces the profile bounds. A nil profile is valid.
func (p *userProfile) validate() error {
	if p == nil {
		return nil
	}
	if p.Age != nil && (*p.Age < 15 || *p.Age > 100) {
		return badInput("profile.age must be between 15 and 100")
	}
	if p.AvailableTime != nil && (*p.AvailableTime < 10 || *p.AvailableTime > 240) {
		return badInput("profile.available_time must be between 10 and 240")
	}
	return nil
}

// preview returns the first n runes of s followed by "..." when s is longer.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
