package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/fitcoach-go/internal/coach"
	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/profile"
	"github.com/54b3r/fitcoach-go/internal/rag"
	"github.com/54b3r/fitcoach-go/internal/store"
	"github.com/54b3r/fitcoach-go/internal/version"
	"github.com/54b3r/fitcoach-go/internal/video"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8001).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed ChatTimeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds one answer pipeline run (default: 60s).
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained answer rate per client (requests/second).
	// Search gets twice this budget and video/transcription half of it.
	// Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the answer burst per client, scaled like RateLimit for the
	// other route classes. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics (default: a new registry).
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics (default: MetricsRegistry when
	// it is a *prometheus.Registry).
	MetricsGatherer prometheus.Gatherer
}

// coacher is the pipeline the handlers drive. *coach.Service satisfies it;
// tests inject a fake.
type coacher interface {
	// Answer runs the pipeline; it never fails.
	Answer(ctx context.Context, question string, f profile.Family) coach.Result
	// Stats returns a snapshot of the service counters.
	Stats() coach.Stats
	// Models lists every family with its load state.
	Models() []coach.ModelInfo
	// SwitchModel changes the current model and returns the previous one.
	SwitchModel(ctx context.Context, f profile.Family) (profile.Family, error)
	// SearchExercises runs a filtered semantic search.
	SearchExercises(ctx context.Context, query string, filter corpus.Filter, limit int) []rag.Match
	// Categories summarises the corpus facets.
	Categories() corpus.Categories
}

// journal persists exchanges and feedback. *store.SQLiteJournal satisfies it.
type journal interface {
	// RecordExchange persists one answered question.
	RecordExchange(ctx context.Context, e store.Exchange) (string, error)
	// SaveFeedback persists one rating and returns its id.
	SaveFeedback(ctx context.Context, f store.Feedback) (string, error)
	// FeedbackSummary aggregates all feedback.
	FeedbackSummary(ctx context.Context) (store.FeedbackSummary, error)
}

// videoSearcher finds tutorial videos. *video.Client satisfies it.
type videoSearcher interface {
	// Enabled reports whether searches can run.
	Enabled() bool
	// Search returns up to limit videos for topic.
	Search(ctx context.Context, topic string, limit int) ([]video.Video, error)
}

// transcriber converts audio to text. *transcribe.Client satisfies it.
type transcriber interface {
	// Enabled reports whether transcription can run.
	Enabled() bool
	// Transcribe returns the transcript of the audio in r.
	Transcribe(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Deps holds the collaborators of a Server. Coach is required; the rest are
// optional and disable their endpoints when nil.
type Deps struct {
	// Coach answers questions. *coach.Service satisfies it.
	Coach coacher
	// Journal persists exchanges and feedback. *store.SQLiteJournal satisfies it.
	Journal journal
	// Videos searches tutorial videos.
	Videos videoSearcher
	// Transcriber converts uploaded audio.
	Transcriber transcriber
}

// Server is the HTTP server that exposes the coach pipeline.
type Server struct {
	// coach is the answer pipeline.
	coach coacher
	// journal is nil when persistence is disabled.
	journal journal
	// videos is nil when video lookup is disabled.
	videos videoSearcher
	// transcriber is nil when transcription is disabled.
	transcriber transcriber
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// started is when New returned; reported as uptime by /api/health.
	started time.Time
}

// userProfile is the optional athlete profile attached to a question.
type userProfile struct {
	// Age must be within 15..100 when set.
	Age *int `json:"age,omitempty"`
	// Gender is free text.
	Gender string `json:"gender,omitempty"`
	// FitnessLevel is free text (default: "débutant").
	FitnessLevel string `json:"fitness_level,omitempty"`
	// Goal is free text.
	Goal string `json:"goal,omitempty"`
	// AvailableTime is minutes per session, within 10..240 when set.
	AvailableTime *int `json:"available_time,omitempty"`
	// Equipment lists available gear.
	Equipment []string `json:"equipment,omitempty"`
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's question (1..500 characters).
	Message string `json:"message"`
	// Model selects a family; empty means the current model.
	Model string `json:"model,omitempty"`
	// ModelType is an alias of Model accepted for older clients.
	ModelType string `json:"model_type,omitempty"`
	// Profile is optional.
	Profile *userProfile `json:"profile,omitempty"`
}

// adviceRequest is the JSON body for POST /api/advice.
type adviceRequest struct {
	// Question is the user's question (1..500 characters).
	Question string `json:"question"`
	// Model selects a family; empty means the current model.
	Model string `json:"model,omitempty"`
	// ModelType is an alias of Model accepted for older clients.
	ModelType string `json:"model_type,omitempty"`
	// Profile is optional.
	Profile *userProfile `json:"profile,omitempty"`
	// Context is accepted for compatibility and not used.
	Context string `json:"context,omitempty"`
}

// answerResponse is the JSON body returned by the answer endpoints.
type answerResponse struct {
	Response       string   `json:"response"`
	Sources        []string `json:"sources"`
	ContextUsed    bool     `json:"context_used"`
	ModelUsed      string   `json:"model_used"`
	ModelName      string   `json:"model_name"`
	ResponseTime   float64  `json:"response_time"`
	Confidence     string   `json:"confidence"`
	RAGEnabled     bool     `json:"rag_enabled"`
	Source         string   `json:"source"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

// searchRequest is the JSON body for POST /api/exercises/search.
type searchRequest struct {
	// Query must be at least 2 characters.
	Query string `json:"query"`
	// MuscleGroups keeps exercises working any of these groups.
	MuscleGroups []string `json:"muscle_groups,omitempty"`
	// Difficulty keeps exercises of exactly this level.
	Difficulty string `json:"difficulty,omitempty"`
	// MaxResults is 1..20 (default: 5).
	MaxResults *int `json:"max_results,omitempty"`
}

// exerciseHit is one search result.
type exerciseHit struct {
	corpus.Document
	// RelevanceScore is omitted for unranked results.
	RelevanceScore *float32 `json:"relevance_score,omitempty"`
}

// searchResponse is the JSON body returned by POST /api/exercises/search.
type searchResponse struct {
	Exercises  []exerciseHit `json:"exercises"`
	TotalFound int           `json:"total_found"`
	QueryTime  float64       `json:"query_time"`
}

// modelInfo describes one family in model listings.
type modelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
	IsLocal     bool   `json:"is_local"`
	Loaded      bool   `json:"loaded"`
	Current     bool   `json:"current"`
	Language    string `json:"language"`
}

// modelsResponse is the JSON body returned by GET /api/models.
type modelsResponse struct {
	Models       []modelInfo `json:"models"`
	CurrentModel string      `json:"current_model"`
}

// switchRequest is the JSON body for POST /api/models/switch.
type switchRequest struct {
	// Model is the family to activate.
	Model string `json:"model"`
	// ModelType is an alias of Model accepted for older clients.
	ModelType string `json:"model_type,omitempty"`
}

// switchResponse is the JSON body returned by POST /api/models/switch.
type switchResponse struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message"`
	OldModel     string     `json:"old_model,omitempty"`
	CurrentModel string     `json:"current_model"`
	ModelInfo    *modelInfo `json:"model_info,omitempty"`
}

// statsResponse is the JSON body returned by GET /api/stats.
type statsResponse struct {
	Status              string                 `json:"status"`
	Models              []modelInfo            `json:"models"`
	CurrentModel        string                 `json:"current_model"`
	RAGEnabled          bool                   `json:"rag_enabled"`
	InitializationTime  float64                `json:"initialization_time"`
	InitializationError string                 `json:"initialization_error,omitempty"`
	TotalRequests       int                    `json:"total_requests"`
	SuccessfulRequests  int                    `json:"successful_requests"`
	FallbackRequests    int                    `json:"fallback_requests"`
	AverageResponseTime float64                `json:"average_response_time"`
	ModelUsage          map[string]int         `json:"model_usage"`
	ExerciseDBSize      int                    `json:"exercise_database_size"`
	LastRequestTime     *time.Time             `json:"last_request_time,omitempty"`
	Feedback            *store.FeedbackSummary `json:"feedback,omitempty"`
	Timestamp           time.Time              `json:"timestamp"`
}

// feedbackRequest is the JSON body for POST /api/feedback.
type feedbackRequest struct {
	// Rating is 1..5.
	Rating int `json:"rating"`
	// Comment is at most 500 characters.
	Comment string `json:"comment,omitempty"`
	// Question is the question being rated.
	Question string `json:"question,omitempty"`
	// ResponseHelpful is optional.
	ResponseHelpful *bool `json:"response_helpful,omitempty"`
	// ModelUsed is the family that answered.
	ModelUsed string `json:"model_used,omitempty"`
}

// feedbackResponse is the JSON body returned by POST /api/feedback.
type feedbackResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	FeedbackID string    `json:"feedback_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// videosResponse is the JSON body returned by GET /api/videos.
type videosResponse struct {
	Query  string        `json:"query"`
	Videos []video.Video `json:"videos"`
}

// transcribeResponse is the JSON body returned by POST /api/transcribe.
type transcribeResponse struct {
	Text string `json:"text"`
}

// testResponse is the JSON body returned by GET /api/test.
type testResponse struct {
	Status          string  `json:"status"`
	TestQuestion    string  `json:"test_question"`
	ResponsePreview string  `json:"response_preview"`
	ModelUsed       string  `json:"model_used"`
	Source          string  `json:"source"`
	ResponseTime    float64 `json:"response_time"`
	RAGEnabled      bool    `json:"rag_enabled"`
}

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	Status             string       `json:"status"`
	Service            string       `json:"service"`
	Version            string       `json:"version"`
	Build              version.Info `json:"build"`
	CurrentModel       string       `json:"current_model"`
	LoadedModels       []string     `json:"loaded_models"`
	RAGEnabled         bool         `json:"rag_enabled"`
	ExerciseDBSize     int          `json:"exercise_database_size"`
	TotalRequests      int          `json:"total_requests"`
	SuccessfulRequests int          `json:"successful_requests"`
	AverageResponse    float64      `json:"average_response_time"`
	UptimeSeconds      float64      `json:"uptime_seconds"`
	Timestamp          time.Time    `json:"timestamp"`
}

// errorResponse is the JSON body of every 4xx/5xx answer.
type errorResponse struct {
	Error string `json:"error"`
}
