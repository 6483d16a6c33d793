package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/config"
	"github.com/54b3r/fitcoach-go/internal/logging"
	"github.com/54b3r/fitcoach-go/internal/server"
	"github.com/54b3r/fitcoach-go/internal/tracing"
	"github.com/54b3r/fitcoach-go/internal/transcribe"
	"github.com/54b3r/fitcoach-go/internal/video"
)

// NewServeCmd constructs the `fitcoach serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the FitCoach HTTP API",
		Long: `Start the FitCoach HTTP API.

The server builds the exercise index, loads every configured model family,
and serves the coach API under /api, plus /metrics for Prometheus. Missing
models or a failed index never stop the server: answers degrade to the
fallback path and /api/health reports the degraded state.

Examples:
  fitcoach serve
  fitcoach serve --port 9090
  DISTILGPT2_BACKEND=ollama DISTILGPT2_MODEL=coach-fr fitcoach serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			flush := tracing.Install(log)
			defer flush()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			svc, err := buildService(log, reg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer svc.Close()

			// A failed Init leaves the service degraded, not stopped.
			_ = svc.coach.Init(ctx)

			srvCfg, err := serverConfigFromEnv(cmd, host, port)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			srvCfg.Logger = log
			srvCfg.MetricsRegistry = reg
			srvCfg.MetricsGatherer = reg

			deps := server.Deps{
				Coach: svc.coach,
				Videos: video.New(video.Config{
					APIKey: os.Getenv("YOUTUBE_API_KEY"),
				}),
				Transcriber: transcribe.New(transcribe.Config{
					APIKey: os.Getenv("OPENAI_API_KEY"),
					Model:  os.Getenv("WHISPER_MODEL"),
				}),
			}
			if !deps.Videos.Enabled() {
				log.Info("videos: disabled", slog.String("reason", "YOUTUBE_API_KEY not set"))
			}
			if !deps.Transcriber.Enabled() {
				log.Info("transcribe: disabled", slog.String("reason", "OPENAI_API_KEY not set"))
			}

			var extras []server.Pinger
			if svc.qdrant != nil {
				extras = append(extras, svc.qdrant)
			}
			if j := openJournal(log); j != nil {
				defer func() { _ = j.Close() }()
				deps.Journal = j
				extras = append(extras, j)
			}
			srvCfg.Pingers = server.Probes(svc.registry.Pingers(), extras...)

			srv, err := server.New(deps, srvCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: FITCOACH_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8001, "TCP port to listen on (env: FITCOACH_PORT)")

	return cmd
}

// serverConfigFromEnv resolves the HTTP settings. Explicit flags win over
// FITCOACH_HOST and FITCOACH_PORT.
func serverConfigFromEnv(cmd *cobra.Command, host string, port int) (*server.Config, error) {
	if !cmd.Flags().Changed("host") {
		host = config.String("FITCOACH_HOST", host)
	}
	if !cmd.Flags().Changed("port") {
		p, err := config.Int("FITCOACH_PORT", port)
		if err != nil {
			return nil, err
		}
		port = p
	}

	chatTimeout, err := config.Duration("CHAT_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	rateLimit, err := config.Float32("RATE_LIMIT", 0)
	if err != nil {
		return nil, err
	}
	rateBurst, err := config.Int("RATE_BURST", 0)
	if err != nil {
		return nil, err
	}

	return &server.Config{
		Host:        host,
		Port:        port,
		ChatTimeout: chatTimeout,
		RateLimit:   float64(rateLimit),
		RateBurst:   rateBurst,
		APIKey:      os.Getenv("FITCOACH_API_KEY"),
	}, nil
}
