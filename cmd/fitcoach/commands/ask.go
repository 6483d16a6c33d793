package commands

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/fitcoach-go/internal/coach"
	"github.com/54b3r/fitcoach-go/internal/logging"
	"github.com/54b3r/fitcoach-go/internal/tracing"
)

// NewAskCmd constructs the `fitcoach ask` command, which runs one question
// through the full answer pipeline and prints the result.
func NewAskCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the coach a question",
		Long: `Ask the coach a fitness or nutrition question.

The question goes through the same pipeline as POST /api/chat: context
retrieval, prompt assembly, generation, cleanup, and the fallback path when
the model cannot deliver. The answer is followed by its source, model,
confidence, and the titles of the documents used as context.

Examples:
  fitcoach ask "Comment faire des pompes correctement ?"
  fitcoach ask --model playpart_trainer "How do I build muscle?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			family, err := parseModelFlag(model)
			if err != nil {
				return err
			}

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: question must not be empty")
			}

			flush := tracing.Install(log)
			defer flush()

			svc, err := buildService(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer svc.Close()

			_ = svc.coach.Init(ctx)

			printResult(cmd, svc.coach.Answer(ctx, question, family))
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model family: local_distilgpt2 or playpart_trainer (default: DEFAULT_MODEL)")

	return cmd
}

// printResult writes an answer and its provenance to the command's output.
func printResult(cmd *cobra.Command, r coach.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, r.Text)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "source: %s  model: %s  confidence: %s  time: %.2fs\n",
		r.Source, r.ModelName, r.Confidence, r.Latency.Seconds())
	if r.FallbackReason != "" {
		fmt.Fprintf(out, "fallback reason: %s\n", r.FallbackReason)
	}
	if len(r.Sources) > 0 {
		fmt.Fprintf(out, "sources: %s\n", strings.Join(r.Sources, ", "))
	}
}
