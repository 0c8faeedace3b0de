package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/f3rmion/parler/internal/api"
	"github.com/f3rmion/parler/internal/audio"
	"github.com/f3rmion/parler/internal/parler"
	"github.com/f3rmion/parler/internal/practice"
	"github.com/spf13/cobra"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <text>",
	Short: "Submit one attempt without the TUI",
	Long: `Submit one pronunciation attempt and print each result as it arrives.

The attempt audio comes from a file (--file) or from the microphone
(--record, for the given duration). Results are printed in order:
score and IPA, the reference audio, then the feedback.

Examples:
  parler practice "Bonjour, comment ça va ?" --file take.wav
  parler practice "Je voudrais un café" --record 4s --reference-out ref.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPractice,
}

func init() {
	rootCmd.AddCommand(practiceCmd)
	practiceCmd.Flags().StringP("file", "f", "", "audio file to submit")
	practiceCmd.Flags().DurationP("record", "r", 0, "record from the microphone for this long")
	practiceCmd.Flags().String("reference-out", "", "write the synthesized reference audio to this file")
	practiceCmd.MarkFlagsMutuallyExclusive("file", "record")
}

func runPractice(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	record, _ := cmd.Flags().GetDuration("record")
	refOut, _ := cmd.Flags().GetString("reference-out")

	rt, err := setup(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	client, err := rt.client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	session := rt.session()
	if err := session.SetText(strings.Join(args, " ")); err != nil {
		return err
	}

	switch {
	case file != "":
		if err := stageFile(session, file); err != nil {
			return err
		}
	case record > 0:
		fmt.Fprintf(out, "Recording for %s...\n", record)
		if err := recordFor(ctx, session, record); err != nil {
			return err
		}
	}

	wf := practice.NewWorkflow(client, rt.log)
	var reference *parler.Audio
	err = session.Submit(ctx, wf, func(e practice.Event) {
		if c, ok := e.(practice.ComparisonEvent); ok {
			reference = c.Reference
		}
		printEvent(out, e)
	})
	if err != nil {
		fmt.Fprintf(out, "\n%s\n", session.Board().ErrorMessage)
		return err
	}

	if refOut != "" && reference != nil {
		if err := os.WriteFile(refOut, reference.Data, 0644); err != nil {
			return fmt.Errorf("writing reference audio: %w", err)
		}
		fmt.Fprintf(out, "Reference audio written to %s\n", refOut)
	}
	return nil
}

// stageFile switches the session to upload mode and stages path.
func stageFile(s *practice.Session, path string) error {
	a, err := audio.LoadFile(path)
	if err != nil {
		return err
	}
	if err := s.SetMode(practice.ModeUpload); err != nil {
		return err
	}
	return s.SetUpload(a)
}

// recordFor captures d of microphone audio. An interrupt stops the capture early.
func recordFor(ctx context.Context, s *practice.Session, d time.Duration) error {
	if err := s.StartRecording(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	return s.StopRecording()
}

// printEvent writes one workflow event the way the TUI board shows it.
func printEvent(w io.Writer, e practice.Event) {
	switch e := e.(type) {
	case practice.PhaseEvent:
		fmt.Fprintf(w, "%s%s...\n", strings.ToUpper(e.Phase.String()[:1]), e.Phase.String()[1:])
	case practice.ScoreEvent:
		fmt.Fprintf(w, "\nScore: %s\n", api.FormatScore(e.Result.Score))
		fmt.Fprintf(w, "  Correct IPA: %s\n", e.Result.CorrectIPA)
		fmt.Fprintf(w, "  Your IPA:    %s\n\n", e.Result.AttemptIPA)
	case practice.ComparisonEvent:
		fmt.Fprintf(w, "\nYour recording:  %s (%s)\n", humanBytes(e.User.Len()), e.User.MediaType)
		fmt.Fprintf(w, "Reference audio: %s (%s)\n\n", humanBytes(e.Reference.Len()), e.Reference.MediaType)
	case practice.FeedbackEvent:
		fmt.Fprintf(w, "\nFeedback:\n%s\n", strings.TrimSpace(e.Result.Feedback))
	}
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
