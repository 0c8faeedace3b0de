package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/f3rmion/parler/internal/api"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score <word>",
	Short: "Score a typed IPA transcription",
	Long: `Compare your own IPA transcription of a word with the reference.

Example:
  parler score bonjour --attempt bɔ̃ʒuʁ`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringP("attempt", "a", "", "your IPA transcription")
	scoreCmd.MarkFlagRequired("attempt")
}

func runScore(cmd *cobra.Command, args []string) error {
	attempt, _ := cmd.Flags().GetString("attempt")

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

	res, err := client.ScoreIPA(ctx, args[0], attempt)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Word:         %s\n", res.Word)
	fmt.Fprintf(out, "Correct IPA:  %s\n", res.CorrectIPA)
	fmt.Fprintf(out, "Your attempt: %s\n", res.Attempt)
	fmt.Fprintf(out, "Score:        %s\n", api.FormatScore(res.Score))
	return nil
}
