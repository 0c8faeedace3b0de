package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var ipaCmd = &cobra.Command{
	Use:   "ipa <word>...",
	Short: "Show the IPA transcription of French words",
	Long: `Look up the reference IPA transcription of one or more words.

Example:
  parler ipa bonjour merci`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIPA,
}

func init() {
	rootCmd.AddCommand(ipaCmd)
}

func runIPA(cmd *cobra.Command, args []string) error {
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
	for _, word := range args {
		res, err := client.IPA(ctx, word)
		if err != nil {
			return fmt.Errorf("looking up %q: %w", word, err)
		}
		fmt.Fprintf(out, "%-16s /%s/\n", res.Word, res.IPA)
	}
	return nil
}
