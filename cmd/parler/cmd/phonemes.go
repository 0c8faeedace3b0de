package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/f3rmion/parler/internal/audio"
	"github.com/spf13/cobra"
)

var phonemesCmd = &cobra.Command{
	Use:   "phonemes <file>",
	Short: "Recognize the phonemes spoken in an audio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhonemes,
}

func init() {
	rootCmd.AddCommand(phonemesCmd)
}

func runPhonemes(cmd *cobra.Command, args []string) error {
	a, err := audio.LoadFile(args[0])
	if err != nil {
		return err
	}

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

	res, err := client.Phonemes(ctx, a)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Phonemes)
	return nil
}
