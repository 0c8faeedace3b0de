package cmd

import (
	"fmt"

	"github.com/f3rmion/parler/internal/deck"
	"github.com/spf13/cobra"
)

var deckCmd = &cobra.Command{
	Use:   "deck <file.apkg>",
	Short: "List the practice phrases in an Anki deck",
	Long: `List the phrases of an Anki deck, one per note.

The phrase is read from --field (default: deck.field from the config, or
the first field of each note). HTML and sound tags are stripped.

Examples:
  parler deck french.apkg
  parler deck french.apkg --field Front
  parler deck french.apkg --fields`,
	Args: cobra.ExactArgs(1),
	RunE: runDeck,
}

func init() {
	rootCmd.AddCommand(deckCmd)
	deckCmd.Flags().String("field", "", "note field holding the phrase")
	deckCmd.Flags().Bool("fields", false, "list the available field names instead")
}

func runDeck(cmd *cobra.Command, args []string) error {
	field, _ := cmd.Flags().GetString("field")
	listFields, _ := cmd.Flags().GetBool("fields")

	rt, err := setup(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if field == "" {
		field = rt.cfg.Deck.Field
	}

	d, err := deck.Open(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	out := cmd.OutOrStdout()
	if listFields {
		for _, name := range d.FieldNames() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	phrases, err := d.Phrases(field)
	if err != nil {
		return err
	}
	rt.log.Debug().Str("deck", args[0]).Int("phrases", len(phrases)).Msg("deck loaded")

	for i, p := range phrases {
		fmt.Fprintf(out, "%4d  %s\n", i+1, p.Text)
	}
	fmt.Fprintf(out, "\n%d phrases\n", len(phrases))
	return nil
}
