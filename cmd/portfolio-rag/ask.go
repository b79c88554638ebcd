package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	askStages bool
	askJSON   bool
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askStages, "stages", false, "run every retrieval stage and print its result count instead of answering")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the local store",
	Long: `Answer a question against the configured store without starting the
server. The answer goes through the same retrieval fallback chain and
generator as POST /api/chat.

With --stages no answer is generated; each retrieval stage runs on its own
and its result count is printed, which shows why a question falls through
to the later stages.

Examples:
  portfolio-rag ask "What projects has she built with Go?"
  portfolio-rag ask --stages "work experience"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	d, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close(ctx)

	service, err := d.newService(ctx, nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if askStages {
		if _, err := service.State().Store(); err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tRESULTS\tDURATION\tERROR")
		for _, r := range service.Retriever().Diagnose(ctx, question) {
			errText := "-"
			if r.Err != nil {
				errText = r.Err.Error()
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Stage, r.Count, r.Duration.Round(time.Millisecond), errText)
		}
		return w.Flush()
	}

	answer, err := service.Ask(ctx, question)
	if err != nil {
		return err
	}

	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	return nil
}
