package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vantage-ai/vantage/pkg/orchestrator"
)

var (
	runPrompt string
	runWidget string
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one analysis request",
	Long: `Run plans and executes a single natural-language request against the
configured data source, then prints the outcome of every action.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "the analysis request (required)")
	runCmd.Flags().StringVar(&runWidget, "widget", "", "id of the widget the request refers to")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	runCmd.MarkFlagRequired("prompt")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Close()

	eng, err := newEngine(cfg, log.Zerolog())
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.orchestrator.Run(ctx, orchestrator.Request{
		Prompt:           runPrompt,
		SelectedWidgetID: runWidget,
	})
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, result *orchestrator.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s\n", result.RunID, result.Status)
	for _, a := range result.Actions {
		switch {
		case a.Error != nil:
			fmt.Fprintf(out, "  %-18s %-9s %s\n", a.Kind, a.Status, a.Error.Message)
		case a.ResultRef != "":
			fmt.Fprintf(out, "  %-18s %-9s %s\n", a.Kind, a.Status, a.ResultRef)
		default:
			fmt.Fprintf(out, "  %-18s %s\n", a.Kind, a.Status)
		}
	}
	if result.Answer != "" {
		fmt.Fprintf(out, "\n%s\n", result.Answer)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}
