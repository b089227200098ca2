package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var doCmd = &cobra.Command{
	Use:   "do <command>",
	Short: "Run one natural-language CAD command",
	Long: `Interpret a natural-language command in the context of the part's
history, dispatch it to the CAD bridge, and record the outcome in part
memory.

Recall questions ("what did I do last?") are answered from memory and do
not touch the CAD application.

Examples:
  partvoice do "draw a rectangle 10cm by 5cm" --part bracket-01
  partvoice do "extrude it 5 millimeters" --part bracket-01
  partvoice do "what features does this part have?" --part bracket-01`,
	Args: cobra.ExactArgs(1),
	RunE: runDo,
}

func runDo(cmd *cobra.Command, args []string) error {
	if err := requirePart(); err != nil {
		return err
	}
	intent := strings.TrimSpace(args[0])
	if intent == "" {
		return fmt.Errorf("empty command")
	}

	ctx := context.Background()
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.queue.Close()

	return runCommand(ctx, p, partID, intent)
}

// runCommand pushes one command through the full pipeline on the part's
// serial queue and prints the outcome.
func runCommand(ctx context.Context, p *pipeline, part, intent string) error {
	theme := defaultTheme

	return p.queue.Do(ctx, part, func(ctx context.Context) error {
		interp, err := p.interpreter.Interpret(ctx, part, intent)
		if err != nil {
			return err
		}

		if interp.Recall {
			fmt.Println(interp.Summary)
			return nil
		}

		req := *interp.Request
		fmt.Println(theme.statusStyle().Render(fmt.Sprintf("→ %s", req.FeatureType)))

		result, err := p.executor.Execute(ctx, part, req)
		if err != nil {
			fmt.Println(theme.errorStyle().Render(fmt.Sprintf("✗ %s failed: %s", req.FeatureType, result.Reason)))
			return err
		}

		fmt.Println(theme.successStyle().Render(fmt.Sprintf("✓ %s", result.Label)))
		if result.MemoryDegraded {
			fmt.Println(theme.hintStyle().Render("  executed, but could not be written to part memory"))
		}
		return nil
	})
}
