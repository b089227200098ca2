package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/partvoice-go/internal/llm"
	"github.com/raphaelgruber/partvoice-go/internal/memory"
)

var (
	historyQuery string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the feature history of a part",
	Long: `Show the recorded feature history of a part, oldest first.

With --query, performs a semantic search over the part's memory instead
and shows the most similar records first.

Examples:
  partvoice history --part bracket-01
  partvoice history --part bracket-01 --query "holes" -n 3`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyQuery, "query", "q", "", "semantic search query")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "max results for --query")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requirePart(); err != nil {
		return err
	}

	ctx := context.Background()
	theme := defaultTheme

	if historyQuery == "" {
		records, err := dbClient.FullHistory(ctx, partID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		if len(records) == 0 {
			fmt.Printf("No features recorded for part %q.\n", partID)
			return nil
		}

		fmt.Printf("Features for %s (%d):\n\n", partID, len(records))
		for i, r := range records {
			fmt.Printf("%2d. %s %s\n", i+1,
				theme.labelStyle().Render(r.Label),
				theme.hintStyle().Render("["+string(r.FeatureType)+"]"))
			fmt.Printf("    %s\n", r.Description)
			fmt.Printf("    %s\n", theme.hintStyle().Render(r.Timestamp.Local().Format("2006-01-02 15:04:05")))
		}
		return nil
	}

	// Semantic search needs an embedder.
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	mgr := memory.New(dbClient, embedder, logger)

	scored, err := mgr.RetrieveContext(ctx, partID, historyQuery, historyLimit)
	if err != nil {
		return fmt.Errorf("search history: %w", err)
	}
	if len(scored) == 0 {
		fmt.Printf("No matching features for part %q.\n", partID)
		return nil
	}

	fmt.Printf("Matches for %q on %s (%d):\n\n", historyQuery, partID, len(scored))
	for i, r := range scored {
		fmt.Printf("%2d. %s %s %s\n", i+1,
			theme.labelStyle().Render(r.Label),
			theme.hintStyle().Render("["+string(r.FeatureType)+"]"),
			theme.statusStyle().Render(fmt.Sprintf("%.3f", r.Similarity)))
		fmt.Printf("    %s\n", r.Description)
	}
	return nil
}
