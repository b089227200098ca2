package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var partsCmd = &cobra.Command{
	Use:   "parts",
	Short: "List parts with recorded memory",
	RunE:  runParts,
}

func runParts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	parts, err := dbClient.ListParts(ctx)
	if err != nil {
		return fmt.Errorf("list parts: %w", err)
	}
	if len(parts) == 0 {
		fmt.Println("No parts found.")
		return nil
	}

	fmt.Printf("Parts (%d):\n\n", len(parts))
	for _, p := range parts {
		count, err := dbClient.CountRecords(ctx, p)
		if err != nil {
			return fmt.Errorf("count records for %s: %w", p, err)
		}
		fmt.Printf("- %s (%d features)\n", p, count)
	}
	return nil
}
