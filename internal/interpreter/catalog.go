package interpreter

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/partvoice-go/internal/models"
)

// CatalogText renders the fixed operation schema for the grounded prompt:
// one line per feature type with its parameters and usage hint.
func CatalogText() string {
	var b strings.Builder
	for _, spec := range models.Catalog {
		fmt.Fprintf(&b, "  %-17s", spec.Type)
		if len(spec.Required) > 0 {
			names := make([]string, len(spec.Required))
			for i, p := range spec.Required {
				names[i] = p.Name
			}
			fmt.Fprintf(&b, " params: %s", strings.Join(names, ", "))
			if len(spec.Optional) > 0 {
				for _, p := range spec.Optional {
					fmt.Fprintf(&b, ", [%s]", p.Name)
				}
			}
		}
		if spec.Hint != "" {
			fmt.Fprintf(&b, " -- %s", spec.Hint)
		}
		b.WriteString("\n")
	}
	b.WriteString("  recall            -- show the history of this part\n")
	return b.String()
}
