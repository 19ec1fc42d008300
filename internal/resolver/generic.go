// internal/resolver/generic.go
package resolver

import (
	"fmt"
	"strings"
)

var genericPatterns = []string{
	`[class*="%s"]`,
	`[id*="%s"]`,
	`span[class*="%s"]`,
	`div[class*="%s"]`,
	`.%s`,
	`#%s`,
}

// GenericSelectors derives fallback CSS selectors from a semantic name such
// as a field name. The name is lowercased with underscores turned into
// hyphens; names containing underscores get a second pass with the
// underscores kept. Whitespace inside the name becomes a hyphen.
func GenericSelectors(name string) []string {
	base := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	if base == "" {
		return nil
	}

	variants := []string{strings.ReplaceAll(base, "_", "-")}
	if strings.Contains(base, "_") {
		variants = append(variants, base)
	}

	out := make([]string, 0, len(variants)*len(genericPatterns))
	for _, v := range variants {
		quoted := strings.ReplaceAll(v, `"`, `\"`)
		for _, p := range genericPatterns {
			arg := v
			if strings.Contains(p, `"%s"`) {
				arg = quoted
			}
			out = append(out, fmt.Sprintf(p, arg))
		}
	}
	return out
}
