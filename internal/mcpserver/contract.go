package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/codex/internal/recordservice"
)

// Contract describes the document format of a collection for LLM consumers
// that create records through the create_record tool.
func Contract(info recordservice.CollectionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Collection %q\n\n", info.Name)
	fmt.Fprintf(&b, "Documents live in `%s/` and match `%s`. ", info.Base, info.Pattern)
	fmt.Fprintf(&b, "They are importable as `%s`.\n\n", info.Module)

	b.WriteString("## Front matter\n\n")
	b.WriteString("| field | type | required |\n|---|---|---|\n")
	declared := 0
	for _, f := range info.Fields {
		if f.Name == "id" || f.Name == "body" {
			continue
		}
		declared++
		required := "yes"
		if f.Optional {
			required = "no"
		}
		fmt.Fprintf(&b, "| `%s` | `%s` | %s |\n", f.Name, f.Type, required)
	}
	if declared == 0 {
		b.WriteString("| (any) | | no |\n")
	}

	b.WriteString("\n## Rules\n\n")
	b.WriteString("1. The YAML front matter block opens the file, fenced by `---` lines.\n")
	b.WriteString("2. The record id is the file name without its extension. It must be unique\n")
	b.WriteString("   within the collection, ignoring case.\n")
	b.WriteString("3. `id` and `body` are reserved: the body is the Markdown after the front\n")
	b.WriteString("   matter, rendered to HTML.\n")
	b.WriteString("4. Unknown front matter keys are dropped. Missing or mistyped required\n")
	b.WriteString("   fields fail the build for that document.\n")
	if info.Sort != nil {
		fmt.Fprintf(&b, "5. `list()` orders records by `%s`, %s.\n", info.Sort.Field, info.Sort.Order)
	}
	return b.String()
}
