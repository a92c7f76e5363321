package internal

import (
	"context"
	"fmt"
	"io"

	"github.com/disiqueira/gotree/v3"

	"github.com/starford/codex/internal/plugin"
)

// printTree writes every collection and its record ids in list order.
// A collection that fails to list shows the error in place of its records.
func printTree(ctx context.Context, w io.Writer, host *plugin.Host) error {
	tree := gotree.New("collections")
	for _, c := range host.Collections() {
		cfg := c.Config()
		node := tree.Add(fmt.Sprintf("%s (%s, %s)", cfg.Name, cfg.Module(), cfg.Base))
		records, err := c.List(ctx)
		if err != nil {
			node.Add("error: " + err.Error())
			continue
		}
		for _, r := range records {
			node.Add(r.ID)
		}
	}
	_, err := io.WriteString(w, tree.Print())
	return err
}
