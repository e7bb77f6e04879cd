// Package main: lead tracker commands.
package main

import (
	"github.com/spf13/cobra"

	"casetrail/internal/leads"
	"casetrail/internal/merge"
	"casetrail/internal/types"
)

// =============================================================================
// LEAD TRACKER COMMANDS
// =============================================================================

// getLeadsCmd returns unexplored leads partitioned by kind. Pure read.
var getLeadsCmd = &cobra.Command{
	Use:   "get-leads",
	Short: "Return unexplored follow-up leads, partitioned by kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		doc, err := r.Load()
		if err != nil {
			return err
		}

		citations, terminology := leads.Unexplored(doc)
		return printJSON(map[string]interface{}{
			"citations":        citations,
			"terminology":      terminology,
			"total_pending":    len(doc.PendingLeads),
			"total_unexplored": len(citations) + len(terminology),
		})
	},
}

// addLeadsCmd injects orchestrator-supplied leads.
var addLeadsCmd = &cobra.Command{
	Use:   "add-leads <leads.json>",
	Short: "Add search-term leads supplied by the orchestrator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}
		incoming, err := merge.LoadLeads(args[0])
		if err != nil {
			return err
		}

		added := 0
		var doc *types.SessionDocument
		if doc, err = r.Update(func(d *types.SessionDocument) error {
			added = leads.Add(d, incoming)
			return nil
		}); err != nil {
			return err
		}
		return printJSON(map[string]int{
			"leads_added":   added,
			"total_pending": len(doc.PendingLeads),
		})
	},
}

// markExploredCmd marks lead keys explored. Unknown keys are ignored.
var markExploredCmd = &cobra.Command{
	Use:   "mark-explored <key>...",
	Short: "Mark lead keys as explored (sticky for the life of the session)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo()
		if err != nil {
			return err
		}

		marked := 0
		if _, err := r.Update(func(doc *types.SessionDocument) error {
			marked = leads.MarkExplored(doc, args)
			return nil
		}); err != nil {
			return err
		}
		return printJSON(map[string]int{"marked": marked})
	},
}
