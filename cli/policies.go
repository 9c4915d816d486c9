package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kestrelos/preempt/sched/preempt"
)

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List registered placement policies",
		Run: func(cmd *cobra.Command, args []string) {
			names := preempt.RegisteredPolicies()
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
