package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-care-engine/internal/config"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

// NewPolicyCommand prints the care types the engine accepts. It reads CARE_POLICY_FILE
// (or --file) and does not touch the database.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show the effective care policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = os.Getenv("CARE_POLICY_FILE")
			}
			policy, err := config.LoadCarePolicy(file)
			if err != nil {
				return err
			}
			return printPolicy(policy, rootOpts.Format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "policy YAML file")

	return cmd
}

func printPolicy(policy domain.CarePolicy, format string, out io.Writer) error {
	if format == "json" {
		defaults := make(map[string]int, len(policy.Defaults))
		for ct, days := range policy.Defaults {
			defaults[string(ct)] = days
		}
		return json.NewEncoder(out).Encode(map[string]interface{}{"care_types": defaults})
	}

	for _, ct := range policy.CareTypes() {
		fmt.Fprintf(out, "%-14s every %d days\n", ct, policy.DefaultFrequency(ct))
	}
	return nil
}
