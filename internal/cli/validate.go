package cli

import (
	"github.com/spf13/cobra"
)

// ValidationResult is the JSON payload of a passing validate.
type ValidationResult struct {
	Store string `json:"store"`
	Valid bool   `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <store>",
		Short: "Check a store's persisted state against its schema",
		Long: `Check the persisted state of a store against its configured schema.

Useful after a schema change: state written under the old schema is
reported here before the next write is rejected. Stores without a schema
always pass.

Example:
  storekit validate prefs --config storekit.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, name string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return report(p, "open backend", err)
	}
	defer s.Close()

	a, v, err := s.store(name)
	if err != nil {
		return report(p, "open store", err)
	}
	state, err := a.GetStoreData(ctx)
	if err != nil {
		return report(p, "read store", err)
	}
	if err := v.Validate(ctx, state); err != nil {
		return report(p, "validation failed", err)
	}
	return p.Result("✓ "+name+" valid", ValidationResult{Store: name, Valid: true})
}
