package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/hashid"
)

// HashOptions holds flags for the hash command.
type HashOptions struct {
	*RootOptions
	Snapshot bool
}

// HashResult is the JSON payload of the hash command.
type HashResult struct {
	Hash      string `json:"hash"`
	Canonical string `json:"canonical"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash <json>",
		Short: "Print the fingerprint of a JSON value",
		Long: `Print the content fingerprint of a JSON value.

Values that are equal after canonicalization share a fingerprint, so key
order and number formatting do not matter. History record keys start with
the fingerprint of the binding's initial value.

Example:
  storekit hash '{"page":1,"query":"shoes"}'
  storekit hash --snapshot '{"count":3}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Snapshot, "snapshot", false, "hash in the snapshot domain")

	return cmd
}

func runHash(opts *HashOptions, input string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)

	value, err := parseJSON(input)
	if err != nil {
		return report(p, "invalid input", err)
	}

	hash := hashid.Hash
	if opts.Snapshot {
		hash = hashid.SnapshotHash
	}
	sum, err := hash(value)
	if err != nil {
		return report(p, "hash failed", err)
	}
	opts.Logger.Debug("canonicalized", "canonical", render(value))

	return p.Result(sum, HashResult{Hash: sum, Canonical: render(value)})
}

func parseJSON(input string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(input), &v); err != nil {
		return nil, &ConfigError{Code: ErrCodeInput, Message: "value is not valid JSON", Err: err}
	}
	return v, nil
}
