package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/durable"
)

// ItemResult is the JSON payload of get, set and rm on a single key.
type ItemResult struct {
	Store string `json:"store"`
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
}

// DumpResult is the JSON payload of dump.
type DumpResult struct {
	Key      string            `json:"key,omitempty"`
	Envelope *durable.Envelope `json:"envelope,omitempty"`
	Keys     []string          `json:"keys,omitempty"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <store> [key]",
		Short: "Print a store's state or one of its items",
		Long: `Print the persisted state of a store, or a single item of it.

Values are printed as canonical JSON. A missing key exits with status 1.

Example:
  storekit get prefs
  storekit get prefs theme --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args, cmd)
		},
	}
}

func runGet(opts *RootOptions, args []string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return report(p, "open backend", err)
	}
	defer s.Close()

	a, _, err := s.store(args[0])
	if err != nil {
		return report(p, "open store", err)
	}

	if len(args) == 1 {
		state, err := a.GetStoreData(ctx)
		if err != nil {
			return report(p, "read store", err)
		}
		return p.Result(render(state), state)
	}

	key := args[1]
	value, err := a.GetItem(ctx, key, nil)
	if err != nil {
		return report(p, "read item", err)
	}
	if value == nil {
		return report(p, "read item", fmt.Errorf("%s.%s: %w", args[0], key, errNotFound))
	}
	return p.Result(render(value), ItemResult{Store: args[0], Key: key, Value: value})
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <store> <key> <json>",
		Short: "Write one item of a store",
		Long: `Write one item of a store through its schema.

The value is parsed as JSON. When the resulting state fails the store's
schema nothing is written, the failed checks are listed and the command
exits with status 1.

Example:
  storekit set prefs theme '"dark"'
  storekit set prefs fontSize 14`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(rootOpts, args, cmd)
		},
	}
}

func runSet(opts *RootOptions, args []string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)
	ctx := cmd.Context()
	name, key := args[0], args[1]

	value, err := parseJSON(args[2])
	if err != nil {
		return report(p, "invalid input", err)
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return report(p, "open backend", err)
	}
	defer s.Close()

	a, _, err := s.store(name)
	if err != nil {
		return report(p, "open store", err)
	}
	if err := a.SetItem(ctx, key, value); err != nil {
		return report(p, "write item", err)
	}
	opts.Logger.Debug("item written", "store", name, "key", key)

	return p.Result("ok", ItemResult{Store: name, Key: key, Value: value})
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <store> <key>",
		Short: "Remove one item of a store",
		Long: `Remove one item of a store.

Removal is not checked against the schema. Removing a missing key
succeeds.

Example:
  storekit rm prefs theme`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args, cmd)
		},
	}
}

func runRemove(opts *RootOptions, args []string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return report(p, "open backend", err)
	}
	defer s.Close()

	a, _, err := s.store(args[0])
	if err != nil {
		return report(p, "open store", err)
	}
	if err := a.RemoveItem(ctx, args[1]); err != nil {
		return report(p, "remove item", err)
	}
	return p.Result("removed", ItemResult{Store: args[0], Key: args[1]})
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [store]",
		Short: "Print raw slots",
		Long: `Print the stored envelope of a store, including its write date.

Without a store name, list every key held by the backend.

Example:
  storekit dump
  storekit dump prefs`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(rootOpts, args, cmd)
		},
	}
}

func runDump(opts *RootOptions, args []string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return report(p, "open backend", err)
	}
	defer s.Close()

	if len(args) == 0 {
		keys, err := s.kv.Keys(ctx)
		if err != nil {
			return report(p, "list keys", err)
		}
		return p.Result(strings.Join(keys, "\n"), DumpResult{Keys: keys})
	}

	a, _, err := s.store(args[0])
	if err != nil {
		return report(p, "open store", err)
	}
	env, err := a.GetEnvelope(ctx)
	if err != nil {
		return report(p, "read store", err)
	}
	if env.Date == 0 {
		return report(p, "read store", fmt.Errorf("%s: %w", args[0], errNotFound))
	}
	return p.Result(render(env), DumpResult{Key: a.Key(), Envelope: &env})
}
