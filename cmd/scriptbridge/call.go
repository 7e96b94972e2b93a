package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/scriptbridge/capability"
)

// newCallCmd invokes one capability directly with named arguments, which is
// handy for checking fixtures without writing a script.
func newCallCmd() *cobra.Command {
	var (
		argsFile     string
		args         []string
		fixturesFile string
	)
	cmd := &cobra.Command{
		Use:   "call <capability>",
		Short: "Invoke a single capability with named arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			logger, err := newZap(false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			named, err := loadParams(argsFile, args)
			if err != nil {
				return err
			}
			fixtures, err := loadFixtures(fixturesFile)
			if err != nil {
				return err
			}

			svc := &localServices{log: logger, fixtures: fixtures, out: cmd.OutOrStdout()}
			reg, err := capability.Standard(capability.Services{
				Reporter:       svc,
				Generator:      svc,
				Runner:         svc,
				Visualizations: svc,
			})
			if err != nil {
				return err
			}

			result, err := capability.NewBackend("cli", reg).Execute(cmd.Context(), positional[0], named)
			if err != nil {
				return err
			}
			if result == nil {
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&argsFile, "args", "", "JSON file with named arguments")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "named argument as key=value (value parsed as JSON when possible)")
	cmd.Flags().StringVar(&fixturesFile, "fixtures", "", "YAML file mapping SQL to result rows")
	return cmd
}
