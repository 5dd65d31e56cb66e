package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/LerianStudio/lib-licensing/licensing/config"
	"github.com/spf13/cobra"
)

var cliVersion = "dev"

// errInvalidLicense makes the process exit non-zero without printing usage.
var errInvalidLicense = errors.New("no valid license key")

type rootOptions struct {
	configFile string
	useYAML    bool
	cfg        config.Config
}

// NewRootCommand builds the licensecheck command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "licensecheck",
		Short:         "Verify and inspect plugin license keys",
		Version:       cliVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var (
				cfg config.Config
				err error
			)

			if opts.configFile != "" {
				cfg, err = config.LoadFile(opts.configFile)
			} else {
				cfg, err = config.Load()
			}

			if err != nil {
				return err
			}

			opts.cfg = cfg

			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file (env vars still override)")
	root.PersistentFlags().BoolVar(&opts.useYAML, "yaml", false, "Print output in YAML format instead of text")

	root.AddCommand(newVerifyCommand(opts), newInspectCommand(opts))

	return root
}

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	cliVersion = v
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, errInvalidLicense) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}

		os.Exit(1)
	}
}
