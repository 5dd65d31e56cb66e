package cmd

import (
	"fmt"

	"github.com/LerianStudio/lib-licensing/licensing/license"
	"github.com/spf13/cobra"
)

type keyReport struct {
	Form           string `yaml:"form"`
	Version        string `yaml:"version,omitempty"`
	SignatureBytes int    `yaml:"signatureBytes,omitempty"`
	Error          string `yaml:"error,omitempty"`
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect KEY...",
		Short: "Show the form and version of license keys without verifying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]keyReport, 0, len(args))

			for _, raw := range args {
				reports = append(reports, inspectKey(raw))
			}

			if root.useYAML {
				return yamlOut(cmd.OutOrStdout(), reports)
			}

			for i, r := range reports {
				if r.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%d: invalid: %s\n", i, r.Error)
					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d: %s version=%q signature=%d bytes\n", i, r.Form, r.Version, r.SignatureBytes)
			}

			return nil
		},
	}
}

func inspectKey(raw string) keyReport {
	key, err := license.ParseKey(raw)
	if err != nil {
		return keyReport{Form: "-", Error: err.Error()}
	}

	report := keyReport{Form: key.Form.String(), Version: key.Version}

	sig, err := key.Signature()
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.SignatureBytes = len(sig)

	return report
}
