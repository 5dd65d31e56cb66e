package cmd

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type candidateReport struct {
	Index   int    `yaml:"index"`
	Form    string `yaml:"form"`
	Version string `yaml:"version,omitempty"`
	Failure string `yaml:"failure"`
}

type verifyReport struct {
	Package        string            `yaml:"package"`
	ProductVersion string            `yaml:"productVersion"`
	Valid          bool              `yaml:"valid"`
	Candidates     []candidateReport `yaml:"candidates"`
}

// yamlOut prints data as a YAML document.
func yamlOut(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(data); err != nil {
		return err
	}

	return enc.Close()
}

// printTable prints a simple formatted table header with separator.
func printTable(w io.Writer, format string, width int, columns ...any) {
	fmt.Fprintf(w, format+"\n", columns...)
	fmt.Fprintln(w, strings.Repeat("-", width))
}
