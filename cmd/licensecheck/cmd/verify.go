package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LerianStudio/lib-licensing/licensing"
	"github.com/LerianStudio/lib-licensing/licensing/config"
	"github.com/LerianStudio/lib-licensing/licensing/license"
	"github.com/LerianStudio/lib-licensing/licensing/log"
	"github.com/spf13/cobra"
)

const (
	tracerName = "github.com/LerianStudio/lib-licensing/cmd/licensecheck"

	// EnvShutdownTimeout overrides the default of --telemetry-shutdown-timeout.
	EnvShutdownTimeout            = "LICENSE_TELEMETRY_SHUTDOWN_TIMEOUT"
	defaultShutdownTimeoutSeconds = 5
)

type verifyOptions struct {
	packageName    string
	keys           []string
	keysFile       string
	productVersion string
	publicKeyFile  string
	debuggable     bool
	shutdownWait   int64
}

func newVerifyCommand(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	c := &cobra.Command{
		Use:   "verify",
		Short: "Check whether any stored license key is valid for a package",
		Long: "Check the license keys given with --key, read from --keys-file, or configured through\n" +
			"LICENSE_KEYS / LICENSE_KEYS_FILE. Exits with status 1 when no key is valid.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, root, opts)
		},
	}

	c.Flags().StringVar(&opts.packageName, "package", licensing.GetenvOrDefault(config.EnvPackageName, ""),
		"Application package identifier")
	c.Flags().StringArrayVar(&opts.keys, "key", nil, "License key to check (repeatable)")
	c.Flags().StringVar(&opts.keysFile, "keys-file", "", "YAML file holding licenseKeys / licenseKey")
	c.Flags().StringVar(&opts.productVersion, "product-version", "", "Version token versioned keys must carry")
	c.Flags().StringVar(&opts.publicKeyFile, "public-key", "", "PEM public key overriding the embedded issuer key")
	c.Flags().BoolVar(&opts.debuggable, "debuggable", licensing.GetenvBoolOrDefault(config.EnvDebuggable, false),
		"Report a missing license at info instead of error")
	c.Flags().Int64Var(&opts.shutdownWait, "telemetry-shutdown-timeout",
		licensing.GetenvIntOrDefault(EnvShutdownTimeout, defaultShutdownTimeoutSeconds),
		"Seconds to wait for telemetry to flush before exiting")

	return c
}

func runVerify(cmd *cobra.Command, root *rootOptions, opts *verifyOptions) error {
	cfg := root.cfg

	if opts.packageName != "" {
		cfg.PackageName = opts.packageName
	}

	if opts.productVersion != "" {
		cfg.ProductVersion = opts.productVersion
	}

	if opts.publicKeyFile != "" {
		cfg.PublicKeyFile = opts.publicKeyFile
	}

	if opts.keysFile != "" {
		cfg.Keys = ""
		cfg.KeysFile = opts.keysFile
	}

	if cmd.Flags().Changed("debuggable") {
		cfg.Debuggable = opts.debuggable
	}

	if strings.TrimSpace(cfg.PackageName) == "" {
		return fmt.Errorf("a package identifier is required: use --package or %s", config.EnvPackageName)
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}

	defer func() { _ = logger.Sync(cmd.Context()) }()

	verifierOpts, err := cfg.VerifierOptions()
	if err != nil {
		return err
	}

	telemetry, err := cfg.Telemetry(cmd.Context(), logger, cliVersion)
	if err != nil {
		return err
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout(opts.shutdownWait))
		defer cancel()

		if err := telemetry.ShutdownTelemetry(ctx); err != nil {
			logger.Log(cmd.Context(), log.LevelWarn, "telemetry shutdown failed", log.Err(err))
		}
	}()

	verifierOpts = append(verifierOpts,
		license.WithLogger(logger),
		license.WithTracer(telemetry.Tracer(tracerName)),
		license.WithMetrics(telemetry.Metrics()),
	)

	verifier, err := license.New(verifierOpts...)
	if err != nil {
		return err
	}

	var store license.KeyStore = license.StaticKeys(opts.keys)
	if len(opts.keys) == 0 {
		store = cfg.KeyStore()
	}

	keys, err := store.LicenseKeys(cmd.Context())
	if err != nil {
		return err
	}

	manager := license.NewManager(verifier, license.StaticKeys(keys), cfg.PackageName,
		license.WithManagerLogger(logger),
		license.WithDebuggable(cfg.Debuggable),
	)

	valid, err := manager.Validate(cmd.Context())
	if err != nil {
		return err
	}

	report := verifyReport{
		Package:        cfg.PackageName,
		ProductVersion: verifier.ProductVersion(),
		Valid:          valid,
		Candidates:     make([]candidateReport, 0, len(keys)),
	}

	for _, result := range verifier.Inspect(cfg.PackageName, keys) {
		report.Candidates = append(report.Candidates, candidateReport{
			Index:   result.Index,
			Form:    formLabel(result),
			Version: result.Version,
			Failure: failureLabel(result),
		})
	}

	if err := writeVerifyReport(cmd, root.useYAML, report); err != nil {
		return err
	}

	if !valid {
		return errInvalidLicense
	}

	return nil
}

func shutdownTimeout(seconds int64) time.Duration {
	if seconds <= 0 {
		seconds = defaultShutdownTimeoutSeconds
	}

	return time.Duration(seconds) * time.Second
}

func formLabel(result license.Result) string {
	if result.Failure == license.FailureBlank || result.Failure == license.FailureMalformed {
		return "-"
	}

	return result.Form.String()
}

func failureLabel(result license.Result) string {
	if result.Valid() {
		return "ok"
	}

	return result.Failure.String()
}

func writeVerifyReport(cmd *cobra.Command, useYAML bool, report verifyReport) error {
	out := cmd.OutOrStdout()

	if useYAML {
		return yamlOut(out, report)
	}

	verdict := "INVALID"
	if report.Valid {
		verdict = "VALID"
	}

	fmt.Fprintf(out, "%s license for %s (product version %s)\n", verdict, report.Package, report.ProductVersion)

	if len(report.Candidates) == 0 {
		fmt.Fprintln(out, "no license keys found")
		return nil
	}

	printTable(out, "%-6s %-10s %-14s %s", 50, "INDEX", "FORM", "VERSION", "RESULT")

	for _, c := range report.Candidates {
		version := c.Version
		if version == "" {
			version = "-"
		}

		fmt.Fprintf(out, "%-6d %-10s %-14s %s\n", c.Index, c.Form, version, c.Failure)
	}

	return nil
}
