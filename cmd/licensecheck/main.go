package main

import "github.com/LerianStudio/lib-licensing/cmd/licensecheck/cmd"

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
