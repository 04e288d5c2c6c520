package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/subosito/gotenv"

	"github.com/bnema/nap-alarm/cmd"
	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

// Build-time variables injected by ldflags
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	// Load .env from the working directory first, then the XDG config dir; the first one found wins
	tryPaths := []string{".env", filepath.Join(xdg.ConfigHome, "nap-alarm", ".env")}
	for _, p := range tryPaths {
		if _, err := os.Stat(p); err == nil {
			if loadErr := gotenv.Load(p); loadErr == nil {
				break
			}
		}
	}

	cmd.SetVersionInfo(Version, CommitHash, BuildTime)

	if err := cmd.Execute(); err != nil {
		logger.Debug("command execution failed", "error", err, "kind", failure.KindOf(err).String())
		if failure.KindOf(err) == failure.KindAPI {
			fmt.Fprintln(os.Stdout, cmd.ErrorMessage(err))
		} else {
			fmt.Fprintln(os.Stderr, cmd.ErrorMessage(err))
		}
		os.Exit(cmd.ExitCode(err))
	}
}
