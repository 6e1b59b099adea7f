package cli

import (
	"fmt"
	"io"

	"github.com/pkg/browser"
)

func init() {
	// Launcher output would otherwise land in the command's stdout.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// OpenBrowser opens url in the default web browser. It returns once the
// browser process has been started.
func OpenBrowser(url string) error {
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
