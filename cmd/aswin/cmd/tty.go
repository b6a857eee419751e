package cmd

import "os"

// isStdoutTTY returns true if stdout is connected to a terminal.
func isStdoutTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// useColor resolves --no-color, the NO_COLOR convention and the TTY check.
func useColor() bool {
	if noColorFlag || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isStdoutTTY()
}
