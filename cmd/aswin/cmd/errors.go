package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/errors"
)

// FormatError renders err with actionable guidance for the known failure
// classes.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	msg := "error: " + err.Error()
	if hint := hintFor(err); hint != "" {
		msg += "\n" + hint
	}
	return msg
}

func hintFor(err error) string {
	var ex *errors.ExplosionError
	switch {
	case errors.As(err, &ex):
		if ex.Reason == "timeout" {
			return fmt.Sprintf("  → %d belief supports explored in %s\n"+
				"  → raise the limit:  --timeout %s (or explore.timeout in .aswin/config.yaml)",
				ex.NodesExplored, ex.Elapsed.Round(time.Millisecond), 2*ex.Elapsed.Round(time.Second))
		}
		return fmt.Sprintf("  → %d belief supports explored, limit %d\n"+
			"  → raise the limit:  --max-nodes %d (or explore.max_nodes in .aswin/config.yaml)",
			ex.NodesExplored, ex.Limit, 2*ex.Limit)
	case errors.Is(err, errors.ErrMalformedPOMDP):
		return "  → check the POMDP document: every (state, action) row and every observation row must sum to 1"
	case errors.Is(err, errors.ErrMalformedAutomaton):
		return "  → check the automaton: exactly one edge must match each valuation, priorities must be 0, 1 or 2"
	case errors.Is(err, errors.ErrUnsolvableGraph):
		return "  → the explored belief-support graph has no states to solve"
	case errors.Is(err, app.ErrStorageDisabled):
		return "  → enable it with storage.enabled: true in .aswin/config.yaml"
	case isDBLockError(err):
		return "  → the run database is held by another aswin process (a running watch?)\n" +
			"  → stop it, then retry your command"
	}
	return ""
}

// isDBLockError returns true if the error chain contains a bbolt lock timeout.
// bbolt returns the string "timeout" when it cannot acquire the file lock
// within the configured deadline.
func isDBLockError(err error) bool {
	return strings.Contains(err.Error(), "open store") && strings.Contains(err.Error(), "timeout")
}
