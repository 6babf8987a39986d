package app

import (
	"fmt"
	"io"
	"time"

	"sked/internal/config"
	"sked/pkg/sked"
)

// Check prints every task's rule and its next n due instants after from, in
// UTC like the rules themselves.
// It validates the config first and never starts anything.
func Check(w io.Writer, cfg *config.Config, from time.Time, n int) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if n <= 0 {
		n = 3
	}
	for _, tc := range cfg.Tasks {
		f, err := tc.Schedule()
		if err != nil {
			return fmt.Errorf("task %s: %w", tc.Name, err)
		}
		p := f.Period()
		state := ""
		if !tc.IsEnabled() {
			state = " (disabled)"
		}
		fmt.Fprintf(w, "%s%s: %s, action=%s\n", tc.Name, state, p, tc.ActionName())
		shown := n
		if tc.Once {
			shown = 1
		}
		for _, t := range sked.Upcoming(p, from, shown) {
			fmt.Fprintf(w, "  %s\n", t.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// CheckFile loads and validates path without committing it anywhere, then
// runs Check.
func CheckFile(w io.Writer, path string, from time.Time, n int) error {
	cfg, err := config.NewManager(path).Parse()
	if err != nil {
		return err
	}
	return Check(w, cfg, from, n)
}
