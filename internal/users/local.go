package users

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

const dsclTimeout = 10 * time.Second

// LocalUsernames lists interactive accounts known to the macOS directory service.
// System accounts (prefixed with "_") are skipped.
func (r *Registry) LocalUsernames(ctx context.Context) ([]string, error) {
	res, err := r.runner.Run(ctx, dsclTimeout, "dscl", ".", "list", "/Users")
	if err != nil {
		return nil, fmt.Errorf("dscl: %w", err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("dscl exited with status %d: %s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	var names []string
	sc := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	return names, sc.Err()
}
