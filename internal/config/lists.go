package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadList reads a line-oriented list. Blank lines and lines starting with #
// are skipped; surrounding whitespace is trimmed.
func ReadList(path string) ([]string, error) {
	// #nosec G304 -- list paths come from operator configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	return out, nil
}
