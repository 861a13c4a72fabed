package worker

import (
	"bufio"
	"fmt"
	"os"
)

// LoadPrompts reads the prompt corpus, one prompt per line, skipping blank
// lines. An unreadable or empty corpus is an error; callers treat it as
// fatal at startup since a worker without prompts cannot host a contest.
func LoadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening prompts file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompts file %s contains no prompts", path)
	}
	return prompts, nil
}
