package scheduler

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/tanq16/siesta/internal/session"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	URL     string         `yaml:"url"`
	User    string         `yaml:"user,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// BatchFile is the YAML document accepted by the batch command. Entries
// without a user inherit the top-level one.
type BatchFile struct {
	User      string         `yaml:"user"`
	Options   map[string]any `yaml:"options,omitempty"`
	Downloads []BatchEntry   `yaml:"downloads"`
}

func LoadBatch(path string) ([]session.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	var bf BatchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("error parsing batch file: %w", err)
	}
	var reqs []session.Request
	for i, e := range bf.Downloads {
		if e.URL == "" {
			return nil, fmt.Errorf("entry %d has no url", i+1)
		}
		user := e.User
		if user == "" {
			user = bf.User
		}
		opts := make(map[string]any, len(bf.Options)+len(e.Options))
		for k, v := range bf.Options {
			opts[k] = v
		}
		for k, v := range e.Options {
			opts[k] = v
		}
		reqs = append(reqs, session.Request{
			UserID:    user,
			TaskID:    uuid.NewString(),
			URL:       e.URL,
			Overrides: opts,
		})
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no downloads found in batch file")
	}
	return reqs, nil
}
