// Package refdata loads court reference data used to label task changes.
package refdata

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// WorkQueue is a named queue of tasks.
type WorkQueue struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// File is the on-disk layout of a reference data file:
//
//	workQueues:
//	  - id: a1a1a1a1-0000-4000-8000-000000000001
//	    name: Listing Team
type File struct {
	WorkQueues []WorkQueue `yaml:"workQueues"`
}

// Resolver answers work-queue name lookups from loaded reference data.
type Resolver struct {
	workQueues map[string]string
}

// Empty returns a resolver that resolves nothing.
func Empty() *Resolver {
	return &Resolver{workQueues: map[string]string{}}
}

// Load reads a YAML reference data file.
func Load(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data %s: %w", path, err)
	}
	r, err := FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parse reference data %s: %w", path, err)
	}
	return r, nil
}

// FromYAML builds a resolver from YAML content. Queue ids must be UUIDs and
// unique.
func FromYAML(data []byte) (*Resolver, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	r := &Resolver{workQueues: make(map[string]string, len(f.WorkQueues))}
	for i, q := range f.WorkQueues {
		if _, err := uuid.Parse(q.ID); err != nil {
			return nil, fmt.Errorf("workQueues[%d]: invalid id %q", i, q.ID)
		}
		if _, dup := r.workQueues[q.ID]; dup {
			return nil, fmt.Errorf("workQueues[%d]: duplicate id %s", i, q.ID)
		}
		r.workQueues[q.ID] = q.Name
	}
	return r, nil
}

// ResolveWorkQueueName returns the display name of a work queue.
func (r *Resolver) ResolveWorkQueueName(_ context.Context, workQueueID string) (string, bool) {
	name, ok := r.workQueues[workQueueID]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Len reports the number of known work queues.
func (r *Resolver) Len() int {
	return len(r.workQueues)
}
