package memorystore

import (
	"context"
	"fmt"
	"os"

	"github.com/dogmatiq/jobpack/workflow"
	"gopkg.in/yaml.v3"
)

// Scheme is the workflow locator scheme for the in-memory store.
//
// The path component of the locator is an optional YAML seed file.
const Scheme = "memory"

func init() {
	workflow.Register(Scheme, func(ctx context.Context, path string) (workflow.Store, error) {
		s := &Store{}

		if path == "" {
			return s, nil
		}

		if err := Seed(s, path); err != nil {
			return nil, err
		}

		return s, nil
	})
}

// seedItem is the YAML representation of a work-item in a seed file.
type seedItem struct {
	ID   string                 `yaml:"id"`
	Spec map[string]interface{} `yaml:"spec"`
}

// Seed adds the work-items listed in the YAML file at path to s.
//
// The file contains a sequence of mappings with "id" and "spec" keys. Each
// spec is converted by workflow.PlainMap().
func Seed(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var items []seedItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unable to parse seed file %s: %w", path, err)
	}

	for _, it := range items {
		if err := s.Add(workflow.WorkItem{
			ID:   workflow.WorkItemID(it.ID),
			Spec: workflow.PlainMap(it.Spec),
		}); err != nil {
			return fmt.Errorf("unable to seed work-items from %s: %w", path, err)
		}
	}

	return nil
}
