package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDir reads every .yaml/.yml file directly under dir into the registry
// and returns the number of exercises loaded. The first malformed file aborts
// the load; exercises registered before it stay registered.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read exercise dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ex, err := loadFile(path)
		if err != nil {
			return loaded, err
		}
		if err := r.Register(ex); err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}

func loadFile(path string) (Exercise, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Exercise{}, fmt.Errorf("read exercise: %w", err)
	}

	var ex Exercise
	if err := yaml.Unmarshal(data, &ex); err != nil {
		return Exercise{}, fmt.Errorf("parse exercise %s: %w", path, err)
	}
	if ex.ID == "" {
		return Exercise{}, fmt.Errorf("parse exercise %s: id required", path)
	}
	return ex, nil
}
