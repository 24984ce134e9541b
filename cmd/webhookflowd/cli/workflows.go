package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/compozy/webhookflow/engine/workflow"
)

// loadWorkflowFile reads and parses a single workflow definition file
// (YAML or JSON; both go through the YAML decoder, since JSON is valid
// YAML), assigns default action IDs, and
// leaves schema/business-rule validation to the caller.
func loadWorkflowFile(path string) (*workflow.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	def := &workflow.Definition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	workflow.AssignActionIDs(def)
	return def, nil
}

// loadWorkflowDir loads every *.yaml/*.yml/*.json file directly under dir
// as a workflow definition. A missing directory yields an empty, non-error
// result so a deployment without a workflows directory still starts.
func loadWorkflowDir(dir string) ([]*workflow.Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read workflows directory %s: %w", dir, err)
	}
	var defs []*workflow.Definition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		def, err := loadWorkflowFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
