package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var scenarioExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Orchestrator expands the paths given on the command line and runs a Worker over them.
type Orchestrator struct {
	worker *Worker
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(worker *Worker) *Orchestrator {
	return &Orchestrator{worker: worker}
}

// Run solves every scenario file named by paths. Directories contribute their YAML and JSON
// files, sorted by name; plain files are taken as given.
func (o *Orchestrator) Run(ctx context.Context, paths []string) (*Report, error) {
	files, err := CollectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}
	return o.worker.ProcessBatch(ctx, files)
}

// CollectFiles expands directories one level deep and drops duplicates.
func CollectFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		var inDir []string
		for _, e := range entries {
			if e.IsDir() || !scenarioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			inDir = append(inDir, filepath.Join(p, e.Name()))
		}
		sort.Strings(inDir)
		for _, f := range inDir {
			add(f)
		}
	}
	return files, nil
}
