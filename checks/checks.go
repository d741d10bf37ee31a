// Package checks holds the built-in repository checks.
package checks

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bijux/atlasctl/types"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

const (
	configsDir       = "configs"
	maxScannedBytes  = 1 << 20
	maxErrorsPerScan = 20
)

var skippedDirs = map[string]struct{}{
	".git":         {},
	"vendor":       {},
	"node_modules": {},
	"artifacts":    {},
	"_examples":    {},
}

// Builtins returns the descriptors of the checks shipped with atlasctl.
func Builtins() []types.CheckDescriptor {
	return []types.CheckDescriptor{
		{
			ID:          "checks_repo_go_mod_valid",
			Domain:      "repo",
			Description: "go.mod parses and declares a module path",
			Tags:        []string{"repo", "fast", types.TagRequired},
			Effects:     []string{"fs-read"},
			FixHint:     "run `go mod edit -fmt` and fix the reported line",
			Check:       types.CheckFunc(goModValid),
		},
		{
			ID:          "checks_repo_no_merge_markers",
			Domain:      "repo",
			Description: "no unresolved merge conflict markers in text files",
			Tags:        []string{"repo", "fast"},
			Effects:     []string{"fs-read"},
			FixHint:     "resolve the conflict and remove the markers",
			Check:       types.CheckFunc(noMergeMarkers),
		},
		{
			ID:          "checks_configs_yaml_parse",
			Domain:      "configs",
			Description: "every YAML file under configs/ parses",
			Tags:        []string{"configs", "fast", types.TagRequired},
			Effects:     []string{"fs-read"},
			FixHint:     "fix the YAML syntax error at the reported position",
			Check:       types.CheckFunc(configsParse(yamlValid, ".yaml", ".yml")),
		},
		{
			ID:          "checks_configs_json_parse",
			Domain:      "configs",
			Description: "every JSON file under configs/ parses",
			Tags:        []string{"configs", "fast", types.TagRequired},
			Effects:     []string{"fs-read"},
			FixHint:     "fix the JSON syntax error in the reported file",
			Check:       types.CheckFunc(configsParse(jsonValid, ".json")),
		},
		{
			ID:          "checks_docs_readme_present",
			Domain:      "docs",
			Description: "the repository root has a non-empty README.md",
			Tags:        []string{"docs", "fast"},
			Effects:     []string{"fs-read"},
			FixHint:     "add a README.md describing the repository",
			Check:       types.CheckFunc(readmePresent),
		},
	}
}

// Registrar is satisfied by the check registry.
type Registrar interface {
	RegisterAll(descs ...types.CheckDescriptor) error
}

// Register adds every built-in check to r.
func Register(r Registrar) error {
	return r.RegisterAll(Builtins()...)
}

func goModValid(_ context.Context, env types.CheckEnv) types.CheckOutcome {
	path := filepath.Join(env.RepoRoot, "go.mod")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.CheckOutcome{Warnings: []string{"no go.mod at repository root"}}
	}
	if err != nil {
		return types.CheckOutcome{Errors: []string{fmt.Sprintf("failed to read go.mod: %v", err)}}
	}
	mf, err := modfile.Parse(path, data, nil)
	if err != nil {
		return types.CheckOutcome{Errors: []string{err.Error()}, Evidence: []string{"go.mod"}}
	}
	if mf.Module == nil || mf.Module.Mod.Path == "" {
		return types.CheckOutcome{Errors: []string{"go.mod declares no module path"}, Evidence: []string{"go.mod"}}
	}
	return types.CheckOutcome{}
}

func readmePresent(_ context.Context, env types.CheckEnv) types.CheckOutcome {
	info, err := os.Stat(filepath.Join(env.RepoRoot, "README.md"))
	switch {
	case err != nil:
		return types.CheckOutcome{Errors: []string{"README.md is missing"}}
	case info.IsDir():
		return types.CheckOutcome{Errors: []string{"README.md is a directory"}}
	case info.Size() == 0:
		return types.CheckOutcome{Errors: []string{"README.md is empty"}, Evidence: []string{"README.md"}}
	}
	return types.CheckOutcome{}
}

func yamlValid(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func jsonValid(data []byte) error {
	var v any
	return json.Unmarshal(data, &v)
}

func configsParse(parse func([]byte) error, exts ...string) func(context.Context, types.CheckEnv) types.CheckOutcome {
	return func(ctx context.Context, env types.CheckEnv) types.CheckOutcome {
		var out types.CheckOutcome
		root := filepath.Join(env.RepoRoot, configsDir)
		if _, err := os.Stat(root); err != nil {
			return out
		}
		err := walkFiles(ctx, root, func(path string) error {
			if !hasExt(path, exts) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := parse(data); err != nil {
				rel := relPath(env.RepoRoot, path)
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", rel, err))
				out.Evidence = append(out.Evidence, rel)
			}
			return nil
		})
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
		}
		return out
	}
}

var mergeMarkers = []string{"<<<<<<< ", ">>>>>>> ", "|||||||"}

func noMergeMarkers(ctx context.Context, env types.CheckEnv) types.CheckOutcome {
	var out types.CheckOutcome
	err := walkFiles(ctx, env.RepoRoot, func(path string) error {
		if len(out.Errors) >= maxErrorsPerScan {
			return nil
		}
		line, found, err := findMergeMarker(path)
		if err != nil || !found {
			return err
		}
		rel := relPath(env.RepoRoot, path)
		out.Errors = append(out.Errors, fmt.Sprintf("%s:%d: merge conflict marker", rel, line))
		out.Evidence = append(out.Evidence, rel)
		return nil
	})
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

func findMergeMarker(path string) (int, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return 0, false, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, false, err
	}

	scanner := bufio.NewScanner(io.LimitReader(f, maxScannedBytes))
	scanner.Buffer(make([]byte, 64*1024), maxScannedBytes)
	for n := 1; scanner.Scan(); n++ {
		text := scanner.Text()
		for _, marker := range mergeMarkers {
			if strings.HasPrefix(text, marker) {
				return n, true, nil
			}
		}
	}
	return 0, false, nil
}

func walkFiles(ctx context.Context, root string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path)
	})
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
