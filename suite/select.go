package suite

import (
	"github.com/bijux/atlasctl/types"
	"github.com/gobwas/glob"
)

// Select filters tasks by only/skip glob patterns matched against "kind:value". An empty
// only list keeps everything; skip is applied after only. Patterns that fail to compile
// never match. The relative order of tasks is preserved.
func Select(tasks []types.TaskSpec, only, skip []string) []types.TaskSpec {
	onlyMatchers := compilePatterns(only)
	skipMatchers := compilePatterns(skip)

	out := make([]types.TaskSpec, 0, len(tasks))
	for _, task := range tasks {
		key := task.Key()
		if len(only) > 0 && !matchAny(onlyMatchers, key) {
			continue
		}
		if matchAny(skipMatchers, key) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func compilePatterns(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

func matchAny(matchers []glob.Glob, key string) bool {
	for _, g := range matchers {
		if g.Match(key) {
			return true
		}
	}
	return false
}
