package skills

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExtensions lists the document extensions tried when none are configured.
var DefaultExtensions = []string{"md"}

type loadOptions struct {
	extensions []string
	enabled    []string
}

// LoadOption configures LoadAll.
type LoadOption func(*loadOptions)

// WithExtensions sets the extensions tried for each skill's defining document,
// in order of preference. Leading dots are ignored.
func WithExtensions(exts ...string) LoadOption {
	return func(o *loadOptions) {
		if len(exts) > 0 {
			o.extensions = exts
		}
	}
}

// WithEnabled keeps only skills whose name matches one of the glob patterns.
// No patterns means every skill is kept.
func WithEnabled(patterns ...string) LoadOption {
	return func(o *loadOptions) {
		o.enabled = patterns
	}
}

// LoadAll scans the immediate subdirectories of dir and parses each one's
// defining document (<sub>/<sub>.<ext>). A missing or unreadable root yields an
// empty result; entries that are not directories or lack a defining document
// are skipped. Skills are returned in directory name order.
func LoadAll(dir string, opts ...LoadOption) []Skill {
	o := loadOptions{extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("skills directory not found, skipping", "dir", dir)
		} else {
			slog.Warn("failed to read skills directory", "dir", dir, "error", err)
		}
		return []Skill{}
	}

	result := []Skill{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		skillDir := filepath.Join(dir, entry.Name())
		path, ok := findDocument(skillDir, entry.Name(), o.extensions)
		if !ok {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read skill", "path", path, "error", err)
			continue
		}

		skill := ParseDocument(string(data), entry.Name())
		skill.Dir = skillDir
		skill.Path = path

		if !isEnabled(skill.Name, o.enabled) {
			slog.Debug("skill skipped (not enabled)", "name", skill.Name)
			continue
		}

		result = append(result, skill)
	}

	return result
}

func findDocument(skillDir, name string, extensions []string) (string, bool) {
	for _, ext := range extensions {
		if len(ext) > 0 && ext[0] == '.' {
			ext = ext[1:]
		}
		path := filepath.Join(skillDir, name+"."+ext)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		return path, true
	}
	return "", false
}

func isEnabled(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
