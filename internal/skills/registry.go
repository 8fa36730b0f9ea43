package skills

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrSkillNotFound is matched by errors.Is for every NotFoundError.
var ErrSkillNotFound = errors.New("skill not found")

// NotFoundError reports a lookup miss along with the names that do exist.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Skill '%s' not found. Available skills: %s", e.Name, strings.Join(e.Available, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrSkillNotFound }

// Registry holds the skills loaded at startup. It is never mutated after
// construction, so it can be shared between goroutines without locking.
type Registry struct {
	skills []Skill
	index  map[string]int
}

// NewRegistry builds a registry from already parsed skills. When two skills
// share a name the later one replaces the earlier one in place.
func NewRegistry(skills []Skill) *Registry {
	r := &Registry{
		skills: make([]Skill, 0, len(skills)),
		index:  make(map[string]int, len(skills)),
	}
	for _, s := range skills {
		if i, exists := r.index[s.Name]; exists {
			slog.Warn("duplicate skill name, later definition wins",
				"name", s.Name, "previous", r.skills[i].Path, "path", s.Path)
			r.skills[i] = s
			continue
		}
		r.index[s.Name] = len(r.skills)
		r.skills = append(r.skills, s)
	}
	return r
}

// LoadRegistry scans dir (see LoadAll) and builds a registry from the result.
func LoadRegistry(dir string, opts ...LoadOption) *Registry {
	r := NewRegistry(LoadAll(dir, opts...))
	slog.Debug("skills loaded", "dir", dir, "count", r.Len())
	return r
}

// Len returns the number of loaded skills.
func (r *Registry) Len() int {
	return len(r.skills)
}

// All returns a copy of the loaded skills in load order.
func (r *Registry) All() []Skill {
	out := make([]Skill, len(r.skills))
	copy(out, r.skills)
	return out
}

// Names returns the skill names in load order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.skills))
	for i, s := range r.skills {
		names[i] = s.Name
	}
	return names
}

// Find returns the skill with exactly the given name. A miss returns a
// *NotFoundError listing the available names.
func (r *Registry) Find(name string) (Skill, error) {
	if i, ok := r.index[name]; ok {
		return r.skills[i], nil
	}
	return Skill{}, &NotFoundError{Name: name, Available: r.Names()}
}

// Summaries formats one "- name: description" line per skill.
func (r *Registry) Summaries() string {
	lines := make([]string, len(r.skills))
	for i, s := range r.skills {
		lines[i] = fmt.Sprintf("- %s: %s", s.Name, s.Description)
	}
	return strings.Join(lines, "\n")
}

// LoadText returns the skill's content behind a "Loaded skill:" header. A miss
// is reported as text naming the available skills, since the reader is a model
// that can retry with a corrected name.
func (r *Registry) LoadText(name string) string {
	skill, err := r.Find(name)
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s %s\n\n%s", LoadedHeader, skill.Name, skill.Content)
}

// LoadedHeader prefixes the text returned by LoadText on success.
const LoadedHeader = "Loaded skill:"

// ParseLoadedName extracts the skill name from LoadText output.
func ParseLoadedName(text string) (string, bool) {
	_, after, ok := strings.Cut(text, LoadedHeader)
	if !ok {
		return "", false
	}
	line, _, _ := strings.Cut(after, "\n")
	name := strings.TrimSpace(line)
	return name, name != ""
}

// PromptSection renders the skill list appended to a router's system prompt.
// It is empty when no skills are loaded.
func (r *Registry) PromptSection() string {
	if len(r.skills) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Skills\n\n")
	for _, s := range r.skills {
		fmt.Fprintf(&sb, "- **%s**: %s\n", s.Name, s.Description)
	}
	sb.WriteString("\nUse the load_skill tool when you need detailed information about handling a specific type of request. ")
	sb.WriteString("Use list_skills to get the available skills and their descriptions.")
	return sb.String()
}
