package skills

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes the metadata block of a skill document.
const Delimiter = "---"

// DefaultDescription is used when a document does not declare a description.
const DefaultDescription = "A skill to help with specific tasks"

// Skill is a named bundle of instructions loaded from a skill document.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`

	Dir  string `json:"-"` // directory the skill was loaded from
	Path string `json:"-"` // defining document
}

// metadata mirrors the keys read from the header block.
type metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseDocument parses a skill document. fallbackName is used when the
// document has no metadata block or the block lacks a name.
func ParseDocument(text, fallbackName string) Skill {
	skill := Skill{
		Name:        fallbackName,
		Description: DefaultDescription,
		Content:     text,
	}

	header, body, ok := splitHeader(text)
	if !ok {
		return skill
	}

	meta := parseMetadata(header)
	if meta.Name != "" {
		skill.Name = meta.Name
	}
	if meta.Description != "" {
		skill.Description = meta.Description
	}
	skill.Content = body
	return skill
}

// splitHeader separates the metadata block from the body. The first line must
// be the delimiter and a later line must close it; otherwise ok is false.
func splitHeader(text string) (header, body string, ok bool) {
	first, rest, found := strings.Cut(text, "\n")
	if !found || !isDelimiter(first) {
		return "", "", false
	}

	offset := 0
	for offset <= len(rest) {
		line, next, more := strings.Cut(rest[offset:], "\n")
		if isDelimiter(line) {
			header = strings.TrimSuffix(rest[:offset], "\n")
			if more {
				return header, next, true
			}
			return header, "", true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", "", false
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == Delimiter
}

// parseMetadata reads name and description from "key: value" lines, keeping
// the value verbatim up to the end of the line ('#' is not a comment). YAML
// decodes only the values a line cannot hold: block scalars ("|", ">"),
// quoted strings and values continued on indented lines.
func parseMetadata(header string) metadata {
	var name, desc scannedValue
	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "name":
			name.set(value)
		case "description":
			desc.set(value)
		}
	}

	meta := metadata{Name: name.value, Description: desc.value}
	if !name.needsYAML() && !desc.needsYAML() {
		return meta
	}

	var decoded metadata
	if err := yaml.Unmarshal([]byte(header), &decoded); err != nil {
		return meta
	}
	if name.needsYAML() {
		meta.Name = strings.TrimSpace(decoded.Name)
	}
	if desc.needsYAML() {
		meta.Description = strings.TrimSpace(decoded.Description)
	}
	return meta
}

// scannedValue is the first value seen for a metadata key.
type scannedValue struct {
	value string
	found bool
}

func (v *scannedValue) set(raw string) {
	if v.found {
		return
	}
	v.found = true
	v.value = strings.TrimSpace(raw)
}

func (v scannedValue) needsYAML() bool {
	if !v.found {
		return false
	}
	if v.value == "" {
		return true
	}
	switch v.value[0] {
	case '|', '>':
		return true
	case '"', '\'':
		return len(v.value) >= 2 && v.value[len(v.value)-1] == v.value[0]
	}
	return false
}
