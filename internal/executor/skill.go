package executor

import (
	"fmt"

	"github.com/marketeros/runtime/internal/mdformat"
)

// Skill is a squad member's persona and operating instructions: a system
// prompt loaded from skills/{name}.md (spec.md §4.3 step 3) and the squad
// it belongs to, used to build the output path outputs/{squad}/{skill}/.
type Skill struct {
	Name   string
	Squad  string
	Prompt string // the skill's system prompt body
}

// SkillLoader resolves a skill name to its definition. The reference
// implementation (FileSkillLoader) reads skills/{name}.md out of the
// workspace, the same markdown-with-frontmatter grammar every other
// workspace-resident entity uses.
type SkillLoader interface {
	Load(name string) (*Skill, error)
}

// FileSkillLoader loads skill definitions from a directory of markdown
// files, each with a `squad:` frontmatter key and a free-form body that is
// the skill's system prompt.
type FileSkillLoader struct {
	read func(relPath string) (string, error)
}

// NewFileSkillLoader builds a loader backed by a workspace file reader
// (typically (*workspace.Workspace).ReadFile).
func NewFileSkillLoader(read func(relPath string) (string, error)) *FileSkillLoader {
	return &FileSkillLoader{read: read}
}

func (l *FileSkillLoader) Load(name string) (*Skill, error) {
	path := fmt.Sprintf("skills/%s.md", name)
	data, err := l.read(path)
	if err != nil {
		return nil, newError(CodeSkillNotFound, fmt.Sprintf("%s: %v", name, err))
	}

	fields, body, err := mdformat.ParseFrontmatter([]byte(data))
	if err != nil {
		return nil, newError(CodeSkillNotFound, fmt.Sprintf("%s: malformed skill definition: %v", name, err))
	}
	squad := fields["squad"]
	if squad == "" {
		return nil, newError(CodeSkillNotFound, fmt.Sprintf("%s: missing squad frontmatter key", name))
	}

	return &Skill{Name: name, Squad: squad, Prompt: body}, nil
}

// MapSkillLoader is a fixed in-memory skill registry, used in tests and by
// callers that assemble skill prompts some other way than reading files.
type MapSkillLoader map[string]*Skill

func (m MapSkillLoader) Load(name string) (*Skill, error) {
	s, ok := m[name]
	if !ok {
		return nil, newError(CodeSkillNotFound, name)
	}
	return s, nil
}
