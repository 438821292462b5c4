package executor

import "testing"

func TestFileSkillLoader_Load(t *testing.T) {
	files := map[string]string{
		"skills/copywriter.md": "---\nsquad: content\n---\n\nYou are a sharp, concise copywriter.\n",
	}
	loader := NewFileSkillLoader(func(path string) (string, error) {
		data, ok := files[path]
		if !ok {
			return "", &Error{Code: CodeSkillNotFound, Message: path}
		}
		return data, nil
	})

	skill, err := loader.Load("copywriter")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if skill.Squad != "content" {
		t.Errorf("Squad = %q, want content", skill.Squad)
	}
	if skill.Prompt != "You are a sharp, concise copywriter." {
		t.Errorf("Prompt = %q", skill.Prompt)
	}
}

func TestFileSkillLoader_MissingSquad(t *testing.T) {
	loader := NewFileSkillLoader(func(path string) (string, error) {
		return "---\n---\n\nbody\n", nil
	})
	if _, err := loader.Load("copywriter"); err == nil {
		t.Fatal("expected an error for missing squad key")
	}
}

func TestFileSkillLoader_NotFound(t *testing.T) {
	loader := NewFileSkillLoader(func(path string) (string, error) {
		return "", &Error{Code: CodeSkillNotFound, Message: "not found"}
	})
	_, err := loader.Load("ghost")
	if err == nil {
		t.Fatal("expected an error")
	}
	execErr, ok := err.(*Error)
	if !ok || execErr.Code != CodeSkillNotFound {
		t.Fatalf("err = %v, want *Error{Code: SKILL_NOT_FOUND}", err)
	}
}

func TestMapSkillLoader(t *testing.T) {
	m := MapSkillLoader{"researcher": {Name: "researcher", Squad: "research", Prompt: "dig deep"}}
	s, err := m.Load("researcher")
	if err != nil || s.Squad != "research" {
		t.Fatalf("Load = %+v, %v", s, err)
	}
	if _, err := m.Load("ghost"); err == nil {
		t.Fatal("expected an error for missing skill")
	}
}
