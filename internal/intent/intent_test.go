package intent

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestMatchEmbeddedTable(t *testing.T) {
	m := NewMatcher()
	tests := []struct {
		name    string
		text    string
		wantTag string
	}{
		{"greeting", "Bom dia!", "saudacao"},
		{"registration", "quero me cadastrar", TagStartRegistration},
		{"ticket", "preciso de um orçamento", TagStartTicket},
		{"ticket no accents", "quero um orcamento", TagStartTicket},
		{"cancel", "quero cancelar isso", TagCancelTicket},
		{"case folding", "QUERO CANCELAR", TagCancelTicket},
		{"about", "o que é a compact?", "sobre_empresa"},
		{"human", "quero falar com um atendente", "falar_atendente"},
		{"goodbye", "valeu, tchau", "despedida"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := m.Match(tt.text)
			if !ok {
				t.Fatalf("expected a match for %q", tt.text)
			}
			if in.Tag != tt.wantTag {
				t.Errorf("Match(%q) = %s, want %s", tt.text, in.Tag, tt.wantTag)
			}
		})
	}
}

func TestMatchNothing(t *testing.T) {
	m := NewMatcher()
	if _, ok := m.Match("xyzzy plugh"); ok {
		t.Error("expected no match for gibberish")
	}
}

// Cancellation must win over ticket entry when both patterns appear, so that
// "cancelar o chamado" cancels instead of restarting the intake.
func TestCancelWinsOverTicketEntry(t *testing.T) {
	m := NewMatcher()
	in, ok := m.Match("quero cancelar o chamado")
	if !ok || in.Tag != TagCancelTicket {
		t.Errorf("expected %s, got %s (matched=%v)", TagCancelTicket, in.Tag, ok)
	}
}

func TestRespondFallback(t *testing.T) {
	m := NewMatcher()
	res := m.Respond("xyzzy plugh")
	if res.Tag != TagFallback {
		t.Errorf("expected fallback tag, got %s", res.Tag)
	}
	if res.Response != FallbackResponse {
		t.Errorf("expected the fixed fallback reply, got %q", res.Response)
	}
}

func TestRespondPicksFromIntentResponses(t *testing.T) {
	m := NewMatcher()
	in, ok := m.Match("bom dia")
	if !ok {
		t.Fatal("expected greeting to match")
	}
	res := m.Respond("bom dia")
	if res.Tag != in.Tag {
		t.Errorf("expected tag %s, got %s", in.Tag, res.Tag)
	}
	if !slices.Contains(in.Responses, res.Response) {
		t.Errorf("reply %q not among the intent's responses", res.Response)
	}
}

func TestNewMatcherFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "intents.json")
	jsonTable := `{"intents": [{"tag": "ping", "patterns": ["ping"], "responses": ["pong"]}]}`
	if err := os.WriteFile(jsonPath, []byte(jsonTable), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	yamlPath := filepath.Join(dir, "intents.yaml")
	yamlTable := "intents:\n  - tag: ping\n    patterns: [ping]\n    responses: [pong]\n"
	if err := os.WriteFile(yamlPath, []byte(yamlTable), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{jsonPath, yamlPath} {
		m, err := NewMatcherFromFile(path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		res := m.Respond("ping")
		if res.Tag != "ping" || res.Response != "pong" {
			t.Errorf("%s: unexpected result %+v", path, res)
		}
	}
}

func TestNewMatcherFromFileRejectsBadTables(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"missing file", filepath.Join(dir, "absent.json"), ""},
		{"unsupported extension", filepath.Join(dir, "intents.toml"), "whatever"},
		{"empty table", filepath.Join(dir, "empty.json"), `{"intents": []}`},
		{"missing patterns", filepath.Join(dir, "bad.json"), `{"intents": [{"tag": "x", "patterns": [], "responses": ["y"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.content != "" {
				if err := os.WriteFile(tt.file, []byte(tt.content), 0644); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			if _, err := NewMatcherFromFile(tt.file); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
