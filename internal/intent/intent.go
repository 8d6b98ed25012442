// Package intent classifies free-text user messages against a static
// pattern table.
//
// Matching is deliberately simple: case-insensitive substring search, first
// intent in table order with any matching pattern wins. Anything smarter
// (stemming, embeddings, LLMs) is out of scope for this bot.
package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CompactDigital/AtendeBot/internal/models"
	"github.com/CompactDigital/AtendeBot/internal/util"
	"gopkg.in/yaml.v3"
)

// Intent tags the dispatcher and the ticket flow branch on.
const (
	TagStartRegistration = "iniciar_cadastro"
	TagStartTicket       = "iniciar_chamado_orcamento"
	TagCancelTicket      = "cancelar_chamado"
	TagFallback          = "fallback"
)

// FallbackResponse is the fixed multi-option reply returned when no pattern
// matches.
const FallbackResponse = "Desculpe, não entendi. Poderia reformular ou escolher uma das opções?\n\n" +
	"1️⃣ Fazer Orçamento/Abrir Chamado\n" +
	"2️⃣ Saber mais sobre a Compact\n" +
	"3️⃣ Falar com atendente"

//go:embed intents.json
var defaultIntents []byte

// table is the on-disk shape of the intent table.
type table struct {
	Intents []models.Intent `json:"intents" yaml:"intents"`
}

// Matcher scans user text against an immutable intent table. It is loaded
// once at startup and safe for concurrent use; there is no mutation API.
type Matcher struct {
	intents []models.Intent
}

// Result pairs the matched tag with one chosen reply.
type Result struct {
	Tag      string
	Response string
}

// NewMatcher builds a Matcher from the embedded default intent table.
func NewMatcher() *Matcher {
	m, err := parse(defaultIntents, ".json")
	if err != nil {
		// The embedded table is validated by tests; failing to parse it is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded intent table invalid: %v", err))
	}
	return m
}

// NewMatcherFromFile builds a Matcher from an operator-supplied intent table
// in JSON or YAML, keyed by file extension.
func NewMatcherFromFile(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Matcher.NewMatcherFromFile: failed to read intent table", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read intent table %s: %w", path, err)
	}
	m, err := parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		slog.Error("Matcher.NewMatcherFromFile: failed to parse intent table", "path", path, "error", err)
		return nil, fmt.Errorf("failed to parse intent table %s: %w", path, err)
	}
	slog.Info("Intent table loaded from file", "path", path, "intents", len(m.intents))
	return m, nil
}

func parse(data []byte, ext string) (*Matcher, error) {
	var t table
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("json unmarshal: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported intent table format %q", ext)
	}
	if len(t.Intents) == 0 {
		return nil, fmt.Errorf("intent table is empty")
	}
	for i, in := range t.Intents {
		if in.Tag == "" || len(in.Patterns) == 0 {
			return nil, fmt.Errorf("intent %d: tag and patterns are required", i)
		}
	}
	return &Matcher{intents: t.Intents}, nil
}

// Match returns the first intent in table order with any pattern contained
// in text (case-insensitive), or false when nothing matches. Pure function
// of (text, table); no state, no side effects.
func (m *Matcher) Match(text string) (models.Intent, bool) {
	lower := strings.ToLower(text)
	for _, in := range m.intents {
		for _, pattern := range in.Patterns {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				return in, true
			}
		}
	}
	return models.Intent{}, false
}

// Respond classifies text and picks a reply: a uniform random choice among
// the matched intent's responses, or the fixed fallback when no pattern
// matches. Never fails.
func (m *Matcher) Respond(text string) Result {
	in, ok := m.Match(text)
	if !ok {
		slog.Debug("Matcher.Respond: no intent matched, using fallback")
		return Result{Tag: TagFallback, Response: FallbackResponse}
	}
	reply := util.PickRandom(in.Responses)
	if reply == "" {
		reply = FallbackResponse
	}
	slog.Debug("Matcher.Respond: intent matched", "tag", in.Tag)
	return Result{Tag: in.Tag, Response: reply}
}
