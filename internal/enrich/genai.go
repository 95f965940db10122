package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/smartdispute/case-engine/internal/evidence"
)

// DefaultGenAIModel is used when no model is configured.
const DefaultGenAIModel = "gemini-2.5-flash"

const systemPrompt = `You are a legal case triage assistant for Canadian self-represented litigants.
Read the case documents and answer with a single JSON object:
{"category": one of "landlord-tenant", "credit", "human-rights", "small-claims",
 "child-protection", "police-misconduct", "employment", "family";
 "merit_score": number between 0 and 1;
 "suggested_remedies": array of remedy ids from the catalogue, may be empty;
 "legal_issues": array of short issue labels}.
Do not add commentary.`

// #region generator
// generator is the slice of the genai Models service this package uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAI asks a Gemini model for an Insight.
type GenAI struct {
	models   generator
	model    string
	maxRunes int
}

// NewGenAI creates a Gemini enricher.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGenAIWithGenerator(client.Models, model), nil
}

// NewGenAIWithGenerator creates a GenAI enricher around an injected
// generator. Used for testing without network access.
func NewGenAIWithGenerator(g generator, model string) *GenAI {
	if model == "" {
		model = DefaultGenAIModel
	}
	return &GenAI{models: g, model: model, maxRunes: MaxPromptRunes}
}

// #endregion generator

// #region enrich
// Enrich sends the case text to the model and decodes its JSON answer.
func (g *GenAI) Enrich(ctx context.Context, ev *evidence.CaseEvidence) (*Insight, error) {
	if ev == nil {
		return nil, ErrNoInsight
	}
	text := CaseText(ev, g.maxRunes)
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoInsight
	}

	temperature := float32(0)
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("genai generate: %w", err)
	}

	raw := responseText(resp)
	if raw == "" {
		return nil, ErrNoInsight
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(stripFence(raw)), &m); err != nil {
		return nil, fmt.Errorf("decode genai answer: %w", err)
	}
	return insightFromMap(m)
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// stripFence removes a ```json fence some models add despite the MIME type.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// #endregion enrich
