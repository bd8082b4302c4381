package vision

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// modelsAPI é o pedaço de *genai.Models que usamos; os testes trocam por um fake.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	All(ctx context.Context) iter.Seq2[*genai.Model, error]
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
}

// Gemini implementa Analyzer sobre a API do Gemini.
type Gemini struct {
	models modelsAPI
	model  string
	config *genai.GenerateContentConfig
}

var _ Analyzer = (*Gemini)(nil)

// NewGemini cria o cliente genai. Sem API key é erro de configuração.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("GOOGLE_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(models modelsAPI, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopP:            genai.Ptr(cfg.TopP),
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if cfg.TopK > 0 {
		gc.TopK = genai.Ptr(cfg.TopK)
	}
	return &Gemini{models: models, model: cfg.Model, config: gc}
}

func (g *Gemini) Model() string { return g.model }

// Analyze manda o prompt fixo e a imagem, e devolve o texto do primeiro candidato.
func (g *Gemini) Analyze(ctx context.Context, img Image) (string, error) {
	part, err := imagePart(img)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: Prompt}, part},
	}}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate %s: %w", g.model, mapUpstream(err))
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyAnalysis
	}
	return text, nil
}

// ListModels percorre todas as páginas de modelos visíveis para a API key.
func (g *Gemini) ListModels(ctx context.Context) ([]Model, error) {
	var out []Model
	for m, err := range g.models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("gemini list models: %w", mapUpstream(err))
		}
		if m == nil {
			continue
		}
		out = append(out, Model{
			Name:             m.Name,
			DisplayName:      m.DisplayName,
			Description:      m.Description,
			InputTokenLimit:  m.InputTokenLimit,
			OutputTokenLimit: m.OutputTokenLimit,
			SupportedActions: m.SupportedActions,
		})
	}
	return out, nil
}

func imagePart(img Image) (*genai.Part, error) {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	switch {
	case len(img.Data) > 0:
		return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: img.Data}}, nil
	case img.URI != "":
		return &genai.Part{FileData: &genai.FileData{MIMEType: mimeType, FileURI: img.URI}}, nil
	}
	return nil, ErrNoImage
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
