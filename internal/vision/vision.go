// Package vision fala com o modelo de visão que diagnostica doenças de plantas.
//
// O HTTP não conhece o Gemini: depende só de Analyzer. Os erros do upstream são
// mapeados para sentinelas (ErrModelUnavailable, ErrInvalidImage,
// ErrUpstreamQuota, ErrEmptyAnalysis) e Classify transforma qualquer erro na
// mensagem que pode ir para o usuário.
package vision

import "context"

// Analyzer produz o relatório de uma imagem e lista os modelos disponíveis.
type Analyzer interface {
	Analyze(ctx context.Context, img Image) (string, error)
	ListModels(ctx context.Context) ([]Model, error)
}

type Model struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName,omitempty"`
	Description      string   `json:"description,omitempty"`
	InputTokenLimit  int32    `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int32    `json:"outputTokenLimit,omitempty"`
	SupportedActions []string `json:"supportedActions,omitempty"`
}

// Prompt é o pedido fixo enviado junto com cada imagem.
const Prompt = `You are a plant disease detection expert. Analyze this plant image and provide a detailed report with the following information:
1. Plant Identification: Identify the type of plant if possible
2. Health Assessment: Identify if there are any diseases or health issues
3. Symptoms Analysis: Detailed description of any visible symptoms or issues
4. Disease Identification: Name of the specific disease if identifiable
5. Treatment Plan: Recommended treatments and remedies
6. Prevention Strategy: Steps to prevent similar issues in the future

Please format your response clearly with appropriate headings for each section.`
