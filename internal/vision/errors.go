package vision

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var (
	ErrNoImage          = errors.New("no image data provided")
	ErrInvalidImage     = errors.New("invalid image")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrUpstreamQuota    = errors.New("upstream quota exceeded")
	ErrEmptyAnalysis    = errors.New("no analysis generated")
)

const (
	MsgModelUnavailable = "The AI model is currently unavailable. Please try again later."
	MsgInvalidImage     = "Invalid image format. Please upload a valid JPEG or PNG image."
	MsgUpstreamQuota    = "API quota exceeded. Please try again later."
	MsgEmptyAnalysis    = "No analysis generated. Please try again with a clearer image."
	MsgAnalysisFailed   = "Failed to analyze plant image"
)

// Classify devolve a mensagem segura para o cliente. Sentinelas primeiro; o
// texto do erro só é inspecionado quando nada estruturado casou.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelUnavailable):
		return MsgModelUnavailable
	case errors.Is(err, ErrInvalidImage):
		return MsgInvalidImage
	case errors.Is(err, ErrUpstreamQuota):
		return MsgUpstreamQuota
	case errors.Is(err, ErrEmptyAnalysis):
		return MsgEmptyAnalysis
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"):
		return MsgModelUnavailable
	case strings.Contains(msg, "invalid"):
		return MsgInvalidImage
	case strings.Contains(msg, "quota"):
		return MsgUpstreamQuota
	}
	return MsgAnalysisFailed
}

// mapUpstream anexa a sentinela certa a um erro do genai, pelo código HTTP ou
// pelo status gRPC. Erros sem APIError voltam como estão.
func mapUpstream(err error) error {
	code, status, ok := apiErrorCode(err)
	if !ok {
		return err
	}
	switch {
	case code == 404 || status == "NOT_FOUND":
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	case code == 429 || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %w", ErrUpstreamQuota, err)
	case code == 400 || status == "INVALID_ARGUMENT":
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return err
}

func apiErrorCode(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}
