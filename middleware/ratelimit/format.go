package ratelimit

import (
	"net/http"
	"strconv"

	"plant-gateway/middleware/ratelimit/domain"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// sem notação científica para valores comuns
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SetQuotaHeaders escreve X-RateLimit-Limit/Remaining/Reset a partir da decisão
// da cota; em rejeição também escreve Retry-After.
func SetQuotaHeaders(h http.Header, dec domain.QuotaDecision) {
	if dec.Limit <= 0 {
		return
	}
	h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
	h.Set("X-RateLimit-Remaining", formatInt(max(dec.Remaining, 0)))
	h.Set("X-RateLimit-Reset", formatInt(dec.ResetInSeconds()))
	if !dec.Allowed {
		h.Set("Retry-After", formatInt(max(dec.ResetInSeconds(), 1)))
	}
}
