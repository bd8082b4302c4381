package vision

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const defaultMIMEType = "image/jpeg"

// Image é a imagem já decodificada (Data) ou uma URL pública (URI).
type Image struct {
	MIMEType string
	Data     []byte
	URI      string
}

// ParseImage aceita data URL (data:image/png;base64,...), base64 puro ou uma
// URL http(s). String vazia é ErrNoImage; qualquer outra falha é ErrInvalidImage.
func ParseImage(raw string) (Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Image{}, ErrNoImage
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return parseDataURL(raw)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return parseURL(raw)
	}

	data, err := decodeBase64(raw)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return Image{MIMEType: sniffMIME(data), Data: data}, nil
}

func parseDataURL(raw string) (Image, error) {
	header, payload, ok := strings.Cut(raw, ",")
	if !ok || payload == "" {
		return Image{}, fmt.Errorf("%w: data URL without payload", ErrInvalidImage)
	}

	meta := strings.TrimPrefix(header[len("data:"):], " ")
	mimeType, params, _ := strings.Cut(meta, ";")
	if !strings.Contains(strings.ToLower(params), "base64") {
		return Image{}, fmt.Errorf("%w: data URL is not base64", ErrInvalidImage)
	}
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return Image{}, fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mimeType)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return Image{MIMEType: strings.ToLower(mimeType), Data: data}, nil
}

func parseURL(raw string) (Image, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Image{}, fmt.Errorf("%w: bad image URL %q", ErrInvalidImage, raw)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(path.Ext(u.Path)))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = defaultMIMEType
	}
	return Image{MIMEType: mimeType, URI: u.String()}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// alguns clientes mandam sem padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return data, nil
}

func sniffMIME(data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return defaultMIMEType
}
