package logging

import (
	"os"
	"path/filepath"
	"sync"
)

// ResetWriter escreve num arquivo e o trunca quando passa de maxSize bytes.
// Não há rotação: o log do serviço é descartável, só não pode crescer sem limite.
type ResetWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int
	written int
	file    *os.File
}

func NewResetWriter(path string, maxSize int) (*ResetWriter, error) {
	w := &ResetWriter{path: path, maxSize: maxSize}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *ResetWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	w.file = f
	w.written = 0
	return nil
}

func (w *ResetWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil || (w.maxSize > 0 && w.written+len(p) > w.maxSize) {
		if w.file != nil {
			_ = w.file.Close()
		}
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.written += n
	return n, err
}

func (w *ResetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
