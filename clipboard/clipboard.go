// Package clipboard abstracts the OS clipboard. Each format can fail on
// its own; callers treat an error as "nothing available" for that format.
package clipboard

import (
	"errors"
	"sync"
)

var (
	ErrNotSupported = errors.New("clipboard format not supported")
	ErrEmpty        = errors.New("clipboard empty")
)

// Backend is the set of clipboard primitives the sync engine relies on.
// Images are exchanged as PNG bytes.
type Backend interface {
	Text() (string, error)
	SetText(text string) error
	HTML() (string, error)
	// SetHTML writes html with alt as the plain text alternative.
	SetHTML(html, alt string) error
	Image() ([]byte, error)
	SetImage(png []byte) error
}

// Memory is an in-process Backend, used by tests and headless runs.
type Memory struct {
	mu    sync.Mutex
	text  string
	html  string
	image []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Text() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == "" {
		return "", ErrEmpty
	}
	return m.text, nil
}

func (m *Memory) SetText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.html, m.image = text, "", nil
	return nil
}

func (m *Memory) HTML() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.html == "" {
		return "", ErrEmpty
	}
	return m.html, nil
}

func (m *Memory) SetHTML(html, alt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text, m.html, m.image = alt, html, nil
	return nil
}

func (m *Memory) Image() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.image) == 0 {
		return nil, ErrEmpty
	}
	return append([]byte(nil), m.image...), nil
}

// SetImage replaces the image and keeps any text, like desktop clipboards
// that hold several formats at once.
func (m *Memory) SetImage(png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image = append([]byte(nil), png...)
	return nil
}
