package clipboard

import (
	atotto "github.com/atotto/clipboard"
)

// System uses the platform clipboard through xclip/xsel/wl-clipboard,
// pbcopy or the Win32 API. Only plain text is available.
type System struct{}

func NewSystem() (*System, error) {
	if atotto.Unsupported {
		return nil, ErrNotSupported
	}
	return &System{}, nil
}

func (System) Text() (string, error) {
	text, err := atotto.ReadAll()
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func (System) SetText(text string) error {
	return atotto.WriteAll(text)
}

func (System) HTML() (string, error) {
	return "", ErrNotSupported
}

// SetHTML falls back to the plain text alternative.
func (System) SetHTML(html, alt string) error {
	return atotto.WriteAll(alt)
}

func (System) Image() ([]byte, error) {
	return nil, ErrNotSupported
}

func (System) SetImage(png []byte) error {
	return ErrNotSupported
}
