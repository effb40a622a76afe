package types

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// EntryKind is the wire discriminant ("Type") of a clipboard entry.
type EntryKind string

const (
	KindText  EntryKind = "Text"
	KindImage EntryKind = "Image"
	KindFile  EntryKind = "File"
)

// ErrInvalidEntry is returned when a clipboard entry cannot be decoded or fails validation.
var ErrInvalidEntry = errors.New("invalid clipboard entry")

// ClipboardEntry is a closed sum over TextEntry, ImageEntry and FileEntry.
type ClipboardEntry interface {
	Kind() EntryKind
	// Source is the name of the device that produced the entry, if known.
	Source() string
	isClipboardEntry()
}

// TextEntry carries plain text and optional HTML.
// Content and HTML may hold an E2EE envelope instead of plaintext.
type TextEntry struct {
	Content string
	HTML    string
	File    string
	Device  string
}

// ImageEntry references a PNG blob stored under Filename on the file endpoint.
type ImageEntry struct {
	Hash     string
	Filename string
	Device   string
}

// FileEntry references an arbitrary blob stored under Filename on the file endpoint.
type FileEntry struct {
	Hash     string
	Filename string
	Device   string
}

func (TextEntry) Kind() EntryKind  { return KindText }
func (ImageEntry) Kind() EntryKind { return KindImage }
func (FileEntry) Kind() EntryKind  { return KindFile }

func (e TextEntry) Source() string  { return e.Device }
func (e ImageEntry) Source() string { return e.Device }
func (e FileEntry) Source() string  { return e.Device }

func (TextEntry) isClipboardEntry()  {}
func (ImageEntry) isClipboardEntry() {}
func (FileEntry) isClipboardEntry()  {}

// WithDevice returns a copy of e attributed to device.
func WithDevice(e ClipboardEntry, device string) ClipboardEntry {
	switch v := e.(type) {
	case TextEntry:
		v.Device = device
		return v
	case ImageEntry:
		v.Device = device
		return v
	case FileEntry:
		v.Device = device
		return v
	default:
		return e
	}
}

// ValidateEntry checks the variant specific required fields.
func ValidateEntry(e ClipboardEntry) error {
	switch v := e.(type) {
	case TextEntry:
		return nil
	case ImageEntry:
		if v.Filename == "" {
			return fmt.Errorf("%w: image without filename", ErrInvalidEntry)
		}
	case FileEntry:
		if v.Filename == "" {
			return fmt.Errorf("%w: file without filename", ErrInvalidEntry)
		}
	case nil:
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	default:
		return fmt.Errorf("%w: unsupported variant %T", ErrInvalidEntry, e)
	}
	return nil
}

// entryWire mirrors the SyncClipboard.json document.
type entryWire struct {
	Type      EntryKind `json:"Type"`
	Clipboard *string   `json:"Clipboard,omitempty"`
	HTML      *string   `json:"Html,omitempty"`
	File      *string   `json:"File,omitempty"`
	Device    *string   `json:"Device,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// EncodeEntry serializes an entry to the SyncClipboard.json wire format.
func EncodeEntry(e ClipboardEntry) ([]byte, error) {
	if err := ValidateEntry(e); err != nil {
		return nil, err
	}
	var w entryWire
	switch v := e.(type) {
	case TextEntry:
		content := v.Content
		w = entryWire{Type: KindText, Clipboard: &content, HTML: optional(v.HTML), File: optional(v.File), Device: optional(v.Device)}
	case ImageEntry:
		w = entryWire{Type: KindImage, Clipboard: optional(v.Hash), File: optional(v.Filename), Device: optional(v.Device)}
	case FileEntry:
		w = entryWire{Type: KindFile, Clipboard: optional(v.Hash), File: optional(v.Filename), Device: optional(v.Device)}
	}
	return sonic.Marshal(w)
}

// DecodeEntry parses a SyncClipboard.json document.
func DecodeEntry(data []byte) (ClipboardEntry, error) {
	var w entryWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	var e ClipboardEntry
	switch w.Type {
	case KindText:
		if w.Clipboard == nil {
			return nil, fmt.Errorf("%w: text without Clipboard", ErrInvalidEntry)
		}
		e = TextEntry{Content: *w.Clipboard, HTML: deref(w.HTML), File: deref(w.File), Device: deref(w.Device)}
	case KindImage:
		e = ImageEntry{Hash: deref(w.Clipboard), Filename: deref(w.File), Device: deref(w.Device)}
	case KindFile:
		e = FileEntry{Hash: deref(w.Clipboard), Filename: deref(w.File), Device: deref(w.Device)}
	default:
		return nil, fmt.Errorf("%w: unknown Type %q", ErrInvalidEntry, w.Type)
	}
	if err := ValidateEntry(e); err != nil {
		return nil, err
	}
	return e, nil
}
