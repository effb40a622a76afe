package types

import (
	"fmt"
	"time"
)

// HistoryRecord is one persisted clipboard entry. ID is the long-poll cursor
// and is never reused.
type HistoryRecord struct {
	ID        int64     `json:"id"`
	Type      EntryKind `json:"type"`
	Content   string    `json:"content,omitempty"`
	HTML      string    `json:"html,omitempty"`
	File      string    `json:"file,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Device    string    `json:"device,omitempty"`
	Pinned    bool      `json:"pinned"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordFromEntry flattens an entry into a record without id and timestamp.
func RecordFromEntry(e ClipboardEntry) HistoryRecord {
	switch v := e.(type) {
	case TextEntry:
		return HistoryRecord{Type: KindText, Content: v.Content, HTML: v.HTML, File: v.File, Device: v.Device}
	case ImageEntry:
		return HistoryRecord{Type: KindImage, Hash: v.Hash, File: v.Filename, Device: v.Device}
	case FileEntry:
		return HistoryRecord{Type: KindFile, Hash: v.Hash, File: v.Filename, Device: v.Device}
	default:
		return HistoryRecord{}
	}
}

// Entry rebuilds the clipboard entry stored in the record.
func (r HistoryRecord) Entry() (ClipboardEntry, error) {
	switch r.Type {
	case KindText:
		return TextEntry{Content: r.Content, HTML: r.HTML, File: r.File, Device: r.Device}, nil
	case KindImage:
		return ImageEntry{Hash: r.Hash, Filename: r.File, Device: r.Device}, nil
	case KindFile:
		return FileEntry{Hash: r.Hash, Filename: r.File, Device: r.Device}, nil
	default:
		return nil, fmt.Errorf("%w: record %d has type %q", ErrInvalidEntry, r.ID, r.Type)
	}
}
