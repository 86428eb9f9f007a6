// Package upload holds the two input files a split needs: the sound that
// replaces the video's audio track and the video itself.
package upload

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Kind identifies an upload slot.
type Kind string

const (
	// KindSound is the replacement audio track.
	KindSound Kind = "sound"
	// KindVideo is the video whose audio is replaced.
	KindVideo Kind = "video"
)

// ErrUnknownKind is returned for a slot name other than sound or video.
var ErrUnknownKind = errors.New("unknown upload slot")

// ParseKind converts a slot name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindSound:
		return KindSound, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// File is an uploaded input.
type File struct {
	// Kind is the slot the file was uploaded to.
	Kind Kind
	// Name is the client-declared file name.
	Name string
	// MediaType is the declared media type, or the detected one when the
	// client did not declare a usable type.
	MediaType string
	// Path is the location of the content in temporary storage.
	Path string
	// Size is the content length in bytes.
	Size int64
	// UploadedAt is when the file was stored.
	UploadedAt time.Time
}

// DetectMediaType returns declared unless it is empty or generic, in which
// case the type is sniffed from the head of data.
func DetectMediaType(declared string, data io.Reader) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	mt, err := mimetype.DetectReader(data)
	if err != nil {
		return "", fmt.Errorf("detect media type: %w", err)
	}
	return mt.String(), nil
}

// Slots holds one file per Kind. Setting one slot never affects the other.
type Slots struct {
	mu    sync.RWMutex
	files map[Kind]File
}

// NewSlots creates empty slots.
func NewSlots() *Slots {
	return &Slots{files: make(map[Kind]File, 2)}
}

// Set stores f in its slot and returns the file it replaced, if any.
func (s *Slots) Set(f File) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.files[f.Kind]
	s.files[f.Kind] = f
	return prev, had
}

// Reset empties the slot and returns the file it held, if any.
func (s *Slots) Reset(kind Kind) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.files[kind]
	delete(s.files, kind)
	return prev, had
}

// Get returns a copy of the file in the slot, or nil when empty.
func (s *Slots) Get(kind Kind) *File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[kind]
	if !ok {
		return nil
	}
	return &f
}

// Paths returns the storage paths of all held files.
func (s *Slots) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for _, f := range s.files {
		paths = append(paths, f.Path)
	}
	return paths
}
