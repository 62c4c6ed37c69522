// Package sysboard implements the clipboard on top of golang.design/x/clipboard,
// which talks to the platform clipboard directly (Cocoa, X11, Win32).
package sysboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"

	cb "github.com/yiblet/clipvault/internal/clipboard"
	"github.com/yiblet/clipvault/internal/store"
)

var (
	initOnce sync.Once
	initErr  error
)

func ensureInit() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
	})
	return initErr
}

// SystemClipboard implements clipboard.Clipboard for the desktop session
type SystemClipboard struct{}

// New creates a new SystemClipboard instance
func New() *SystemClipboard {
	return &SystemClipboard{}
}

// IsSupported returns true if the platform clipboard could be initialized
func (s *SystemClipboard) IsSupported() bool {
	return ensureInit() == nil
}

// Read implements Clipboard.Read for SystemClipboard
func (s *SystemClipboard) Read() (*cb.Capture, error) {
	if err := ensureInit(); err != nil {
		return nil, fmt.Errorf("clipboard unavailable: %w", err)
	}

	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		return &cb.Capture{Kind: store.KindImage, Data: img}, nil
	}
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		return &cb.Capture{Kind: store.KindText, Data: text}, nil
	}
	return nil, cb.ErrEmpty
}

// Write implements Clipboard.Write for SystemClipboard
func (s *SystemClipboard) Write(kind store.Kind, data []byte) error {
	if err := ensureInit(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}

	switch kind {
	case store.KindText, store.KindRtf:
		clipboard.Write(clipboard.FmtText, data)
	case store.KindImage:
		clipboard.Write(clipboard.FmtImage, data)
	default:
		return fmt.Errorf("cannot copy %s items to the clipboard", kind)
	}
	return nil
}
