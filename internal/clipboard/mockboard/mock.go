// Package mockboard provides a mock clipboard implementation for testing.
package mockboard

import (
	"fmt"

	"github.com/yiblet/clipvault/internal/clipboard"
	"github.com/yiblet/clipvault/internal/store"
)

// MockClipboard implements clipboard.Clipboard for testing
type MockClipboard struct {
	kind store.Kind
	data []byte
}

// New creates a new MockClipboard instance
func New() *MockClipboard {
	return &MockClipboard{}
}

// Read implements Clipboard.Read for MockClipboard
func (m *MockClipboard) Read() (*clipboard.Capture, error) {
	if len(m.data) == 0 {
		return nil, clipboard.ErrEmpty
	}
	return &clipboard.Capture{Kind: m.kind, Data: append([]byte(nil), m.data...)}, nil
}

// Write implements Clipboard.Write for MockClipboard
func (m *MockClipboard) Write(kind store.Kind, data []byte) error {
	if kind == store.KindFile {
		return fmt.Errorf("cannot copy %s items to the clipboard", kind)
	}
	m.SetData(kind, data)
	return nil
}

// SetData sets the mock clipboard data directly (for testing)
func (m *MockClipboard) SetData(kind store.Kind, data []byte) {
	m.kind = kind
	m.data = append([]byte(nil), data...)
}

// GetData returns the current clipboard data (for testing)
func (m *MockClipboard) GetData() (store.Kind, []byte) {
	return m.kind, m.data
}

// IsSupported always returns true for the mock clipboard
func (m *MockClipboard) IsSupported() bool {
	return true
}
