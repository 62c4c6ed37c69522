// Package clipboard abstracts the system clipboard as a source of captures
// for the command line. The engine itself never touches the clipboard.
package clipboard

import (
	"errors"

	"github.com/yiblet/clipvault/internal/store"
)

// ErrEmpty is returned when the clipboard holds nothing clipvault can store.
var ErrEmpty = errors.New("clipboard is empty")

// Capture is one clipboard read.
type Capture struct {
	Kind store.Kind
	Data []byte
}

// Clipboard reads and writes the clipboard contents.
type Clipboard interface {
	// Read returns the current contents. Images take precedence over text.
	Read() (*Capture, error)

	// Write replaces the contents. Only text and image kinds can be written.
	Write(kind store.Kind, data []byte) error

	// IsSupported reports whether the clipboard is reachable.
	IsSupported() bool
}
