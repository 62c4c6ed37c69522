package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindText, "text"},
		{KindRtf, "rtf"},
		{KindImage, "image"},
		{KindFile, "file"},
		{Kind(9), "kind(9)"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", uint8(tt.kind), got, tt.want)
		}
	}
}

func TestKindEncoding(t *testing.T) {
	// The integer form is part of the persisted and exported format.
	if KindText != 0 || KindRtf != 1 || KindImage != 2 || KindFile != 3 {
		t.Fatal("kind values must stay Text=0 Rtf=1 Image=2 File=3")
	}
	if Kind(4).Valid() {
		t.Error("Kind(4) should not be valid")
	}
	if !KindRtf.IsText() || KindImage.IsText() {
		t.Error("IsText mismatch")
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"text", " RTF ", "Image", "file"} {
		if _, err := ParseKind(name); err != nil {
			t.Errorf("ParseKind(%q) failed: %v", name, err)
		}
	}

	_, err := ParseKind("video")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("ParseKind(video) error = %v, want ErrInvalidContent", err)
	}
}

func TestItemClone(t *testing.T) {
	app := "Terminal"
	seen := int64(5)
	item := &Item{ID: 1, SourceApp: &app, LastSeenAt: &seen, Tags: []string{"a"}}

	c := item.Clone()
	*c.SourceApp = "changed"
	*c.LastSeenAt = 9
	c.Tags[0] = "b"

	if *item.SourceApp != "Terminal" || *item.LastSeenAt != 5 || item.Tags[0] != "a" {
		t.Error("Clone shares memory with the original")
	}

	var nilItem *Item
	if nilItem.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", ErrInvalidContent), "InvalidContent"},
		{NotFoundError(3), "NotFound"},
		{fmt.Errorf("%w: bad dir", ErrOpenFailure), "OpenFailure"},
		{StorageError("insert", errors.New("disk full")), "StorageFailure"},
		{ErrUseAfterClose, "UseAfterClose"},
		{errors.New("other"), "Unknown"},
	}

	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestStorageErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("insert", cause)

	if !errors.Is(err, ErrStorageFailure) || !errors.Is(err, cause) {
		t.Errorf("StorageError should wrap both the sentinel and the cause: %v", err)
	}
	if StorageError("noop", nil) != nil {
		t.Error("StorageError(nil) should be nil")
	}
}
