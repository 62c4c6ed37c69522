package main

import (
	"fmt"
	"log"
	"os"

	"github.com/yiblet/clipvault/internal/blobstore"
	"github.com/yiblet/clipvault/internal/session"
	"github.com/yiblet/clipvault/internal/store"
	"github.com/yiblet/clipvault/internal/store/memstore"
)

func main() {
	fmt.Println("clipvault Session Demo")

	blobsDir, err := os.MkdirTemp("", "clipvault-demo-")
	if err != nil {
		log.Fatalf("Failed to create blob directory: %v", err)
	}
	defer os.RemoveAll(blobsDir)

	// In-memory catalog, temporary blob directory
	blobs, err := blobstore.New(blobsDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	s := session.New(memstore.NewMemoryCatalog(), blobs, session.Options{})
	defer s.Close()

	terminal := "Terminal"
	captures := []*store.NewItem{
		{Kind: store.KindText, Content: []byte("Hello, World!"), CreatedAt: 1000},
		{Kind: store.KindText, Content: []byte("SELECT * FROM users ORDER BY created_at DESC LIMIT 10;"), SourceApp: &terminal, CreatedAt: 2000},
		{Kind: store.KindRtf, Content: []byte(`{\rtf1\ansi Quarterly {\b invoice} attached}`), CreatedAt: 3000, Tags: []string{"work"}},
		{Kind: store.KindText, Content: []byte("  Hello,   World!  "), CreatedAt: 4000},
		{Kind: store.KindImage, Content: []byte("\x89PNG\r\n\x1a\n demo pixels"), CreatedAt: 5000},
	}

	fmt.Println("Capturing with deduplication:")
	for i, c := range captures {
		id, err := s.DedupeInsert(c)
		if err != nil {
			log.Printf("Failed to capture item %d: %v", i, err)
			continue
		}
		fmt.Printf("%d. %-5s -> item #%d\n", i+1, c.Kind, id)
	}

	if err := s.Pin(2, true); err != nil {
		log.Fatalf("Failed to pin item: %v", err)
	}

	show := func(label, query string) {
		items, err := s.Search(query, 10)
		if err != nil {
			log.Fatalf("Search failed: %v", err)
		}
		fmt.Printf("\n%s (%d results):\n", label, len(items))
		for _, item := range items {
			pin := " "
			if item.Pinned {
				pin = "*"
			}
			fmt.Printf("  #%d %s %-5s created=%d tags=%v\n", item.ID, pin, item.Kind, item.CreatedAt, item.Tags)
		}
	}

	show("Recent history, pinned first", "")
	show("Search \"hello\"", "hello")
	show("Search \"invoice\" (rtf)", "invoice")
	show("Search \"terminal\" (source app)", "terminal")

	item, err := s.Get(1)
	if err != nil {
		log.Fatalf("Get failed: %v", err)
	}
	if item.LastSeenAt != nil {
		fmt.Printf("\nItem #1 was seen again at %d\n", *item.LastSeenAt)
	}

	stats, err := s.Stats()
	if err != nil {
		log.Fatalf("Stats failed: %v", err)
	}
	fmt.Printf("\nSession %s holds %d items\n", stats.SessionID, stats.Items)
}
