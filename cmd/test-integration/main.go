package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/yiblet/clipvault/internal/boundary"
	"github.com/yiblet/clipvault/internal/session"
	"github.com/yiblet/clipvault/internal/store"
)

const writers = 8

func main() {
	fmt.Println("Testing shared store through the boundary")
	fmt.Println("=========================================")

	dir, err := os.MkdirTemp("", "clipvault-integration-")
	if err != nil {
		log.Fatalf("Error creating work directory: %v", err)
	}
	defer os.RemoveAll(dir)

	dbPath := filepath.Join(dir, "clipvault.db")
	blobsDir := filepath.Join(dir, "blobs")

	core := boundary.NewCore(session.Options{})
	defer core.Close()

	// Two handles on the same files behave like two host processes
	h1, err := core.Open(dbPath, blobsDir)
	if err != nil {
		log.Fatalf("Error opening first handle: %v", err)
	}
	h2, err := core.Open(dbPath, blobsDir)
	if err != nil {
		log.Fatalf("Error opening second handle: %v", err)
	}

	failures := 0
	check := func(ok bool, format string, args ...any) {
		mark := "ok  "
		if !ok {
			mark = "FAIL"
			failures++
		}
		fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
	}

	// Concurrent dedupe inserts of the same text must agree on one id
	ids := make([]int64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := h1
			if i%2 == 1 {
				h = h2
			}
			ids[i] = core.Insert(h, int32(store.KindText), "shared   clip", nil, int64(1000+i), true)
		}(i)
	}
	wg.Wait()

	agreed := ids[0] > 0
	for _, id := range ids[1:] {
		agreed = agreed && id == ids[0]
	}
	check(agreed, "%d concurrent dedupe inserts returned ids %v", writers, ids)

	records, status := core.Search(h2, "shared", 10)
	check(status == boundary.StatusOK && len(records) == 1, "search sees exactly one item (status %d, %d results)", status, len(records))

	// An image written through one handle is readable through the other
	png := filepath.Join(dir, "shot.png")
	pixels := []byte("\x89PNG\r\n\x1a\nintegration pixels")
	if err := os.WriteFile(png, pixels, 0644); err != nil {
		log.Fatalf("Error writing image: %v", err)
	}
	imageID := core.Insert(h1, int32(store.KindImage), png, nil, 5000, true)
	check(imageID > 0, "image stored as item %d", imageID)

	record, status := core.GetItem(h2, imageID)
	check(status == boundary.StatusOK && record != nil && record.ContentRef != png,
		"second handle reads image with blob ref (status %d)", status)

	data, status := core.Content(h2, imageID)
	check(status == boundary.StatusOK && bytes.Equal(data, pixels), "second handle reads image bytes (status %d)", status)

	check(core.PinItem(h2, imageID, true) == 1, "pin through second handle")
	records, _ = core.Search(h1, "", 10)
	check(len(records) == 2 && records[0].ID == imageID, "pinned image ranks first")

	// Deleting the only reference reclaims the blob
	blobCount := func() int {
		n := 0
		filepath.WalkDir(blobsDir, func(_ string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				n++
			}
			return nil
		})
		return n
	}
	before := blobCount()
	check(core.DeleteItem(h1, imageID) == 1, "delete image")
	check(blobCount() == before-1, "blob reclaimed (%d -> %d files)", before, blobCount())
	check(core.DeleteItem(h2, imageID) == 0, "second delete reports absent")

	// A freed handle stays dead
	core.Free(h2)
	got := core.Insert(h2, int32(store.KindText), "late", nil, 6000, false)
	check(got == int64(boundary.StatusUseAfterClose), "insert on freed handle returns %d", got)

	fmt.Println()
	if failures > 0 {
		fmt.Printf("%d checks failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("All integration checks passed!")
}
