// Command libclipcore builds the engine as a C shared library:
//
//	go build -buildmode=c-shared -o libclipcore.so ./cmd/libclipcore
//
// Every pointer returned by a core_* function belongs to the caller and must
// be released exactly once with the matching *_free function.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	int64_t id;
	int32_t kind;
	char *content_ref;
	char *source_app;
	int64_t created_at;
	int32_t pinned;
	char *tags_json;
} CItem;

typedef struct {
	CItem *items;
	size_t len;
} CItemArray;
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/yiblet/clipvault/internal/boundary"
	"github.com/yiblet/clipvault/internal/config"
	"github.com/yiblet/clipvault/internal/logging"
	"github.com/yiblet/clipvault/internal/session"
)

var (
	core   = boundary.NewCore(sessionOptions())
	ledger = boundary.NewLedger()
)

// sessionOptions reads the user's config file when one exists and falls back
// to defaults otherwise. The library logs only when CLIPVAULT_LOG is set.
func sessionOptions() session.Options {
	opts := config.DefaultConfig().SessionOptions()
	if cm, err := config.NewConfigManager(); err == nil {
		if cfg, err := cm.Load(); err == nil {
			opts = cfg.SessionOptions()
		}
	}
	opts.Logger = logging.Discard()
	if level := os.Getenv("CLIPVAULT_LOG"); level != "" {
		if logger, err := logging.New(os.Stderr, level, "text"); err == nil {
			opts.Logger = logger
		}
	}
	return opts
}

func goOptionalString(s *C.char) *string {
	if s == nil {
		return nil
	}
	v := C.GoString(s)
	return &v
}

func cOptionalString(s *string) *C.char {
	if s == nil {
		return nil
	}
	return C.CString(*s)
}

func fillItem(dst *C.CItem, rec *boundary.Record) {
	dst.id = C.int64_t(rec.ID)
	dst.kind = C.int32_t(rec.Kind)
	dst.content_ref = C.CString(rec.ContentRef)
	dst.source_app = cOptionalString(rec.SourceApp)
	dst.created_at = C.int64_t(rec.CreatedAt)
	dst.pinned = C.int32_t(rec.Pinned)
	dst.tags_json = C.CString(rec.TagsJSON)
}

func clearItem(it *C.CItem) {
	C.free(unsafe.Pointer(it.content_ref))
	C.free(unsafe.Pointer(it.source_app))
	C.free(unsafe.Pointer(it.tags_json))
}

//export core_new
func core_new(dbPath, blobsDir *C.char) C.uintptr_t {
	if dbPath == nil || blobsDir == nil {
		return 0
	}
	h, err := core.Open(C.GoString(dbPath), C.GoString(blobsDir))
	if err != nil {
		return 0
	}
	return C.uintptr_t(h)
}

//export core_free
func core_free(h C.uintptr_t) {
	core.Free(uintptr(h))
}

//export core_last_error
func core_last_error(h C.uintptr_t) *C.char {
	s := C.CString(core.LastError(uintptr(h)))
	ledger.Handoff(uintptr(unsafe.Pointer(s)), boundary.OwnedString)
	return s
}

//export core_add_item
func core_add_item(h C.uintptr_t, kind C.int32_t, contentRef, sourceApp *C.char, createdAt C.int64_t) C.int64_t {
	if contentRef == nil {
		return C.int64_t(boundary.StatusInvalidArgument)
	}
	return C.int64_t(core.Insert(uintptr(h), int32(kind), C.GoString(contentRef),
		goOptionalString(sourceApp), int64(createdAt), false))
}

//export core_dedupe_insert
func core_dedupe_insert(h C.uintptr_t, kind C.int32_t, contentRef, sourceApp *C.char, createdAt C.int64_t) C.int64_t {
	if contentRef == nil {
		return C.int64_t(boundary.StatusInvalidArgument)
	}
	return C.int64_t(core.Insert(uintptr(h), int32(kind), C.GoString(contentRef),
		goOptionalString(sourceApp), int64(createdAt), true))
}

//export core_search
func core_search(h C.uintptr_t, query *C.char, limit C.int32_t) *C.CItemArray {
	q := ""
	if query != nil {
		q = C.GoString(query)
	}
	records, status := core.Search(uintptr(h), q, int32(limit))
	if status != boundary.StatusOK {
		return nil
	}

	arr := (*C.CItemArray)(C.calloc(1, C.size_t(unsafe.Sizeof(C.CItemArray{}))))
	arr.len = C.size_t(len(records))
	if len(records) > 0 {
		arr.items = (*C.CItem)(C.calloc(C.size_t(len(records)), C.size_t(unsafe.Sizeof(C.CItem{}))))
		items := unsafe.Slice(arr.items, len(records))
		for i, rec := range records {
			fillItem(&items[i], rec)
		}
	}
	ledger.Handoff(uintptr(unsafe.Pointer(arr)), boundary.OwnedItemArray)
	return arr
}

//export core_get_item
func core_get_item(h C.uintptr_t, id C.int64_t) *C.CItem {
	rec, status := core.GetItem(uintptr(h), int64(id))
	if status != boundary.StatusOK {
		return nil
	}
	it := (*C.CItem)(C.calloc(1, C.size_t(unsafe.Sizeof(C.CItem{}))))
	fillItem(it, rec)
	ledger.Handoff(uintptr(unsafe.Pointer(it)), boundary.OwnedItem)
	return it
}

// core_item_content copies the item's bytes into a buffer released with
// bytes_free and stores its length in *n. Returns NULL on failure.
//
//export core_item_content
func core_item_content(h C.uintptr_t, id C.int64_t, n *C.size_t) *C.uint8_t {
	data, status := core.Content(uintptr(h), int64(id))
	if status != boundary.StatusOK {
		return nil
	}
	buf := (*C.uint8_t)(C.malloc(C.size_t(max(len(data), 1))))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(buf)), len(data)), data)
	if n != nil {
		*n = C.size_t(len(data))
	}
	ledger.Handoff(uintptr(unsafe.Pointer(buf)), boundary.OwnedBytes)
	return buf
}

//export core_delete_item
func core_delete_item(h C.uintptr_t, id C.int64_t) C.int32_t {
	return C.int32_t(core.DeleteItem(uintptr(h), int64(id)))
}

//export core_pin_item
func core_pin_item(h C.uintptr_t, id C.int64_t, pinned C.int32_t) C.int32_t {
	return C.int32_t(core.PinItem(uintptr(h), int64(id), pinned != 0))
}

//export item_free
func item_free(it *C.CItem) {
	if it == nil || !ledger.Release(uintptr(unsafe.Pointer(it)), boundary.OwnedItem) {
		return
	}
	clearItem(it)
	C.free(unsafe.Pointer(it))
}

//export item_array_free
func item_array_free(arr *C.CItemArray) {
	if arr == nil || !ledger.Release(uintptr(unsafe.Pointer(arr)), boundary.OwnedItemArray) {
		return
	}
	if arr.items != nil {
		items := unsafe.Slice(arr.items, int(arr.len))
		for i := range items {
			clearItem(&items[i])
		}
		C.free(unsafe.Pointer(arr.items))
	}
	C.free(unsafe.Pointer(arr))
}

//export string_free
func string_free(s *C.char) {
	if s == nil || !ledger.Release(uintptr(unsafe.Pointer(s)), boundary.OwnedString) {
		return
	}
	C.free(unsafe.Pointer(s))
}

//export bytes_free
func bytes_free(b *C.uint8_t) {
	if b == nil || !ledger.Release(uintptr(unsafe.Pointer(b)), boundary.OwnedBytes) {
		return
	}
	C.free(unsafe.Pointer(b))
}

func main() {}
