package dedup

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/yiblet/clipvault/internal/blobstore"
	"github.com/yiblet/clipvault/internal/logging"
	"github.com/yiblet/clipvault/internal/search"
	"github.com/yiblet/clipvault/internal/store"
)

const (
	// DefaultMaxContentBytes is the largest payload accepted by default.
	DefaultMaxContentBytes int64 = 32 << 20

	// DefaultInlineTextLimit is the largest text kept inline in the catalog.
	DefaultInlineTextLimit = 64 << 10
)

// TouchPolicy selects what a dedupe insert does to the item it merges into.
type TouchPolicy string

const (
	// TouchLastSeen moves the item's last_seen_at forward to the capture time.
	TouchLastSeen TouchPolicy = "last_seen"

	// TouchNone returns the existing id and leaves the row untouched.
	TouchNone TouchPolicy = "none"
)

// ParseTouchPolicy validates a policy name. The empty string selects the default.
func ParseTouchPolicy(s string) (TouchPolicy, error) {
	switch TouchPolicy(s) {
	case "", TouchLastSeen:
		return TouchLastSeen, nil
	case TouchNone:
		return TouchNone, nil
	default:
		return "", fmt.Errorf("invalid dedupe touch policy %q (want %s or %s)", s, TouchLastSeen, TouchNone)
	}
}

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	MaxContentBytes int64
	InlineTextLimit int
	Touch           TouchPolicy
}

func (o Options) withDefaults() Options {
	if o.MaxContentBytes <= 0 {
		o.MaxContentBytes = DefaultMaxContentBytes
	}
	if o.InlineTextLimit <= 0 {
		o.InlineTextLimit = DefaultInlineTextLimit
	}
	if o.Touch == "" {
		o.Touch = TouchLastSeen
	}
	return o
}

// Engine writes captures into the catalog and blob store.
type Engine struct {
	catalog store.Catalog
	blobs   *blobstore.BlobStore
	opts    Options
	log     *slog.Logger
}

// NewEngine creates an engine over an open catalog and blob store.
func NewEngine(catalog store.Catalog, blobs *blobstore.BlobStore, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		catalog: catalog,
		blobs:   blobs,
		opts:    opts.withDefaults(),
		log:     logger,
	}
}

// DedupeInsert stores the capture unless a live item with the same
// fingerprint exists, in which case that item's id is returned and its
// identity and created_at are kept.
func (e *Engine) DedupeInsert(item *store.NewItem) (int64, error) {
	return e.insert(item, true)
}

// Add always creates a new item, even for content the catalog already holds.
func (e *Engine) Add(item *store.NewItem) (int64, error) {
	return e.insert(item, false)
}

// prepared is a validated capture ready to be written.
type prepared struct {
	rec  *store.Record
	blob []byte // payload for the blob store, nil when inline
}

func (e *Engine) prepare(item *store.NewItem) (*prepared, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil item", store.ErrInvalidContent)
	}
	if len(item.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content", store.ErrInvalidContent)
	}
	if int64(len(item.Content)) > e.opts.MaxContentBytes {
		return nil, fmt.Errorf("%w: content is %d bytes, limit is %d",
			store.ErrInvalidContent, len(item.Content), e.opts.MaxContentBytes)
	}

	normalized, err := Normalize(item.Kind, item.Content)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: content is blank", store.ErrInvalidContent)
	}

	tags, err := normalizeTags(item.Tags)
	if err != nil {
		return nil, err
	}

	rec := &store.Record{
		Kind:        item.Kind,
		SourceApp:   item.SourceApp,
		CreatedAt:   item.CreatedAt,
		Tags:        tags,
		Fingerprint: Fingerprint(item.Kind, normalized),
	}
	p := &prepared{rec: rec}

	var text string
	if item.Kind.IsText() {
		text = string(item.Content)
	}
	rec.SearchText = search.Document(item.Kind, text, item.SourceApp, tags)

	if item.Kind.IsText() && len(item.Content) <= e.opts.InlineTextLimit {
		rec.ContentRef = text
	} else {
		p.blob = item.Content
		rec.ContentRef = blobstore.Ref(item.Content)
		rec.InBlob = true
	}
	return p, nil
}

func (e *Engine) insert(item *store.NewItem, dedupe bool) (int64, error) {
	p, err := e.prepare(item)
	if err != nil {
		return 0, err
	}

	id, merged, created, err := e.commit(p, dedupe)
	if created && (err != nil || merged) {
		// The blob was written for a row that never committed.
		e.discard(p.rec.ContentRef)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// commit writes the record in one transaction. With dedupe set, the
// fingerprint lookup happens inside that transaction; the unique dedupe key
// backs it up if two writers still race. The blob is put while the write
// transaction is held, which orders it against reclaim in any session.
func (e *Engine) commit(p *prepared, dedupe bool) (id int64, merged, created bool, err error) {
	rec := p.rec
	if dedupe {
		rec.DedupeKey = rec.Fingerprint
	}

	for attempt := 0; attempt < 2; attempt++ {
		err = e.catalog.Update(func(tx store.Tx) error {
			merged = false
			if dedupe {
				existing, ok, err := tx.FindByFingerprint(rec.Fingerprint)
				if err != nil {
					return err
				}
				if ok {
					id, merged = existing, true
					if e.opts.Touch == TouchLastSeen {
						return tx.Touch(existing, rec.CreatedAt)
					}
					return nil
				}
			}

			if p.blob != nil {
				_, wrote, err := e.blobs.Put(p.blob)
				if err != nil {
					return err
				}
				created = created || wrote
			}

			newID, err := tx.Insert(rec)
			if err != nil {
				return err
			}
			id = newID
			return nil
		})
		if !errors.Is(err, store.ErrDuplicateKey) {
			break
		}
		e.log.Debug("dedupe key conflict, retrying lookup", "fingerprint", rec.Fingerprint)
	}
	if errors.Is(err, store.ErrDuplicateKey) {
		return 0, false, created, store.StorageError("dedupe insert", err)
	}
	if err != nil {
		return 0, false, created, err
	}

	if merged {
		e.log.Debug("merged duplicate capture", "id", id, "fingerprint", rec.Fingerprint)
	}
	return id, merged, created, nil
}

// reclaim removes the blob if no live item references it. The count and the
// removal share one write transaction, so an insert of the same content from
// any session lands entirely before or entirely after them.
func (e *Engine) reclaim(ref string) (bool, error) {
	var removed bool
	err := e.catalog.Update(func(tx store.Tx) error {
		var err error
		removed, err = e.blobs.DeleteIfUnreferenced(ref, tx)
		return err
	})
	return removed, err
}

// discard reclaims a blob written by a failed or merged insert. Failures are
// logged since the caller's outcome is already decided.
func (e *Engine) discard(ref string) {
	removed, err := e.reclaim(ref)
	if err != nil {
		e.log.Error("failed to remove unused blob", "ref", ref, "error", err)
		return
	}
	if removed {
		e.log.Debug("removed unused blob", "ref", ref)
	}
}

// Delete removes an item and reclaims its blob when no other item uses it.
// It reports false when the id was already absent.
func (e *Engine) Delete(id int64) (bool, error) {
	item, ok, err := e.catalog.Delete(id)
	if err != nil || !ok {
		return false, err
	}
	if item.InBlob {
		removed, err := e.reclaim(item.ContentRef)
		if err != nil {
			return true, err
		}
		if removed {
			e.log.Debug("reclaimed blob", "id", id, "ref", item.ContentRef)
		}
	}
	return true, nil
}

// Content returns the payload of an item.
func (e *Engine) Content(item *store.Item) ([]byte, error) {
	if item.InBlob {
		return e.blobs.Get(item.ContentRef)
	}
	return []byte(item.ContentRef), nil
}

// AddTag appends tag to the item's tags. Adding a tag already present is a no-op.
func (e *Engine) AddTag(id int64, tag string) error {
	tag, err := normalizeTag(tag)
	if err != nil {
		return err
	}
	return e.catalog.Update(func(tx store.Tx) error {
		item, err := tx.Get(id)
		if err != nil {
			return err
		}
		if slices.Contains(item.Tags, tag) {
			return nil
		}
		return e.setTags(tx, item, append(item.Tags, tag))
	})
}

// RemoveTag removes tag from the item's tags. Removing an absent tag is a no-op.
func (e *Engine) RemoveTag(id int64, tag string) error {
	tag, err := normalizeTag(tag)
	if err != nil {
		return err
	}
	return e.catalog.Update(func(tx store.Tx) error {
		item, err := tx.Get(id)
		if err != nil {
			return err
		}
		i := slices.Index(item.Tags, tag)
		if i < 0 {
			return nil
		}
		return e.setTags(tx, item, slices.Delete(item.Tags, i, i+1))
	})
}

func (e *Engine) setTags(tx store.Tx, item *store.Item, tags []string) error {
	var text string
	if item.Kind.IsText() {
		content, err := e.Content(item)
		if err != nil {
			return err
		}
		text = string(content)
	}
	return tx.SetTags(item.ID, tags, search.Document(item.Kind, text, item.SourceApp, tags))
}

func normalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", fmt.Errorf("%w: empty tag", store.ErrInvalidContent)
	}
	return tag, nil
}

// normalizeTags trims tags and drops repeats, keeping first-seen order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t, err := normalizeTag(t)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}
