package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yiblet/clipvault/internal/clipboard"
	"github.com/yiblet/clipvault/internal/clipboard/sysboard"
	"github.com/yiblet/clipvault/internal/config"
	"github.com/yiblet/clipvault/internal/logging"
	"github.com/yiblet/clipvault/internal/session"
	"github.com/yiblet/clipvault/internal/store"
	"github.com/yiblet/clipvault/internal/tui"
)

// browseLimit is how many items 'clipvault browse' lists by default
const browseLimit = 200

// CLI handles the command-line interface
type CLI struct {
	configManager *config.ConfigManager
	config        *config.Config
	dbPath        string
	blobsDir      string

	session   *session.Session
	clipboard clipboard.Clipboard

	stdin  io.Reader
	stdout io.Writer
	now    func() time.Time
}

// NewWithArgs creates a CLI for the parsed arguments. The store is opened
// on first use, so config commands work without it.
func NewWithArgs(args *Args) (*CLI, error) {
	if args == nil {
		args = &Args{}
	}

	var cm *config.ConfigManager
	if args.ConfigPath != nil {
		cm = config.NewConfigManagerWithPath(*args.ConfigPath)
	} else {
		var err error
		if cm, err = config.NewConfigManager(); err != nil {
			return nil, err
		}
	}

	cfg, err := cm.Load()
	if err != nil {
		return nil, err
	}

	// Paths: flag > config file > default
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		return nil, err
	}
	if args.DBPath != nil {
		dbPath = *args.DBPath
	}
	blobsDir, err := cfg.ResolveBlobsDir()
	if err != nil {
		return nil, err
	}
	if args.BlobsDir != nil {
		blobsDir = *args.BlobsDir
	}

	return &CLI{
		configManager: cm,
		config:        cfg,
		dbPath:        dbPath,
		blobsDir:      blobsDir,
		clipboard:     sysboard.New(),
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		now:           time.Now,
	}, nil
}

// Close releases the store if it was opened
func (c *CLI) Close() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func (c *CLI) openSession() (*session.Session, error) {
	if c.session != nil {
		return c.session, nil
	}

	logger, err := logging.New(os.Stderr, c.config.LogLevel, c.config.LogFormat)
	if err != nil {
		return nil, err
	}
	opts := c.config.SessionOptions()
	opts.Logger = logger

	s, err := session.Open(c.dbPath, c.blobsDir, opts)
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

// Execute runs the CLI command based on parsed arguments
func (c *CLI) Execute(args *Args) error {
	if err := args.Validate(); err != nil {
		return err
	}

	switch {
	case args.Config != nil:
		return c.executeConfig(args.Config)
	case args.Add != nil:
		return c.executeAdd(args.Add)
	case args.Search != nil:
		return c.executeSearch(args.Search)
	case args.Get != nil:
		return c.executeGet(args.Get)
	case args.Delete != nil:
		return c.executeDelete(args.Delete)
	case args.Pin != nil:
		return c.executePin(args.Pin, true)
	case args.Unpin != nil:
		return c.executePin(args.Unpin, false)
	case args.Tag != nil:
		return c.executeTag(args.Tag, true)
	case args.Untag != nil:
		return c.executeTag(args.Untag, false)
	case args.Stats != nil:
		return c.executeStats()
	case args.Browse != nil:
		return c.executeBrowse(args.Browse)
	default:
		// No subcommand: show recent history
		return c.executeSearch(&SearchCmd{})
	}
}

// executeAdd handles the 'clipvault add' command
func (c *CLI) executeAdd(cmd *AddCmd) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	var (
		data []byte
		kind store.Kind
	)
	switch {
	case cmd.Clipboard:
		capture, err := c.clipboard.Read()
		if err != nil {
			return fmt.Errorf("failed to read clipboard: %w", err)
		}
		data, kind = capture.Data, capture.Kind
	case cmd.File != nil:
		if data, err = os.ReadFile(*cmd.File); err != nil {
			return fmt.Errorf("failed to read file %s: %w", *cmd.File, err)
		}
		kind = detectKind(data)
	default:
		if data, err = io.ReadAll(c.stdin); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("no input provided")
		}
		kind = detectKind(data)
	}

	if cmd.Kind != "" {
		if kind, err = store.ParseKind(cmd.Kind); err != nil {
			return err
		}
	}

	createdAt := c.now().UnixMilli()
	if cmd.At != nil {
		createdAt = *cmd.At
	}

	item := &store.NewItem{
		Kind:      kind,
		Content:   data,
		SourceApp: cmd.Source,
		CreatedAt: createdAt,
		Tags:      cmd.Tags,
	}

	var id int64
	if cmd.Dedupe {
		id, err = s.DedupeInsert(item)
	} else {
		id, err = s.AddItem(item)
	}
	if err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}

	fmt.Fprintf(c.stdout, "Stored #%d: %s\n", id, preview(&store.Item{Kind: kind}, data))
	return nil
}

// executeSearch handles the 'clipvault search' command
func (c *CLI) executeSearch(cmd *SearchCmd) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	limit := c.config.DefaultLimit
	if cmd.Limit != nil {
		limit = *cmd.Limit
	}

	items, err := s.Search(cmd.Query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(items) == 0 {
		if strings.TrimSpace(cmd.Query) == "" {
			fmt.Fprintln(c.stdout, "History is empty.")
			return nil
		}
		return fmt.Errorf("no matches found for: %s", cmd.Query)
	}

	for _, item := range items {
		if cmd.IDsOnly {
			fmt.Fprintf(c.stdout, "%d\n", item.ID)
			continue
		}
		content, err := s.Content(item.ID)
		if err != nil {
			return fmt.Errorf("failed to read item %d: %w", item.ID, err)
		}
		fmt.Fprintln(c.stdout, renderRow(item, preview(item, content)))
	}
	return nil
}

// executeGet handles the 'clipvault get' command
func (c *CLI) executeGet(cmd *GetCmd) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	item, err := s.Get(cmd.ID)
	if err != nil {
		return err
	}
	content, err := s.Content(cmd.ID)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	switch {
	case cmd.Raw:
		_, err = c.stdout.Write(content)
		return err
	case cmd.Output != nil:
		if err := os.WriteFile(*cmd.Output, content, 0644); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		fmt.Fprintf(c.stdout, "Written to %s: %s\n", *cmd.Output, preview(item, content))
		return nil
	case cmd.Clipboard:
		if err := c.clipboard.Write(item.Kind, content); err != nil {
			return fmt.Errorf("failed to write to clipboard: %w", err)
		}
		fmt.Fprintf(c.stdout, "Copied to clipboard: %s\n", preview(item, content))
		return nil
	default:
		fmt.Fprint(c.stdout, renderDetail(item, preview(item, content)))
		return nil
	}
}

// executeDelete handles the 'clipvault delete' command
func (c *CLI) executeDelete(cmd *IDCmd) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	ok, err := s.Delete(cmd.ID)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", cmd.ID, err)
	}
	if !ok {
		fmt.Fprintf(c.stdout, "Item #%d does not exist.\n", cmd.ID)
		return nil
	}
	fmt.Fprintf(c.stdout, "Deleted #%d\n", cmd.ID)
	return nil
}

// executePin handles 'clipvault pin' and 'clipvault unpin'
func (c *CLI) executePin(cmd *IDCmd, pinned bool) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	if err := s.Pin(cmd.ID, pinned); err != nil {
		return err
	}
	if pinned {
		fmt.Fprintf(c.stdout, "Pinned #%d\n", cmd.ID)
	} else {
		fmt.Fprintf(c.stdout, "Unpinned #%d\n", cmd.ID)
	}
	return nil
}

// executeTag handles 'clipvault tag' and 'clipvault untag'
func (c *CLI) executeTag(cmd *TagCmd, add bool) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	if add {
		err = s.AddTag(cmd.ID, cmd.Tag)
	} else {
		err = s.RemoveTag(cmd.ID, cmd.Tag)
	}
	if err != nil {
		return err
	}

	item, err := s.Get(cmd.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "#%d tags: %s\n", cmd.ID, renderTags(item.Tags))
	return nil
}

// executeStats handles the 'clipvault stats' command
func (c *CLI) executeStats() error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	stats, err := s.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Items:    %d\n", stats.Items)
	fmt.Fprintf(c.stdout, "Database: %s\n", stats.DBPath)
	fmt.Fprintf(c.stdout, "Blobs:    %s\n", stats.BlobsDir)
	return nil
}

// executeBrowse handles the 'clipvault browse' command
func (c *CLI) executeBrowse(cmd *BrowseCmd) error {
	model, err := c.browser(cmd)
	if err != nil {
		return err
	}
	return tui.Run(model)
}

// browser builds the interactive model for cmd over the open session
func (c *CLI) browser(cmd *BrowseCmd) (*tui.AppModel, error) {
	s, err := c.openSession()
	if err != nil {
		return nil, err
	}

	limit := browseLimit
	if cmd.Limit != nil {
		limit = *cmd.Limit
	}

	model := tui.NewAppModel(s, c.clipboard, limit, preview)
	if strings.TrimSpace(cmd.Query) != "" {
		if err := model.SetQuery(cmd.Query); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// executeConfig handles the 'clipvault config' command
func (c *CLI) executeConfig(cmd *ConfigCmd) error {
	switch {
	case cmd.Get != nil:
		value, err := c.configManager.Get(cmd.Get.Key)
		if err != nil {
			return fmt.Errorf("failed to get config value: %w", err)
		}
		fmt.Fprintln(c.stdout, value)
		return nil
	case cmd.Set != nil:
		if err := c.configManager.Update(cmd.Set.Key, cmd.Set.Value); err != nil {
			return fmt.Errorf("failed to set config value: %w", err)
		}
		fmt.Fprintf(c.stdout, "Set %s = %s\n", cmd.Set.Key, cmd.Set.Value)
		return nil
	case cmd.List != nil:
		values, err := c.configManager.List()
		if err != nil {
			return fmt.Errorf("failed to list config values: %w", err)
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(c.stdout, "Current configuration (%s):\n", c.configManager.GetConfigPath())
		for _, k := range keys {
			fmt.Fprintf(c.stdout, "  %s = %s\n", k, values[k])
		}
		return nil
	default:
		return fmt.Errorf("no config subcommand specified")
	}
}

// detectKind guesses the kind of raw input
func detectKind(data []byte) store.Kind {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte(`{\rtf`)):
		return store.KindRtf
	case utf8.Valid(data) && bytes.IndexByte(data, 0) < 0:
		return store.KindText
	case strings.HasPrefix(http.DetectContentType(data), "image/"):
		return store.KindImage
	default:
		return store.KindFile
	}
}

// ExitCode maps an error to a process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, store.ErrNotFound):
		return 3
	case errors.Is(err, store.ErrInvalidContent):
		return 2
	default:
		return 1
	}
}
