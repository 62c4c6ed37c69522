package cli

import (
	"fmt"

	"github.com/yiblet/clipvault/internal/store"
)

// Args represents the top-level command structure
type Args struct {
	DBPath     *string `arg:"--db" help:"catalog database path (default: ~/.config/clipvault/clipvault.db)"`
	BlobsDir   *string `arg:"--blobs" help:"blob directory (default: ~/.config/clipvault/blobs)"`
	ConfigPath *string `arg:"--config" help:"config file (default: ~/.config/clipvault/config.yaml)"`

	Add    *AddCmd    `arg:"subcommand:add" help:"Store a capture"`
	Search *SearchCmd `arg:"subcommand:search" help:"Search stored items"`
	Get    *GetCmd    `arg:"subcommand:get" help:"Show or export one item"`
	Delete *IDCmd     `arg:"subcommand:delete" help:"Delete an item"`
	Pin    *IDCmd     `arg:"subcommand:pin" help:"Pin an item"`
	Unpin  *IDCmd     `arg:"subcommand:unpin" help:"Unpin an item"`
	Tag    *TagCmd    `arg:"subcommand:tag" help:"Add a tag to an item"`
	Untag  *TagCmd    `arg:"subcommand:untag" help:"Remove a tag from an item"`
	Stats  *StatsCmd  `arg:"subcommand:stats" help:"Show store statistics"`
	Browse *BrowseCmd `arg:"subcommand:browse" help:"Browse history interactively"`
	Config *ConfigCmd `arg:"subcommand:config" help:"Read or change configuration"`
}

// AddCmd represents 'clipvault add'
type AddCmd struct {
	File      *string  `arg:"positional" help:"File to read from (default: stdin)"`
	Clipboard bool     `arg:"-c,--clipboard" help:"Read from clipboard"`
	Kind      string   `arg:"-k,--kind" help:"text, rtf, image or file (default: detected)"`
	Source    *string  `arg:"-s,--source" help:"Application the content came from"`
	Tags      []string `arg:"-t,--tag,separate" help:"Tag to attach (repeatable)"`
	Dedupe    bool     `arg:"-d,--dedupe" help:"Return the existing item when the content is already stored"`
	At        *int64   `arg:"--at" help:"Capture time in epoch milliseconds (default: now)"`
}

// SearchCmd represents 'clipvault search'
type SearchCmd struct {
	Query   string `arg:"positional" help:"Words that must all appear (empty lists recent items)"`
	Limit   *int   `arg:"-n,--limit" help:"Maximum number of results (default from config)"`
	IDsOnly bool   `arg:"--ids" help:"Print only item ids"`
}

// GetCmd represents 'clipvault get'
type GetCmd struct {
	ID        int64   `arg:"positional,required" help:"Item id"`
	Raw       bool    `arg:"-r,--raw" help:"Write the content to stdout"`
	Output    *string `arg:"-o,--output" help:"Write the content to a file"`
	Clipboard bool    `arg:"-c,--clipboard" help:"Copy the content to the clipboard"`
}

// IDCmd is any command taking a single item id
type IDCmd struct {
	ID int64 `arg:"positional,required" help:"Item id"`
}

// TagCmd represents 'clipvault tag' and 'clipvault untag'
type TagCmd struct {
	ID  int64  `arg:"positional,required" help:"Item id"`
	Tag string `arg:"positional,required" help:"Tag"`
}

// StatsCmd represents 'clipvault stats'
type StatsCmd struct{}

// BrowseCmd represents 'clipvault browse'
type BrowseCmd struct {
	Query string `arg:"positional" help:"Initial search (empty lists recent items)"`
	Limit *int   `arg:"-n,--limit" help:"Maximum number of items listed (default: 200)"`
}

// ConfigCmd represents 'clipvault config'
type ConfigCmd struct {
	Get  *ConfigGetCmd  `arg:"subcommand:get" help:"Print one value"`
	Set  *ConfigSetCmd  `arg:"subcommand:set" help:"Change one value"`
	List *ConfigListCmd `arg:"subcommand:list" help:"Print all values"`
}

// ConfigGetCmd represents 'clipvault config get'
type ConfigGetCmd struct {
	Key string `arg:"positional,required" help:"Configuration key"`
}

// ConfigSetCmd represents 'clipvault config set'
type ConfigSetCmd struct {
	Key   string `arg:"positional,required" help:"Configuration key"`
	Value string `arg:"positional,required" help:"New value"`
}

// ConfigListCmd represents 'clipvault config list'
type ConfigListCmd struct{}

// Description returns the program description
func (Args) Description() string {
	return "clipvault - clipboard history store with content deduplication and search"
}

// Version returns the program version
func (Args) Version() string {
	return "clipvault 0.1.0"
}

// Epilogue returns additional help text
func (Args) Epilogue() string {
	return `Examples:
  echo "hello" | clipvault add --dedupe   # Store stdin unless already stored
  clipvault add -c -t work                # Store the clipboard with a tag
  clipvault add shot.png --source Preview # Store an image file
  clipvault search invoice -n 5           # Five best matches
  clipvault search                        # Recent history, pinned first
  clipvault browse                        # Interactive history browser
  clipvault get 12 --raw > out.txt        # Export an item
  clipvault pin 12
  clipvault config set dedupe-touch none`
}

// HasCommand reports whether a subcommand was given
func (args *Args) HasCommand() bool {
	return args.Add != nil || args.Search != nil || args.Get != nil ||
		args.Delete != nil || args.Pin != nil || args.Unpin != nil ||
		args.Tag != nil || args.Untag != nil || args.Stats != nil || args.Browse != nil ||
		args.Config != nil
}

// Validate performs validation on the parsed arguments
func (args *Args) Validate() error {
	switch {
	case args.Add != nil:
		return args.Add.Validate()
	case args.Search != nil:
		return args.Search.Validate()
	case args.Get != nil:
		return args.Get.Validate()
	case args.Browse != nil:
		return args.Browse.Validate()
	}
	return nil
}

// Validate validates add command arguments
func (a *AddCmd) Validate() error {
	if a.File != nil && a.Clipboard {
		return fmt.Errorf("cannot specify both file and clipboard input")
	}
	if a.Kind != "" {
		if _, err := store.ParseKind(a.Kind); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates search command arguments
func (s *SearchCmd) Validate() error {
	if s.Limit != nil && *s.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

// Validate validates browse command arguments
func (b *BrowseCmd) Validate() error {
	if b.Limit != nil && *b.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

// Validate validates get command arguments
func (g *GetCmd) Validate() error {
	outputs := 0
	for _, set := range []bool{g.Raw, g.Output != nil, g.Clipboard} {
		if set {
			outputs++
		}
	}
	if outputs > 1 {
		return fmt.Errorf("choose only one of --raw, --output and --clipboard")
	}
	return nil
}
