// Package main is the entry point for the content store CLI.
// It saves, splits, loads and deletes content, reports storage usage and
// reads the action event queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"

	"github.com/prn-tf/contentstore/internal/app"
	"github.com/prn-tf/contentstore/internal/config"
	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/queue"
	"github.com/prn-tf/contentstore/internal/splitter"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "version":
		fmt.Printf("Content Store CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "save":
		err = runSave(ctx, args)

	case "split":
		err = runSplit(ctx, args)

	case "load":
		err = runLoad(ctx, args)

	case "delete":
		err = runDelete(ctx, args)

	case "usage":
		err = runUsage(ctx, args)

	case "migrate":
		err = runMigrate(ctx, args)

	case "events":
		err = runEvents(ctx, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet creates the flag set of a command with the shared --config flag.
func newFlagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "path to the config file")
	return fs, configPath
}

func openApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.Logging))
}

func runSave(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("save")
	owner := fs.String("owner", "", "owner id (a new one is generated when empty)")
	name := fs.String("name", "", "content name (defaults to the file name)")
	mediaType := fs.String("media-type", "application/octet-stream", "content media type")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: contentctl save [flags] <file>")
	}
	path := fs.Arg(0)

	ownerID := uuid.New()
	if *owner != "" {
		parsed, err := uuid.Parse(*owner)
		if err != nil {
			return fmt.Errorf("invalid owner id: %w", err)
		}
		ownerID = parsed
	}
	if *name == "" {
		*name = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	content, _, err := a.Ingest(ctx, ownerID, f, *name, *mediaType)
	if err != nil {
		return err
	}
	return printJSON(content)
}

func runSplit(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("split")
	headers := fs.Bool("headers", false, "treat the first non-comment line as a header repeated in every child")
	commentChars := fs.String("comment-chars", "", "prefix marking comment lines before the header")
	maxRows := fs.Int64("max-rows", 0, "maximum data rows per child (0 uses the configured value)")
	maxSize := fs.Int64("max-size", 0, "maximum bytes per child (0 uses the configured value)")
	record := fs.Bool("record", false, "index the children in the segment index")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: contentctl split [flags] <content.json>")
	}

	content, err := readContent(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []splitter.Option{
		splitter.WithHeaders(a.SplitParams.IncludeHeaders()),
		splitter.WithCommentChars(a.SplitParams.CommentChars()),
		splitter.WithMaxRows(a.SplitParams.MaxRows()),
		splitter.WithMaxSize(a.SplitParams.MaxSize()),
	}
	if fs.Changed("headers") {
		opts = append(opts, splitter.WithHeaders(*headers))
	}
	if fs.Changed("comment-chars") {
		opts = append(opts, splitter.WithCommentChars(*commentChars))
	}
	if *maxRows != 0 {
		opts = append(opts, splitter.WithMaxRows(*maxRows))
	}
	if *maxSize != 0 {
		opts = append(opts, splitter.WithMaxSize(*maxSize))
	}
	params, err := splitter.NewParams(opts...)
	if err != nil {
		return err
	}

	children, _, err := a.Split(ctx, content, params, *record)
	if err != nil {
		return err
	}
	return printJSON(children)
}

func runLoad(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("load")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: contentctl load <content.json>")
	}

	content, err := readContent(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	rc, err := a.Content.Load(ctx, content)
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(os.Stdout, rc)
	return err
}

func runDelete(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("delete")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: contentctl delete <content.json>")
	}

	content, err := readContent(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Content.Delete(ctx, content); err != nil {
		return err
	}
	fmt.Printf("Deleted %d object(s)\n", len(content.ObjectNames()))
	return nil
}

func runUsage(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("usage")
	_ = fs.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Usage == nil {
		return fmt.Errorf("usage requires a segment index")
	}

	if fs.NArg() == 0 {
		n, err := a.Usage.Owners(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Owners: %d\n", n)
		return nil
	}

	ownerID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid owner id: %w", err)
	}
	usage, err := a.Usage.OwnerUsage(ctx, ownerID)
	if err != nil {
		return err
	}
	return printJSON(usage)
}

// runEvents prints the queue length and takes up to --count events off the queue.
func runEvents(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("events")
	count := fs.Int("count", 0, "number of events to take off the queue")
	wait := fs.Duration("wait", time.Second, "how long to wait for each event")
	_ = fs.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Queue == nil {
		return fmt.Errorf("events require redis to be enabled")
	}

	n, err := a.Queue.Len(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Queued events: %d\n", n)

	for i := 0; i < *count; i++ {
		event, err := a.Queue.Next(ctx, *wait)
		if errors.Is(err, queue.ErrEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := printJSON(event); err != nil {
			return err
		}
	}
	return nil
}

// runMigrate opens the segment index, which applies pending migrations.
func runMigrate(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("migrate")
	_ = fs.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Database == nil {
		return fmt.Errorf("no segment index configured")
	}
	fmt.Printf("Segment index (%s) is up to date\n", a.Config.Database.Driver)
	return nil
}

// readContent decodes a Content from a JSON file, or stdin when path is "-".
func readContent(path string) (domain.Content, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.Content{}, err
		}
		defer f.Close()
		r = f
	}

	var content domain.Content
	if err := json.NewDecoder(r).Decode(&content); err != nil {
		return domain.Content{}, fmt.Errorf("decode content: %w", err)
	}
	return content, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println(`Content Store CLI

Usage:
  contentctl <command> [flags] [arguments]

Commands:
  save        Save a local file as new content and print it as JSON
  split       Split stored content into row-bounded children
  load        Stream the bytes of content to stdout
  delete      Delete every object referenced by content
  usage       Show the storage usage of an owner
  migrate     Apply segment index migrations
  events      Show and take published action events off the queue
  version     Print version information
  help        Show this help message

Flags:
  -c, --config    Path to the config file

Examples:
  contentctl save --media-type text/csv data.csv > data.json
  contentctl split --headers --comment-chars '#' --max-rows 1000 data.json
  contentctl load data.json > copy.csv
  contentctl events --count 10
  contentctl usage 3f2a1c9e-5b7d-4e1a-9c2b-8d4f6a0e1b3c

Environment Variables:
  CONTENTSTORE_STORAGE_BACKEND    filesystem or s3
  CONTENTSTORE_DATABASE_DRIVER    sqlite, postgres or none`)
}
