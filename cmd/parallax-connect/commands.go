package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/lk2023060901/parallax-connect/internal/chat/export"
	"github.com/lk2023060901/parallax-connect/internal/chat/service"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/pkg/injector"
	"github.com/lk2023060901/parallax-connect/internal/transport"
)

var errUsage = errors.New("usage")

const memoryStoreNote = "note: store.driver is memory, sessions from earlier runs are not kept; use redis, postgres or minio"

type env struct {
	app    *injector.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
	// stored commands read sessions saved by earlier runs
	stored bool
}

var commands []command

func init() {
	commands = []command{
		{"ping", "check that the server is reachable", cmdPing, false},
		{"info", "show server version and capabilities", cmdInfo, false},
		{"models", "list the models the server offers", cmdModels, false},
		{"chat", "chat [flags] [prompt]  stream a reply; no prompt starts a session on stdin", cmdChat, false},
		{"sessions", "list saved sessions", cmdSessions, true},
		{"rename", "rename <id> <title>", cmdRename, true},
		{"pin", "pin <id>  toggle the important flag", cmdPin, true},
		{"delete", "delete <id>", cmdDelete, true},
		{"export", "export [-format md|html] [-o file] <id>", cmdExport, true},
		{"upload-logs", "upload-logs [-device-id id] [-device-name name] <file>", cmdUploadLogs, false},
	}
}

func run(ctx context.Context, e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.stderr, "missing command; run with -h for help")
		return 2
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if c.stored && e.app.Data.Driver == conf.StoreMemory {
			fmt.Fprintln(e.stderr, memoryStoreNote)
		}
		err := c.run(ctx, e, args[1:])
		switch {
		case err == nil:
			return 0
		case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(e.stderr, "usage: %s\n", c.summary)
			return 2
		default:
			fmt.Fprintln(e.stderr, "error:", err)
			return 1
		}
	}
	fmt.Fprintf(e.stderr, "unknown command %q\n", args[0])
	return 2
}

func cmdPing(ctx context.Context, e *env, _ []string) error {
	if !e.app.Client.TestConnection(ctx) {
		return errors.New("server unreachable")
	}
	fmt.Fprintln(e.stdout, "ok")
	return nil
}

func cmdInfo(ctx context.Context, e *env, _ []string) error {
	info, err := e.app.Client.GetInfo(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "version\t%s\n", info.ServerVersion)
	fmt.Fprintf(w, "mode\t%s\n", info.Mode)
	fmt.Fprintf(w, "vram_gb\t%g\n", info.Capabilities.VRAMGB)
	fmt.Fprintf(w, "vision\t%t\n", info.Capabilities.VisionSupported)
	fmt.Fprintf(w, "documents\t%t\n", info.Capabilities.DocumentProcessing)
	fmt.Fprintf(w, "context_window\t%d\n", info.Capabilities.MaxContextWindow)
	return w.Flush()
}

func cmdModels(ctx context.Context, e *env, _ []string) error {
	list, err := e.app.Client.ListModels(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	for _, m := range list.Models {
		marker := " "
		if m.ID == list.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", marker, m.ID, m.Name, m.ContextLength)
	}
	return w.Flush()
}

func cmdChat(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	search := fs.Bool("search", false, "enable web search")
	auto := fs.Bool("auto-search", false, "let the server decide whether to search")
	depth := fs.String("depth", transport.SearchDepthNormal, "search depth: normal, deep or deeper")
	system := fs.String("system", "", "system prompt")
	model := fs.String("model", "", "model id")
	showThinking := fs.Bool("thinking", false, "print the reasoning trace to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := service.SendOptions{
		SystemPrompt: *system,
		Options:      transport.ChatOptions{Model: *model},
		WebSearch:    *search,
		AutoSearch:   *auto,
		SearchDepth:  *depth,
	}
	svc := e.app.Service

	turn := func(prompt string) error {
		_, err := svc.Stream(ctx, prompt, opts, func(ev types.StreamEvent) {
			switch ev.Kind {
			case types.EventContent:
				fmt.Fprint(e.stdout, ev.Content)
			case types.EventThinking:
				if *showThinking {
					fmt.Fprintln(e.stderr, "…", strings.TrimSpace(ev.Content))
				}
			case types.EventSearchResults:
				if results, ok := ev.Metadata["results"].([]any); ok {
					fmt.Fprintf(e.stderr, "[%d search results]\n", len(results))
				}
			}
		})
		fmt.Fprintln(e.stdout)
		return err
	}

	archive := func() error {
		sess, ok, err := svc.ArchiveActive(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(e.stderr, "saved session %s (%s)\n", sess.ID, sess.Title)
		}
		return nil
	}

	if fs.NArg() > 0 {
		err := turn(strings.Join(fs.Args(), " "))
		if archiveErr := archive(); archiveErr != nil && err == nil {
			err = archiveErr
		}
		return err
	}

	// interactive: one prompt per line, /new archives, /quit exits
	scanner := bufio.NewScanner(e.stdin)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	fmt.Fprint(e.stderr, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return archive()
		case "/new":
			if err := archive(); err != nil {
				return err
			}
		default:
			if err := turn(line); err != nil {
				fmt.Fprintln(e.stderr, "error:", err)
			}
		}
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(e.stderr, "> ")
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return archive()
}

func cmdSessions(ctx context.Context, e *env, _ []string) error {
	sessions, err := e.app.Service.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	for _, s := range sessions {
		marker := " "
		if s.IsImportant {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", marker, s.ID, export.Time(s.Timestamp), len(s.Messages), s.Title)
	}
	return w.Flush()
}

func cmdRename(ctx context.Context, e *env, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	return e.app.Service.Rename(ctx, args[0], strings.Join(args[1:], " "))
}

func cmdPin(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	important, err := e.app.Service.ToggleImportant(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "important: %t\n", important)
	return nil
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return e.app.Service.Delete(ctx, args[0])
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	format := fs.String("format", "md", "md or html")
	out := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	sess, err := e.app.Service.Get(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	var doc string
	switch *format {
	case "md", "markdown":
		doc = export.Markdown(sess)
	case "html":
		if doc, err = export.HTML(sess); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *out == "" {
		_, err = io.WriteString(e.stdout, doc)
		return err
	}
	return os.WriteFile(*out, []byte(doc), 0o644)
}

func cmdUploadLogs(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("upload-logs", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	hostname, _ := os.Hostname()
	deviceID := fs.String("device-id", hostname, "device id")
	deviceName := fs.String("device-name", "", "device name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	filename, err := e.app.Client.UploadLogs(ctx, *deviceID, *deviceName, string(data))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, filename)
	return nil
}
