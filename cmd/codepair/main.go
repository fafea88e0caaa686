// codepair is a headless collaboration client: it creates or joins a room,
// mirrors the shared document, broadcasts stdin edits, and prints roster
// changes and AI suggestions as they arrive.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/binaryash/code-editor/pkg/channel"
	"github.com/binaryash/code-editor/pkg/config"
	"github.com/binaryash/code-editor/pkg/editor"
	"github.com/binaryash/code-editor/pkg/inference"
	"github.com/binaryash/code-editor/pkg/logging"
	"github.com/binaryash/code-editor/pkg/roomdir"
	"github.com/binaryash/code-editor/pkg/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "codepair: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("codepair", flag.ContinueOnError)
	serverURL := fs.String("server", cfg.Inference.BaseURL, "collaboration server base URL")
	roomID := fs.String("room", "", "room to join (empty creates a new one)")
	language := fs.String("language", "python", "language for a newly created room")
	identity := fs.String("user", "", "participant identity (empty generates one)")
	logDir := fs.String("log-dir", cfg.Logging.Dir, "directory for structured logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user := *identity
	if user == "" {
		user = session.NewIdentity()
	}

	logger, err := logging.NewLogger(*logDir, user)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.MinLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	directory := roomdir.NewClient(*serverURL)

	room := *roomID
	if room == "" {
		created, err := directory.CreateRoom(ctx, *language)
		if err != nil {
			return err
		}
		room = created.RoomID
		fmt.Printf("created room %s (%s)\n", room, created.Language)
	}

	wsBase := websocketBase(*serverURL)
	dialOpts := channel.Options{
		BaseURL:     wsBase,
		DialTimeout: cfg.Channel.DialTimeout,
		Logger:      logger,
	}
	dial := func(ctx context.Context, roomID, identity string) (channel.Transport, error) {
		if cfg.Channel.Reconnect.Enabled {
			return channel.DialWithRetry(ctx, roomID, identity, dialOpts, channel.RetryPolicy{
				InitialWait: 500 * time.Millisecond,
				MaxWait:     cfg.Channel.Reconnect.MaxWait,
				MaxTries:    cfg.Channel.Reconnect.MaxTries,
			})
		}
		return channel.Dial(ctx, roomID, identity, dialOpts)
	}

	registry := editor.NewRegistry()
	inferenceClient := inference.NewClientWithOptions(*serverURL, inference.ClientOptions{
		Timeout:            cfg.Inference.Timeout,
		RequestsPerSecond:  cfg.Inference.RequestsPerSecond,
		NetworkLogsEnabled: cfg.Inference.NetworkLogsEnabled,
		NetworkLogDir:      *logDir,
	})

	sess, err := session.Open(ctx, room, user, session.Config{
		Directory:           directory,
		Dial:                dial,
		Client:              inferenceClient,
		Registry:            registry,
		DebounceWindow:      cfg.Suggest.DebounceWindow,
		ConfidenceThreshold: cfg.Suggest.ConfidenceThreshold,
		Reconnect:           cfg.Channel.Reconnect.Enabled,
		Logger:              logger,
		Hooks: session.Hooks{
			DocumentReplaced: func(code, author string) {
				if author == "" {
					fmt.Printf("-- synced (%d bytes)\n", len(code))
					return
				}
				fmt.Printf("-- %s edited:\n%s\n", author, code)
			},
			RosterChanged: func(users []string) {
				fmt.Printf("-- participants: %s\n", strings.Join(users, ", "))
			},
			Disconnected: func() {
				fmt.Println("-- channel lost")
			},
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("joined %s as %s; type to edit, /help for commands\n", room, user)
	return inputLoop(ctx, sess, registry)
}

// inputLoop reads stdin: plain lines are appended to the document and
// broadcast, slash commands inspect the session.
func inputLoop(ctx context.Context, sess *session.Session, registry *editor.Registry) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.HasPrefix(line, "/") {
				if quit := command(ctx, line, sess, registry); quit {
					return nil
				}
				continue
			}

			doc := sess.Document()
			if doc != "" && !strings.HasSuffix(doc, "\n") {
				doc += "\n"
			}
			doc += line
			if err := sess.ApplyLocal(ctx, doc, len(doc)); err != nil {
				fmt.Printf("-- edit not broadcast: %v\n", err)
			}
		}
	}
}

func command(ctx context.Context, line string, sess *session.Session, registry *editor.Registry) (quit bool) {
	switch strings.TrimSpace(line) {
	case "/quit":
		return true
	case "/doc":
		fmt.Println(sess.Document())
	case "/users":
		fmt.Printf("participants: %s\n", strings.Join(sess.Participants(), ", "))
	case "/suggest":
		doc := sess.Document()
		items, err := registry.Completions(ctx, sess.Language(), doc, len(doc))
		if err != nil || len(items) == 0 {
			fmt.Println("no suggestion")
			break
		}
		for _, item := range items {
			fmt.Printf("suggestion: %s (%s)\n", item.InsertText, item.Detail)
		}
	case "/ghost":
		doc := sess.Document()
		ghost, err := registry.Inline(ctx, sess.Language(), doc, len(doc))
		if err != nil || ghost == nil {
			fmt.Println("no ghost text")
			break
		}
		fmt.Printf("ghost: %s\n", ghost.InsertText)
	case "/help":
		fmt.Println("commands: /doc /users /suggest /ghost /quit")
	default:
		fmt.Println("unknown command; /help lists commands")
	}
	return false
}

// websocketBase rewrites an http(s) base URL to its ws(s) counterpart.
func websocketBase(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}
