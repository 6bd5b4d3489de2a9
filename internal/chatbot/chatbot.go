package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/config"
	"BuyBuddy/internal/history"
	"BuyBuddy/internal/render"
	"BuyBuddy/internal/session"
	"BuyBuddy/internal/transcript"
)

// Directory lists what the backend has recorded
type Directory interface {
	ConversationHistory(ctx context.Context, sessionID string, limit int) ([]api.HistoryEntry, error)
	SearchHistory(ctx context.Context, sessionID string, limit int) ([]api.SearchEntry, error)
}

// Journal keeps a local copy of conversations
type Journal interface {
	Save(ctx context.Context, sess session.Session) error
	List(ctx context.Context, limit int) ([]transcript.Summary, error)
}

// ChatBot is the interactive shell around a Controller
type ChatBot struct {
	config     config.Config
	controller *Controller
	directory  Directory
	journal    Journal
	logger     *slog.Logger
	in         io.Reader
	out        io.Writer
	now        func() time.Time

	saves sync.WaitGroup
}

// ChatBotOption configures a ChatBot
type ChatBotOption func(*ChatBot)

// WithIO replaces stdin and stdout
func WithIO(in io.Reader, out io.Writer) ChatBotOption {
	return func(cb *ChatBot) {
		cb.in = in
		cb.out = out
	}
}

// WithJournal saves conversations locally after each change
func WithJournal(journal Journal) ChatBotOption {
	return func(cb *ChatBot) {
		cb.journal = journal
	}
}

// NewChatBot creates a ChatBot
func NewChatBot(cfg config.Config, controller *Controller, directory Directory, logger *slog.Logger, opts ...ChatBotOption) *ChatBot {
	cb := &ChatBot{
		config:     cfg,
		controller: controller,
		directory:  directory,
		logger:     logger,
		in:         os.Stdin,
		out:        os.Stdout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// saveSession writes the current conversation to the journal in the
// background. Conversations the backend has not named yet are skipped.
func (cb *ChatBot) saveSession() {
	if cb.journal == nil {
		return
	}
	sess := cb.controller.Snapshot().Session
	if sess.ID == "" {
		return
	}

	cb.saves.Add(1)
	go func() {
		defer cb.saves.Done()
		if err := cb.journal.Save(context.Background(), sess); err != nil {
			cb.logger.Error("failed to save session", "session_id", sess.ID, "error", err)
		}
	}()
}

func (cb *ChatBot) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(cb.out, format, args...)
}

func (cb *ChatBot) println(args ...any) {
	_, _ = fmt.Fprintln(cb.out, args...)
}

// sendMessage runs one exchange and prints the reply
func (cb *ChatBot) sendMessage(ctx context.Context, text string) error {
	reply, err := cb.controller.SendMessage(ctx, text)
	if err != nil {
		return err
	}
	cb.println(render.Message(reply))
	cb.saveSession()
	return nil
}

// handleCommand handles slash commands. It reports whether the shell should
// exit.
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new", "/new-session":
		cb.saveSession()
		cb.controller.StartNewConversation()
		cb.println("Nouvelle conversation")
		return false, nil

	case "/load":
		if len(parts) < 2 {
			return false, errors.New("usage: /load <session-id>")
		}
		cb.saveSession()
		if _, err := cb.controller.LoadConversation(ctx, parts[1]); err != nil {
			return false, err
		}
		cb.println(render.Session(cb.controller.Snapshot().Session))
		cb.saveSession()
		return false, nil

	case "/history":
		entries, err := cb.directory.ConversationHistory(ctx, "", cb.config.ConversationLimit)
		if err != nil {
			return false, fmt.Errorf("failed to list conversations: %w", err)
		}
		cb.printf("\n%s\n", render.Conversations(history.Conversations(entries), cb.now()))
		return false, nil

	case "/searches":
		sessionID := cb.controller.Snapshot().Session.ID
		if len(parts) > 1 {
			sessionID = parts[1]
		}
		searches, err := cb.directory.SearchHistory(ctx, sessionID, cb.config.HistoryLimit)
		if err != nil {
			return false, fmt.Errorf("failed to list searches: %w", err)
		}
		if len(searches) == 0 {
			cb.println("Aucune recherche")
			return false, nil
		}
		for i, s := range searches {
			cb.printf("%2d. %s (%d résultats)\n", i+1, s.QueryText, s.NumResults)
		}
		return false, nil

	case "/transcripts":
		if cb.journal == nil {
			cb.println("Local transcripts are disabled.")
			return false, nil
		}
		summaries, err := cb.journal.List(ctx, cb.config.ConversationLimit)
		if err != nil {
			return false, fmt.Errorf("failed to list transcripts: %w", err)
		}
		cb.printf("\n%s\n", render.Transcripts(summaries, cb.now()))
		return false, nil

	case "/export":
		format := "md"
		if len(parts) > 1 {
			format = parts[1]
		}
		if err := render.Export(cb.out, cb.controller.Snapshot().Session, format); err != nil {
			return false, fmt.Errorf("failed to export session: %w", err)
		}
		return false, nil

	case "/help":
		cb.println("Available commands:")
		cb.println("  /quit, /exit         - Exit BuyBuddy")
		cb.println("  /new                 - Start a new conversation")
		cb.println("  /load <session-id>   - Reload a stored conversation")
		cb.println("  /history             - List recent conversations")
		cb.println("  /searches [id]       - List product searches of a conversation")
		cb.println("  /transcripts         - List locally saved conversations")
		cb.printf("  /export [format]     - Print the conversation (%s)\n", strings.Join(render.Formats, "|"))
		cb.println("  /help                - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

// Run starts the read-eval loop. When the configuration names a session it
// is loaded first.
func (cb *ChatBot) Run(ctx context.Context) error {
	cb.println(render.Header("BuyBuddy"))
	cb.println("Type /help for commands, /quit to exit")
	cb.println()

	if cb.config.SessionID != "" {
		if _, err := cb.controller.LoadConversation(ctx, cb.config.SessionID); err != nil {
			cb.println(render.Error(err))
			cb.logger.Warn("failed to load session, starting a new one", "session_id", cb.config.SessionID, "error", err)
		} else {
			cb.println(render.Session(cb.controller.Snapshot().Session))
		}
	}

	scanner := bufio.NewScanner(cb.in)
	for {
		cb.printf("Vous: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.println(render.Error(err))
				cb.logger.Error("command error", "command", input, "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if err := cb.sendMessage(ctx, input); err != nil {
			cb.println(render.Error(err))
			continue
		}
	}

	cb.saveSession()
	cb.saves.Wait()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cb.println("Au revoir !")
	return nil
}
