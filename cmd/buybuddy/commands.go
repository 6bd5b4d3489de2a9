package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"BuyBuddy/internal/chatbot"
	"BuyBuddy/internal/history"
	"BuyBuddy/internal/render"
	"BuyBuddy/internal/transcript"

	"github.com/spf13/cobra"
)

var (
	sessionFlag string
	limitFlag   int
	formatFlag  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the shopping assistant.

Use --session to continue a stored conversation. Type /help inside the
shell for the available commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		controller, err := a.controller()
		if err != nil {
			return err
		}

		cfg := a.cfg
		if sessionFlag != "" {
			cfg.SessionID = sessionFlag
		}

		var opts []chatbot.ChatBotOption
		if a.store != nil {
			opts = append(opts, chatbot.WithJournal(a.store))
		}
		return chatbot.NewChatBot(cfg, controller, a.client, a.logger, opts...).Run(cmd.Context())
	},
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"list", "ls"},
	Short:   "List recent conversations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		limit := a.cfg.ConversationLimit
		if limitFlag > 0 {
			limit = limitFlag
		}
		entries, err := a.client.ConversationHistory(cmd.Context(), "", limit)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}

		fmt.Print(render.Conversations(history.Conversations(entries), time.Now()))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a stored conversation",
	Long: `Reload a conversation from the backend and print it.

Formats: text (default), json, yaml, md.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		controller, err := a.controller()
		if err != nil {
			return err
		}
		if _, err := controller.LoadConversation(cmd.Context(), args[0]); err != nil {
			return err
		}
		sess := controller.Snapshot().Session

		if a.store != nil {
			if err := a.store.Save(cmd.Context(), sess); err != nil {
				a.logger.Warn("failed to save transcript", "session_id", sess.ID, "error", err)
			}
		}

		if formatFlag == "" || formatFlag == "text" {
			fmt.Print(render.Session(sess))
			return nil
		}
		return render.Export(os.Stdout, sess, formatFlag)
	},
}

var searchesCmd = &cobra.Command{
	Use:   "searches [session-id]",
	Short: "List product searches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := ""
		if len(args) == 1 {
			sessionID = args[0]
		}
		limit := a.cfg.HistoryLimit
		if limitFlag > 0 {
			limit = limitFlag
		}

		searches, err := a.client.SearchHistory(cmd.Context(), sessionID, limit)
		if err != nil {
			return fmt.Errorf("failed to list searches: %w", err)
		}
		for i, s := range searches {
			fmt.Printf("%2d. %s (%d résultats)  %s\n", i+1, s.QueryText, s.NumResults,
				history.RelativeDay(s.Timestamp.Time, time.Now()))
		}
		return nil
	},
}

var transcriptsCmd = &cobra.Command{
	Use:   "transcripts [session-id]",
	Short: "List or print locally saved conversations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.store == nil {
			return errors.New("local transcripts are disabled")
		}

		if len(args) == 0 {
			limit := a.cfg.ConversationLimit
			if limitFlag > 0 {
				limit = limitFlag
			}
			summaries, err := a.store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Print(render.Transcripts(summaries, time.Now()))
			return nil
		}

		sess, err := a.store.Load(cmd.Context(), args[0])
		if errors.Is(err, transcript.ErrNotFound) {
			return fmt.Errorf("no local transcript for %s", args[0])
		}
		if err != nil {
			return err
		}
		if formatFlag == "" || formatFlag == "text" {
			fmt.Print(render.Session(sess))
			return nil
		}
		return render.Export(os.Stdout, sess, formatFlag)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Continue a stored conversation")
	rootCmd.Flags().StringVarP(&sessionFlag, "session", "s", "", "Continue a stored conversation")

	for _, cmd := range []*cobra.Command{conversationsCmd, searchesCmd, transcriptsCmd} {
		cmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Maximum number of entries (1-100)")
	}

	formatHelp := "Output format: text, " + strings.Join(render.Formats, ", ")
	showCmd.Flags().StringVarP(&formatFlag, "format", "f", "text", formatHelp)
	transcriptsCmd.Flags().StringVarP(&formatFlag, "format", "f", "text", formatHelp)

	rootCmd.AddCommand(chatCmd, conversationsCmd, showCmd, searchesCmd, transcriptsCmd)
}
