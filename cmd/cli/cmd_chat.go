package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simplegpt/backend/internal/conversation"
	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/pkg/logx"
)

func init() {
	chatCmd.Flags().String("model", "", "model for the first conversation")
	chatCmd.Flags().String("system", "", "system message for the first conversation")
	chatCmd.Flags().Bool("no-stream", false, "wait for whole replies instead of streaming")
	rootCmd.AddCommand(chatCmd)
}

const chatHelp = `Commands:
  /new              start a conversation
  /list             list conversations
  /switch N         switch to conversation N
  /model [NAME]     set the model, empty restores the default
  /system [TEXT]    set the system message, empty restores the default
  /image URL [auto|low|high]  attach an image to the next message
  /upload PATH      upload a file and attach it
  /clear            drop every conversation
  /quit             exit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noStream, _ := cmd.Flags().GetBool("no-stream")
		model, _ := cmd.Flags().GetString("model")
		system, _ := cmd.Flags().GetString("system")

		s := newSession(newClient(), cmd.OutOrStdout(), !noStream)
		active := s.app.Active()
		s.ctrl.SetModel(active, model)
		s.ctrl.SetSystemMessage(active, system)

		fmt.Fprintln(s.out, "Type a message, /help for commands.")
		return s.run(cmd.Context(), cmd.InOrStdin())
	},
}

type uploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*chat.ImageUpload, error)
}

type backend interface {
	conversation.Backend
	uploader
}

// session is one interactive chat over an App.
type session struct {
	app    *conversation.App
	ctrl   *conversation.Controller
	up     uploader
	out    io.Writer
	stream bool
}

func newSession(b backend, out io.Writer, stream bool) *session {
	app := conversation.NewApp(conversation.NewStore(conversation.State{}))
	s := &session{
		app:    app,
		ctrl:   conversation.NewController(app, b),
		up:     b,
		out:    out,
		stream: stream,
	}
	app.Store().Subscribe(s.render)
	app.Bootstrap()
	return s
}

// render prints assistant text for the active conversation as it arrives.
func (s *session) render(_ conversation.State, actions []conversation.Action) {
	active := s.app.Active()
	for _, action := range actions {
		switch a := action.(type) {
		case conversation.AppendMessage:
			if a.ConversationID == active {
				fmt.Fprint(s.out, a.Fragment)
			}
		case conversation.AddMessage:
			if a.ConversationID == active && a.Role == chat.RoleAssistant {
				fmt.Fprintf(s.out, "%s: %s", conversation.HandleAssistant, a.Content)
			}
		case conversation.SetConversationError:
			if a.ConversationID == active && a.Error != nil {
				fmt.Fprintf(s.out, "\n[%s]", *a.Error)
			}
		}
	}
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		quit, err := s.handleLine(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// handleLine runs one command or sends one message. It reports true when
// the session should end.
func (s *session) handleLine(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		s.send(ctx, line)
		return false, nil
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	active := s.app.Active()

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/new":
		s.app.NewConversation()
		fmt.Fprintf(s.out, "conversation %d\n", len(s.app.Store().State().Conversations))
	case "/list":
		s.list()
	case "/switch":
		return false, s.switchTo(arg)
	case "/model":
		s.ctrl.SetModel(active, arg)
	case "/system":
		s.ctrl.SetSystemMessage(active, arg)
	case "/image":
		url, detail, _ := strings.Cut(arg, " ")
		return false, s.ctrl.AddPendingImage(active, chat.MessageImage{URL: url, Detail: chat.ImageDetail(strings.TrimSpace(detail))})
	case "/upload":
		if arg == "" {
			return false, errors.New("usage: /upload PATH")
		}
		up, err := uploadFile(ctx, s.up, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "attached %s\n", up.URL)
		return false, s.ctrl.AddPendingImage(active, chat.MessageImage{URL: up.URL})
	case "/clear":
		s.app.ClearAll()
		fmt.Fprintln(s.out, "cleared")
	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

func (s *session) send(ctx context.Context, text string) {
	active := s.app.Active()
	s.ctrl.SetInput(active, text)

	var err error
	if s.stream {
		err = s.ctrl.Send(ctx, active)
	} else {
		err = s.ctrl.SendComplete(ctx, active)
	}
	fmt.Fprintln(s.out)
	if err != nil {
		logx.Debug().Err(err).Str("conversationId", active).Msg("send failed")
	}
}

func (s *session) list() {
	active := s.app.Active()
	for i, c := range s.app.Store().State().Conversations {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		title := "(empty)"
		if len(c.Messages) > 0 {
			title = c.Messages[0].Content
		}
		if r := []rune(title); len(r) > 40 {
			title = string(r[:40]) + "..."
		}
		fmt.Fprintf(s.out, "%s %d. %s [%d messages, %d unread]\n", marker, i+1, title, len(c.Messages), c.Unread)
	}
}

func (s *session) switchTo(arg string) error {
	n, err := strconv.Atoi(arg)
	conversations := s.app.Store().State().Conversations
	if err != nil || n < 1 || n > len(conversations) {
		return fmt.Errorf("no conversation %q", arg)
	}
	s.app.SetActive(conversations[n-1].ID)
	return nil
}
