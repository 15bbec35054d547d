package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/omochice/support-chat/internal/client"
	"github.com/omochice/support-chat/internal/client/tcp"
	"github.com/omochice/support-chat/internal/client/ws"
	"github.com/omochice/support-chat/pkg/protocol"
	"github.com/spf13/cobra"
)

type options struct {
	server    string
	transport string
	identity  string
	name      string
	admin     bool
}

func main() {
	log.SetPrefix("support-chat: ")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "support-chat",
		Short: "Line oriented client for the support chat relay",
		Long: `Connects to the relay and logs in. Users type a line to message the
admin. The admin replies with "@<identity> text" and fetches a conversation
with "/select <identity>". Type "quit" to leave.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.identity == "" {
				return errors.New("--identity is required")
			}
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, c, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "localhost:8080", "Server address (host:port, or a ws:// URL for websocket)")
	cmd.Flags().StringVar(&opts.transport, "transport", "tcp", "Transport to use: tcp or ws")
	cmd.Flags().StringVar(&opts.identity, "identity", "", "Identity to log in as")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "Log in as the support admin")

	return cmd
}

func newClient(opts options) (client.Client, error) {
	switch opts.transport {
	case "tcp":
		return tcp.New(opts.server), nil
	case "ws":
		address := opts.server
		if !strings.HasPrefix(address, "ws://") && !strings.HasPrefix(address, "wss://") {
			address = "ws://" + address + "/ws"
		}
		return ws.New(address), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.transport)
	}
}

func run(ctx context.Context, c client.Client, opts options, in io.Reader, out io.Writer) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	if err := c.Login(opts.identity, opts.name, opts.admin); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	log.Printf("Connected to %s as %s", opts.server, opts.identity)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for ev := range c.Events() {
			fmt.Fprintln(out, formatEvent(ev))
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("Error reading input: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-closed:
			log.Println("Server closed the connection")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseLine(line, opts.admin)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if cmd.quit {
				return nil
			}
			if err := cmd.apply(c); err != nil {
				log.Printf("Failed to send: %v", err)
			}
		}
	}
}

// command is one parsed input line.
type command struct {
	quit     bool
	skip     bool
	selectID string
	target   string
	body     string
}

func (cmd command) apply(c client.Client) error {
	switch {
	case cmd.skip:
		return nil
	case cmd.selectID != "":
		return c.SelectUser(cmd.selectID)
	default:
		return c.Send(cmd.target, cmd.body)
	}
}

func parseLine(line string, admin bool) (command, error) {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return command{skip: true}, nil
	case text == "quit" || text == "exit":
		return command{quit: true}, nil
	case strings.HasPrefix(text, "/select"):
		identity := strings.TrimSpace(strings.TrimPrefix(text, "/select"))
		if identity == "" {
			return command{}, errors.New("usage: /select <identity>")
		}
		return command{selectID: identity}, nil
	case admin:
		target, body, ok := strings.Cut(text, " ")
		if !ok || !strings.HasPrefix(target, "@") || len(target) == 1 {
			return command{}, errors.New("usage: @<identity> message")
		}
		return command{target: target[1:], body: strings.TrimSpace(body)}, nil
	default:
		return command{body: text}, nil
	}
}

func formatEvent(ev protocol.Event) string {
	switch ev.Type {
	case protocol.EventTypeMessage:
		return formatMessage(ev.Message)
	case protocol.EventTypeUpdateUser:
		return "*** " + formatSession(ev.Session)
	case protocol.EventTypeListUsers:
		var b strings.Builder
		fmt.Fprintf(&b, "*** %d sessions", len(ev.Sessions))
		for i := range ev.Sessions {
			b.WriteString("\n    ")
			b.WriteString(formatSession(&ev.Sessions[i]))
		}
		return b.String()
	case protocol.EventTypeSelectUser:
		var b strings.Builder
		b.WriteString("*** ")
		b.WriteString(formatSession(ev.Session))
		if ev.Session != nil {
			for i := range ev.Session.History {
				b.WriteString("\n    ")
				b.WriteString(formatMessage(&ev.Session.History[i]))
			}
		}
		return b.String()
	case protocol.EventTypeUndeliverable:
		if ev.Message == nil {
			return "!!! message could not be delivered"
		}
		return fmt.Sprintf("!!! could not deliver %q", ev.Message.Body)
	case protocol.EventTypeError:
		return fmt.Sprintf("!!! %s: %s", ev.ErrorCode, ev.ErrorMessage)
	default:
		return fmt.Sprintf("*** %s", ev.Type)
	}
}

func formatMessage(m *protocol.ChatMessage) string {
	if m == nil {
		return ""
	}
	sender := m.Name
	if sender == "" {
		sender = m.Target
		if m.FromAdmin {
			sender = "admin"
		}
	}
	if m.FromAdmin {
		return fmt.Sprintf("[%s -> %s]: %s", sender, m.Target, m.Body)
	}
	return fmt.Sprintf("[%s@%s]: %s", sender, m.Target, m.Body)
}

func formatSession(s *protocol.Session) string {
	if s == nil {
		return ""
	}
	state := "offline"
	if s.Online {
		state = "online"
	}
	label := s.Identity
	if s.Name != "" {
		label = fmt.Sprintf("%s (%s)", s.Identity, s.Name)
	}
	if s.IsAdmin {
		label += " [admin]"
	}
	return fmt.Sprintf("%s is %s, %d messages", label, state, len(s.History))
}
