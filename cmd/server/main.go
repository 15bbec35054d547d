package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/internal/config"
	"github.com/omochice/support-chat/internal/server"
	"github.com/omochice/support-chat/internal/transport/tcp"
	"github.com/omochice/support-chat/internal/transport/ws"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// listener is implemented by every server in this module.
type listener interface {
	Start() error
	Stop()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr             string
		wsAddr           string
		tcpAddr          string
		ackUndeliverable bool
	)

	cmd := &cobra.Command{
		Use:   "support-chat-server",
		Short: "Presence and chat relay between one support admin and many users",
		Long: `Runs the relay. The main address accepts framed TCP and WebSocket
clients on one port. Settings come from SUPPORT_CHAT_* environment variables;
flags override them when given.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("ws-addr") {
				cfg.WSAddr = wsAddr
			}
			if flags.Changed("tcp-addr") {
				cfg.TCPAddr = tcpAddr
			}
			if flags.Changed("ack-undeliverable") {
				cfg.AckUndeliverable = ackUndeliverable
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address for both TCP and WebSocket clients (empty to disable)")
	cmd.Flags().StringVar(&wsAddr, "ws-addr", "", "Address for a dedicated WebSocket listener")
	cmd.Flags().StringVar(&tcpAddr, "tcp-addr", "", "Address for a dedicated TCP listener")
	cmd.Flags().BoolVar(&ackUndeliverable, "ack-undeliverable", false, "Tell senders when a message could not be routed")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	hub := chat.NewHub(cfg.HubOptions()...)

	var servers []listener
	if cfg.Addr != "" {
		servers = append(servers, server.New(cfg.Addr, hub, server.Options{
			MaxFrameSize: cfg.MaxFrameBytes,
			WriteTimeout: cfg.WriteTimeout,
		}))
	}
	if cfg.WSAddr != "" {
		servers = append(servers, ws.New(cfg.WSAddr, hub, ws.Options{
			MaxFrameSize:   cfg.MaxFrameBytes,
			WriteTimeout:   cfg.WriteTimeout,
			AllowedOrigins: cfg.AllowedOrigins,
		}))
	}
	if cfg.TCPAddr != "" {
		servers = append(servers, tcp.New(cfg.TCPAddr, hub, tcp.Options{
			MaxFrameSize: cfg.MaxFrameBytes,
			WriteTimeout: cfg.WriteTimeout,
		}))
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(srv.Start)
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("Shutting down...")
		for _, srv := range servers {
			srv.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}
