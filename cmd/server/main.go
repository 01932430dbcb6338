package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/internal/config"
	"github.com/omochice/roomchat/internal/logging"
	"github.com/omochice/roomchat/internal/transport/tcp"
	"github.com/omochice/roomchat/internal/transport/ws"
	"github.com/omochice/roomchat/pkg/protocol"
)

var rootCmd = &cobra.Command{
	Use:          "roomchat-server",
	Short:        "Relay a single chat room over WebSocket",
	SilenceUsage: true,
	RunE:         runServer,
}

var (
	flagAddr     string
	flagTCPAddr  string
	flagCodec    string
	flagLogLevel string
	flagJSONLog  bool
	flagEnvFile  string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagAddr, "addr", "", "listen address (env CHAT_LISTEN_ADDR)")
	flags.StringVar(&flagTCPAddr, "tcp-addr", "", "optional plain TCP listen address (env CHAT_TCP_ADDR)")
	flags.StringVar(&flagCodec, "codec", "", "frame codec: json or binary (env CHAT_CODEC)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (env LOG_LEVEL)")
	flags.BoolVar(&flagJSONLog, "json-log", false, "log JSON lines instead of console output")
	flags.StringVar(&flagEnvFile, "env-file", config.DefaultEnvFile, "optional dotenv file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute server command")
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadServer(flagEnvFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.ListenAddr = flagAddr
	}
	if flags.Changed("tcp-addr") {
		cfg.TCPAddr = flagTCPAddr
	}
	if flags.Changed("codec") {
		cfg.Codec = flagCodec
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	newLogger := logging.New
	if flagJSONLog {
		newLogger = logging.NewJSON
	}
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := chat.NewHub(codec, logger)
	servers := []listener{ws.New(cfg.ListenAddr, hub, logger)}
	if cfg.TCPAddr != "" {
		servers = append(servers, tcp.New(cfg.TCPAddr, hub, logger))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			errCh <- srv.Start()
		}()
		select {
		case err := <-errCh:
			stopAll(servers)
			return err
		case <-srv.Ready():
		}
	}
	logger.Info().Str("codec", codec.Name()).Int("listeners", len(servers)).Msg("chat server ready")

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}
	stopAll(servers)
	return runErr
}

type listener interface {
	Start() error
	Ready() <-chan struct{}
	Stop()
}

func stopAll(servers []listener) {
	for _, srv := range servers {
		srv.Stop()
	}
}
