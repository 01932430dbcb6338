package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omochice/roomchat/internal/client"
	"github.com/omochice/roomchat/internal/config"
	"github.com/omochice/roomchat/internal/logging"
	"github.com/omochice/roomchat/internal/view"
	"github.com/omochice/roomchat/pkg/protocol"
)

const quitCommand = "/quit"

var rootCmd = &cobra.Command{
	Use:          "roomchat-client",
	Short:        "Join a chat room from the terminal",
	SilenceUsage: true,
	RunE:         runClient,
}

var (
	flagServer   string
	flagUsername string
	flagCodec    string
	flagLogLevel string
	flagNoColor  bool
	flagEnvFile  string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagServer, "server", "", "chat server URL (env CHAT_SERVER_URL)")
	flags.StringVarP(&flagUsername, "username", "u", "", "name to register with (env CHAT_USERNAME)")
	flags.StringVar(&flagCodec, "codec", "", "frame codec: json or binary (env CHAT_CODEC)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (env LOG_LEVEL)")
	flags.BoolVar(&flagNoColor, "no-color", false, "disable colored output (env CHAT_COLOR=false)")
	flags.StringVar(&flagEnvFile, "env-file", config.DefaultEnvFile, "optional dotenv file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute client command")
	}
}

func loadConfig(cmd *cobra.Command) (config.Client, error) {
	cfg, err := config.LoadClient(flagEnvFile)
	if err != nil {
		return config.Client{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = flagServer
	}
	if flags.Changed("username") {
		cfg.Username = flagUsername
	}
	if flags.Changed("codec") {
		cfg.Codec = flagCodec
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flagNoColor {
		cfg.Color = false
	}
	return cfg, cfg.Validate()
}

func runClient(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := view.NewPrinter(cmd.OutOrStdout(), cfg.Color)
	c := client.New(client.Config{
		Address:      cfg.ServerURL,
		Username:     cfg.Username,
		Codec:        codec,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
		OnChange:     printer.Render,
		OnError:      printer.Error,
	})
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect()

	printer.Render(c.Session().State())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Type a message and press enter (%s to leave)\n", quitCommand)

	input := make(chan struct{})
	go func() {
		defer close(input)
		readInput(cmd.InOrStdin(), c)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("interrupted")
	case <-input:
	case <-c.Done():
		if err := c.Err(); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
	}
	return nil
}

func readInput(r io.Reader, c *client.Client) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == quitCommand {
			return
		}
		// Failures reach the printer through OnError.
		_ = c.SubmitMessage(text)
	}
}
