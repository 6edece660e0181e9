// octohub-client is a command-line client for an OctoHub WebSocket server.
//
// Usage:
//
//	octohub-client connect --base-url http://localhost:8080/api --token $TOKEN
//	octohub-client send echo '{"text":"hello"}' --ws-url ws://localhost:8081/ws --wait 2s
//
// Settings are read from an optional TOML file (--config) and overridden by
// flags. Without --ws-url the URL is looked up from the API before every
// connection attempt.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	octohub "github.com/octohub/go-sdk"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	baseURL    string
	token      string
	wsURL      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "octohub-client",
		Short:        "Connect to an OctoHub server and exchange messages.",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "TOML config file")
	cmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "OctoHub API base URL (env OCTOHUB_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.token, "token", "", "API bearer token (env OCTOHUB_API_TOKEN)")
	cmd.PersistentFlags().StringVar(&flags.wsURL, "ws-url", "", "connect to this WebSocket URL instead of looking one up")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newConnectCmd(flags))
	cmd.AddCommand(newSendCmd(flags))
	return cmd
}

// settings merges defaults, the config file and explicitly set flags.
func (f *rootFlags) settings(cmd *cobra.Command) (settings, error) {
	s := defaultSettings()
	if f.configPath != "" {
		var err error
		if s, err = loadFileConfig(f.configPath, s); err != nil {
			return settings{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("base-url") {
		s.BaseURL = f.baseURL
	}
	if changed("token") {
		s.Token = f.token
	}
	if changed("ws-url") {
		s.WSURL = f.wsURL
	}
	if changed("log-level") {
		s.LogLevel = f.logLevel
	}
	return s, nil
}

// session is a configured client and its logger.
type session struct {
	client *octohub.Client
	log    zerolog.Logger
}

func (f *rootFlags) open(cmd *cobra.Command) (*session, error) {
	s, err := f.settings(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(s.LogLevel)
	if err != nil {
		return nil, err
	}
	resolver, err := s.resolver()
	if err != nil {
		return nil, err
	}
	client, err := octohub.NewClient(s.Client, resolver, octohub.WithLogger(log))
	if err != nil {
		return nil, err
	}

	client.OnStatusChange(func(state octohub.ConnectionState) {
		ev := log.Info()
		if state == octohub.StateFailed {
			ev = log.Warn().AnErr("cause", client.Err())
		}
		ev.Str("state", state.String()).Int("attempts", client.ReconnectAttempts()).Msg("status")
	})
	return &session{client: client, log: log}, nil
}

func newConnectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Stay connected, sending stdin lines and printing inbound messages.",
		Long: `Stay connected to the server until interrupted.

Each stdin line is sent as a message: the first word is the action and the
rest, if any, is the JSON data. Inbound messages are printed one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer sess.client.Close()

			out := cmd.OutOrStdout()
			sess.client.OnMessage(func(msg *octohub.Message) {
				printMessage(out, msg)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if err := sess.client.Connect(ctx); err != nil {
				return err
			}

			lines := readLines(ctx, cmd.InOrStdin())
			for {
				select {
				case <-ctx.Done():
					sess.log.Info().Msg("shutting down")
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					msg, err := parseLine(line)
					if err != nil {
						sess.log.Warn().Err(err).Msg("invalid input")
						continue
					}
					if msg == nil {
						continue
					}
					if !sess.client.Send(msg) {
						sess.log.Warn().Str("action", msg.Action).Str("state", sess.client.State().String()).Msg("message not sent")
					}
				}
			}
		},
	}
}

func newSendCmd(flags *rootFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "send <action> [json-data]",
		Short: "Send one message and print the replies that match it.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := parseLine(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if msg == nil {
				return errors.New("action must not be empty")
			}
			msg.RequestID = uuid.NewString()

			sess, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer sess.client.Close()

			out := cmd.OutOrStdout()
			replied := make(chan struct{}, 1)
			sess.client.OnMessage(func(reply *octohub.Message) {
				if reply.RequestID != msg.RequestID {
					return
				}
				printMessage(out, reply)
				select {
				case replied <- struct{}{}:
				default:
				}
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := sess.client.Connect(ctx); err != nil {
				return err
			}
			if !sess.client.IsConnected() {
				return fmt.Errorf("not connected (state %s)", sess.client.State())
			}
			if !sess.client.Send(msg) {
				return errors.New("send failed")
			}
			sess.log.Debug().Str("action", msg.Action).Str("request_id", msg.RequestID).Msg("sent")

			if wait <= 0 {
				return nil
			}
			select {
			case <-replied:
			case <-time.After(wait):
				sess.log.Warn().Dur("wait", wait).Msg("no reply")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for a reply with the same request_id")
	return cmd
}

// parseLine turns "action [json-data]" into a message. Blank lines yield nil.
func parseLine(line string) (*octohub.Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	action, data, _ := strings.Cut(line, " ")
	msg := &octohub.Message{Action: action}

	data = strings.TrimSpace(data)
	if data == "" {
		return msg, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("data for %q is not valid JSON", action)
	}
	msg.Data = json.RawMessage(data)
	return msg, nil
}

func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func printMessage(w io.Writer, msg *octohub.Message) {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		data = []byte("null")
	}
	if msg.From != "" {
		fmt.Fprintf(w, "%s from=%s %s\n", msg.Action, msg.From, data)
		return
	}
	fmt.Fprintf(w, "%s %s\n", msg.Action, data)
}
