// Command tutor is a terminal client for Captain Focus: typed or "spoken"
// chat with the tutor plus management of the saved voice settings.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/captain-focus/backend/internal/client"
	"github.com/captain-focus/backend/internal/logging"
	"github.com/captain-focus/backend/internal/service/voice"
)

var version = "dev"

const defaultBackendURL = "http://localhost:3001"

// options holds the persistent flags shared by every subcommand.
type options struct {
	backendURL string
	userID     string
	prefsPath  string
	ttsCommand string
	timeout    time.Duration
	thinking   time.Duration
	pace       time.Duration
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "tutor",
		Short:         "Talk to Captain Focus, your AI study companion",
		Long:          "Chat with Captain Focus from the terminal and manage the voice used to read replies aloud.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backendURL, "backend", envOr("TUTOR_BACKEND_URL", defaultBackendURL), "backend base URL")
	flags.StringVar(&opts.userID, "user", os.Getenv("TUTOR_USER_ID"), "user id for a personal tutor agent (anonymous when empty)")
	flags.StringVar(&opts.prefsPath, "prefs", "", "voice settings file (default ~/.captain-focus/voice.json)")
	flags.StringVar(&opts.ttsCommand, "tts-command", os.Getenv("TUTOR_TTS_COMMAND"), "espeak compatible program used to speak replies (prints them when empty)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "backend request timeout")
	flags.DurationVar(&opts.thinking, "thinking", time.Second, "minimum pause before a reply is spoken")
	flags.DurationVar(&opts.pace, "pace", 60*time.Millisecond, "delay between printed words when no speech command is set")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	_ = flags.MarkHidden("pace")

	rootCmd.AddCommand(
		newChatCmd(opts),
		newVoiceCmd(opts),
		newHealthCmd(opts),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *options) logger(w io.Writer) zerolog.Logger {
	return logging.New(logging.Config{Level: o.logLevel, Format: "console", App: "tutor"}, w)
}

func (o *options) backend(logger zerolog.Logger) *client.Client {
	return client.New(o.backendURL, o.timeout, logger)
}

func (o *options) store() (*voice.FileStore, error) {
	path := o.prefsPath
	if path == "" {
		var err error
		if path, err = voice.DefaultPreferencesPath(); err != nil {
			return nil, err
		}
	}
	return voice.NewFileStore(path), nil
}

// synthesizer returns the speech command when one is configured, otherwise
// a console synthesizer writing to out. echo reports whether reply text
// must also be printed.
func (o *options) synthesizer(out io.Writer, logger zerolog.Logger) (synth voice.Synthesizer, echo bool, err error) {
	if o.ttsCommand == "" {
		return voice.NewConsoleSynthesizer(out, o.pace), false, nil
	}
	cmdSynth := voice.NewCommandSynthesizer(o.ttsCommand, nil, logger)
	if !cmdSynth.IsAvailable() {
		return nil, false, fmt.Errorf("speech command %q not found in PATH", o.ttsCommand)
	}
	return cmdSynth, true, nil
}

// machine wires a voice machine for a command.
func (o *options) machine(cmd *cobra.Command, recognizer voice.Recognizer) (*voice.Machine, bool, error) {
	logger := o.logger(cmd.ErrOrStderr())
	store, err := o.store()
	if err != nil {
		return nil, false, err
	}
	synth, echo, err := o.synthesizer(cmd.OutOrStdout(), logger)
	if err != nil {
		return nil, false, err
	}

	m := voice.NewMachine(recognizer, synth, o.backend(logger), store,
		voice.WithLogger(logger),
		voice.WithUserID(o.userID),
		voice.WithThinkingWindow(o.thinking, o.thinking),
		voice.WithObserver(func(s voice.State) {
			logger.Debug().Str("state", string(s)).Msg("voice state")
		}),
	)
	return m, echo, nil
}
