package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/persona"
	"github.com/captain-focus/backend/internal/service/voice"
)

var moodIcons = map[string]string{
	"tired":    "😴",
	"confused": "🤔",
	"happy":    "😊",
	"neutral":  "🙂",
}

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive study session",
		Long: `Type a message and press enter to send it. Commands:
  /listen  capture the next line as speech
  /test    play the sample sentence with the current voice
  /quit    leave the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// one reader serves both typed input and /listen capture
	input := voice.NewLineRecognizer(cmd.InOrStdin())
	m, echo, err := opts.machine(cmd, input)
	if err != nil {
		return err
	}
	defer m.Close()

	captain := persona.CaptainFocus()
	fmt.Fprintf(out, "%s, %s\n", captain.Name, captain.Title)
	if echo {
		fmt.Fprintln(out, captain.WelcomeMessage)
	}
	if err := m.Speak(ctx, captain.WelcomeMessage); err != nil {
		return err
	}

	for {
		fmt.Fprint(out, "you> ")
		line, err := input.Listen(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		var ex voice.Exchange
		switch strings.TrimSpace(line) {
		case "":
			continue
		case "/quit", "/exit":
			fmt.Fprintln(out, "Quest paused. See you next time, scholar!")
			return nil
		case "/test":
			if err := m.TestVoice(ctx); err != nil {
				return err
			}
			continue
		case "/listen":
			fmt.Fprint(out, "🎤 listening> ")
			ex, err = m.StartListening(ctx)
		default:
			ex, err = m.Submit(ctx, line)
		}

		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			return nil
		case errs.Is(err, errs.InvalidInput):
			fmt.Fprintln(out, "(nothing to send)")
			continue
		case err != nil:
			return err
		}
		printExchange(out, ex, echo)
	}
}

// printExchange adds the reply metadata; the text itself has already been
// written by the console synthesizer unless echo is set.
func printExchange(out io.Writer, ex voice.Exchange, echo bool) {
	if echo {
		fmt.Fprintf(out, "Captain Focus: %s\n", ex.Captain.Text)
	}
	fmt.Fprintf(out, "  %s mood: %s · via %s\n", moodIcons[string(ex.Mood)], ex.Mood, ex.Tier)
}
