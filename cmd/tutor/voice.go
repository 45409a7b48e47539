package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/captain-focus/backend/internal/service/voice"
)

func newVoiceCmd(opts *options) *cobra.Command {
	voiceCmd := &cobra.Command{
		Use:   "voice",
		Short: "Show or change the voice used to read replies",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved voice settings and available voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := opts.machine(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			prefs, err := m.Preferences()
			if err != nil {
				return err
			}
			printPreferences(cmd.OutOrStdout(), prefs, m.Voices())
			return nil
		},
	}

	var (
		pitch float64
		rate  float64
		index int
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change pitch, rate or the selected voice",
		Example: `  tutor voice set --pitch 1.3
  tutor voice set --voice 1 --rate 0.8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("pitch") && !flags.Changed("rate") && !flags.Changed("voice") {
				return fmt.Errorf("nothing to change: pass --pitch, --rate or --voice")
			}

			m, _, err := opts.machine(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			var prefs voice.Preferences
			if flags.Changed("voice") {
				if prefs, err = m.SelectVoice(index); err != nil {
					return err
				}
			}
			if flags.Changed("pitch") {
				if prefs, err = m.SetPitch(pitch); err != nil {
					return err
				}
			}
			if flags.Changed("rate") {
				if prefs, err = m.SetRate(rate); err != nil {
					return err
				}
			}
			printPreferences(cmd.OutOrStdout(), prefs, m.Voices())
			return nil
		},
	}
	setCmd.Flags().Float64Var(&pitch, "pitch", 0, fmt.Sprintf("voice pitch (%.1f-%.1f)", voice.MinPitch, voice.MaxPitch))
	setCmd.Flags().Float64Var(&rate, "rate", 0, fmt.Sprintf("speaking rate (%.1f-%.1f)", voice.MinRate, voice.MaxRate))
	setCmd.Flags().IntVar(&index, "voice", 0, "index of the voice to use (see 'tutor voice show')")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default voice settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := opts.machine(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			prefs, err := m.ResetPreferences()
			if err != nil {
				return err
			}
			printPreferences(cmd.OutOrStdout(), prefs, m.Voices())
			return nil
		},
	}

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Play the sample sentence with the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := opts.machine(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()
			return m.TestVoice(cmd.Context())
		},
	}

	voiceCmd.AddCommand(showCmd, setCmd, resetCmd, testCmd)
	return voiceCmd
}

func printPreferences(out io.Writer, prefs voice.Preferences, voices []voice.Voice) {
	fmt.Fprintf(out, "pitch: %.2f\n", prefs.Pitch)
	fmt.Fprintf(out, "rate:  %.2f\n", prefs.Rate)
	fmt.Fprintln(out, "voices:")
	for i, v := range voices {
		marker := " "
		if i == prefs.SelectedVoice {
			marker = "*"
		}
		fmt.Fprintf(out, " %s %d  %s\n", marker, i, v.Name)
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend and the upstream tutor service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			backend := opts.backend(opts.logger(cmd.ErrOrStderr()))

			report, err := backend.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend at %s is not reachable: %w", opts.backendURL, err)
			}
			fmt.Fprintf(out, "backend:  %s (%s)\n", report.Service.Status, report.Service.Message)
			fmt.Fprintf(out, "api key:  %s\n", report.Service.Environment.APIKey)
			fmt.Fprintf(out, "upstream: %s (%s)\n", report.Upstream.Status, report.Upstream.Message)
			return nil
		},
	}
}
