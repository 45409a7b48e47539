package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LineRecognizer treats each line read from r as one recognized phrase.
// It stands in for microphone capture on terminals.
type LineRecognizer struct {
	lines chan lineResult
	once  sync.Once
	r     io.Reader
}

type lineResult struct {
	text string
	err  error
}

// NewLineRecognizer reads phrases from r.
func NewLineRecognizer(r io.Reader) *LineRecognizer {
	return &LineRecognizer{r: r, lines: make(chan lineResult)}
}

// Listen waits for the next line. The reader goroutine starts on first use
// and outlives cancelled calls, so an abandoned line is delivered to the
// next Listen.
func (l *LineRecognizer) Listen(ctx context.Context) (string, error) {
	l.once.Do(func() { go l.scan() })
	select {
	case res, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *LineRecognizer) scan() {
	defer close(l.lines)
	scanner := bufio.NewScanner(l.r)
	for scanner.Scan() {
		l.lines <- lineResult{text: strings.TrimSpace(scanner.Text())}
	}
	if err := scanner.Err(); err != nil {
		l.lines <- lineResult{err: err}
	}
}

// ConsoleSynthesizer "speaks" by writing text word by word, paced by the
// utterance rate.
type ConsoleSynthesizer struct {
	mu      sync.Mutex
	out     io.Writer
	perWord time.Duration
}

// NewConsoleSynthesizer writes to out, waiting perWord between words at
// rate 1.0.
func NewConsoleSynthesizer(out io.Writer, perWord time.Duration) *ConsoleSynthesizer {
	return &ConsoleSynthesizer{out: out, perWord: perWord}
}

func (c *ConsoleSynthesizer) Voices() []Voice {
	return []Voice{{ID: "console", Name: "Console", Language: "en"}}
}

func (c *ConsoleSynthesizer) Speak(ctx context.Context, u Utterance) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delay := c.perWord
	if u.Rate > 0 {
		delay = time.Duration(float64(delay) / u.Rate)
	}
	words := strings.Fields(u.Text)
	for i, word := range words {
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				fmt.Fprintln(c.out)
				return ctx.Err()
			}
		}
		sep := " "
		if i == len(words)-1 {
			sep = "\n"
		}
		if _, err := io.WriteString(c.out, word+sep); err != nil {
			return err
		}
	}
	return nil
}

// CommandSynthesizer runs an espeak compatible program per utterance.
// Cancelling the context kills the process.
type CommandSynthesizer struct {
	command string
	voices  []Voice
	logger  zerolog.Logger
}

// espeak defaults: 175 words per minute, pitch 50 on a 0-99 scale,
// amplitude 100 on a 0-200 scale.
const (
	espeakBaseWPM   = 175
	espeakBasePitch = 50
	espeakBaseAmp   = 100
)

// NewCommandSynthesizer uses command (for example "espeak" or "espeak-ng").
// voices are the voice names offered for selection; when empty a default
// set of English variants is used.
func NewCommandSynthesizer(command string, voices []Voice, logger zerolog.Logger) *CommandSynthesizer {
	if len(voices) == 0 {
		voices = []Voice{
			{ID: "en", Name: "English", Language: "en"},
			{ID: "en+f3", Name: "English (female)", Language: "en", Gender: "female"},
			{ID: "en-us", Name: "English US", Language: "en-US"},
		}
	}
	return &CommandSynthesizer{
		command: command,
		voices:  voices,
		logger:  logger.With().Str("synthesizer", command).Logger(),
	}
}

// IsAvailable reports whether the command is on PATH.
func (s *CommandSynthesizer) IsAvailable() bool {
	_, err := exec.LookPath(s.command)
	return err == nil
}

func (s *CommandSynthesizer) Voices() []Voice {
	return append([]Voice(nil), s.voices...)
}

func (s *CommandSynthesizer) Speak(ctx context.Context, u Utterance) error {
	args := s.args(u)
	cmd := exec.CommandContext(ctx, s.command, args...)
	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("output", string(output)).
			Msg("speech command failed")
		return fmt.Errorf("%s command failed: %w", s.command, err)
	}
	return nil
}

func (s *CommandSynthesizer) args(u Utterance) []string {
	args := []string{
		"-s", strconv.Itoa(int(espeakBaseWPM * u.Rate)),
		"-p", strconv.Itoa(min(99, int(espeakBasePitch*u.Pitch))),
		"-a", strconv.Itoa(int(espeakBaseAmp * u.Volume)),
	}
	if u.Voice.ID != "" {
		args = append(args, "-v", u.Voice.ID)
	}
	return append(args, "--", u.Text)
}
