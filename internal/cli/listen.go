package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/partvoice-go/internal/speech"
)

var listenAudio bool

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run an interactive command session for a part",
	Long: `Start an interactive session: commands are read one per line and run
through the full pipeline in order. Each command completes (or fails)
before the next one is read, so later commands always see the memory
written by earlier ones.

With --audio, each input line is the path to a WAV recording which is
transcribed by the speech service before interpretation.

Type "quit" or "exit" to end the session; an in-flight command is never
interrupted.

Examples:
  partvoice listen --part bracket-01
  partvoice listen --part bracket-01 --audio`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().BoolVar(&listenAudio, "audio", false, "treat each input line as a WAV file path to transcribe")
}

func runListen(cmd *cobra.Command, args []string) error {
	if err := requirePart(); err != nil {
		return err
	}

	ctx := context.Background()
	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.queue.Close()

	theme := defaultTheme
	interactive := isInteractive()

	// The session is usable without the bridge up yet, so a failed health
	// check is a warning, not an error.
	if err := p.bridge.Health(ctx); err != nil {
		fmt.Fprintln(os.Stderr, theme.hintStyle().Render(fmt.Sprintf("warning: %v", err)))
	}

	if interactive {
		fmt.Println(theme.statusStyle().Render(fmt.Sprintf("Listening for part %q. Type a command, or \"quit\" to stop.", partID)))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print(theme.hintStyle().Render("> "))
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			break
		}

		intent := line
		if listenAudio {
			intent, err = p.transcriber.TranscribeFile(ctx, line)
			if err != nil {
				if errors.Is(err, speech.ErrNoSpeech) {
					fmt.Println(theme.hintStyle().Render("no speech detected, skipping"))
					continue
				}
				fmt.Fprintln(os.Stderr, theme.errorStyle().Render(fmt.Sprintf("transcription failed: %v", err)))
				continue
			}
			fmt.Println(theme.hintStyle().Render(fmt.Sprintf("heard: %s", intent)))
			if isQuit(intent) {
				break
			}
		}

		// A failed command is reported but does not end the session.
		if err := runCommand(ctx, p, partID, intent); err != nil {
			fmt.Fprintln(os.Stderr, theme.errorStyle().Render(err.Error()))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if interactive {
		fmt.Println(theme.statusStyle().Render("Session ended."))
	}
	return nil
}

// isQuit reports whether the input ends the session. Checked only between
// commands, never during one.
func isQuit(s string) bool {
	switch strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".!")) {
	case "quit", "exit", "stop listening":
		return true
	}
	return false
}
