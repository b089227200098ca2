// Package speech defines the speech-to-text boundary. No core logic
// depends on audio encoding; the transcriber consumes an opaque audio
// stream and produces plain text.
package speech

import (
	"context"
	"errors"
	"io"
)

// ErrNoSpeech indicates the audio contained no recognizable speech.
var ErrNoSpeech = errors.New("no speech detected")

// Transcriber turns recorded audio into plain command text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	TranscribeFile(ctx context.Context, path string) (string, error)
}
