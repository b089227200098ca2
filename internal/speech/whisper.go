package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// WhisperClient transcribes audio through a local whisper.cpp server,
// keeping speech recognition entirely on device.
type WhisperClient struct {
	endpoint   string
	httpClient *http.Client
}

var _ Transcriber = (*WhisperClient)(nil)

// NewWhisperClient creates a whisper.cpp server client. If endpoint is
// empty, uses the PARTVOICE_WHISPER_URL env var or defaults to
// localhost:8080.
func NewWhisperClient(endpoint string) *WhisperClient {
	if endpoint == "" {
		endpoint = os.Getenv("PARTVOICE_WHISPER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("PARTVOICE_WHISPER_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &WhisperClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// inferenceResponse is the whisper.cpp server reply.
type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Transcribe sends a WAV stream to the whisper server and returns the
// transcript. Empty transcripts surface as ErrNoSpeech.
func (c *WhisperClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("write field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper server unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper server: HTTP %d", resp.StatusCode)
	}

	var result inferenceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper server: %s", result.Error)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// TranscribeFile transcribes a WAV file from disk.
func (c *WhisperClient) TranscribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()
	return c.Transcribe(ctx, f, f.Name())
}
