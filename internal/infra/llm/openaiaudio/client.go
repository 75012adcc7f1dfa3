package openaiaudio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
)

// Client calls the OpenAI Whisper and TTS endpoints.
type Client struct {
	client *openai.Client
	logger *slog.Logger
}

// NewClient builds an audio client. baseURL may be empty to use the public API.
func NewClient(apiKey, baseURL string, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.With("component", "openaiaudio.client"),
	}, nil
}

// Transcribe sends the recording to Whisper and returns the verbose transcript.
func (c *Client) Transcribe(ctx context.Context, in speech.TranscriptionInput) (speech.Transcription, error) {
	model := in.Model
	if model == "" {
		model = openai.Whisper1
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: in.Filename,
		Reader:   bytes.NewReader(in.Audio),
		Language: in.Language,
		Prompt:   in.Prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return speech.Transcription{}, fmt.Errorf("create transcription: %w", err)
	}
	c.logger.Debug("whisper transcription complete", "language", resp.Language, "duration", resp.Duration)
	return speech.Transcription{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}

// Synthesize renders text to MP3 audio.
func (c *Client) Synthesize(ctx context.Context, in speech.SynthesisInput) ([]byte, error) {
	model := openai.SpeechModel(in.Model)
	if model == "" {
		model = openai.TTSModel1
	}
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          model,
		Input:          in.Text,
		Voice:          openai.SpeechVoice(in.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          in.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return data, nil
}

var _ speech.Provider = (*Client)(nil)
