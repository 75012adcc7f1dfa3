package speech

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
)

const (
	defaultVoice         = "alloy"
	defaultSpeed         = 1.0
	minSpeed             = 0.25
	maxSpeed             = 4.0
	defaultMaxAudioBytes = 25 << 20
	defaultMaxTextLength = 4096
	defaultTimeout       = 60 * time.Second
	audioContentType     = "audio/mpeg"
)

var voices = []Voice{
	{ID: "alloy", Name: "Alloy", Description: "Balanced and versatile voice", Gender: "neutral"},
	{ID: "echo", Name: "Echo", Description: "Clear and professional voice", Gender: "male"},
	{ID: "fable", Name: "Fable", Description: "Warm and friendly voice", Gender: "female"},
	{ID: "onyx", Name: "Onyx", Description: "Deep and authoritative voice", Gender: "male"},
	{ID: "nova", Name: "Nova", Description: "Bright and energetic voice", Gender: "female"},
	{ID: "shimmer", Name: "Shimmer", Description: "Soft and gentle voice", Gender: "female"},
}

// Service exposes speech recognition and synthesis.
type Service interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error)
	Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error)
	Voices() []Voice
}

// Provider performs the actual audio calls.
type Provider interface {
	Transcribe(ctx context.Context, in TranscriptionInput) (Transcription, error)
	Synthesize(ctx context.Context, in SynthesisInput) ([]byte, error)
}

type service struct {
	cfg      Config
	provider Provider
	logger   *slog.Logger
}

// NewService wires up the speech domain.
func NewService(cfg Config, provider Provider, logger *slog.Logger) Service {
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudioBytes
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaultMaxTextLength
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if !knownVoice(cfg.DefaultVoice) {
		cfg.DefaultVoice = defaultVoice
	}
	return &service{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With("component", "speech.service"),
	}
}

func (s *service) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	if err := s.validateAudio(req); err != nil {
		return Transcription{}, err
	}
	if s.provider == nil {
		return Transcription{}, apperrors.Wrap(apperrors.CodeProviderError, "speech provider is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	started := time.Now()
	result, err := s.provider.Transcribe(ctx, TranscriptionInput{
		Model:    s.cfg.TranscriptionModel,
		Filename: audioFilename(req.Filename),
		Audio:    req.Audio,
		Language: strings.TrimSpace(req.Language),
		Prompt:   strings.TrimSpace(req.Prompt),
	})
	if err != nil {
		s.logger.Error("transcription failed", "bytes", len(req.Audio), "error", err)
		return Transcription{}, apperrors.Wrap(apperrors.CodeProviderError, "failed to transcribe audio", err)
	}
	result.Text = strings.TrimSpace(result.Text)
	s.logger.Info("audio transcribed", "bytes", len(req.Audio), "chars", len(result.Text), "latency", time.Since(started))
	return result, nil
}

func (s *service) Synthesize(ctx context.Context, req SynthesisRequest) (Audio, error) {
	text := OptimizeText(req.Text)
	if text == "" {
		return Audio{}, apperrors.Wrap(apperrors.CodeInvalidInput, "text cannot be empty", nil)
	}
	if len([]rune(text)) > s.cfg.MaxTextLength {
		return Audio{}, apperrors.Wrap(apperrors.CodeInvalidInput,
			fmt.Sprintf("text cannot exceed %d characters", s.cfg.MaxTextLength), nil)
	}
	if s.provider == nil {
		return Audio{}, apperrors.Wrap(apperrors.CodeProviderError, "speech provider is not configured", nil)
	}
	voice := s.resolveVoice(req.Voice)
	speed := ResolveSpeed(req.Speed)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := s.provider.Synthesize(ctx, SynthesisInput{
		Model: s.cfg.SpeechModel,
		Text:  text,
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		s.logger.Error("speech synthesis failed", "voice", voice, "error", err)
		return Audio{}, apperrors.Wrap(apperrors.CodeProviderError, "failed to synthesize speech", err)
	}
	if len(data) == 0 {
		return Audio{}, apperrors.Wrap(apperrors.CodeProviderError, "speech provider returned no audio", nil)
	}
	s.logger.Info("speech synthesized", "voice", voice, "speed", speed, "bytes", len(data))
	return Audio{Data: data, ContentType: audioContentType, Voice: voice, Speed: speed}, nil
}

func (s *service) Voices() []Voice {
	out := make([]Voice, len(voices))
	copy(out, voices)
	return out
}

func (s *service) validateAudio(req TranscribeRequest) error {
	if len(req.Audio) == 0 {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "audio file is empty", nil)
	}
	if int64(len(req.Audio)) > s.cfg.MaxAudioBytes {
		return apperrors.Wrap(apperrors.CodeInvalidInput,
			fmt.Sprintf("audio file exceeds %d MB", s.cfg.MaxAudioBytes>>20), nil)
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if !strings.HasPrefix(contentType, "audio/") {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "file must be an audio file", nil)
	}
	return nil
}

func (s *service) resolveVoice(voice string) string {
	voice = strings.ToLower(strings.TrimSpace(voice))
	if knownVoice(voice) {
		return voice
	}
	return s.cfg.DefaultVoice
}

func knownVoice(id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// ResolveSpeed returns speed when it is within the supported range and 1.0 otherwise.
func ResolveSpeed(speed float64) float64 {
	if speed < minSpeed || speed > maxSpeed {
		return defaultSpeed
	}
	return speed
}

// OptimizeText prepares text for synthesis: sentence punctuation is followed by a space
// so the voice pauses, and runs of whitespace collapse to one space. Decimal points
// between digits are left alone.
func OptimizeText(text string) string {
	runes := []rune(strings.TrimSpace(text))
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		switch r {
		case '.', ',':
			if i > 0 && i+1 < len(runes) && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
				continue
			}
			b.WriteByte(' ')
		case '!', '?':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func audioFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" {
		return "audio.wav"
	}
	return name
}
