package speech_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/speech"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
	"github.com/yanqian/eldertech-assistant/pkg/logger"
)

type stubProvider struct {
	transcribed []speech.TranscriptionInput
	synthesized []speech.SynthesisInput
	text        string
	audio       []byte
	err         error
}

func (s *stubProvider) Transcribe(_ context.Context, in speech.TranscriptionInput) (speech.Transcription, error) {
	s.transcribed = append(s.transcribed, in)
	if s.err != nil {
		return speech.Transcription{}, s.err
	}
	return speech.Transcription{Text: s.text, Language: "en"}, nil
}

func (s *stubProvider) Synthesize(_ context.Context, in speech.SynthesisInput) ([]byte, error) {
	s.synthesized = append(s.synthesized, in)
	if s.err != nil {
		return nil, s.err
	}
	return s.audio, nil
}

func newService(provider speech.Provider) speech.Service {
	return speech.NewService(speech.Config{
		TranscriptionModel: "whisper-1",
		SpeechModel:        "tts-1",
		MaxAudioBytes:      1024,
	}, provider, logger.Discard())
}

func TestTranscribePassesOptionsToProvider(t *testing.T) {
	provider := &stubProvider{text: "  remind me to take my pills \n"}
	svc := newService(provider)

	got, err := svc.Transcribe(context.Background(), speech.TranscribeRequest{
		Audio:       []byte("RIFF"),
		Filename:    "../../recording.m4a",
		ContentType: "Audio/MP4",
		Language:    " en ",
		Prompt:      "medication",
	})
	require.NoError(t, err)
	require.Equal(t, "remind me to take my pills", got.Text)
	require.Len(t, provider.transcribed, 1)
	in := provider.transcribed[0]
	require.Equal(t, "whisper-1", in.Model)
	require.Equal(t, "recording.m4a", in.Filename)
	require.Equal(t, "en", in.Language)
	require.Equal(t, "medication", in.Prompt)
}

func TestTranscribeValidatesAudio(t *testing.T) {
	tests := []struct {
		name string
		req  speech.TranscribeRequest
	}{
		{name: "empty", req: speech.TranscribeRequest{ContentType: "audio/wav"}},
		{name: "too large", req: speech.TranscribeRequest{Audio: bytes.Repeat([]byte{1}, 1025), ContentType: "audio/wav"}},
		{name: "not audio", req: speech.TranscribeRequest{Audio: []byte("x"), ContentType: "image/png"}},
		{name: "missing type", req: speech.TranscribeRequest{Audio: []byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{}
			_, err := newService(provider).Transcribe(context.Background(), tt.req)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "got %v", err)
			require.Empty(t, provider.transcribed)
		})
	}
}

func TestTranscribeProviderFailure(t *testing.T) {
	svc := newService(&stubProvider{err: errors.New("upstream 500")})
	_, err := svc.Transcribe(context.Background(), speech.TranscribeRequest{Audio: []byte("x"), ContentType: "audio/wav"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestSynthesizeResolvesVoiceAndSpeed(t *testing.T) {
	tests := []struct {
		name      string
		voice     string
		speed     float64
		wantVoice string
		wantSpeed float64
	}{
		{name: "valid", voice: "Nova", speed: 0.8, wantVoice: "nova", wantSpeed: 0.8},
		{name: "unknown voice", voice: "robot", speed: 1.5, wantVoice: "alloy", wantSpeed: 1.5},
		{name: "too slow", voice: "echo", speed: 0.1, wantVoice: "echo", wantSpeed: 1.0},
		{name: "too fast", voice: "echo", speed: 4.5, wantVoice: "echo", wantSpeed: 1.0},
		{name: "bounds", voice: "fable", speed: 4.0, wantVoice: "fable", wantSpeed: 4.0},
		{name: "zero speed", voice: "", speed: 0, wantVoice: "alloy", wantSpeed: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{audio: []byte("mp3")}
			audio, err := newService(provider).Synthesize(context.Background(), speech.SynthesisRequest{
				Text:  "Hello",
				Voice: tt.voice,
				Speed: tt.speed,
			})
			require.NoError(t, err)
			require.Equal(t, tt.wantVoice, audio.Voice)
			require.Equal(t, tt.wantSpeed, audio.Speed)
			require.Equal(t, "audio/mpeg", audio.ContentType)
			require.Equal(t, []byte("mp3"), audio.Data)
			require.Equal(t, "tts-1", provider.synthesized[0].Model)
		})
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	_, err := newService(&stubProvider{}).Synthesize(context.Background(), speech.SynthesisRequest{Text: "  \n "})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestSynthesizeEmptyAudioIsProviderError(t *testing.T) {
	_, err := newService(&stubProvider{}).Synthesize(context.Background(), speech.SynthesisRequest{Text: "hi"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestNilProviderIsProviderError(t *testing.T) {
	svc := speech.NewService(speech.Config{}, nil, logger.Discard())
	_, err := svc.Synthesize(context.Background(), speech.SynthesisRequest{Text: "hi"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeProviderError))
}

func TestOptimizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Hello.How are you?Fine,thanks!  ", want: "Hello. How are you? Fine, thanks!"},
		{in: "Take 2.5 mg, twice daily.", want: "Take 2.5 mg, twice daily."},
		{in: "line one\n\n  line   two", want: "line one line two"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, speech.OptimizeText(tt.in))
	}
}

func TestVoicesListsSixSpeakers(t *testing.T) {
	got := newService(nil).Voices()
	require.Len(t, got, 6)
	require.Equal(t, "alloy", got[0].ID)
	got[0].ID = "mutated"
	require.Equal(t, "alloy", newService(nil).Voices()[0].ID)
}
