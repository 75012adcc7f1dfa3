package speech

import "time"

// Config controls the speech workflows.
type Config struct {
	TranscriptionModel string        `yaml:"transcriptionModel"`
	SpeechModel        string        `yaml:"speechModel"`
	DefaultVoice       string        `yaml:"defaultVoice"`
	MaxAudioBytes      int64         `yaml:"maxAudioBytes"`
	MaxTextLength      int           `yaml:"maxTextLength"`
	Timeout            time.Duration `yaml:"timeout"`
}

// TranscribeRequest carries an uploaded recording.
type TranscribeRequest struct {
	Audio       []byte
	Filename    string
	ContentType string
	Language    string
	Prompt      string
}

// Transcription is the recognised text of a recording.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// SynthesisRequest asks for spoken audio.
type SynthesisRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Audio is synthesised speech.
type Audio struct {
	Data        []byte
	ContentType string
	Voice       string
	Speed       float64
}

// Voice describes one selectable speaker.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Gender      string `json:"gender"`
}

// TranscriptionInput is what the provider receives for recognition.
type TranscriptionInput struct {
	Model    string
	Filename string
	Audio    []byte
	Language string
	Prompt   string
}

// SynthesisInput is what the provider receives for synthesis.
type SynthesisInput struct {
	Model string
	Text  string
	Voice string
	Speed float64
}
