package speech

import (
	"context"
	"fmt"
	"io"

	openai "github.com/openai/openai-go/v3"
)

// OpenAISynth renders speech through the OpenAI audio endpoint.
type OpenAISynth struct {
	client openai.Client
	voice  openai.AudioSpeechNewParamsVoice
}

func NewOpenAISynth(client openai.Client, voice string) *OpenAISynth {
	if voice == "" {
		voice = "onyx"
	}
	return &OpenAISynth{
		client: client,
		voice:  openai.AudioSpeechNewParamsVoice(voice),
	}
}

func (s *OpenAISynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis body: %w", err)
	}
	return audio, nil
}
