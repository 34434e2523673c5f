package core

import "context"

// SpeechSynthesizer is any service that can convert text into spoken audio.
type SpeechSynthesizer interface {
	// SynthesizeSpeech returns the synthesized audio as MP3 bytes.
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}
