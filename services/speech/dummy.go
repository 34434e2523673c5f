package speechsvc

import (
	"context"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// dummyService fabricates audio bytes so dictation generation can run in
// tests and development setups without Google credentials.
type dummyService struct{}

var _ core.SpeechSynthesizer = (*dummyService)(nil)

func NewDummyService() *dummyService { return &dummyService{} }

func (dummyService) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	return append([]byte("ID3"), text...), nil
}
