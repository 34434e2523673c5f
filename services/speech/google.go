package speechsvc

import (
	"context"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// googleService synthesizes dictation audio with Google Cloud Text-to-Speech.
// The client finds its key via GOOGLE_APPLICATION_CREDENTIALS.
type googleService struct {
	client       *texttospeech.Client
	languageCode string
	voiceName    string
}

var _ core.SpeechSynthesizer = (*googleService)(nil)

func NewGoogleService(ctx context.Context, conf *core.Config) (*googleService, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating text-to-speech client")
	}
	return &googleService{
		client:       client,
		languageCode: conf.Speech.LanguageCode,
		voiceName:    conf.Speech.VoiceName,
	}, nil
}

func (svc *googleService) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: svc.languageCode,
			Name:         svc.voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	res, err := svc.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "synthesizing speech")
	}
	return res.AudioContent, nil
}

func (svc *googleService) Close() error { return svc.client.Close() }
