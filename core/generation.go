package core

import "context"

// TextGenerator is any service that can turn an exercise prompt into
// exercise text using a language model.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
