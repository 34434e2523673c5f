package gensvc

import (
	"context"
	"sync"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// dummyService hands out canned texts instead of calling the generation API.
// It serves tests and development setups without an API key.
type dummyService struct {
	mu    sync.Mutex
	texts []string
	next  int
}

var _ core.TextGenerator = (*dummyService)(nil)

// NewDummyService cycles through the given texts; without arguments it
// returns a constant fill-gap sentence.
func NewDummyService(texts ...string) *dummyService {
	if len(texts) == 0 {
		texts = []string{"Der Hund ____ (bellt) laut."}
	}
	return &dummyService{texts: texts}
}

func (svc *dummyService) GenerateText(context.Context, string) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	text := svc.texts[svc.next%len(svc.texts)]
	svc.next++
	return text, nil
}
