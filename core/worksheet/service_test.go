package worksheet

import (
	"context"
	"testing"
	"time"
)

func TestGradeExercise(t *testing.T) {
	fill := `<p>5 + <input data-answer="3"/> = <input data-answer="8"/></p>`
	dict := DictationMarkdown("Der Hund läuft schnell.", "/media/a.mp3")

	tests := []struct {
		name        string
		markdown    string
		given       []string
		wantCorrect bool
		wantDiffs   int
	}{
		{"all gaps exact", fill, []string{"3", "8"}, true, 0},
		{"whitespace around answers ignored", fill, []string{" 3 ", "8\n"}, true, 0},
		{"one gap wrong", fill, []string{"3", "9"}, false, 0},
		{"case differs", `<p><input data-answer="Hund"/></p>`, []string{"hund"}, false, 0},
		{"missing answers", fill, []string{"3"}, false, 0},
		{"dictation fuzzy match", dict, []string{"der hund läuft schnell"}, true, 0},
		{"dictation misspelling", dict, []string{"Der Hund lauft schnell."}, false, 1},
		{"dictation empty", dict, nil, false, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Exercise{ID: "ex1", Markdown: tt.markdown}
			res := gradeExercise(&ex, tt.given)
			if res.Correct != tt.wantCorrect {
				t.Errorf("gradeExercise() correct = %v, want %v", res.Correct, tt.wantCorrect)
			}
			if len(res.Diff) != tt.wantDiffs {
				t.Errorf("gradeExercise() diff = %v, want %d mismatches", res.Diff, tt.wantDiffs)
			}
			if ex.Attempt != 1 {
				t.Errorf("exercise attempt = %d, want 1", ex.Attempt)
			}
			if tt.wantCorrect && ex.UserInput != "" {
				t.Errorf("user input recorded for a correct submission: %v", ex.UserInput)
			}
			if !tt.wantCorrect && ex.UserInput == "" {
				t.Error("user input not recorded for an incorrect submission")
			}
		})
	}
}

func TestGradeExerciseRecordsRendering(t *testing.T) {
	ex := Exercise{
		ID:       "ex1",
		Markdown: `<p>5 + <input data-answer="3"/> = <input data-answer="8"/></p>`,
	}
	gradeExercise(&ex, []string{"3", "9"})

	want := "<p>5 + 3 = 9</p>"
	if ex.UserInput != want {
		t.Errorf("exercise user input = %v, want %v", ex.UserInput, want)
	}
	// the answer key stays intact for review
	if key := ExtractAnswers(ex.Markdown); len(key) != 2 {
		t.Errorf("ExtractAnswers() = %v, want 2 answers", key)
	}
}

func TestThrottleCancellation(t *testing.T) {
	th := &throttle{delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	if err := th.wait(ctx); err != nil { // first call never waits
		t.Fatalf("wait() error = %v", err)
	}
	cancel()
	if err := th.wait(ctx); err != context.Canceled {
		t.Errorf("wait() error = %v, want %v", err, context.Canceled)
	}
}
