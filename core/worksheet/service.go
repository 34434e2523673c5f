package worksheet

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
)

var (
	ErrNotFound         = errors.New("worksheet not found")
	ErrPendingExists    = errors.New("a pending worksheet already exists for this subject")
	ErrNoAssignments    = errors.New("no topics assigned for this subject")
	ErrAlreadyCompleted = errors.New("worksheet is already completed")

	nowFunc = time.Now // mockable
)

type (
	// Repository is anything that can persist worksheets and exercises.
	Repository interface {
		// CreateWorksheet persists the worksheet and its exercises as one batch.
		CreateWorksheet(ctx context.Context, ws Worksheet, exercises []Exercise, exec ...core.DBExecutor) (Worksheet, error)
		// GetWorksheet returns the worksheet with its exercises in order.
		GetWorksheet(ctx context.Context, id string, exec ...core.DBExecutor) (Worksheet, error)
		// GetPendingWorksheet returns the student's pending worksheet for the
		// subject, with its exercises in order.
		GetPendingWorksheet(ctx context.Context, studentID, subject string, exec ...core.DBExecutor) (Worksheet, error)
		// QueryWorksheets finds worksheets without loading exercises.
		QueryWorksheets(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Worksheet, error)
		// UpdateWorksheet overwrites the stored worksheet row.
		UpdateWorksheet(ctx context.Context, ws Worksheet, exec ...core.DBExecutor) (Worksheet, error)
		// UpdateExercise overwrites the stored exercise row.
		UpdateExercise(ctx context.Context, ex Exercise, exec ...core.DBExecutor) (Exercise, error)
		// DeletePendingWorksheets removes the student's pending worksheets for
		// the subject along with their exercises.
		DeletePendingWorksheets(ctx context.Context, studentID, subject string, exec ...core.DBExecutor) (int, error)
		// ListCompletions returns the completion times of the student's
		// completed worksheets for the subject, most recent first.
		ListCompletions(ctx context.Context, studentID, subject string) ([]time.Time, error)
	}

	Service interface {
		// Generate builds a fresh pending worksheet from the student's topic
		// assignments for the subject.
		Generate(ctx context.Context, studentID, subj string) (Worksheet, error)
		// Regenerate discards the student's pending worksheet for the subject
		// and generates a new one.
		Regenerate(ctx context.Context, studentID, subj string) (Worksheet, error)
		// GetPending returns the student's pending worksheet for the subject.
		GetPending(ctx context.Context, studentID, subj string) (Worksheet, error)
		// GetByID returns a worksheet with its exercises.
		GetByID(ctx context.Context, id string) (Worksheet, error)
		// Query finds worksheets, newest first, without exercises.
		Query(ctx context.Context, filter *QueryFilter) ([]Worksheet, error)
		// SaveDraft persists in-progress answers inside the pending
		// worksheet's exercises, keyed by exercise ID.
		SaveDraft(ctx context.Context, id, studentID string, drafts map[string][]string) (Worksheet, error)
		// Submit grades the student's answers, completes the worksheet and
		// records the completion in the subject statistics.
		Submit(ctx context.Context, id, studentID string, answers map[string][]string) (SubmitResult, error)
		// Review returns a completed worksheet's exercises with their decoded
		// answer keys for a trainer.
		Review(ctx context.Context, id string) (Worksheet, []ExerciseReview, error)
	}

	service struct {
		repo        Repository
		subjectSvc  subject.Service
		topicSvc    topic.Service
		generator   core.TextGenerator
		synthesizer core.SpeechSynthesizer
		conf        *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	subjectSvc subject.Service,
	topicSvc topic.Service,
	generator core.TextGenerator,
	synthesizer core.SpeechSynthesizer,
	conf *core.Config,
) Service {
	return &service{
		repo:        repo,
		subjectSvc:  subjectSvc,
		topicSvc:    topicSvc,
		generator:   generator,
		synthesizer: synthesizer,
		conf:        conf,
	}
}

func (svc *service) Generate(ctx context.Context, studentID, subj string) (Worksheet, error) {
	// at most one pending worksheet per student and subject
	if _, err := svc.repo.GetPendingWorksheet(ctx, studentID, subj); err == nil {
		return Worksheet{}, core.NewValidationError(ErrPendingExists)
	} else if errors.Cause(err) != ErrNotFound {
		return Worksheet{}, err
	}

	sd, err := svc.subjectSvc.GetForStudent(studentID, subj)
	if err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return Worksheet{}, core.NewValidationError(ErrNoAssignments)
		}
		return Worksheet{}, err
	}
	if len(sd.TopicAssignments) == 0 {
		return Worksheet{}, core.NewValidationError(ErrNoAssignments)
	}

	th := &throttle{delay: svc.conf.Generation.RequestDelay}
	exercises := make([]Exercise, 0, len(sd.TopicAssignments))
	for ord, ta := range sd.TopicAssignments {
		tpc, err := svc.topicSvc.GetByID(ta.TopicID)
		if err != nil {
			if errors.Cause(err) == topic.ErrNotFound {
				continue // assignment outlived its topic
			}
			return Worksheet{}, err
		}
		for n := 0; n < ta.Count; n++ {
			ex, err := svc.generateExercise(ctx, th, tpc)
			if err != nil {
				return Worksheet{}, err
			}
			ex.Order = ord
			exercises = append(exercises, ex)
		}
	}
	if len(exercises) == 0 {
		return Worksheet{}, core.NewValidationError(ErrNoAssignments)
	}

	ws := Worksheet{
		StudentID: studentID,
		Subject:   subj,
		Status:    StatusPending,
		CreatedAt: nowFunc().UTC(),
	}
	if ws, err = svc.repo.CreateWorksheet(ctx, ws, exercises); err != nil {
		return Worksheet{}, err
	}
	return withParts(ws), nil
}

func (svc *service) Regenerate(ctx context.Context, studentID, subj string) (Worksheet, error) {
	if _, err := svc.repo.DeletePendingWorksheets(ctx, studentID, subj); err != nil {
		return Worksheet{}, err
	}
	return svc.Generate(ctx, studentID, subj)
}

func (svc *service) GetPending(ctx context.Context, studentID, subj string) (Worksheet, error) {
	ws, err := svc.repo.GetPendingWorksheet(ctx, studentID, subj)
	if err != nil {
		return Worksheet{}, err
	}
	return withParts(ws), nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Worksheet, error) {
	ws, err := svc.repo.GetWorksheet(ctx, id)
	if err != nil {
		return Worksheet{}, err
	}
	return withParts(ws), nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Worksheet, error) {
	if filter != nil {
		filter.Clean()
	}
	ordering := []core.DBOrdering{{Field: "created_at", Ascending: false}}
	return svc.repo.QueryWorksheets(ctx, filter, ordering)
}

func (svc *service) SaveDraft(ctx context.Context, id, studentID string, drafts map[string][]string) (Worksheet, error) {
	ws, err := svc.getOwned(ctx, id, studentID)
	if err != nil {
		return Worksheet{}, err
	}
	if ws.Status != StatusPending {
		return Worksheet{}, core.NewValidationError(ErrAlreadyCompleted)
	}

	for i, ex := range ws.Exercises {
		draft, ok := drafts[ex.ID]
		if !ok {
			continue
		}
		ws.Exercises[i].Markdown = UpdateDraftAnswers(ex.Markdown, draft)
		if ws.Exercises[i], err = svc.repo.UpdateExercise(ctx, ws.Exercises[i]); err != nil {
			return Worksheet{}, err
		}
	}
	return withParts(ws), nil
}

func (svc *service) Submit(ctx context.Context, id, studentID string, answers map[string][]string) (SubmitResult, error) {
	ws, err := svc.getOwned(ctx, id, studentID)
	if err != nil {
		return SubmitResult{}, err
	}
	if ws.Status != StatusPending {
		return SubmitResult{}, core.NewValidationError(ErrAlreadyCompleted)
	}

	var correct int
	results := make([]ExerciseResult, 0, len(ws.Exercises))
	for i := range ws.Exercises {
		res := gradeExercise(&ws.Exercises[i], answers[ws.Exercises[i].ID])
		if res.Correct {
			correct++
		}
		results = append(results, res)
		if ws.Exercises[i], err = svc.repo.UpdateExercise(ctx, ws.Exercises[i]); err != nil {
			return SubmitResult{}, err
		}
	}

	var score int
	if len(ws.Exercises) > 0 {
		score = int(math.Round(float64(correct) * 100.0 / float64(len(ws.Exercises))))
	}
	now := nowFunc().UTC()
	ws.Status = StatusCompleted
	ws.Score = &score
	ws.CompletedAt = &now
	if ws, err = svc.repo.UpdateWorksheet(ctx, ws); err != nil {
		return SubmitResult{}, err
	}

	if err = svc.subjectSvc.RecordCompletion(ws.StudentID, ws.Subject, now); err != nil {
		return SubmitResult{}, errors.Wrap(err, "recording worksheet completion")
	}
	return SubmitResult{Worksheet: ws, Score: score, Results: results}, nil
}

func (svc *service) Review(ctx context.Context, id string) (Worksheet, []ExerciseReview, error) {
	ws, err := svc.repo.GetWorksheet(ctx, id)
	if err != nil {
		return Worksheet{}, nil, err
	}

	reviews := make([]ExerciseReview, 0, len(ws.Exercises))
	for _, ex := range ws.Exercises {
		rev := ExerciseReview{Exercise: ex, CorrectAnswers: ExtractAnswers(ex.Markdown)}
		if ex.IsDictation() && ex.UserInput != "" {
			var given string
			if drafts := ExtractDraftAnswers(ex.UserInput); len(drafts) > 0 {
				given = drafts[0]
			}
			var expected string
			if len(rev.CorrectAnswers) > 0 {
				expected = rev.CorrectAnswers[0]
			}
			rev.Diff = DiffWords(expected, given)
			sim := Similarity(expected, given)
			rev.Similarity = &sim
		}
		reviews = append(reviews, rev)
	}
	return ws, reviews, nil
}

// getOwned loads a worksheet and hides it from anyone but its student.
func (svc *service) getOwned(ctx context.Context, id, studentID string) (Worksheet, error) {
	ws, err := svc.repo.GetWorksheet(ctx, id)
	if err != nil {
		return Worksheet{}, err
	}
	if ws.StudentID != studentID {
		return Worksheet{}, ErrNotFound
	}
	return ws, nil
}

func (svc *service) generateExercise(ctx context.Context, th *throttle, tpc topic.Topic) (Exercise, error) {
	if tpc.IsDictation() {
		return svc.generateDictation(ctx, th, tpc)
	}
	return svc.generateFillGaps(ctx, th, tpc)
}

// generateFillGaps asks the text generator for gap text and converts it to
// markdown, regenerating up to Generation.MaxAttempts times when the output
// does not follow the gap convention.
func (svc *service) generateFillGaps(ctx context.Context, th *throttle, tpc topic.Topic) (Exercise, error) {
	var lastErr error
	for attempt := 0; attempt < svc.conf.Generation.MaxAttempts; attempt++ {
		if err := th.wait(ctx); err != nil {
			return Exercise{}, err
		}
		raw, err := svc.generator.GenerateText(ctx, tpc.Prompt)
		if err != nil {
			return Exercise{}, errors.Wrap(err, "generating exercise text")
		}
		markdown, err := ValidateGeneratedText(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return Exercise{TopicID: tpc.ID, TopicShortName: tpc.ShortName, Markdown: markdown}, nil
	}
	return Exercise{}, errors.Wrapf(lastErr, "generated text still invalid after %d attempts", svc.conf.Generation.MaxAttempts)
}

func (svc *service) generateDictation(ctx context.Context, th *throttle, tpc topic.Topic) (Exercise, error) {
	if err := th.wait(ctx); err != nil {
		return Exercise{}, err
	}
	raw, err := svc.generator.GenerateText(ctx, tpc.Prompt)
	if err != nil {
		return Exercise{}, errors.Wrap(err, "generating dictation text")
	}
	transcript := strings.TrimSpace(raw)
	if transcript == "" {
		return Exercise{}, errors.New("generated an empty dictation text")
	}

	if err = th.wait(ctx); err != nil {
		return Exercise{}, err
	}
	audio, err := svc.synthesizer.SynthesizeSpeech(ctx, transcript)
	if err != nil {
		return Exercise{}, errors.Wrap(err, "synthesizing dictation audio")
	}
	audioURL, err := svc.saveAudio(audio)
	if err != nil {
		return Exercise{}, err
	}

	return Exercise{
		TopicID:        tpc.ID,
		TopicShortName: tpc.ShortName,
		Markdown:       DictationMarkdown(transcript, audioURL),
		AudioURL:       audioURL,
	}, nil
}

// saveAudio writes MP3 bytes under the media root and returns the URL path
// they are served from.
func (svc *service) saveAudio(audio []byte) (string, error) {
	dir := svc.conf.MediaDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "creating media root")
	}
	name := uuid.New().String() + ".mp3"
	if err := os.WriteFile(filepath.Join(dir, name), audio, 0644); err != nil {
		return "", errors.Wrap(err, "writing dictation audio")
	}
	return "/media/" + name, nil
}

// gradeExercise grades one exercise in place: the attempt counter always
// advances, and an incorrect submission bakes the given answers into
// UserInput for later review.
func gradeExercise(ex *Exercise, given []string) ExerciseResult {
	key := ExtractAnswers(ex.Markdown)
	res := ExerciseResult{ExerciseID: ex.ID, CorrectAnswers: key, GivenAnswers: given}
	if res.GivenAnswers == nil {
		res.GivenAnswers = []string{}
	}

	if ex.IsDictation() {
		var expected, actual string
		if len(key) > 0 {
			expected = key[0]
		}
		if len(given) > 0 {
			actual = given[0]
		}
		res.Correct = FuzzyMatch(expected, actual)
		if !res.Correct {
			res.Diff = DiffWords(expected, actual)
		}
		sim := Similarity(expected, actual)
		res.Similarity = &sim
	} else {
		res.Correct = len(key) > 0
		for i, ans := range key {
			var g string
			if i < len(given) {
				g = given[i]
			}
			if strings.TrimSpace(g) != ans {
				res.Correct = false
			}
		}
	}

	ex.Attempt++
	if !res.Correct {
		ex.UserInput = FillAnswers(ex.Markdown, given)
	}
	return res
}

func withParts(ws Worksheet) Worksheet {
	for i, ex := range ws.Exercises {
		if !ex.IsDictation() {
			ws.Exercises[i].Parts = Tokenize(ex.Markdown)
		}
	}
	return ws
}

// throttle spaces consecutive external calls by a fixed delay.
type throttle struct {
	delay  time.Duration
	primed bool
}

func (th *throttle) wait(ctx context.Context) error {
	if th.primed && th.delay > 0 {
		select {
		case <-time.After(th.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	th.primed = true
	return nil
}
