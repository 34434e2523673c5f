package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
)

type worksheetRepository struct {
	db *worksheetTable
}

var _ worksheet.Repository = (*worksheetRepository)(nil) // interface compliance check

func NewWorksheetRepository(db *DB) *worksheetRepository {
	return &worksheetRepository{db: db.worksheet}
}

func (repo *worksheetRepository) CreateWorksheet(ctx context.Context, ws worksheet.Worksheet, exercises []worksheet.Exercise, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ws.ID = uuid.New().String()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}

	stored := ws
	stored.Exercises = nil
	repo.db.worksheets[ws.ID] = &stored

	for i := range exercises {
		exercises[i].ID = uuid.New().String()
		exercises[i].WorksheetID = ws.ID
		repo.db.seqCount++
		repo.db.exercises[exercises[i].ID] = &exerciseRecord{exercise: exercises[i], seq: repo.db.seqCount}
	}

	ws.Exercises = exercises
	return ws, nil
}

func (repo *worksheetRepository) GetWorksheet(ctx context.Context, id string, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stored, ok := repo.db.worksheets[id]
	if !ok {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	ws := *stored
	ws.Exercises = repo.loadExercises(ws.ID)
	return ws, nil
}

func (repo *worksheetRepository) GetPendingWorksheet(ctx context.Context, studentID, subj string, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// the newest pending one wins if several exist
	var found *worksheet.Worksheet
	for _, ws := range repo.db.worksheets {
		if ws.StudentID != studentID || ws.Subject != subj || ws.Status != worksheet.StatusPending {
			continue
		}
		if found == nil || ws.CreatedAt.After(found.CreatedAt) {
			found = ws
		}
	}
	if found == nil {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	ws := *found
	ws.Exercises = repo.loadExercises(ws.ID)
	return ws, nil
}

func (repo *worksheetRepository) QueryWorksheets(ctx context.Context, filter *worksheet.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]worksheet.Worksheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	found := make([]worksheet.Worksheet, 0)
	for _, ws := range repo.db.worksheets {
		if filter != nil {
			if filter.StudentID != "" && ws.StudentID != filter.StudentID {
				continue
			}
			if filter.Subject != "" && ws.Subject != filter.Subject {
				continue
			}
			if filter.Status != "" && ws.Status != filter.Status {
				continue
			}
		}
		found = append(found, *ws)
	}
	sortWorksheets(found, ordering)
	return found, nil
}

func sortWorksheets(worksheets []worksheet.Worksheet, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(worksheets, func(i, j int) bool {
		for _, ord := range ordering {
			var less, equal bool
			switch ord.Field {
			case "subject":
				less, equal = compareStrings(worksheets[i].Subject, worksheets[j].Subject)
			case "status":
				less, equal = compareStrings(worksheets[i].Status, worksheets[j].Status)
			case "created_at":
				less, equal = compareTimes(worksheets[i].CreatedAt, worksheets[j].CreatedAt)
			default:
				continue
			}
			if equal {
				continue
			}
			return less == ord.Ascending
		}
		return false
	})
}

func (repo *worksheetRepository) UpdateWorksheet(ctx context.Context, ws worksheet.Worksheet, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.worksheets[ws.ID]
	if !ok {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	stored.Status = ws.Status
	stored.Score = ws.Score
	stored.CompletedAt = ws.CompletedAt
	return ws, nil
}

func (repo *worksheetRepository) UpdateExercise(ctx context.Context, ex worksheet.Exercise, exec ...core.DBExecutor) (worksheet.Exercise, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.exercises[ex.ID]
	if !ok {
		return worksheet.Exercise{}, worksheet.ErrNotFound
	}
	rec.exercise.Markdown = ex.Markdown
	rec.exercise.UserInput = ex.UserInput
	rec.exercise.Attempt = ex.Attempt
	return ex, nil
}

func (repo *worksheetRepository) DeletePendingWorksheets(ctx context.Context, studentID, subj string, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for id, ws := range repo.db.worksheets {
		if ws.StudentID != studentID || ws.Subject != subj || ws.Status != worksheet.StatusPending {
			continue
		}
		for exID, rec := range repo.db.exercises {
			if rec.exercise.WorksheetID == id {
				delete(repo.db.exercises, exID)
			}
		}
		delete(repo.db.worksheets, id)
		cnt++
	}
	return cnt, nil
}

// ListCompletions satisfies subject.CompletionSource.
func (repo *worksheetRepository) ListCompletions(ctx context.Context, studentID, subj string) ([]time.Time, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	completions := make([]time.Time, 0)
	for _, ws := range repo.db.worksheets {
		if ws.StudentID != studentID || ws.Subject != subj || ws.Status != worksheet.StatusCompleted || ws.CompletedAt == nil {
			continue
		}
		completions = append(completions, *ws.CompletedAt)
	}
	sort.Slice(completions, func(i, j int) bool { return completions[i].After(completions[j]) })
	return completions, nil
}

// loadExercises assumes the table lock is held.
func (repo *worksheetRepository) loadExercises(worksheetID string) []worksheet.Exercise {
	records := make([]exerciseRecord, 0)
	for _, rec := range repo.db.exercises {
		if rec.exercise.WorksheetID == worksheetID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].exercise.Order != records[j].exercise.Order {
			return records[i].exercise.Order < records[j].exercise.Order
		}
		return records[i].seq < records[j].seq
	})

	exercises := make([]worksheet.Exercise, 0, len(records))
	for _, rec := range records {
		exercises = append(exercises, rec.exercise)
	}
	return exercises
}
