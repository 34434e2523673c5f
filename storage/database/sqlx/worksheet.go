package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
)

type worksheetRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	Subject     string    `db:"subject"`
	Status      string    `db:"status"`
	Score       null.Int  `db:"score"`
	CreatedAt   time.Time `db:"created_at"`
	CompletedAt null.Time `db:"completed_at"`
}

type exerciseRow struct {
	ID             string      `db:"id"`
	WorksheetID    string      `db:"worksheet_id"`
	TopicID        string      `db:"topic_id"`
	TopicShortName string      `db:"topic_short_name"`
	Markdown       string      `db:"markdown"`
	AudioURL       null.String `db:"audio_url"`
	UserInput      null.String `db:"user_input"`
	Attempt        int         `db:"attempt"`
	Ord            int         `db:"ord"`
	Seq            int64       `db:"seq"`
}

func unpackWorksheet(row worksheetRow) worksheet.Worksheet {
	return worksheet.Worksheet{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Subject:     row.Subject,
		Status:      row.Status,
		Score:       row.Score.Ptr(),
		CreatedAt:   row.CreatedAt,
		CompletedAt: row.CompletedAt.Ptr(),
	}
}

func unpackWorksheets(rows []worksheetRow) []worksheet.Worksheet {
	worksheets := make([]worksheet.Worksheet, 0, len(rows))
	for _, row := range rows {
		worksheets = append(worksheets, unpackWorksheet(row))
	}
	return worksheets
}

func unpackExercise(row exerciseRow) worksheet.Exercise {
	return worksheet.Exercise{
		ID:             row.ID,
		WorksheetID:    row.WorksheetID,
		TopicID:        row.TopicID,
		TopicShortName: row.TopicShortName,
		Markdown:       row.Markdown,
		AudioURL:       row.AudioURL.String,
		UserInput:      row.UserInput.String,
		Attempt:        row.Attempt,
		Order:          row.Ord,
	}
}

type worksheetRepository struct {
	db *sqlx.DB
}

var _ worksheet.Repository = (*worksheetRepository)(nil) // interface compliance check

func NewWorksheetRepository(db *sqlx.DB) *worksheetRepository {
	return &worksheetRepository{db: db}
}

func (repo worksheetRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo worksheetRepository) CreateWorksheet(ctx context.Context, ws worksheet.Worksheet, exercises []worksheet.Exercise, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	ws.ID = uuid.New().String()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}

	// the caller may own the transaction boundary; otherwise the batch gets its own
	if len(exec) > 0 {
		return repo.createWorksheet(ctx, ws, exercises, exec[0])
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return worksheet.Worksheet{}, errors.Wrap(err, "beginning worksheet transaction")
	}
	ws, err = repo.createWorksheet(ctx, ws, exercises, tx)
	if err != nil {
		_ = tx.Rollback()
		return worksheet.Worksheet{}, err
	}
	if err = tx.Commit(); err != nil {
		return worksheet.Worksheet{}, errors.Wrap(err, "committing worksheet transaction")
	}
	return ws, nil
}

func (repo worksheetRepository) createWorksheet(ctx context.Context, ws worksheet.Worksheet, exercises []worksheet.Exercise, exe core.DBExecutor) (worksheet.Worksheet, error) {
	query := `
		INSERT INTO worksheets (id, student_id, subject, status, score, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := exe.ExecContext(ctx, query,
		ws.ID, ws.StudentID, ws.Subject, ws.Status, null.IntFromPtr(ws.Score),
		ws.CreatedAt.UTC(), null.TimeFromPtr(ws.CompletedAt),
	)
	if err != nil {
		return worksheet.Worksheet{}, errors.Wrap(err, "inserting worksheet")
	}

	exQuery := `
		INSERT INTO exercises (id, worksheet_id, topic_id, topic_short_name, markdown, audio_url, user_input, attempt, ord)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for i := range exercises {
		exercises[i].ID = uuid.New().String()
		exercises[i].WorksheetID = ws.ID
		ex := exercises[i]
		_, err = exe.ExecContext(ctx, exQuery,
			ex.ID, ex.WorksheetID, ex.TopicID, ex.TopicShortName, ex.Markdown,
			null.NewString(ex.AudioURL, ex.AudioURL != ""), null.NewString(ex.UserInput, ex.UserInput != ""),
			ex.Attempt, ex.Order,
		)
		if err != nil {
			return worksheet.Worksheet{}, errors.Wrap(err, "inserting exercise")
		}
	}

	ws.Exercises = exercises
	return ws, nil
}

func (repo worksheetRepository) GetWorksheet(ctx context.Context, id string, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	exe := repo.getExec(exec)

	found, err := repo.queryWorksheetRows(ctx, exe, "SELECT * FROM worksheets WHERE id = $1", id)
	if err != nil {
		return worksheet.Worksheet{}, err
	}
	if len(found) == 0 {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}

	ws := unpackWorksheet(found[0])
	if ws.Exercises, err = repo.loadExercises(ctx, exe, ws.ID); err != nil {
		return worksheet.Worksheet{}, err
	}
	return ws, nil
}

func (repo worksheetRepository) GetPendingWorksheet(ctx context.Context, studentID, subj string, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	exe := repo.getExec(exec)

	found, err := repo.queryWorksheetRows(ctx, exe, `
		SELECT * FROM worksheets
		WHERE student_id = $1 AND subject = $2 AND status = $3
		ORDER BY created_at DESC`,
		studentID, subj, worksheet.StatusPending)
	if err != nil {
		return worksheet.Worksheet{}, err
	}
	if len(found) == 0 {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}

	ws := unpackWorksheet(found[0])
	if ws.Exercises, err = repo.loadExercises(ctx, exe, ws.ID); err != nil {
		return worksheet.Worksheet{}, err
	}
	return ws, nil
}

func (repo worksheetRepository) QueryWorksheets(ctx context.Context, filter *worksheet.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]worksheet.Worksheet, error) {
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.StudentID != "" {
			conds = append(conds, "student_id = ?")
			args = append(args, filter.StudentID)
		}
		if filter.Subject != "" {
			conds = append(conds, "subject = ?")
			args = append(args, filter.Subject)
		}
		if filter.Status != "" {
			conds = append(conds, "status = ?")
			args = append(args, filter.Status)
		}
	}

	query := "SELECT * FROM worksheets"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += core.OrderBySQL(ordering)
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	found, err := repo.queryWorksheetRows(ctx, repo.getExec(exec), query, args...)
	if err != nil {
		return nil, err
	}
	return unpackWorksheets(found), nil
}

func (repo worksheetRepository) UpdateWorksheet(ctx context.Context, ws worksheet.Worksheet, exec ...core.DBExecutor) (worksheet.Worksheet, error) {
	query := `
		UPDATE worksheets
		SET status = $1, score = $2, completed_at = $3
		WHERE id = $4`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		ws.Status, null.IntFromPtr(ws.Score), null.TimeFromPtr(ws.CompletedAt), ws.ID)
	if err != nil {
		return worksheet.Worksheet{}, errors.Wrap(err, "updating worksheet")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	return ws, nil
}

func (repo worksheetRepository) UpdateExercise(ctx context.Context, ex worksheet.Exercise, exec ...core.DBExecutor) (worksheet.Exercise, error) {
	query := `
		UPDATE exercises
		SET markdown = $1, user_input = $2, attempt = $3
		WHERE id = $4`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		ex.Markdown, null.NewString(ex.UserInput, ex.UserInput != ""), ex.Attempt, ex.ID)
	if err != nil {
		return worksheet.Exercise{}, errors.Wrap(err, "updating exercise")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return worksheet.Exercise{}, worksheet.ErrNotFound
	}
	return ex, nil
}

func (repo worksheetRepository) DeletePendingWorksheets(ctx context.Context, studentID, subj string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM worksheets WHERE student_id = $1 AND subject = $2 AND status = $3",
		studentID, subj, worksheet.StatusPending)
	if err != nil {
		return 0, errors.Wrap(err, "deleting pending worksheets")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted worksheets")
	}
	return int(cnt), nil
}

// ListCompletions satisfies subject.CompletionSource.
func (repo worksheetRepository) ListCompletions(ctx context.Context, studentID, subj string) ([]time.Time, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT completed_at FROM worksheets
		WHERE student_id = $1 AND subject = $2 AND status = $3 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC`,
		studentID, subj, worksheet.StatusCompleted)
	if err != nil {
		return nil, errors.Wrap(err, "querying worksheet completions")
	}
	defer func() { _ = rows.Close() }()

	completions := make([]time.Time, 0)
	for rows.Next() {
		var completedAt time.Time
		if err = rows.Scan(&completedAt); err != nil {
			return nil, errors.Wrap(err, "scanning worksheet completion")
		}
		completions = append(completions, completedAt)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading worksheet completions")
	}
	return completions, nil
}

func (repo worksheetRepository) queryWorksheetRows(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) ([]worksheetRow, error) {
	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying worksheets")
	}
	defer func() { _ = rows.Close() }()

	var found []worksheetRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, errors.Wrap(err, "scanning worksheets")
	}
	return found, nil
}

func (repo worksheetRepository) loadExercises(ctx context.Context, exe core.DBExecutor, worksheetID string) ([]worksheet.Exercise, error) {
	rows, err := exe.QueryContext(ctx,
		"SELECT * FROM exercises WHERE worksheet_id = $1 ORDER BY ord ASC, seq ASC", worksheetID)
	if err != nil {
		return nil, errors.Wrap(err, "querying exercises")
	}
	defer func() { _ = rows.Close() }()

	var found []exerciseRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, errors.Wrap(err, "scanning exercises")
	}

	exercises := make([]worksheet.Exercise, 0, len(found))
	for _, row := range found {
		exercises = append(exercises, unpackExercise(row))
	}
	return exercises, nil
}
