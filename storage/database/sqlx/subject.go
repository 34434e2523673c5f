package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
)

// assignmentList stores topic assignments as one JSONB document; the list is
// small and always read whole.
type assignmentList []subject.TopicAssignment

var (
	_ driver.Valuer = (assignmentList)(nil)
	_ sql.Scanner   = (*assignmentList)(nil)
)

func (l assignmentList) Value() (driver.Value, error) {
	if l == nil {
		l = assignmentList{}
	}
	return json.Marshal(l)
}

func (l *assignmentList) Scan(src interface{}) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, l)
	case string:
		return json.Unmarshal([]byte(data), l)
	case nil:
		*l = assignmentList{}
		return nil
	}
	return errors.Errorf("unsupported topic assignments type %T", src)
}

type subjectDataRow struct {
	ID                  string         `db:"id"`
	StudentID           string         `db:"student_id"`
	Subject             string         `db:"subject"`
	TopicAssignments    assignmentList `db:"topic_assignments"`
	WorksheetsLast7Days int            `db:"worksheets_last7_days"`
	LastWorksheetDate   null.Time      `db:"last_worksheet_date"`
	Grade               null.Int       `db:"grade"`
	GradeUpdatedDate    null.Time      `db:"grade_updated_date"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func unpackSubjectData(row subjectDataRow) subject.SubjectData {
	return subject.SubjectData{
		ID:               row.ID,
		StudentID:        row.StudentID,
		Subject:          row.Subject,
		TopicAssignments: row.TopicAssignments,
		Statistics: subject.Statistics{
			WorksheetsLast7Days: row.WorksheetsLast7Days,
			LastWorksheetDate:   row.LastWorksheetDate.Ptr(),
			Grade:               row.Grade.Ptr(),
			GradeUpdatedDate:    row.GradeUpdatedDate.Ptr(),
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func unpackSubjectDataSlice(rows []subjectDataRow) []subject.SubjectData {
	sds := make([]subject.SubjectData, 0, len(rows))
	for _, row := range rows {
		sds = append(sds, unpackSubjectData(row))
	}
	return sds
}

type subjectRepository struct {
	db *sqlx.DB
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{db: db}
}

func (repo subjectRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo subjectRepository) CreateSubjectData(ctx context.Context, sd subject.SubjectData, exec ...core.DBExecutor) (subject.SubjectData, error) {
	sd.ID = uuid.New().String()
	now := time.Now().UTC()
	if sd.CreatedAt.IsZero() {
		sd.CreatedAt = now
	}
	if sd.UpdatedAt.IsZero() {
		sd.UpdatedAt = now
	}

	query := `
		INSERT INTO subject_data (id, student_id, subject, topic_assignments, worksheets_last7_days, last_worksheet_date, grade, grade_updated_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		sd.ID, sd.StudentID, sd.Subject, assignmentList(sd.TopicAssignments),
		sd.Statistics.WorksheetsLast7Days, null.TimeFromPtr(sd.Statistics.LastWorksheetDate),
		null.IntFromPtr(sd.Statistics.Grade), null.TimeFromPtr(sd.Statistics.GradeUpdatedDate),
		sd.CreatedAt.UTC(), sd.UpdatedAt.UTC(),
	)
	if err != nil {
		return subject.SubjectData{}, errors.Wrap(err, "inserting subject data")
	}
	return repo.GetSubjectData(ctx, sd.StudentID, sd.Subject, exec...)
}

func (repo subjectRepository) QuerySubjectData(ctx context.Context, filter *subject.QueryFilter, exec ...core.DBExecutor) ([]subject.SubjectData, error) {
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
	}

	query := "SELECT * FROM subject_data"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY subject ASC"
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying subject data")
	}
	defer func() { _ = rows.Close() }()

	var found []subjectDataRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, errors.Wrap(err, "scanning subject data")
	}
	return unpackSubjectDataSlice(found), nil
}

func (repo subjectRepository) GetSubjectData(ctx context.Context, studentID, subj string, exec ...core.DBExecutor) (subject.SubjectData, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx,
		"SELECT * FROM subject_data WHERE student_id = $1 AND subject = $2", studentID, subj)
	if err != nil {
		return subject.SubjectData{}, errors.Wrap(err, "finding subject data")
	}
	defer func() { _ = rows.Close() }()

	var found []subjectDataRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return subject.SubjectData{}, errors.Wrap(err, "scanning subject data")
	}
	if len(found) == 0 {
		return subject.SubjectData{}, subject.ErrNotFound
	}
	return unpackSubjectData(found[0]), nil
}

func (repo subjectRepository) UpdateSubjectData(ctx context.Context, sd subject.SubjectData, exec ...core.DBExecutor) (subject.SubjectData, error) {
	if sd.UpdatedAt.IsZero() {
		sd.UpdatedAt = time.Now().UTC()
	}

	query := `
		UPDATE subject_data
		SET topic_assignments = $1, worksheets_last7_days = $2, last_worksheet_date = $3, grade = $4, grade_updated_date = $5, updated_at = $6
		WHERE id = $7`
	res, err := repo.getExec(exec).ExecContext(ctx, query,
		assignmentList(sd.TopicAssignments), sd.Statistics.WorksheetsLast7Days,
		null.TimeFromPtr(sd.Statistics.LastWorksheetDate), null.IntFromPtr(sd.Statistics.Grade),
		null.TimeFromPtr(sd.Statistics.GradeUpdatedDate), sd.UpdatedAt.UTC(), sd.ID,
	)
	if err != nil {
		return subject.SubjectData{}, errors.Wrap(err, "updating subject data")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return subject.SubjectData{}, subject.ErrNotFound
	}
	return repo.GetSubjectData(ctx, sd.StudentID, sd.Subject, exec...)
}
