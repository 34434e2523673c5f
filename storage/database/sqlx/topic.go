package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
)

type topicRow struct {
	ID                   string    `db:"id"`
	Subject              string    `db:"subject"`
	ShortName            string    `db:"short_name"`
	TaskDescription      string    `db:"task_description"`
	Prompt               string    `db:"prompt"`
	Type                 string    `db:"type"`
	DefaultExerciseCount int       `db:"default_exercise_count"`
	CreatedBy            string    `db:"created_by"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func unpackTopic(row topicRow) topic.Topic {
	return topic.Topic{
		ID:                   row.ID,
		Subject:              row.Subject,
		ShortName:            row.ShortName,
		TaskDescription:      row.TaskDescription,
		Prompt:               row.Prompt,
		Type:                 row.Type,
		DefaultExerciseCount: row.DefaultExerciseCount,
		CreatedBy:            row.CreatedBy,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func unpackTopics(rows []topicRow) []topic.Topic {
	topics := make([]topic.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, unpackTopic(row))
	}
	return topics
}

type topicRepository struct {
	db *sqlx.DB
}

var _ topic.Repository = (*topicRepository)(nil) // interface compliance check

func NewTopicRepository(db *sqlx.DB) *topicRepository {
	return &topicRepository{db: db}
}

func (repo topicRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo topicRepository) CreateTopic(ctx context.Context, tpc topic.Topic, exec ...core.DBExecutor) (topic.Topic, error) {
	tpc.ID = uuid.New().String()
	now := time.Now().UTC()
	if tpc.CreatedAt.IsZero() {
		tpc.CreatedAt = now
	}
	if tpc.UpdatedAt.IsZero() {
		tpc.UpdatedAt = now
	}

	query := `
		INSERT INTO topics (id, subject, short_name, task_description, prompt, type, default_exercise_count, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.getExec(exec).ExecContext(ctx, query,
		tpc.ID, tpc.Subject, tpc.ShortName, tpc.TaskDescription, tpc.Prompt, tpc.Type,
		tpc.DefaultExerciseCount, tpc.CreatedBy, tpc.CreatedAt.UTC(), tpc.UpdatedAt.UTC(),
	)
	if err != nil {
		return topic.Topic{}, errors.Wrap(err, "inserting topic")
	}
	return repo.GetTopic(ctx, tpc.ID, exec...)
}

func (repo topicRepository) QueryTopics(ctx context.Context, filter *topic.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]topic.Topic, error) {
	var conds []string
	var args []interface{}

	if filter != nil {
		if filter.Subject != "" {
			conds = append(conds, "subject = ?")
			args = append(args, filter.Subject)
		}
		if filter.Type != "" {
			conds = append(conds, "type = ?")
			args = append(args, filter.Type)
		}
		// topics with ShortName or TaskDescription matching the search keyword
		if filter.Search != "" {
			conds = append(conds, "(short_name ILIKE ? OR task_description ILIKE ?)")
			val := "%" + filter.Search + "%"
			args = append(args, val, val)
		}
		if filter.CreatedBy != "" {
			conds = append(conds, "created_by = ?")
			args = append(args, filter.CreatedBy)
		}
	}

	query := "SELECT * FROM topics"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += core.OrderBySQL(ordering)
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}
	defer func() { _ = rows.Close() }()

	var found []topicRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, errors.Wrap(err, "scanning topics")
	}
	return unpackTopics(found), nil
}

func (repo topicRepository) GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (topic.Topic, error) {
	if _, err := uuid.Parse(id); err != nil {
		return topic.Topic{}, topic.ErrNotFound
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, "SELECT * FROM topics WHERE id = $1", id)
	if err != nil {
		return topic.Topic{}, errors.Wrap(err, "finding topic")
	}
	defer func() { _ = rows.Close() }()

	var found []topicRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return topic.Topic{}, errors.Wrap(err, "scanning topic")
	}
	if len(found) == 0 {
		return topic.Topic{}, topic.ErrNotFound
	}
	return unpackTopic(found[0]), nil
}

func (repo topicRepository) UpdateTopic(ctx context.Context, tpc topic.Topic, exec ...core.DBExecutor) (topic.Topic, error) {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if tpc.Subject != "" {
		set("subject", tpc.Subject)
	}
	if tpc.ShortName != "" {
		set("short_name", tpc.ShortName)
	}
	if tpc.TaskDescription != "" {
		set("task_description", tpc.TaskDescription)
	}
	if tpc.Prompt != "" {
		set("prompt", tpc.Prompt)
	}
	if tpc.Type != "" {
		set("type", tpc.Type)
	}
	if tpc.DefaultExerciseCount > 0 {
		set("default_exercise_count", tpc.DefaultExerciseCount)
	}
	if tpc.UpdatedAt.IsZero() {
		tpc.UpdatedAt = time.Now().UTC()
	}
	set("updated_at", tpc.UpdatedAt.UTC())

	args = append(args, tpc.ID)
	query := fmt.Sprintf("UPDATE topics SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return topic.Topic{}, errors.Wrap(err, "updating topic")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return topic.Topic{}, topic.ErrNotFound
	}
	return repo.GetTopic(ctx, tpc.ID, exec...)
}

func (repo topicRepository) DeleteTopicsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM topics WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "building delete query")
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting topics")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted topics")
	}
	return int(cnt), nil
}
