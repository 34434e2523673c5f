package topic

import (
	"context"
	"errors"
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

var (
	// errors
	ErrNotFound = errors.New("topic not found")
)

type (
	Repository interface {
		CreateTopic(ctx context.Context, tpc Topic, exec ...core.DBExecutor) (Topic, error)
		// QueryTopics applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Topic.ShortName or Topic.TaskDescription.
		QueryTopics(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Topic, error)
		GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (Topic, error)
		// UpdateTopic only saves set fields; zero-valued fields keep their stored values.
		UpdateTopic(ctx context.Context, tpc Topic, exec ...core.DBExecutor) (Topic, error)
		DeleteTopicsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(nt NewTopic, createdBy string) (Topic, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Topic, error)
		GetByID(id string) (Topic, error)
		Update(id string, ut UpdateTopic) (Topic, error)
		Delete(ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(nt NewTopic, createdBy string) (Topic, error) {
	now := time.Now().UTC()
	tpc := Topic{
		Subject:              nt.Subject,
		ShortName:            nt.ShortName,
		TaskDescription:      nt.TaskDescription,
		Prompt:               nt.Prompt,
		Type:                 nt.Type,
		DefaultExerciseCount: nt.DefaultExerciseCount,
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if tpc.DefaultExerciseCount == 0 {
		tpc.DefaultExerciseCount = 1
	}
	return svc.repo.CreateTopic(context.Background(), tpc)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Topic, error) {
	return svc.repo.QueryTopics(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Topic, error) {
	return svc.repo.GetTopic(context.Background(), id)
}

func (svc *service) Update(id string, ut UpdateTopic) (Topic, error) {
	tpc := Topic{
		ID:                   id,
		Subject:              ut.Subject,
		ShortName:            ut.ShortName,
		TaskDescription:      ut.TaskDescription,
		Prompt:               ut.Prompt,
		Type:                 ut.Type,
		DefaultExerciseCount: ut.DefaultExerciseCount,
		UpdatedAt:            time.Now().UTC(),
	}
	return svc.repo.UpdateTopic(context.Background(), tpc)
}

func (svc *service) Delete(ids ...string) error {
	_, err := svc.repo.DeleteTopicsByID(context.Background(), ids)
	return err
}
