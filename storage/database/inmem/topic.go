package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
)

type topicRepository struct {
	db *topicTable
}

var _ topic.Repository = (*topicRepository)(nil) // interface compliance check

func NewTopicRepository(db *DB) *topicRepository {
	return &topicRepository{db: db.topic}
}

func (repo *topicRepository) query() []topic.Topic {
	topics := make([]topic.Topic, 0, len(repo.db.table))
	for _, tpc := range repo.db.table {
		topics = append(topics, *tpc)
	}
	return topics
}

func (repo *topicRepository) CreateTopic(ctx context.Context, tpc topic.Topic, exec ...core.DBExecutor) (topic.Topic, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tpc.ID = uuid.New().String()
	now := time.Now().UTC()
	if tpc.CreatedAt.IsZero() {
		tpc.CreatedAt = now
	}
	if tpc.UpdatedAt.IsZero() {
		tpc.UpdatedAt = now
	}

	repo.db.table[tpc.ID] = &tpc
	return tpc, nil
}

func (repo *topicRepository) QueryTopics(ctx context.Context, filter *topic.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]topic.Topic, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	found := make([]topic.Topic, 0)
	for _, tpc := range repo.query() {
		if topicMatches(tpc, filter) {
			found = append(found, tpc)
		}
	}
	sortTopics(found, ordering)
	return found, nil
}

func topicMatches(tpc topic.Topic, filter *topic.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Subject != "" && tpc.Subject != filter.Subject {
		return false
	}
	if filter.Type != "" && tpc.Type != filter.Type {
		return false
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(tpc.ShortName), kw) &&
			!strings.Contains(strings.ToLower(tpc.TaskDescription), kw) {
			return false
		}
	}
	if filter.CreatedBy != "" && tpc.CreatedBy != filter.CreatedBy {
		return false
	}
	return true
}

func sortTopics(topics []topic.Topic, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(topics, func(i, j int) bool {
		for _, ord := range ordering {
			var less, equal bool
			switch ord.Field {
			case "subject":
				less, equal = compareStrings(topics[i].Subject, topics[j].Subject)
			case "short_name":
				less, equal = compareStrings(topics[i].ShortName, topics[j].ShortName)
			case "type":
				less, equal = compareStrings(topics[i].Type, topics[j].Type)
			case "created_at":
				less, equal = compareTimes(topics[i].CreatedAt, topics[j].CreatedAt)
			case "updated_at":
				less, equal = compareTimes(topics[i].UpdatedAt, topics[j].UpdatedAt)
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

func (repo *topicRepository) GetTopic(ctx context.Context, id string, exec ...core.DBExecutor) (topic.Topic, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tpc, ok := repo.db.table[id]; ok {
		return *tpc, nil
	}
	return topic.Topic{}, topic.ErrNotFound
}

func (repo *topicRepository) UpdateTopic(ctx context.Context, tpc topic.Topic, exec ...core.DBExecutor) (topic.Topic, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origTpc, ok := repo.db.table[tpc.ID]
	if !ok {
		return topic.Topic{}, topic.ErrNotFound
	}
	if tpc.Subject != "" {
		origTpc.Subject = tpc.Subject
	}
	if tpc.ShortName != "" {
		origTpc.ShortName = tpc.ShortName
	}
	if tpc.TaskDescription != "" {
		origTpc.TaskDescription = tpc.TaskDescription
	}
	if tpc.Prompt != "" {
		origTpc.Prompt = tpc.Prompt
	}
	if tpc.Type != "" {
		origTpc.Type = tpc.Type
	}
	if tpc.DefaultExerciseCount > 0 {
		origTpc.DefaultExerciseCount = tpc.DefaultExerciseCount
	}
	if tpc.UpdatedAt.IsZero() {
		tpc.UpdatedAt = time.Now().UTC()
	}
	origTpc.UpdatedAt = tpc.UpdatedAt.UTC()

	return *origTpc, nil
}

func (repo *topicRepository) DeleteTopicsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}
