package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
)

type subjectRepository struct {
	db *subjectTable
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) *subjectRepository {
	return &subjectRepository{db: db.subject}
}

func (repo *subjectRepository) query() []subject.SubjectData {
	sds := make([]subject.SubjectData, 0, len(repo.db.table))
	for _, sd := range repo.db.table {
		sds = append(sds, *sd)
	}
	return sds
}

func (repo *subjectRepository) CreateSubjectData(ctx context.Context, sd subject.SubjectData, exec ...core.DBExecutor) (subject.SubjectData, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// one record per (student, subject)
	for _, existing := range repo.db.table {
		if existing.StudentID == sd.StudentID && existing.Subject == sd.Subject {
			return subject.SubjectData{}, errors.Errorf("subject data already exists for student %q and subject %q", sd.StudentID, sd.Subject)
		}
	}

	sd.ID = uuid.New().String()
	now := time.Now().UTC()
	if sd.CreatedAt.IsZero() {
		sd.CreatedAt = now
	}
	if sd.UpdatedAt.IsZero() {
		sd.UpdatedAt = now
	}
	if sd.TopicAssignments == nil {
		sd.TopicAssignments = []subject.TopicAssignment{}
	}

	repo.db.table[sd.ID] = &sd
	return sd, nil
}

func (repo *subjectRepository) QuerySubjectData(ctx context.Context, filter *subject.QueryFilter, exec ...core.DBExecutor) ([]subject.SubjectData, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	found := make([]subject.SubjectData, 0)
	for _, sd := range repo.query() {
		if filter != nil {
			if filter.StudentID != "" && sd.StudentID != filter.StudentID {
				continue
			}
			if filter.Subject != "" && sd.Subject != filter.Subject {
				continue
			}
		}
		found = append(found, sd)
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Subject < found[j].Subject })
	return found, nil
}

func (repo *subjectRepository) GetSubjectData(ctx context.Context, studentID, subj string, exec ...core.DBExecutor) (subject.SubjectData, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sd := range repo.db.table {
		if sd.StudentID == studentID && sd.Subject == subj {
			return *sd, nil
		}
	}
	return subject.SubjectData{}, subject.ErrNotFound
}

func (repo *subjectRepository) UpdateSubjectData(ctx context.Context, sd subject.SubjectData, exec ...core.DBExecutor) (subject.SubjectData, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origSd, ok := repo.db.table[sd.ID]
	if !ok {
		return subject.SubjectData{}, subject.ErrNotFound
	}
	if sd.TopicAssignments == nil {
		sd.TopicAssignments = []subject.TopicAssignment{}
	}
	origSd.TopicAssignments = sd.TopicAssignments
	origSd.Statistics = sd.Statistics
	if sd.UpdatedAt.IsZero() {
		sd.UpdatedAt = time.Now().UTC()
	}
	origSd.UpdatedAt = sd.UpdatedAt.UTC()

	return *origSd, nil
}
