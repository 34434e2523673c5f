package subject

import (
	"context"
	"errors"
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

var (
	// errors
	ErrNotFound = errors.New("subject data not found")

	nowFunc = time.Now // mockable
)

type (
	// CompletionSource lists a student's worksheet completion times for one
	// subject, ordered most recent first.
	CompletionSource interface {
		ListCompletions(ctx context.Context, studentID, subject string) ([]time.Time, error)
	}

	Repository interface {
		CreateSubjectData(ctx context.Context, sd SubjectData, exec ...core.DBExecutor) (SubjectData, error)
		// QuerySubjectData applies AND operation on available QueryFilter fields; a nil filter returns everything.
		QuerySubjectData(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]SubjectData, error)
		GetSubjectData(ctx context.Context, studentID, subject string, exec ...core.DBExecutor) (SubjectData, error)
		// UpdateSubjectData overwrites the stored record.
		UpdateSubjectData(ctx context.Context, sd SubjectData, exec ...core.DBExecutor) (SubjectData, error)
	}

	Service interface {
		// AssignTopic creates the SubjectData record on first assignment and
		// replaces the count when the topic is already assigned.
		AssignTopic(studentID, subject string, at AssignTopic) (SubjectData, error)
		UnassignTopic(studentID, subject, topicID string) (SubjectData, error)
		// GetForStudent refreshes a stale grade before returning.
		GetForStudent(studentID, subject string) (SubjectData, error)
		// QueryByStudent returns all subjects of a student, grades refreshed.
		QueryByStudent(studentID string) ([]SubjectData, error)
		// RecordCompletion updates the completion statistics after a
		// worksheet completes; the cached grade stays lazy.
		RecordCompletion(studentID, subject string, completedAt time.Time) error
		RefreshStaleGrades() (int, error)
	}

	service struct {
		repo        Repository
		completions CompletionSource
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, completions CompletionSource) Service {
	return &service{
		repo:        repo,
		completions: completions,
	}
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	Subject   string `query:"subject"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Subject == ""
}

func (svc *service) AssignTopic(studentID, subject string, at AssignTopic) (SubjectData, error) {
	ctx := context.Background()
	now := nowFunc().UTC()

	sd, err := svc.repo.GetSubjectData(ctx, studentID, subject)
	if err != nil {
		if err != ErrNotFound {
			return SubjectData{}, err
		}
		sd = SubjectData{
			StudentID:        studentID,
			Subject:          subject,
			TopicAssignments: []TopicAssignment{{TopicID: at.TopicID, Count: at.Count}},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return svc.repo.CreateSubjectData(ctx, sd)
	}

	var found bool
	for i, ta := range sd.TopicAssignments {
		if ta.TopicID == at.TopicID {
			sd.TopicAssignments[i].Count = at.Count
			found = true
			break
		}
	}
	if !found {
		sd.TopicAssignments = append(sd.TopicAssignments, TopicAssignment{TopicID: at.TopicID, Count: at.Count})
	}
	sd.UpdatedAt = now
	return svc.repo.UpdateSubjectData(ctx, sd)
}

func (svc *service) UnassignTopic(studentID, subject, topicID string) (SubjectData, error) {
	ctx := context.Background()

	sd, err := svc.repo.GetSubjectData(ctx, studentID, subject)
	if err != nil {
		return SubjectData{}, err
	}

	assignments := make([]TopicAssignment, 0, len(sd.TopicAssignments))
	for _, ta := range sd.TopicAssignments {
		if ta.TopicID != topicID {
			assignments = append(assignments, ta)
		}
	}
	sd.TopicAssignments = assignments
	sd.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateSubjectData(ctx, sd)
}

func (svc *service) GetForStudent(studentID, subject string) (SubjectData, error) {
	ctx := context.Background()

	sd, err := svc.repo.GetSubjectData(ctx, studentID, subject)
	if err != nil {
		return SubjectData{}, err
	}
	return svc.refreshGradeIfStale(ctx, sd)
}

func (svc *service) QueryByStudent(studentID string) ([]SubjectData, error) {
	ctx := context.Background()

	sds, err := svc.repo.QuerySubjectData(ctx, &QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	for i := range sds {
		if sds[i], err = svc.refreshGradeIfStale(ctx, sds[i]); err != nil {
			return nil, err
		}
	}
	return sds, nil
}

func (svc *service) RecordCompletion(studentID, subject string, completedAt time.Time) error {
	ctx := context.Background()
	now := nowFunc()

	sd, err := svc.repo.GetSubjectData(ctx, studentID, subject)
	if err != nil {
		if err != ErrNotFound {
			return err
		}
		sd = SubjectData{StudentID: studentID, Subject: subject, CreatedAt: now.UTC()}
		if sd, err = svc.repo.CreateSubjectData(ctx, sd); err != nil {
			return err
		}
	}

	completions, err := svc.completions.ListCompletions(ctx, studentID, subject)
	if err != nil {
		return err
	}
	sd.Statistics.WorksheetsLast7Days = completionsLast7Days(completions, now)
	sd.Statistics.LastWorksheetDate = &completedAt
	sd.UpdatedAt = now.UTC()
	_, err = svc.repo.UpdateSubjectData(ctx, sd)
	return err
}

func (svc *service) RefreshStaleGrades() (int, error) {
	ctx := context.Background()
	now := nowFunc()

	sds, err := svc.repo.QuerySubjectData(ctx, nil)
	if err != nil {
		return 0, err
	}
	var n int
	for _, sd := range sds {
		if !IsGradeStale(sd.Statistics, now) {
			continue
		}
		if _, err = svc.refreshGrade(ctx, sd, now); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (svc *service) refreshGradeIfStale(ctx context.Context, sd SubjectData) (SubjectData, error) {
	now := nowFunc()
	if !IsGradeStale(sd.Statistics, now) {
		return sd, nil
	}
	return svc.refreshGrade(ctx, sd, now)
}

// refreshGrade recomputes the cached grade and the 7-day figures from the
// completion history: one read, one write. It is not transactional with
// worksheet completion; a concurrent completion leaves the grade one
// worksheet stale until the next refresh.
func (svc *service) refreshGrade(ctx context.Context, sd SubjectData, now time.Time) (SubjectData, error) {
	completions, err := svc.completions.ListCompletions(ctx, sd.StudentID, sd.Subject)
	if err != nil {
		return SubjectData{}, err
	}

	sd.Statistics.Grade = ComputeGrade(completions, now)
	sd.Statistics.WorksheetsLast7Days = completionsLast7Days(completions, now)
	if len(completions) > 0 {
		sd.Statistics.LastWorksheetDate = &completions[0]
	}
	if sd.Statistics.Grade != nil {
		updated := now
		sd.Statistics.GradeUpdatedDate = &updated
	}
	sd.UpdatedAt = now.UTC()
	return svc.repo.UpdateSubjectData(ctx, sd)
}
