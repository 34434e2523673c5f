package subject

import (
	"context"
	"testing"
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// fakeStore backs the service tests as both Repository and CompletionSource.
type fakeStore struct {
	records     map[string]SubjectData
	completions map[string][]time.Time // most recent first
	updates     int
}

var (
	_ Repository       = (*fakeStore)(nil)
	_ CompletionSource = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:     make(map[string]SubjectData),
		completions: make(map[string][]time.Time),
	}
}

func storeKey(studentID, subject string) string { return studentID + "/" + subject }

func (f *fakeStore) CreateSubjectData(_ context.Context, sd SubjectData, _ ...core.DBExecutor) (SubjectData, error) {
	sd.ID = storeKey(sd.StudentID, sd.Subject)
	if sd.TopicAssignments == nil {
		sd.TopicAssignments = []TopicAssignment{}
	}
	f.records[sd.ID] = sd
	return sd, nil
}

func (f *fakeStore) QuerySubjectData(_ context.Context, filter *QueryFilter, _ ...core.DBExecutor) ([]SubjectData, error) {
	found := make([]SubjectData, 0, len(f.records))
	for _, sd := range f.records {
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
	return found, nil
}

func (f *fakeStore) GetSubjectData(_ context.Context, studentID, subject string, _ ...core.DBExecutor) (SubjectData, error) {
	sd, ok := f.records[storeKey(studentID, subject)]
	if !ok {
		return SubjectData{}, ErrNotFound
	}
	return sd, nil
}

func (f *fakeStore) UpdateSubjectData(_ context.Context, sd SubjectData, _ ...core.DBExecutor) (SubjectData, error) {
	if _, ok := f.records[sd.ID]; !ok {
		return SubjectData{}, ErrNotFound
	}
	f.records[sd.ID] = sd
	f.updates++
	return sd, nil
}

func (f *fakeStore) ListCompletions(_ context.Context, studentID, subject string) ([]time.Time, error) {
	return f.completions[storeKey(studentID, subject)], nil
}

func TestAssignTopicUpsert(t *testing.T) {
	now := time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	store := newFakeStore()
	svc := NewService(store, store)

	sd, err := svc.AssignTopic("stu1", "german", AssignTopic{TopicID: "tpc1", Count: 3})
	if err != nil {
		t.Fatalf("AssignTopic() error = %v", err)
	}
	if len(sd.TopicAssignments) != 1 || sd.TopicAssignments[0] != (TopicAssignment{TopicID: "tpc1", Count: 3}) {
		t.Errorf("AssignTopic() assignments = %v, want [{tpc1 3}]", sd.TopicAssignments)
	}
	if !sd.CreatedAt.Equal(now) || !sd.UpdatedAt.Equal(now) {
		t.Errorf("AssignTopic() timestamps = (%v, %v), want %v", sd.CreatedAt, sd.UpdatedAt, now)
	}

	// the same topic again only changes the count
	if sd, err = svc.AssignTopic("stu1", "german", AssignTopic{TopicID: "tpc1", Count: 5}); err != nil {
		t.Fatalf("AssignTopic() error = %v", err)
	}
	if len(sd.TopicAssignments) != 1 || sd.TopicAssignments[0].Count != 5 {
		t.Errorf("AssignTopic() assignments = %v, want [{tpc1 5}]", sd.TopicAssignments)
	}

	// a second topic appends
	if sd, err = svc.AssignTopic("stu1", "german", AssignTopic{TopicID: "tpc2", Count: 2}); err != nil {
		t.Fatalf("AssignTopic() error = %v", err)
	}
	want := []TopicAssignment{{TopicID: "tpc1", Count: 5}, {TopicID: "tpc2", Count: 2}}
	if len(sd.TopicAssignments) != 2 || sd.TopicAssignments[0] != want[0] || sd.TopicAssignments[1] != want[1] {
		t.Errorf("AssignTopic() assignments = %v, want %v", sd.TopicAssignments, want)
	}

	// subjects do not share records
	if _, err = svc.AssignTopic("stu1", "math", AssignTopic{TopicID: "tpc3", Count: 1}); err != nil {
		t.Fatalf("AssignTopic() error = %v", err)
	}
	german, err := store.GetSubjectData(context.Background(), "stu1", "german")
	if err != nil {
		t.Fatalf("GetSubjectData() error = %v", err)
	}
	if len(german.TopicAssignments) != 2 {
		t.Errorf("german assignments = %v, want 2 entries", german.TopicAssignments)
	}
}

func TestUnassignTopic(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, store)
	if _, err := store.CreateSubjectData(context.Background(), SubjectData{
		StudentID:        "stu1",
		Subject:          "german",
		TopicAssignments: []TopicAssignment{{TopicID: "tpc1", Count: 3}, {TopicID: "tpc2", Count: 2}},
	}); err != nil {
		t.Fatalf("CreateSubjectData() error = %v", err)
	}

	sd, err := svc.UnassignTopic("stu1", "german", "tpc1")
	if err != nil {
		t.Fatalf("UnassignTopic() error = %v", err)
	}
	if len(sd.TopicAssignments) != 1 || sd.TopicAssignments[0] != (TopicAssignment{TopicID: "tpc2", Count: 2}) {
		t.Errorf("UnassignTopic() assignments = %v, want [{tpc2 2}]", sd.TopicAssignments)
	}

	// an unknown topic is a no-op
	if sd, err = svc.UnassignTopic("stu1", "german", "ghost"); err != nil {
		t.Fatalf("UnassignTopic() error = %v", err)
	}
	if len(sd.TopicAssignments) != 1 {
		t.Errorf("UnassignTopic() assignments = %v, want [{tpc2 2}]", sd.TopicAssignments)
	}

	if _, err = svc.UnassignTopic("stu1", "biology", "tpc1"); err != ErrNotFound {
		t.Errorf("UnassignTopic() error = %v, want %v", err, ErrNotFound)
	}
}

func TestRecordCompletion(t *testing.T) {
	now := time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	store := newFakeStore()
	svc := NewService(store, store)
	store.completions[storeKey("stu1", "german")] = []time.Time{
		now, now.AddDate(0, 0, -3), now.AddDate(0, 0, -10),
	}

	if err := svc.RecordCompletion("stu1", "german", now); err != nil {
		t.Fatalf("RecordCompletion() error = %v", err)
	}

	// the first completion creates the record
	sd, err := store.GetSubjectData(context.Background(), "stu1", "german")
	if err != nil {
		t.Fatalf("GetSubjectData() error = %v", err)
	}
	if sd.Statistics.WorksheetsLast7Days != 2 {
		t.Errorf("WorksheetsLast7Days = %d, want 2", sd.Statistics.WorksheetsLast7Days)
	}
	if sd.Statistics.LastWorksheetDate == nil || !sd.Statistics.LastWorksheetDate.Equal(now) {
		t.Errorf("LastWorksheetDate = %v, want %v", sd.Statistics.LastWorksheetDate, now)
	}
	// the cached grade stays lazy
	if sd.Statistics.Grade != nil {
		t.Errorf("Grade = %d, want none", *sd.Statistics.Grade)
	}
}

func TestGetForStudentRefreshesGrade(t *testing.T) {
	now := time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	store := newFakeStore()
	svc := NewService(store, store)
	if _, err := store.CreateSubjectData(context.Background(), SubjectData{StudentID: "stu1", Subject: "german"}); err != nil {
		t.Fatalf("CreateSubjectData() error = %v", err)
	}
	lastCompletion := now.AddDate(0, 0, -2)
	store.completions[storeKey("stu1", "german")] = []time.Time{lastCompletion}

	sd, err := svc.GetForStudent("stu1", "german")
	if err != nil {
		t.Fatalf("GetForStudent() error = %v", err)
	}
	if sd.Statistics.Grade == nil || *sd.Statistics.Grade != 3 {
		t.Errorf("Grade = %v, want 3", sd.Statistics.Grade)
	}
	if sd.Statistics.WorksheetsLast7Days != 1 {
		t.Errorf("WorksheetsLast7Days = %d, want 1", sd.Statistics.WorksheetsLast7Days)
	}
	if sd.Statistics.LastWorksheetDate == nil || !sd.Statistics.LastWorksheetDate.Equal(lastCompletion) {
		t.Errorf("LastWorksheetDate = %v, want %v", sd.Statistics.LastWorksheetDate, lastCompletion)
	}
	if sd.Statistics.GradeUpdatedDate == nil || !sd.Statistics.GradeUpdatedDate.Equal(now) {
		t.Errorf("GradeUpdatedDate = %v, want %v", sd.Statistics.GradeUpdatedDate, now)
	}
	if store.updates != 1 {
		t.Fatalf("updates = %d, want 1", store.updates)
	}

	// a grade refreshed the same day is served as is
	if _, err = svc.GetForStudent("stu1", "german"); err != nil {
		t.Fatalf("GetForStudent() error = %v", err)
	}
	if store.updates != 1 {
		t.Errorf("fresh grade recomputed; updates = %d, want 1", store.updates)
	}
}

func TestRefreshStaleGrades(t *testing.T) {
	now := time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	grade := 2
	today := now
	// 48 hours back is a different calendar day in any timezone
	twoDaysBack := now.AddDate(0, 0, -2)

	store := newFakeStore()
	svc := NewService(store, store)
	ctx := context.Background()
	seed := func(studentID, subject string, stats Statistics) {
		t.Helper()
		if _, err := store.CreateSubjectData(ctx, SubjectData{StudentID: studentID, Subject: subject, Statistics: stats}); err != nil {
			t.Fatalf("CreateSubjectData() error = %v", err)
		}
	}
	seed("stu1", "german", Statistics{Grade: &grade, GradeUpdatedDate: &today})
	seed("stu1", "math", Statistics{Grade: &grade, GradeUpdatedDate: &twoDaysBack})
	seed("stu2", "german", Statistics{})
	store.completions[storeKey("stu1", "math")] = []time.Time{now.AddDate(0, 0, -3)}

	n, err := svc.RefreshStaleGrades()
	if err != nil {
		t.Fatalf("RefreshStaleGrades() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RefreshStaleGrades() = %d, want 2", n)
	}

	// the stale grade is recomputed from the completion history
	math, err := store.GetSubjectData(ctx, "stu1", "math")
	if err != nil {
		t.Fatalf("GetSubjectData() error = %v", err)
	}
	if math.Statistics.Grade == nil || *math.Statistics.Grade != 4 {
		t.Errorf("math grade = %v, want 4", math.Statistics.Grade)
	}
	if math.Statistics.GradeUpdatedDate == nil || !math.Statistics.GradeUpdatedDate.Equal(now) {
		t.Errorf("math GradeUpdatedDate = %v, want %v", math.Statistics.GradeUpdatedDate, now)
	}

	// today's grade is left alone
	german, err := store.GetSubjectData(ctx, "stu1", "german")
	if err != nil {
		t.Fatalf("GetSubjectData() error = %v", err)
	}
	if german.Statistics.Grade == nil || *german.Statistics.Grade != 2 {
		t.Errorf("german grade = %v, want 2", german.Statistics.Grade)
	}

	// no completions: refreshed but still ungraded
	ungraded, err := store.GetSubjectData(ctx, "stu2", "german")
	if err != nil {
		t.Fatalf("GetSubjectData() error = %v", err)
	}
	if ungraded.Statistics.Grade != nil {
		t.Errorf("grade = %d, want none", *ungraded.Statistics.Grade)
	}
}
