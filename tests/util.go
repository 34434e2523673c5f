package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTopic(
	t *testing.T,
	repo topic.Repository,
	subj, shortName, prompt, typ string,
	count int,
	createdBy string,
	createdAt ...time.Time,
) topic.Topic {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tpc := topic.Topic{
		Subject:              subj,
		ShortName:            shortName,
		Prompt:               prompt,
		Type:                 typ,
		DefaultExerciseCount: count,
		CreatedBy:            createdBy,
		CreatedAt:            tstamp,
		UpdatedAt:            tstamp,
	}
	tpc, err := repo.CreateTopic(context.Background(), tpc)
	if err != nil {
		t.Fatalf("CreateTopic() failed: %v", err)
	}
	return tpc
}

func CreateSubjectData(
	t *testing.T,
	repo subject.Repository,
	studentID, subj string,
	assignments []subject.TopicAssignment,
) subject.SubjectData {
	t.Helper()

	sd := subject.SubjectData{
		StudentID:        studentID,
		Subject:          subj,
		TopicAssignments: assignments,
	}
	sd, err := repo.CreateSubjectData(context.Background(), sd)
	if err != nil {
		t.Fatalf("CreateSubjectData() failed: %v", err)
	}
	return sd
}

func CreateWorksheet(
	t *testing.T,
	repo worksheet.Repository,
	studentID, subj, status string,
	exercises []worksheet.Exercise,
	completedAt ...time.Time,
) worksheet.Worksheet {
	t.Helper()

	ws := worksheet.Worksheet{
		StudentID: studentID,
		Subject:   subj,
		Status:    status,
	}
	if len(completedAt) > 0 {
		tstamp := completedAt[0].UTC()
		ws.CompletedAt = &tstamp
	}
	ws, err := repo.CreateWorksheet(context.Background(), ws, exercises)
	if err != nil {
		t.Fatalf("CreateWorksheet() failed: %v", err)
	}
	return ws
}
