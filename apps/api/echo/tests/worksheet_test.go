package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	echoapi "github.com/denis-rodionov/school-trainer-sub000/apps/api/echo"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
	testutil "github.com/denis-rodionov/school-trainer-sub000/tests"
)

// markdown produced from the dummy generator's default text
const gapMarkdown = `<p>Der Hund <input data-answer="bellt"/> laut.</p>`

func Test_worksheetApi_generate(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Bert", "bertie", "bert@test.de", "", []string{user.RoleStudent}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)

	tpc := testutil.CreateTopic(t, topicRepo, "german", "Verb endings", "Sentences with one verb gap each.", topic.TypeFillGaps, 3, trainer.ID)
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 2}})
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "history", []subject.TopicAssignment{})
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "science", []subject.TopicAssignment{{TopicID: uuid.New().String(), Count: 2}})
	testutil.CreateSubjectData(t, subjectRepo, other.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 1}})

	studentToken := getToken(t, student)
	trainerToken := getToken(t, trainer)
	genBody := func(subj, studentID string) []byte {
		return marchallObj(t, echoapi.GenerateWorksheetRequest{Subject: subj, StudentID: studentID})
	}
	noAssignments := marchallObj(t, httpErr{Error: "no topics assigned for this subject"})

	tests := []httpTest{
		{
			name: "Auth required", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "required fields", token: studentToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject": "this field is required"}),
		},
		{
			name: "no assignments", token: studentToken, body: genBody("math", ""),
			wantCode: http.StatusBadRequest, wantData: noAssignments,
		},
		{
			name: "no topics assigned", token: studentToken, body: genBody("history", ""),
			wantCode: http.StatusBadRequest, wantData: noAssignments,
		},
		{
			name: "assignments outlived their topics", token: studentToken, body: genBody("science", ""),
			wantCode: http.StatusBadRequest, wantData: noAssignments,
		},
		{
			name: "staff must name a student", token: trainerToken, body: genBody("german", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
		},
		{
			name: "students cannot act on others", token: studentToken, body: genBody("german", other.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/worksheets"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	var ws1 worksheet.Worksheet

	t.Run("Generate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", studentToken, genBody("German", ""))
		app.ServeHTTP(rec, req)

		ws1 = decodeWorksheet(t, rec, http.StatusCreated)
		if ws1.ID == "" || ws1.StudentID != student.ID || ws1.Subject != "german" {
			t.Errorf("failed! (ID, StudentID, Subject) = (%q, %q, %q)", ws1.ID, ws1.StudentID, ws1.Subject)
		}
		if ws1.Status != worksheet.StatusPending || ws1.Score != nil || ws1.CompletedAt != nil {
			t.Errorf("failed! (Status, Score, CompletedAt) = (%q, %v, %v)", ws1.Status, ws1.Score, ws1.CompletedAt)
		}
		if len(ws1.Exercises) != 2 {
			t.Fatalf("failed! len(Exercises) = %d; want 2", len(ws1.Exercises))
		}
		for _, ex := range ws1.Exercises {
			if ex.TopicID != tpc.ID || ex.TopicShortName != tpc.ShortName {
				t.Errorf("failed! (TopicID, TopicShortName) = (%q, %q)", ex.TopicID, ex.TopicShortName)
			}
			if ex.Markdown != gapMarkdown {
				t.Errorf("failed! Markdown = %q; want %q", ex.Markdown, gapMarkdown)
			}
			if ex.Order != 0 || ex.Attempt != 0 || ex.AudioURL != "" {
				t.Errorf("failed! (Order, Attempt, AudioURL) = (%d, %d, %q)", ex.Order, ex.Attempt, ex.AudioURL)
			}
			assertGapParts(t, ex)
		}
	})

	t.Run("Pending blocks a second one", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "a pending worksheet already exists for this subject"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", studentToken, genBody("german", ""))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Regenerate replaces the pending worksheet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/regenerate", studentToken, genBody("german", ""))
		app.ServeHTTP(rec, req)

		ws2 := decodeWorksheet(t, rec, http.StatusCreated)
		if ws2.ID == ws1.ID {
			t.Errorf("failed! got the old worksheet back: %q", ws2.ID)
		}
		if len(ws2.Exercises) != 2 {
			t.Errorf("failed! len(Exercises) = %d; want 2", len(ws2.Exercises))
		}

		// the replaced worksheet is gone
		req, rec = newAuthRequest(http.MethodGet, "/v1/worksheets/"+ws1.ID, studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("Trainer generates for a student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", trainerToken, genBody("german", other.ID))
		app.ServeHTTP(rec, req)

		ws := decodeWorksheet(t, rec, http.StatusCreated)
		if ws.StudentID != other.ID {
			t.Errorf("failed! StudentID = %q; want %q", ws.StudentID, other.ID)
		}
		if len(ws.Exercises) != 1 {
			t.Errorf("failed! len(Exercises) = %d; want 1", len(ws.Exercises))
		}
	})
}

func Test_worksheetApi_generateRetries(t *testing.T) {
	// the first generated text has no gap and must be thrown away
	app := setup(t, "Der Hund bellt laut.", "Der Hund ____ (bellt) laut.")

	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)
	student := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	tpc := testutil.CreateTopic(t, topicRepo, "german", "Verb endings", "Sentences with one verb gap each.", topic.TypeFillGaps, 3, trainer.ID)
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 1}})

	body := marchallObj(t, echoapi.GenerateWorksheetRequest{Subject: "german"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", getToken(t, student), body)
	app.ServeHTTP(rec, req)

	ws := decodeWorksheet(t, rec, http.StatusCreated)
	if len(ws.Exercises) != 1 {
		t.Fatalf("failed! len(Exercises) = %d; want 1", len(ws.Exercises))
	}
	if ws.Exercises[0].Markdown != gapMarkdown {
		t.Errorf("failed! Markdown = %q; want %q", ws.Exercises[0].Markdown, gapMarkdown)
	}
}

func Test_worksheetApi_generateKeepsFailing(t *testing.T) {
	// gapless on every attempt
	app := setup(t, "Der Hund bellt laut.")

	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)
	student := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	tpc := testutil.CreateTopic(t, topicRepo, "german", "Verb endings", "Sentences with one verb gap each.", topic.TypeFillGaps, 3, trainer.ID)
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 1}})

	tt := httpTest{
		wantCode: http.StatusInternalServerError,
		wantData: marchallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}),
	}
	body := marchallObj(t, echoapi.GenerateWorksheetRequest{Subject: "german"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", getToken(t, student), body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func Test_worksheetApi_generateDictation(t *testing.T) {
	transcript := "Es regnet heute den ganzen Tag."
	app := setup(t, transcript)

	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)
	student := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	tpc := testutil.CreateTopic(t, topicRepo, "german", "Weather dictation", "A short sentence about the weather.", topic.TypeDictation, 1, trainer.ID)
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 1}})

	body := marchallObj(t, echoapi.GenerateWorksheetRequest{Subject: "german"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", getToken(t, student), body)
	app.ServeHTTP(rec, req)

	ws := decodeWorksheet(t, rec, http.StatusCreated)
	if len(ws.Exercises) != 1 {
		t.Fatalf("failed! len(Exercises) = %d; want 1", len(ws.Exercises))
	}
	ex := ws.Exercises[0]

	audioURLRegex := regexp.MustCompile(`^/media/[0-9a-f-]+\.mp3$`)
	if !audioURLRegex.MatchString(ex.AudioURL) {
		t.Fatalf("failed! AudioURL = %q; want match for %q", ex.AudioURL, audioURLRegex)
	}
	if want := worksheet.DictationMarkdown(transcript, ex.AudioURL); ex.Markdown != want {
		t.Errorf("failed! Markdown = %q; want %q", ex.Markdown, want)
	}
	if len(ex.Parts) != 0 {
		t.Errorf("failed! dictation got tokenized: %v", ex.Parts)
	}

	wantAudio := append([]byte("ID3"), transcript...)
	audio, err := os.ReadFile(filepath.Join(conf.MediaDir(), strings.TrimPrefix(ex.AudioURL, "/media/")))
	if err != nil {
		t.Fatalf("reading audio file failed: %v", err)
	}
	if !bytes.Equal(audio, wantAudio) {
		t.Errorf("failed! audio = %q; want %q", audio, wantAudio)
	}

	t.Run("Audio is served", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, ex.AudioURL)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		if !bytes.Equal(rec.Body.Bytes(), wantAudio) {
			t.Errorf("failed! body = %q; want %q", rec.Body.Bytes(), wantAudio)
		}
	})
}

func Test_worksheetApi_query(t *testing.T) {
	app := setup(t)

	studA := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	studB := testutil.CreateUser(t, usrRepo, "Bert", "bertie", "bert@test.de", "", []string{user.RoleStudent}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)

	completedAt := time.Now().Add(-24 * time.Hour).UTC()
	wsA1 := testutil.CreateWorksheet(t, worksheetRepo, studA.ID, "german", worksheet.StatusPending, nil)
	wsA2 := testutil.CreateWorksheet(t, worksheetRepo, studA.ID, "math", worksheet.StatusCompleted, nil, completedAt)
	wsB1 := testutil.CreateWorksheet(t, worksheetRepo, studB.ID, "german", worksheet.StatusPending, nil)

	tokenA := getToken(t, studA)
	trainerToken := getToken(t, trainer)

	// newest first
	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/worksheets",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Students see only their own", path: "/v1/worksheets", token: tokenA,
			wantData: marchallList(t, wsA2, wsA1),
		},
		{
			name: "Foreign student filter is overridden", path: "/v1/worksheets?student_id=" + studB.ID, token: tokenA,
			wantData: marchallList(t, wsA2, wsA1),
		},
		{
			name: "Trainer queries a student", path: "/v1/worksheets?student_id=" + studB.ID, token: trainerToken,
			wantData: marchallList(t, wsB1),
		},
		{
			name: "Trainer sees everything", path: "/v1/worksheets", token: trainerToken,
			wantData: marchallList(t, wsB1, wsA2, wsA1),
		},
		{
			name: "Filter by status", path: "/v1/worksheets?status=completed", token: tokenA,
			wantData: marchallList(t, wsA2),
		},
		{
			name: "Filter by subject", path: "/v1/worksheets?subject=GERMAN", token: trainerToken,
			wantData: marchallList(t, wsB1, wsA1),
		},
		{
			name: "Unknown subject", path: "/v1/worksheets?subject=biology", token: trainerToken,
			wantData: marchallList(t, []interface{}{}...),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_worksheetApi_getPending(t *testing.T) {
	app := setup(t)

	studA := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)

	tpc := testutil.CreateTopic(t, topicRepo, "german", "Verb endings", "Sentences with one verb gap each.", topic.TypeFillGaps, 3, trainer.ID)
	wsP := testutil.CreateWorksheet(t, worksheetRepo, studA.ID, "german", worksheet.StatusPending,
		[]worksheet.Exercise{{TopicID: tpc.ID, TopicShortName: tpc.ShortName, Markdown: gapMarkdown}})

	tokenA := getToken(t, studA)
	trainerToken := getToken(t, trainer)

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/worksheets/pending",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "subject is required", path: "/v1/worksheets/pending", token: tokenA,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject": "this field is required"}),
		},
		{
			name: "staff must name a student", path: "/v1/worksheets/pending?subject=german", token: trainerToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
		},
		{
			name: "Nothing pending", path: "/v1/worksheets/pending?subject=math", token: tokenA,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Get pending", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/worksheets/pending?subject=german", tokenA)
		app.ServeHTTP(rec, req)

		ws := decodeWorksheet(t, rec, http.StatusOK)
		if ws.ID != wsP.ID {
			t.Errorf("failed! ID = %q; want %q", ws.ID, wsP.ID)
		}
		if len(ws.Exercises) != 1 {
			t.Fatalf("failed! len(Exercises) = %d; want 1", len(ws.Exercises))
		}
		assertGapParts(t, ws.Exercises[0])
	})

	t.Run("Trainer names the student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/worksheets/pending?subject=german&student_id="+studA.ID, trainerToken)
		app.ServeHTTP(rec, req)

		ws := decodeWorksheet(t, rec, http.StatusOK)
		if ws.ID != wsP.ID {
			t.Errorf("failed! ID = %q; want %q", ws.ID, wsP.ID)
		}
	})
}

func Test_worksheetApi_retrieve(t *testing.T) {
	app := setup(t)

	studA := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	studB := testutil.CreateUser(t, usrRepo, "Bert", "bertie", "bert@test.de", "", []string{user.RoleStudent}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)

	tpc := testutil.CreateTopic(t, topicRepo, "german", "Verb endings", "Sentences with one verb gap each.", topic.TypeFillGaps, 3, trainer.ID)
	wsA := testutil.CreateWorksheet(t, worksheetRepo, studA.ID, "german", worksheet.StatusPending,
		[]worksheet.Exercise{{TopicID: tpc.ID, TopicShortName: tpc.ShortName, Markdown: gapMarkdown}})

	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/worksheets/" + wsA.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Unknown worksheet", path: "/v1/worksheets/" + uuid.New().String(), token: getToken(t, studA),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "Hidden from other students", path: "/v1/worksheets/" + wsA.ID, token: getToken(t, studB),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for name, token := range map[string]string{
		"Owner retrieves":   getToken(t, studA),
		"Trainer retrieves": getToken(t, trainer),
	} {
		t.Run(name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/worksheets/"+wsA.ID, token)
			app.ServeHTTP(rec, req)

			ws := decodeWorksheet(t, rec, http.StatusOK)
			if ws.ID != wsA.ID {
				t.Errorf("failed! ID = %q; want %q", ws.ID, wsA.ID)
			}
			if len(ws.Exercises) != 1 {
				t.Fatalf("failed! len(Exercises) = %d; want 1", len(ws.Exercises))
			}
			assertGapParts(t, ws.Exercises[0])
		})
	}
}

func Test_worksheetApi_draftAndSubmit(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	intruder := testutil.CreateUser(t, usrRepo, "Bert", "bertie", "bert@test.de", "", []string{user.RoleStudent}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)

	tpc := testutil.CreateTopic(t, topicRepo, "german", "Verb endings", "Sentences with one verb gap each.", topic.TypeFillGaps, 3, trainer.ID)
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 2}})

	studentToken := getToken(t, student)
	answersBody := func(answers map[string][]string) []byte {
		return marchallObj(t, echoapi.WorksheetAnswersRequest{Answers: answers})
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", studentToken, marchallObj(t, echoapi.GenerateWorksheetRequest{Subject: "german"}))
	app.ServeHTTP(rec, req)
	ws := decodeWorksheet(t, rec, http.StatusCreated)
	if len(ws.Exercises) != 2 {
		t.Fatalf("failed! len(Exercises) = %d; want 2", len(ws.Exercises))
	}
	ex0, ex1 := ws.Exercises[0], ws.Exercises[1]

	t.Run("Strangers get a not found", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/"+ws.ID+"/draft", getToken(t, intruder), answersBody(nil))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Draft saves answers", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/"+ws.ID+"/draft", studentToken,
			answersBody(map[string][]string{ex0.ID: {"belt"}}))
		app.ServeHTTP(rec, req)

		drafted := decodeWorksheet(t, rec, http.StatusOK)
		want := `<p>Der Hund <input value="belt" data-answer="bellt"/> laut.</p>`
		if drafted.Exercises[0].Markdown != want {
			t.Errorf("failed! Markdown = %q; want %q", drafted.Exercises[0].Markdown, want)
		}
		if drafts := worksheet.ExtractDraftAnswers(drafted.Exercises[0].Markdown); len(drafts) != 1 || drafts[0] != "belt" {
			t.Errorf("failed! drafts = %v; want [belt]", drafts)
		}
		// the other exercise is untouched
		if drafted.Exercises[1].Markdown != gapMarkdown {
			t.Errorf("failed! Markdown = %q; want %q", drafted.Exercises[1].Markdown, gapMarkdown)
		}

		stored, err := worksheetRepo.GetWorksheet(context.Background(), ws.ID)
		if err != nil {
			t.Fatalf("GetWorksheet() failed: %v", err)
		}
		if stored.Exercises[0].Markdown != want {
			t.Errorf("failed! stored Markdown = %q; want %q", stored.Exercises[0].Markdown, want)
		}
	})

	t.Run("Submit grades and completes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/"+ws.ID+"/submit", studentToken,
			answersBody(map[string][]string{ex0.ID: {"bellt"}, ex1.ID: {"falsch"}}))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res worksheet.SubmitResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}

		if res.Score != 50 {
			t.Errorf("failed! Score = %d; want 50", res.Score)
		}
		if res.Worksheet.Status != worksheet.StatusCompleted || res.Worksheet.Score == nil || *res.Worksheet.Score != 50 {
			t.Errorf("failed! (Status, Score) = (%q, %v)", res.Worksheet.Status, res.Worksheet.Score)
		}
		if res.Worksheet.CompletedAt == nil {
			t.Fatal("failed! CompletedAt not set")
		}

		if len(res.Results) != 2 {
			t.Fatalf("failed! len(Results) = %d; want 2", len(res.Results))
		}
		r0, r1 := res.Results[0], res.Results[1]
		if r0.ExerciseID != ex0.ID || !r0.Correct {
			t.Errorf("failed! Results[0] = %+v; want correct %s", r0, ex0.ID)
		}
		if len(r0.CorrectAnswers) != 1 || r0.CorrectAnswers[0] != "bellt" || len(r0.GivenAnswers) != 1 || r0.GivenAnswers[0] != "bellt" {
			t.Errorf("failed! Results[0] answers = %+v", r0)
		}
		if r1.ExerciseID != ex1.ID || r1.Correct {
			t.Errorf("failed! Results[1] = %+v; want incorrect %s", r1, ex1.ID)
		}
		if len(r1.GivenAnswers) != 1 || r1.GivenAnswers[0] != "falsch" {
			t.Errorf("failed! Results[1] answers = %+v", r1)
		}

		// the miss is baked in for review, the hit is not
		if got := res.Worksheet.Exercises[1].UserInput; got != "<p>Der Hund falsch laut.</p>" {
			t.Errorf("failed! UserInput = %q", got)
		}
		if got := res.Worksheet.Exercises[0].UserInput; got != "" {
			t.Errorf("failed! UserInput = %q; want empty", got)
		}
		for _, ex := range res.Worksheet.Exercises {
			if ex.Attempt != 1 {
				t.Errorf("failed! Attempt = %d; want 1", ex.Attempt)
			}
		}

		// the completion shows up in the subject statistics
		req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+student.ID+"/subjects/german", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var sd subject.SubjectData
		if err := json.Unmarshal(rec.Body.Bytes(), &sd); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if sd.Statistics.WorksheetsLast7Days != 1 {
			t.Errorf("failed! WorksheetsLast7Days = %d; want 1", sd.Statistics.WorksheetsLast7Days)
		}
		if sd.Statistics.Grade == nil || *sd.Statistics.Grade != 1 {
			t.Errorf("failed! Grade = %v; want 1", sd.Statistics.Grade)
		}
		if sd.Statistics.LastWorksheetDate == nil || !sd.Statistics.LastWorksheetDate.Equal(*res.Worksheet.CompletedAt) {
			t.Errorf("failed! LastWorksheetDate = %v; want %v", sd.Statistics.LastWorksheetDate, res.Worksheet.CompletedAt)
		}
	})

	alreadyCompleted := marchallObj(t, httpErr{Error: "worksheet is already completed"})

	t.Run("Submitting twice fails", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: alreadyCompleted}
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/"+ws.ID+"/submit", studentToken,
			answersBody(map[string][]string{ex0.ID: {"bellt"}}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Drafting a completed worksheet fails", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: alreadyCompleted}
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/"+ws.ID+"/draft", studentToken,
			answersBody(map[string][]string{ex0.ID: {"bellt"}}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_worksheetApi_dictationFlow(t *testing.T) {
	transcript := "Es regnet heute den ganzen Tag."
	app := setup(t, transcript)

	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.de", "", []string{user.RoleTrainer}, true)
	student := testutil.CreateUser(t, usrRepo, "Anna", "annaka", "anna@test.de", "", []string{user.RoleStudent}, true)
	tpc := testutil.CreateTopic(t, topicRepo, "german", "Weather dictation", "A short sentence about the weather.", topic.TypeDictation, 1, trainer.ID)
	testutil.CreateSubjectData(t, subjectRepo, student.ID, "german", []subject.TopicAssignment{{TopicID: tpc.ID, Count: 1}})

	studentToken := getToken(t, student)
	trainerToken := getToken(t, trainer)
	genBody := marchallObj(t, echoapi.GenerateWorksheetRequest{Subject: "german"})

	generate := func(t *testing.T) worksheet.Worksheet {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets", studentToken, genBody)
		app.ServeHTTP(rec, req)
		ws := decodeWorksheet(t, rec, http.StatusCreated)
		if len(ws.Exercises) != 1 {
			t.Fatalf("failed! len(Exercises) = %d; want 1", len(ws.Exercises))
		}
		return ws
	}
	submit := func(t *testing.T, ws worksheet.Worksheet, answer string) worksheet.SubmitResult {
		t.Helper()
		body := marchallObj(t, echoapi.WorksheetAnswersRequest{
			Answers: map[string][]string{ws.Exercises[0].ID: {answer}},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/worksheets/"+ws.ID+"/submit", studentToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res worksheet.SubmitResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return res
	}

	ws1 := generate(t)

	t.Run("A wrong transcription is graded with a diff", func(t *testing.T) {
		res := submit(t, ws1, "Es regnet morgen.")

		if res.Score != 0 {
			t.Errorf("failed! Score = %d; want 0", res.Score)
		}
		r := res.Results[0]
		if r.Correct {
			t.Error("failed! graded correct")
		}
		if len(r.CorrectAnswers) != 1 || r.CorrectAnswers[0] != transcript {
			t.Errorf("failed! CorrectAnswers = %v; want [%s]", r.CorrectAnswers, transcript)
		}
		wantDiff := []worksheet.WordDiff{
			{Expected: "heute", Actual: "morgen"},
			{Expected: "den"},
			{Expected: "ganzen"},
			{Expected: "tag"},
		}
		if len(r.Diff) != len(wantDiff) {
			t.Fatalf("failed! Diff = %v; want %v", r.Diff, wantDiff)
		}
		for i, d := range wantDiff {
			if r.Diff[i] != d {
				t.Errorf("failed! Diff[%d] = %v; want %v", i, r.Diff[i], d)
			}
		}
		if r.Similarity == nil || *r.Similarity <= 0 || *r.Similarity >= 1 {
			t.Errorf("failed! Similarity = %v; want between 0 and 1", r.Similarity)
		}

		// the student's text is kept for review
		if drafts := worksheet.ExtractDraftAnswers(res.Worksheet.Exercises[0].UserInput); len(drafts) != 1 || drafts[0] != "Es regnet morgen." {
			t.Errorf("failed! drafts = %v; want [Es regnet morgen.]", drafts)
		}
	})

	t.Run("Trainers review the miss", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/worksheets/"+ws1.ID+"/review", trainerToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res echoapi.WorksheetReviewResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if res.Worksheet.ID != ws1.ID {
			t.Errorf("failed! ID = %q; want %q", res.Worksheet.ID, ws1.ID)
		}
		if len(res.Exercises) != 1 {
			t.Fatalf("failed! len(Exercises) = %d; want 1", len(res.Exercises))
		}
		rev := res.Exercises[0]
		if len(rev.CorrectAnswers) != 1 || rev.CorrectAnswers[0] != transcript {
			t.Errorf("failed! CorrectAnswers = %v; want [%s]", rev.CorrectAnswers, transcript)
		}
		if rev.Exercise.UserInput == "" {
			t.Error("failed! UserInput not kept")
		}
		if len(rev.Diff) != 4 || rev.Similarity == nil {
			t.Errorf("failed! (Diff, Similarity) = (%v, %v)", rev.Diff, rev.Similarity)
		}
	})

	t.Run("Students cannot review", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/worksheets/"+ws1.ID+"/review", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("A close enough transcription passes", func(t *testing.T) {
		ws2 := generate(t) // the first worksheet is completed, so a new one is allowed
		res := submit(t, ws2, "es regnet heute, den ganzen TAG")

		if res.Score != 100 {
			t.Errorf("failed! Score = %d; want 100", res.Score)
		}
		r := res.Results[0]
		if !r.Correct {
			t.Error("failed! graded incorrect")
		}
		if r.Diff != nil {
			t.Errorf("failed! Diff = %v; want none", r.Diff)
		}
		if r.Similarity == nil || *r.Similarity != 1 {
			t.Errorf("failed! Similarity = %v; want 1", r.Similarity)
		}
	})
}

func decodeWorksheet(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) worksheet.Worksheet {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	var ws worksheet.Worksheet
	if err := json.Unmarshal(rec.Body.Bytes(), &ws); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	return ws
}

func assertGapParts(t *testing.T, ex worksheet.Exercise) {
	t.Helper()
	if len(ex.Parts) != 3 {
		t.Fatalf("failed! len(Parts) = %d; want 3", len(ex.Parts))
	}
	if p := ex.Parts[0]; p.IsGap || p.Text != "Der Hund " {
		t.Errorf("failed! Parts[0] = %+v", p)
	}
	if p := ex.Parts[1]; !p.IsGap || p.CorrectAnswer != "bellt" {
		t.Errorf("failed! Parts[1] = %+v", p)
	}
	if p := ex.Parts[2]; p.IsGap || p.Text != " laut. " {
		t.Errorf("failed! Parts[2] = %+v", p)
	}
}
