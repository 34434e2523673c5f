package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/denis-rodionov/school-trainer-sub000/apps/api/echo"
	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
	emailsvc "github.com/denis-rodionov/school-trainer-sub000/services/email"
	gensvc "github.com/denis-rodionov/school-trainer-sub000/services/generation"
	speechsvc "github.com/denis-rodionov/school-trainer-sub000/services/speech"
	inmemdb "github.com/denis-rodionov/school-trainer-sub000/storage/database/inmem"
)

var (
	usrRepo       user.Repository
	topicRepo     topic.Repository
	subjectRepo   subject.Repository
	worksheetRepo worksheet.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// setup builds a Server on a fresh in-memory store; the dummy text generator
// cycles through genTexts when given, else a constant fill-gap sentence.
func setup(t *testing.T, genTexts ...string) Server {
	t.Helper()

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	topicRepo = inmemdb.NewTopicRepository(db)
	subjectRepo = inmemdb.NewSubjectRepository(db)
	worksheetRepo = inmemdb.NewWorksheetRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc)
	topicSvc := topic.NewService(topicRepo)
	subjectSvc := subject.NewService(subjectRepo, worksheetRepo)
	worksheetSvc := worksheet.NewService(
		worksheetRepo,
		subjectSvc,
		topicSvc,
		gensvc.NewDummyService(genTexts...),
		speechsvc.NewDummyService(),
		conf,
	)

	// set up server
	return NewServer(
		ServerDeps{
			Conf:         conf,
			Logger:       logger,
			UserSvc:      usrSvc,
			TopicSvc:     topicSvc,
			SubjectSvc:   subjectSvc,
			WorksheetSvc: worksheetSvc,
			Validate:     validate,
			Translator:   translator,
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
