package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	. "github.com/trezcool/jamii/apps/api/echo"
	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/avatar"
	"github.com/trezcool/jamii/core/group"
	"github.com/trezcool/jamii/core/notification"
	"github.com/trezcool/jamii/core/user"
	"github.com/trezcool/jamii/services/email"
	"github.com/trezcool/jamii/services/logger"
	"github.com/trezcool/jamii/storage/database/sqlx"
	"github.com/trezcool/jamii/tests"
)

const nsPath = "/buddypress/v1"

var (
	conf      *core.Config
	usrRepo   user.Repository
	grpRepo   group.Repository
	notifRepo notification.Repository
	mailSvc   *emailsvc.ConsoleServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// setup builds the server; configure, if any, adjusts the test config first.
func setup(t *testing.T, configure ...func(*core.Config)) *Server {
	conf = testutil.NewConfig(t)
	conf.Notifications.EmailOnCreate = true
	for _, fn := range configure {
		fn(conf)
	}

	// set up DB & repos
	db := testutil.PrepareDB(t, conf)
	usrRepo = sqlxrepos.NewUserRepository(db)
	grpRepo = sqlxrepos.NewGroupRepository(db)
	notifRepo = sqlxrepos.NewNotificationRepository(db)

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	validate, translator := testutil.NewValidator()

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo)

	return NewServer(ServerDeps{
		Conf:     conf,
		Logger:   logger,
		UserSvc:  usrSvc,
		GroupSvc: group.NewService(grpRepo, 0),
		NotificationSvc: notification.NewService(notifRepo, notification.Options{
			EmailOnCreate: conf.Notifications.EmailOnCreate,
			UserSvc:       usrSvc,
			MailSvc:       mailSvc,
			Logger:        logger,
		}),
		AvatarSvc:  avatar.NewService(conf.Avatar),
		Validate:   validate,
		Translator: translator,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type restErr struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    restErrData `json:"data"`
}

type restErrData struct {
	Status int               `json:"status"`
	Params map[string]string `json:"params,omitempty"`
}

func newRestErr(code, msg string, status int) restErr {
	return restErr{Code: code, Message: msg, Data: restErrData{Status: status}}
}

func newParamsErr(params map[string]string, names string) restErr {
	return restErr{
		Code:    "rest_invalid_param",
		Message: "Invalid parameter(s): " + names,
		Data:    restErrData{Status: http.StatusBadRequest, Params: params},
	}
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

// newUploadRequest posts content as the "file" field of a multipart form.
func newUploadRequest(t *testing.T, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() failed: %v", err)
	}
	if _, err = part.Write(content); err != nil {
		t.Fatalf("part.Write() failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("multipart.Close() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

// jsonBytesEqual compares JSON documents; list order matters.
func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
