package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jamii/apps/api/echo"
	"github.com/trezcool/jamii/core/user"
	"github.com/trezcool/jamii/tests"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	_ = testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "LolC@t123", nil, true)
	_ = testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", nil, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newParamsErr(map[string]string{"username": reqMsg, "password": reqMsg}, "password, username")),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: " HERO ", Password: "LolC@t123"})},
		{name: "by email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: "hero@test.cd", Password: "LolC@t123"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess the token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)
				var respData echoapi.LoginResponse
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respData))
				assert.NotEmpty(t, respData.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", nil, false)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleSubscriber}, true)

	// older than the refresh threshold
	origIat := time.Now().Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix()
	unrefreshableToken, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, hero, origIat))
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, hero), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/auth/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)
				var respData echoapi.LoginResponse
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respData))
				assert.NotEmpty(t, respData.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
