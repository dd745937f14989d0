package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/user"
	"github.com/trezcool/jamii/tests"
)

const defaultCover = "http://example.com/mystery-group.png"

type coverImage struct {
	Image string `json:"image"`
}

type coverUpload struct {
	Full  string `json:"full"`
	Thumb string `json:"thumb"`
}

func coverPath(groupID interface{}) string {
	return fmt.Sprintf("%s/groups/%v/cover", nsPath, groupID)
}

func Test_coverApi_retrieve(t *testing.T) {
	app := setup(t)

	creator := testutil.CreateUser(t, usrRepo, "Creator", "creator", "creator@test.cd", "", nil, true)
	grp := testutil.CreateGroup(t, grpRepo, creator.ID, "Jamii Devs")

	withQuery := func(params map[string]string) string {
		v := make(url.Values)
		for key, val := range params {
			v.Set(key, val)
		}
		return coverPath(grp.ID) + "?" + v.Encode()
	}
	img := func(alt string) string {
		return fmt.Sprintf(
			`<img loading="lazy" src="%s" class="avatar group-%d-avatar avatar-150 photo" width="150" height="150" alt="%s" />`,
			defaultCover, grp.ID, alt,
		)
	}

	tests := []httpTest{
		{name: "default cover", path: coverPath(grp.ID), wantData: marchallList(t, coverImage{Image: defaultCover})},
		{
			name: "default cover (logged in)", path: coverPath(grp.ID), token: getToken(t, creator),
			wantData: marchallList(t, coverImage{Image: defaultCover}),
		},
		{
			name: "html", path: withQuery(map[string]string{"type": "full", "html": "true", "alt": "Jamii"}),
			wantData: marchallList(t, coverImage{Image: img("Jamii")}),
		},
		{
			name: "html (escaped alt)", path: withQuery(map[string]string{"type": "full", "html": "1", "alt": `"><b>`}),
			wantData: marchallList(t, coverImage{Image: img("&#34;&gt;&lt;b&gt;")}),
		},
		{
			name: "invalid type", path: withQuery(map[string]string{"type": "lol"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newParamsErr(map[string]string{"type": "type is not one of thumb, full."}, "type")),
		},
		{
			name: "invalid html & context", path: withQuery(map[string]string{"html": "lol", "context": "lol"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newParamsErr(map[string]string{
				"html":    "html is not of type boolean.",
				"context": "context is not one of view, embed, edit.",
			}, "context, html")),
		},
		{
			name: "unknown group", path: coverPath(9999), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newRestErr("bp_rest_group_invalid_id", "Invalid group id.", http.StatusNotFound)),
		},
		{
			name: "id out of range", path: coverPath("99999999999999999999"), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newRestErr("bp_rest_group_invalid_id", "Invalid group id.", http.StatusNotFound)),
		},
		{
			name: "non numeric id", path: coverPath("lol"), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newRestErr("rest_no_route", "No route was found matching the URL and request method.", http.StatusNotFound)),
		},
		{
			name: "unknown route", path: nsPath + "/lol", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newRestErr("rest_no_route", "No route was found matching the URL and request method.", http.StatusNotFound)),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_coverApi_permissions(t *testing.T) {
	app := setup(t)

	creator := testutil.CreateUser(t, usrRepo, "Creator", "creator", "creator@test.cd", "", nil, true)
	member := testutil.CreateUser(t, usrRepo, "Member", "member", "member@test.cd", "", []string{user.RoleEditor}, true)
	grp := testutil.CreateGroup(t, grpRepo, creator.ID, "Jamii Devs")

	errLogin := newRestErr("bp_rest_authorization_required", "Sorry, you need to be logged in to edit this group cover.", http.StatusUnauthorized)
	errForbidden := newRestErr("bp_rest_authorization_required", "Sorry, you cannot edit this group cover.", http.StatusForbidden)

	tests := []httpTest{
		{name: "upload: login required", method: http.MethodPost, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errLogin)},
		{name: "delete: login required", method: http.MethodDelete, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errLogin)},
		{name: "upload: group admin required", method: http.MethodPost, token: getToken(t, member), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "delete: group admin required", method: http.MethodDelete, token: getToken(t, member), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "upload: unknown group", method: http.MethodPost, path: coverPath(9999), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newRestErr("bp_rest_group_invalid_id", "Invalid group id.", http.StatusNotFound)),
		},
		{
			name: "upload: no file", method: http.MethodPost, token: getToken(t, creator), wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, newRestErr("bp_rest_attachments_group_cover_no_image_file", "Sorry, you need an image file to upload.", http.StatusInternalServerError)),
		},
		{
			name: "delete: nothing to delete", method: http.MethodDelete, token: getToken(t, creator), wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, newRestErr("bp_rest_attachments_group_cover_delete_failed", "Sorry, there was a problem deleting this group cover.", http.StatusInternalServerError)),
		},
	}
	for _, tt := range tests {
		if tt.path == "" {
			tt.path = coverPath(grp.ID)
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_coverApi_upload(t *testing.T) {
	app := setup(t)

	creator := testutil.CreateUser(t, usrRepo, "Creator", "creator", "creator@test.cd", "", nil, true)
	moderator := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdministrator}, true)
	grp := testutil.CreateGroup(t, grpRepo, creator.ID, "Jamii Devs")
	groupDir := filepath.Join(conf.Avatar.UploadPath, "group-avatars", fmt.Sprint(grp.ID))
	uploadsURL := fmt.Sprintf("%s/group-avatars/%d/", conf.Avatar.URL, grp.ID)

	tests := []struct {
		name     string
		token    string
		filename string
		content  []byte
		wantCode int
		wantErr  restErr
	}{
		{
			name: "not an image", token: getToken(t, creator), filename: "notes.txt", content: []byte("hello, world"),
			wantCode: http.StatusInternalServerError,
			wantErr: newRestErr("bp_rest_attachments_group_cover_upload_error",
				"Upload failed! Error was: please upload only JPG, GIF or PNG photos.", http.StatusInternalServerError),
		},
		{
			name: "too small", token: getToken(t, creator), filename: "small.png", content: testutil.PNG(t, 100, 100),
			wantCode: http.StatusInternalServerError,
			wantErr: newRestErr("bp_rest_attachments_group_cover_error",
				"You have selected an image that is smaller than recommended. For best results, upload a picture larger than 150 x 150 pixels.",
				http.StatusInternalServerError),
		},
		{name: "group admin", token: getToken(t, creator), filename: "cover.png", content: testutil.PNG(t, 600, 400), wantCode: http.StatusOK},
		{name: "moderator (replaces existing)", token: getToken(t, moderator), filename: "cover two.png", content: testutil.PNG(t, 300, 200), wantCode: http.StatusOK},
		{name: "file named like a cover", token: getToken(t, creator), filename: "holiday-bpfull.png", content: testutil.PNG(t, 300, 200), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, coverPath(grp.ID), tt.token, tt.filename, tt.content)
			app.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: marchallObj(t, tt.wantErr)}, rec)
				// nothing is left behind
				matches, _ := filepath.Glob(filepath.Join(groupDir, "*"))
				assert.Empty(t, matches)
				return
			}

			var data []coverUpload
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
			require.Len(t, data, 1)
			assert.True(t, strings.HasPrefix(data[0].Full, uploadsURL), data[0].Full)
			assert.True(t, strings.HasSuffix(data[0].Full, "-bpfull.png"), data[0].Full)
			assert.True(t, strings.HasPrefix(data[0].Thumb, uploadsURL), data[0].Thumb)
			assert.True(t, strings.HasSuffix(data[0].Thumb, "-bpthumb.png"), data[0].Thumb)

			// only the new full & thumb remain
			matches, err := filepath.Glob(filepath.Join(groupDir, "*"))
			require.NoError(t, err)
			assert.Len(t, matches, 2)
			for _, m := range matches {
				_, err = os.Stat(m)
				assert.NoError(t, err)
			}

			// the new cover is served
			req, rec = newRequest(http.MethodGet, coverPath(grp.ID)+"?type=full")
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, coverImage{Image: data[0].Full})}, rec)
		})
	}

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, coverPath(grp.ID), getToken(t, creator))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, coverImage{Image: defaultCover})}, rec)

		matches, _ := filepath.Glob(filepath.Join(groupDir, "*"))
		assert.Empty(t, matches)

		req, rec = newRequest(http.MethodGet, coverPath(grp.ID))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, coverImage{Image: defaultCover})}, rec)
	})
}

func Test_coverApi_noImage(t *testing.T) {
	app := setup(t, func(c *core.Config) {
		c.Avatar.DefaultGroupURL = ""
		c.Avatar.OriginalMaxFilesize = 1024
	})

	creator := testutil.CreateUser(t, usrRepo, "Creator", "creator", "creator@test.cd", "", nil, true)
	grp := testutil.CreateGroup(t, grpRepo, creator.ID, "Jamii Devs")
	groupDir := filepath.Join(conf.Avatar.UploadPath, "group-avatars", fmt.Sprint(grp.ID))

	t.Run("no cover and no default", func(t *testing.T) {
		for _, path := range []string{coverPath(grp.ID), coverPath(grp.ID) + "?type=full&html=true"} {
			req, rec := newRequest(http.MethodGet, path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{
				wantCode: http.StatusInternalServerError,
				wantData: marchallObj(t, newRestErr("bp_rest_attachments_group_cover_no_image",
					"Sorry, there was a problem fetching this group cover.", http.StatusInternalServerError)),
			}, rec)
		}
	})

	t.Run("file too big", func(t *testing.T) {
		content := testutil.PNG(t, 600, 400)
		require.Greater(t, len(content), 1024)

		req, rec := newUploadRequest(t, coverPath(grp.ID), getToken(t, creator), "cover.png", content)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusInternalServerError,
			wantData: marchallObj(t, newRestErr("bp_rest_attachments_group_cover_upload_error",
				"Upload failed! Error was: that photo is too big, please upload one smaller than 1 KB.",
				http.StatusInternalServerError)),
		}, rec)

		matches, _ := filepath.Glob(filepath.Join(groupDir, "*"))
		assert.Empty(t, matches)
	})
}

func Test_coverApi_options(t *testing.T) {
	app := setup(t)

	creator := testutil.CreateUser(t, usrRepo, "Creator", "creator", "creator@test.cd", "", nil, true)
	grp := testutil.CreateGroup(t, grpRepo, creator.ID, "Jamii Devs")

	req, rec := newRequest(http.MethodOptions, coverPath(grp.ID))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, DELETE", rec.Header().Get("Allow"))

	var data struct {
		Namespace string `json:"namespace"`
		Endpoints []struct {
			Methods []string               `json:"methods"`
			Args    map[string]interface{} `json:"args"`
		} `json:"endpoints"`
		Schema struct {
			Title      string                            `json:"title"`
			Properties map[string]map[string]interface{} `json:"properties"`
		} `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, "buddypress/v1", data.Namespace)
	assert.Equal(t, "cover", data.Schema.Title)
	assert.Len(t, data.Schema.Properties, 2)
	require.Len(t, data.Endpoints, 3)
	assert.Contains(t, data.Endpoints[0].Args, "context")
	assert.Contains(t, data.Endpoints[0].Args, "type")
	assert.Contains(t, data.Endpoints[0].Args, "html")
	assert.Contains(t, data.Endpoints[0].Args, "alt")
}
