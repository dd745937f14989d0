package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/group"
	"github.com/trezcool/jamii/core/notification"
	"github.com/trezcool/jamii/core/user"
	"github.com/trezcool/jamii/storage/database"
)

// NewConfig returns a test configuration backed by a throwaway sqlite database and upload dir.
func NewConfig(t *testing.T) *core.Config {
	dir := t.TempDir()
	return &core.Config{
		AppName:   "Jamii",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 30 * time.Minute,
			DisableReqLogs:            true,
			BodyLimit:                 "10M",
		},
		Database: core.DatabaseConfig{
			Engine: database.EngineSqlite,
			Name:   filepath.Join(dir, "test.db"),
		},
		REST: core.RESTConfig{Namespace: "buddypress", Version: "v1"},
		Avatar: core.AvatarConfig{
			UploadPath:          filepath.Join(dir, "uploads"),
			URL:                 "http://example.com/uploads",
			FullWidth:           150,
			FullHeight:          150,
			ThumbWidth:          50,
			ThumbHeight:         50,
			OriginalMaxWidth:    450,
			OriginalMaxFilesize: 5120000,
			DefaultGroupURL:     "http://example.com/mystery-group.png",
		},
	}
}

// NewValidator returns a validator with the app's English translations.
func NewValidator() (*validator.Validate, ut.Translator) {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens and migrates the database of conf (a fresh one when conf is nil).
func PrepareDB(t *testing.T, conf ...*core.Config) *sqlx.DB {
	var c *core.Config
	if len(conf) > 0 && conf[0] != nil {
		c = conf[0]
	} else {
		c = NewConfig(t)
	}

	db, err := database.Open(c)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC().Truncate(time.Second)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateGroup creates a public group administered by creatorID.
func CreateGroup(t *testing.T, repo group.Repository, creatorID int, name string) group.Group {
	grp, err := repo.CreateGroup(context.Background(), group.Group{
		CreatorID:   creatorID,
		Name:        name,
		Slug:        group.Slugify(name),
		Status:      group.StatusPublic,
		DateCreated: time.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		t.Fatalf("createGroup() failed: %v", err)
	}
	return grp
}

func CreateNotification(
	t *testing.T,
	repo notification.Repository,
	userID, itemID int,
	component, action string,
	isNew bool,
	notifiedAt ...time.Time,
) notification.Notification {
	tstamp := time.Now().UTC().Truncate(time.Second)
	if len(notifiedAt) > 0 {
		tstamp = notifiedAt[0].UTC()
	}
	n, err := repo.CreateNotification(context.Background(), notification.Notification{
		UserID:          userID,
		ItemID:          itemID,
		ComponentName:   component,
		ComponentAction: action,
		DateNotified:    tstamp,
		IsNew:           isNew,
	})
	if err != nil {
		t.Fatalf("createNotification() failed: %v", err)
	}
	return n
}

// PNG encodes a w x h gradient image.
func PNG(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}
