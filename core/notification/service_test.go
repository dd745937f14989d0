package notification_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/notification"
	"github.com/trezcool/jamii/core/user"
	"github.com/trezcool/jamii/services/email"
	"github.com/trezcool/jamii/storage/database/sqlx"
	"github.com/trezcool/jamii/tests"
)

func TestCanSee(t *testing.T) {
	owner := &user.User{ID: 1, IsActive: true, Roles: []string{user.RoleSubscriber}}
	moderator := &user.User{ID: 2, IsActive: true, Roles: []string{user.RoleAdministrator}}
	inactiveModerator := &user.User{ID: 3, IsActive: false, Roles: []string{user.RoleAdministrator}}
	inactiveOwner := &user.User{ID: 4, IsActive: false, Roles: []string{user.RoleSubscriber}}

	tests := []struct {
		name    string
		usr     *user.User
		ownerID int
		want    bool
	}{
		{name: "anonymous", usr: nil, ownerID: 1, want: false},
		{name: "owner", usr: owner, ownerID: 1, want: true},
		{name: "someone else's", usr: owner, ownerID: 2, want: false},
		{name: "everyone's", usr: owner, ownerID: 0, want: false},
		{name: "moderator", usr: moderator, ownerID: 1, want: true},
		{name: "moderator: everyone's", usr: moderator, ownerID: 0, want: true},
		{name: "inactive moderator", usr: inactiveModerator, ownerID: 1, want: false},
		{name: "inactive owner", usr: inactiveOwner, ownerID: 4, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, notification.CanSee(tt.usr, tt.ownerID))
		})
	}
}

func TestService(t *testing.T) {
	conf := testutil.NewConfig(t)
	db := testutil.PrepareDB(t, conf)
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewNotificationRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	now := time.Now().UTC().Truncate(time.Second)
	core.NowFunc = func() time.Time { return now }
	defer func() { core.NowFunc = func() time.Time { return time.Now().UTC().Truncate(time.Second) } }()

	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", nil, true)
	ctx := context.Background()
	bPtr := func(b bool) *bool { return &b }

	newService := func(emailOnCreate bool) *notification.Service {
		return notification.NewService(repo, notification.Options{
			EmailOnCreate: emailOnCreate,
			UserSvc:       user.NewService(usrRepo),
			MailSvc:       mailSvc,
		})
	}

	t.Run("Create", func(t *testing.T) {
		tests := []struct {
			name     string
			nn       notification.NewNotification
			email    bool
			wantNew  bool
			wantMail bool
		}{
			{name: "new by default", nn: notification.NewNotification{UserID: hero.ID, ComponentName: "groups", ComponentAction: "group_invite"}, wantNew: true},
			{name: "read", nn: notification.NewNotification{UserID: hero.ID, ComponentName: "groups", IsNew: bPtr(false)}, wantNew: false},
			{name: "emailed", nn: notification.NewNotification{UserID: hero.ID, ComponentName: "activity"}, email: true, wantNew: true, wantMail: true},
			{name: "unknown recipient", nn: notification.NewNotification{UserID: 9999, ComponentName: "activity"}, email: true, wantNew: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mailSvc.SentMessages = nil // reset

				n, err := newService(tt.email).Create(ctx, tt.nn)
				require.NoError(t, err)
				assert.NotZero(t, n.ID)
				assert.Equal(t, tt.wantNew, n.IsNew)
				assert.Equal(t, now, n.DateNotified)

				stored, err := repo.GetNotification(ctx, n.ID)
				require.NoError(t, err)
				assert.Equal(t, n, stored)

				sent := mailSvc.Sent()
				if !tt.wantMail {
					assert.Empty(t, sent)
					return
				}
				require.Len(t, sent, 1)
				assert.Equal(t, hero.Email, sent[0].To[0].Address)
				assert.True(t, strings.HasPrefix(sent[0].TextContent, "Hi Hero,"))
				assert.Contains(t, sent[0].TextContent, "new activity notification")
				assert.Contains(t, sent[0].HTMLContent, "<strong>activity</strong>")
				assert.Equal(t, []string{"notification", "activity"}, sent[0].Categories)
			})
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		svc := newService(false)
		_, err := svc.GetByID(ctx, 0)
		assert.Equal(t, notification.ErrNotFound, err)
		_, err = svc.GetByID(ctx, 9999)
		assert.Equal(t, notification.ErrNotFound, err)
	})

	t.Run("Query & Delete", func(t *testing.T) {
		svc := newService(false)
		notifs, total, err := svc.Query(ctx, notification.QueryFilter{UserID: hero.ID, IsNew: bPtr(true), PerPage: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, notifs, 2)

		deleted, err := svc.Delete(ctx, notifs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, notifs[0], deleted)

		_, err = svc.Delete(ctx, notifs[0].ID)
		assert.Equal(t, notification.ErrNotFound, err)

		_, total, err = svc.Query(ctx, notification.QueryFilter{UserID: hero.ID, IsNew: bPtr(true), PerPage: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestNewNotification_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	nn := notification.NewNotification{UserID: 1, ComponentName: "  groups ", ComponentAction: " invite "}
	require.NoError(t, nn.Validate(validate))
	assert.Equal(t, "groups", nn.ComponentName)
	assert.Equal(t, "invite", nn.ComponentAction)

	nn = notification.NewNotification{ItemID: -1, ComponentName: "   "}
	assert.Error(t, nn.Validate(validate))
}
