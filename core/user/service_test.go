package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/user"
	"github.com/trezcool/jamii/storage/database/sqlx"
	"github.com/trezcool/jamii/tests"
)

func TestService(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	svc := user.NewService(repo)
	ctx := context.Background()

	var hero user.User

	t.Run("Create", func(t *testing.T) {
		var err error
		hero, err = svc.Create(ctx, user.NewUser{Name: "Hero", Username: "hero", Email: "hero@test.cd", Password: "LolC@t123"})
		require.NoError(t, err)
		assert.NotZero(t, hero.ID)
		assert.True(t, hero.IsActive)
		assert.Equal(t, []string{user.RoleSubscriber}, hero.Roles)
		assert.NoError(t, hero.CheckPassword("LolC@t123"))

		boss, err := svc.Create(ctx, user.NewUser{Name: "Boss", Username: "boss", Email: "boss@test.cd", Password: "LolC@t123", Roles: []string{user.RoleAdministrator}})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleAdministrator}, boss.Roles)
		assert.True(t, boss.CanModerate())

		for _, nu := range []user.NewUser{
			{Name: "Dup", Username: "hero", Email: "dup@test.cd", Password: "LolC@t123"},
			{Name: "Dup", Username: "dup", Email: "hero@test.cd", Password: "LolC@t123"},
		} {
			_, err = svc.Create(ctx, nu)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "err = %v", err)
			assert.Equal(t, user.ErrUserExists, vErr.Err)
		}
	})

	t.Run("GetByUsernameOrEmail", func(t *testing.T) {
		for _, uname := range []string{"hero", " HERO ", "Hero@Test.cd"} {
			usr, err := svc.GetByUsernameOrEmail(ctx, uname)
			require.NoError(t, err, uname)
			assert.Equal(t, hero.ID, usr.ID)
		}
		_, err := svc.GetByUsernameOrEmail(ctx, "nobody")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("GetByID", func(t *testing.T) {
		usr, err := svc.GetByID(ctx, hero.ID)
		require.NoError(t, err)
		assert.Equal(t, hero.Email, usr.Email)

		_, err = svc.GetByID(ctx, 9999)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("SetLastLogin", func(t *testing.T) {
		require.True(t, hero.LastLogin.IsZero())
		usr, err := svc.SetLastLogin(ctx, hero)
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})

	t.Run("ResetPassword", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "HERO@test.cd", "n3wP@ss!"))
		usr, err := svc.GetByID(ctx, hero.ID)
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("n3wP@ss!"))
		assert.Error(t, usr.CheckPassword("LolC@t123"))

		assert.Equal(t, user.ErrNotFound, errors.Cause(svc.ResetPassword(ctx, "nobody", "lol")))
	})
}

func TestUser_CanModerate(t *testing.T) {
	tests := []struct {
		name string
		usr  *user.User
		want bool
	}{
		{name: "nil", usr: nil, want: false},
		{name: "subscriber", usr: &user.User{IsActive: true, Roles: []string{user.RoleSubscriber}}, want: false},
		{name: "editor", usr: &user.User{IsActive: true, Roles: []string{user.RoleEditor}}, want: false},
		{name: "administrator", usr: &user.User{IsActive: true, Roles: []string{user.RoleSubscriber, user.RoleAdministrator}}, want: true},
		{name: "inactive administrator", usr: &user.User{IsActive: false, Roles: []string{user.RoleAdministrator}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.usr.CanModerate())
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	nu := user.NewUser{Name: " Hero ", Username: " HERO ", Email: " Hero@Test.cd ", Password: "LolC@t123"}
	require.NoError(t, nu.Validate(validate))
	assert.Equal(t, "Hero", nu.Name)
	assert.Equal(t, "hero", nu.Username)
	assert.Equal(t, "hero@test.cd", nu.Email)

	nu = user.NewUser{Name: "Hero", Username: "hero", Email: "hero@test.cd", Password: "LolC@t123", Roles: []string{"overlord"}}
	assert.Error(t, nu.Validate(validate))
}

func TestSplitRoles(t *testing.T) {
	assert.Nil(t, user.SplitRoles(""))
	roles := []string{user.RoleAdministrator, user.RoleEditor}
	assert.Equal(t, roles, user.SplitRoles(user.JoinRoles(roles)))
}
