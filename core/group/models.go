package group

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jamii/core"
)

// Group statuses
const (
	StatusPublic  = "public"
	StatusPrivate = "private"
	StatusHidden  = "hidden"
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

type Group struct {
	ID          int       `json:"id" db:"id"`
	CreatorID   int       `json:"creator_id" db:"creator_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	DateCreated time.Time `json:"date_created" db:"date_created"` // UTC
}

// Member is a user's membership in a group.
type Member struct {
	GroupID int  `db:"group_id"`
	UserID  int  `db:"user_id"`
	IsAdmin bool `db:"is_admin"`
	IsMod   bool `db:"is_mod"`
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	CreatorID   int    `json:"creator_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=public private hidden"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.Slug = Slugify(ng.Slug)
	if ng.Slug == "" {
		ng.Slug = Slugify(ng.Name)
	}
	if ng.Status == "" {
		ng.Status = StatusPublic
	}
	return validate.Struct(ng)
}

// Slugify lowers s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	s = slugInvalidChars.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}
