package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jamii/core"
)

// Sorting
const (
	OrderByID              = "id"
	OrderByDateNotified    = "date_notified"
	OrderByComponentName   = "component_name"
	OrderByComponentAction = "component_action"
)

// Notification is a per-user event record, visible to its owner only.
type Notification struct {
	ID              int       `db:"id"`
	UserID          int       `db:"user_id"`
	ItemID          int       `db:"item_id"`
	SecondaryItemID int       `db:"secondary_item_id"`
	ComponentName   string    `db:"component_name"`
	ComponentAction string    `db:"component_action"`
	DateNotified    time.Time `db:"date_notified"` // UTC
	IsNew           bool      `db:"is_new"`
}

// NewNotification contains information needed to create a new Notification.
type NewNotification struct {
	UserID          int    `json:"user_id" form:"user_id" validate:"required,min=1"`
	ItemID          int    `json:"item_id" form:"item_id" validate:"min=0"`
	SecondaryItemID int    `json:"secondary_item_id" form:"secondary_item_id" validate:"min=0"`
	ComponentName   string `json:"component_name" form:"component_name" validate:"required,max=75"`
	ComponentAction string `json:"component_action" form:"component_action" validate:"max=75"`
	IsNew           *bool  `json:"is_new" form:"is_new"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.ComponentName = core.CleanString(nn.ComponentName)
	nn.ComponentAction = core.CleanString(nn.ComponentAction)
	return validate.Struct(nn)
}

// QueryFilter selects notifications; zero values do not filter.
type QueryFilter struct {
	UserID          int
	ItemID          int
	SecondaryItemID int
	ComponentName   string
	ComponentAction string
	IsNew           *bool
	OrderBy         string
	Ascending       bool
	Page            int // 1-based
	PerPage         int
}

func (qf QueryFilter) Ordering() core.DBOrdering {
	field := qf.OrderBy
	switch field {
	case OrderByID, OrderByDateNotified, OrderByComponentName, OrderByComponentAction:
	default:
		field = OrderByID
	}
	return core.DBOrdering{Field: field, Ascending: qf.Ascending}
}

// Limit and Offset page through the result set; Limit is 0 when PerPage is unset.
func (qf QueryFilter) Limit() int {
	if qf.PerPage < 0 {
		return 0
	}
	return qf.PerPage
}

func (qf QueryFilter) Offset() int {
	if qf.Page <= 1 || qf.PerPage <= 0 {
		return 0
	}
	return (qf.Page - 1) * qf.PerPage
}
