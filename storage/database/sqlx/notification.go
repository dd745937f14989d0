package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/notification"
)

const notificationColumns = `id, user_id, item_id, secondary_item_id, component_name, component_action, date_notified, is_new`

type notificationRepository struct {
	repository
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db core.DB) *notificationRepository {
	return &notificationRepository{repository{db: db}}
}

// trapNoRowsErr maps "no rows" err to notification.ErrNotFound
func (repo notificationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notification.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo notificationRepository) CreateNotification(
	ctx context.Context,
	n notification.Notification,
	exec ...core.DBExecutor,
) (notification.Notification, error) {
	id, err := insert(ctx, repo.getExec(exec),
		`INSERT INTO notification (user_id, item_id, secondary_item_id, component_name, component_action, date_notified, is_new)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.ItemID, n.SecondaryItemID, n.ComponentName, n.ComponentAction, n.DateNotified.UTC(), n.IsNew,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	n.ID = id
	return n, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id int, exec ...core.DBExecutor) (notification.Notification, error) {
	exe := repo.getExec(exec)

	var n notification.Notification
	q := exe.Rebind(`SELECT ` + notificationColumns + ` FROM notification WHERE id = ?`)
	if err := exe.GetContext(ctx, &n, q, id); err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "finding notification")
	}
	n.DateNotified = n.DateNotified.UTC()
	return n, nil
}

// whereClause builds the WHERE clause matching filter.
func whereClause(filter notification.QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if filter.UserID != 0 {
		add("user_id = ?", filter.UserID)
	}
	if filter.ItemID != 0 {
		add("item_id = ?", filter.ItemID)
	}
	if filter.SecondaryItemID != 0 {
		add("secondary_item_id = ?", filter.SecondaryItemID)
	}
	if filter.ComponentName != "" {
		add("component_name = ?", filter.ComponentName)
	}
	if filter.ComponentAction != "" {
		add("component_action = ?", filter.ComponentAction)
	}
	if filter.IsNew != nil {
		add("is_new = ?", *filter.IsNew)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (repo notificationRepository) QueryNotifications(
	ctx context.Context,
	filter notification.QueryFilter,
	exec ...core.DBExecutor,
) ([]notification.Notification, int, error) {
	exe := repo.getExec(exec)
	where, args := whereClause(filter)

	var total int
	if err := exe.GetContext(ctx, &total, exe.Rebind(`SELECT COUNT(*) FROM notification`+where), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting notifications")
	}

	// ordering fields are whitelisted by QueryFilter.Ordering
	ordering := filter.Ordering()
	q := `SELECT ` + notificationColumns + ` FROM notification` + where + ` ORDER BY ` + ordering.String()
	if ordering.Field != notification.OrderByID {
		q += ", id " + ordering.Direction()
	}
	if limit := filter.Limit(); limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset())
	}

	notifs := make([]notification.Notification, 0)
	if err := exe.SelectContext(ctx, &notifs, exe.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting notifications")
	}
	for i := range notifs {
		notifs[i].DateNotified = notifs[i].DateNotified.UTC()
	}
	return notifs, total, nil
}

func (repo notificationRepository) DeleteNotification(ctx context.Context, id int, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	res, err := exe.ExecContext(ctx, exe.Rebind(`DELETE FROM notification WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
