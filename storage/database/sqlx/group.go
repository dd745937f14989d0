package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/group"
)

type groupRepository struct {
	repository
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db core.DB) *groupRepository {
	return &groupRepository{repository{db: db}}
}

// trapNoRowsErr maps "no rows" err to group.ErrNotFound
func (repo groupRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return group.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// CreateGroup stores grp and makes its creator an admin member.
func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		var cnt int
		if err := tx.GetContext(ctx, &cnt, tx.Rebind(`SELECT COUNT(*) FROM "group" WHERE slug = ?`), grp.Slug); err != nil {
			return errors.Wrap(err, "checking slug uniqueness")
		}
		if cnt > 0 {
			return group.ErrSlugExists
		}

		id, err := insert(ctx, tx,
			`INSERT INTO "group" (creator_id, name, slug, description, status, date_created) VALUES (?, ?, ?, ?, ?, ?)`,
			grp.CreatorID, grp.Name, grp.Slug, grp.Description, grp.Status, grp.DateCreated.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting group")
		}
		grp.ID = id

		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO group_member (group_id, user_id, is_admin, is_mod) VALUES (?, ?, ?, ?)`),
			grp.ID, grp.CreatorID, true, false,
		)
		return errors.Wrap(err, "inserting group admin")
	})
	if err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id int, exec ...core.DBExecutor) (group.Group, error) {
	exe := repo.getExec(exec)

	var grp group.Group
	q := exe.Rebind(`SELECT id, creator_id, name, slug, description, status, date_created FROM "group" WHERE id = ?`)
	if err := exe.GetContext(ctx, &grp, q, id); err != nil {
		return group.Group{}, repo.trapNoRowsErr(err, "finding group")
	}
	grp.DateCreated = grp.DateCreated.UTC()
	return grp, nil
}

func (repo groupRepository) GetMember(ctx context.Context, groupID, userID int, exec ...core.DBExecutor) (group.Member, error) {
	exe := repo.getExec(exec)

	var mbr group.Member
	q := exe.Rebind(`SELECT group_id, user_id, is_admin, is_mod FROM group_member WHERE group_id = ? AND user_id = ?`)
	if err := exe.GetContext(ctx, &mbr, q, groupID, userID); err != nil {
		return group.Member{}, repo.trapNoRowsErr(err, "finding group member")
	}
	return mbr, nil
}
