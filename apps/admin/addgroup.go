package main

import (
	"context"

	"github.com/trezcool/jamii/core/group"
)

// addGroup creates a group administered by the creator.
func (cli *commandLine) addGroup(name, slug, status, creator string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, creator)
	if err != nil {
		return err
	}

	ng := group.NewGroup{
		CreatorID: usr.ID,
		Name:      name,
		Slug:      slug,
		Status:    status,
	}
	if err = ng.Validate(cli.validate); err != nil {
		return err
	}

	grp, err := cli.grpSvc.Create(ctx, ng)
	if err != nil {
		return err
	}
	logger.Printf("group %q created (id %d)", grp.Slug, grp.ID)
	return nil
}
