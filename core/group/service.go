package group

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
)

var (
	// errors
	ErrNotFound   = errors.New("group not found")
	ErrSlugExists = errors.New("a group with this slug already exists")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroup(ctx context.Context, id int, exec ...core.DBExecutor) (Group, error)
		GetMember(ctx context.Context, groupID, userID int, exec ...core.DBExecutor) (Member, error)
	}

	Service struct {
		repo  Repository
		cache *cache.Cache
	}
)

// NewService returns a Service caching group lookups for ttl (no caching when ttl <= 0).
func NewService(repo Repository, ttl time.Duration) *Service {
	svc := &Service{repo: repo}
	if ttl > 0 {
		svc.cache = cache.New(ttl, 2*ttl)
	}
	return svc
}

func (svc *Service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	grp, err := svc.repo.CreateGroup(ctx, Group{
		CreatorID:   ng.CreatorID,
		Name:        ng.Name,
		Slug:        ng.Slug,
		Description: ng.Description,
		Status:      ng.Status,
		DateCreated: core.NowFunc(),
	})
	if err != nil {
		if errors.Cause(err) == ErrSlugExists {
			return Group{}, core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return Group{}, errors.Wrap(err, "creating group")
	}
	return grp, nil
}

// GetByID resolves a group; ids <= 0 never resolve.
func (svc *Service) GetByID(ctx context.Context, id int) (Group, error) {
	if id <= 0 {
		return Group{}, ErrNotFound
	}

	key := strconv.Itoa(id)
	if svc.cache != nil {
		if grp, ok := svc.cache.Get(key); ok {
			return grp.(Group), nil
		}
	}

	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if svc.cache != nil {
		svc.cache.SetDefault(key, grp)
	}
	return grp, nil
}

// IsAdmin reports whether userID administers groupID.
func (svc *Service) IsAdmin(ctx context.Context, userID, groupID int) (bool, error) {
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting group member")
	}
	return mbr.IsAdmin, nil
}
