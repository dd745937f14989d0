package echoapi

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/avatar"
	"github.com/trezcool/jamii/core/group"
	"github.com/trezcool/jamii/core/user"
)

const contextGroupKey = "group"

var coverSchema = &itemSchema{
	Schema: jsonSchemaDraft,
	Title:  "cover",
	Type:   "object",
	Properties: map[string]property{
		"full": {
			Context:     []string{contextView, contextEdit},
			Description: "Full size of the image file.",
			Type:        "string",
		},
		"thumb": {
			Context:     []string{contextView, contextEdit},
			Description: "Thumb size of the image file.",
			Type:        "string",
		},
	},
}

// namespaceDeps is shared by the APIs of the REST namespace.
type namespaceDeps struct {
	namespace string
	logger    core.Logger
	usrSvc    *user.Service
}

func (d *namespaceDeps) currentUser(ctx echo.Context) (*user.User, error) {
	return getContextUser(ctx, d.usrSvc)
}

type coverApi struct {
	*namespaceDeps
	groupSvc  *group.Service
	avatarSvc *avatar.Service
}

func registerCoverAPI(g *echo.Group, deps *namespaceDeps, groupSvc *group.Service, avatarSvc *avatar.Service) {
	api := coverApi{
		namespaceDeps: deps,
		groupSvc:      groupSvc,
		avatarSvc:     avatarSvc,
	}

	cg := g.Group("/groups/:group_id/cover", api.groupMiddleware)
	cg.GET("", api.retrieve)
	cg.POST("", api.create, api.canEditMiddleware)
	cg.DELETE("", api.destroy, api.canEditMiddleware)
	cg.OPTIONS("", optionsHandler(newRouteOptions(deps.namespace, coverSchema,
		endpoint{
			Methods: []string{http.MethodGet},
			Args: map[string]argument{
				"context": contextArg(),
				"type": {
					Description: "Whether you would like the `full` or the smaller `thumb`.",
					Type:        "string",
					Default:     avatar.TypeThumb,
					Enum:        []string{avatar.TypeThumb, avatar.TypeFull},
				},
				"html": {
					Description: "Whether to return an <img> HTML element, vs a raw URL to a group cover.",
					Type:        "boolean",
					Default:     false,
				},
				"alt": {
					Description: "The alt attribute for the <img> element.",
					Type:        "string",
					Default:     "",
				},
			},
		},
		endpoint{Methods: []string{http.MethodPost}, Args: map[string]argument{}},
		endpoint{Methods: []string{http.MethodDelete}, Args: map[string]argument{}},
	)))
}

// Handlers

func (api *coverApi) retrieve(ctx echo.Context) error {
	grp := ctx.Get(contextGroupKey).(group.Group)

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	args := avatar.FetchArgs{
		Object: avatar.ObjectGroup,
		ItemID: grp.ID,
		Type:   params.Enum("type", avatar.TypeThumb, avatar.TypeThumb, avatar.TypeFull),
		HTML:   params.Bool("html", false),
		Alt:    params.String("alt", ""),
	}
	reqCtx := params.Context(contextView)
	if err = params.Err(); err != nil {
		return err
	}

	cover, err := api.avatarSvc.Fetch(args)
	if err != nil {
		return errors.Wrap(err, "fetching group cover")
	}
	if cover == "" {
		return core.NewRESTError(
			"bp_rest_attachments_group_cover_no_image",
			"Sorry, there was a problem fetching this group cover.",
			http.StatusInternalServerError,
		)
	}

	return ctx.JSON(http.StatusOK, []map[string]interface{}{
		coverSchema.filter(map[string]interface{}{"image": cover}, reqCtx),
	})
}

func (api *coverApi) create(ctx echo.Context) error {
	grp := ctx.Get(contextGroupKey).(group.Group)

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	reqCtx := params.Context(contextView)
	if err = params.Err(); err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewRESTError(
			"bp_rest_attachments_group_cover_no_image_file",
			"Sorry, you need an image file to upload.",
			http.StatusInternalServerError,
		).WithCause(err)
	}

	cropped, err := api.uploadCover(grp.ID, fh)
	if err != nil {
		return err
	}

	usr, _ := api.currentUser(ctx)
	api.logger.Info(fmt.Sprintf("group %d: cover uploaded", grp.ID), logArgs(usr)...)

	return ctx.JSON(http.StatusOK, []map[string]interface{}{
		coverSchema.filter(map[string]interface{}{
			"full":  api.avatarSvc.URLFor(cropped.Full),
			"thumb": api.avatarSvc.URLFor(cropped.Thumb),
		}, reqCtx),
	})
}

// uploadCover stores the upload, shrinks it to the UI width, replaces the previous cover and crops the new one.
func (api *coverApi) uploadCover(groupID int, fh *multipart.FileHeader) (avatar.Cropped, error) {
	conf := api.avatarSvc.Config()

	original, err := api.avatarSvc.Upload(fh, avatar.ObjectGroup, groupID)
	if err != nil {
		return avatar.Cropped{}, core.Errorf(
			"bp_rest_attachments_group_cover_upload_error", http.StatusInternalServerError,
			"Upload failed! Error was: %s.", errors.Cause(err).Error(),
		).WithCause(err)
	}

	imageFile, resized, err := api.avatarSvc.Shrink(original, conf.UIAvailableWidth)
	if err != nil {
		_ = os.Remove(original)
		return avatar.Cropped{}, core.Errorf(
			"bp_rest_attachments_group_cover_upload_error", http.StatusInternalServerError,
			"Upload failed! Error was: %s", errors.Cause(err).Error(),
		).WithCause(err)
	}
	if resized {
		_ = os.Remove(original)
	}

	tooSmall, err := api.avatarSvc.IsTooSmall(imageFile)
	if err != nil {
		_ = os.Remove(imageFile)
		return avatar.Cropped{}, errors.Wrap(err, "checking image size")
	}
	if tooSmall {
		_ = os.Remove(imageFile)
		return avatar.Cropped{}, core.Errorf(
			"bp_rest_attachments_group_cover_error", http.StatusInternalServerError,
			"You have selected an image that is smaller than recommended. "+
				"For best results, upload a picture larger than %d x %d pixels.",
			conf.FullWidth, conf.FullHeight,
		)
	}

	if _, err = api.avatarSvc.DeleteExisting(avatar.ObjectGroup, groupID); err != nil {
		_ = os.Remove(imageFile)
		return avatar.Cropped{}, errors.Wrap(err, "deleting existing cover")
	}

	w, h, err := api.avatarSvc.Dimensions(imageFile)
	if err == nil {
		var cropped avatar.Cropped
		cropped, err = api.avatarSvc.Crop(avatar.CropArgs{
			Object:       avatar.ObjectGroup,
			ItemID:       groupID,
			OriginalFile: imageFile,
			Rect:         avatar.CropRect(w, h, conf.FullWidth, conf.FullHeight),
		})
		if err == nil {
			return cropped, nil
		}
	}
	_ = os.Remove(imageFile)
	return avatar.Cropped{}, core.NewRESTError(
		"bp_rest_attachments_group_cover_crop_error",
		"There was a problem cropping the group cover.",
		http.StatusInternalServerError,
	).WithCause(err)
}

func (api *coverApi) destroy(ctx echo.Context) error {
	grp := ctx.Get(contextGroupKey).(group.Group)

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	reqCtx := params.Context(contextView)
	if err = params.Err(); err != nil {
		return err
	}

	deleted, err := api.avatarSvc.DeleteExisting(avatar.ObjectGroup, grp.ID)
	if err != nil || !deleted {
		restErr := core.NewRESTError(
			"bp_rest_attachments_group_cover_delete_failed",
			"Sorry, there was a problem deleting this group cover.",
			http.StatusInternalServerError,
		)
		if err != nil {
			restErr = restErr.WithCause(err)
		}
		return restErr
	}

	cover, err := api.avatarSvc.Fetch(avatar.FetchArgs{Object: avatar.ObjectGroup, ItemID: grp.ID, Type: avatar.TypeFull})
	if err != nil {
		return errors.Wrap(err, "fetching default group cover")
	}

	usr, _ := api.currentUser(ctx)
	api.logger.Info(fmt.Sprintf("group %d: cover deleted", grp.ID), logArgs(usr)...)

	return ctx.JSON(http.StatusOK, []map[string]interface{}{
		coverSchema.filter(map[string]interface{}{"image": cover}, reqCtx),
	})
}

// Middlewares

// groupMiddleware resolves the group of the route and stores it in the context.
func (api *coverApi) groupMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, ok := routeID(ctx.Param("group_id"))
		if !ok {
			return errNoRoute
		}

		grp, err := api.groupSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == group.ErrNotFound {
				return core.NewRESTError("bp_rest_group_invalid_id", "Invalid group id.", http.StatusNotFound)
			}
			return errors.Wrap(err, "finding group by ID")
		}
		ctx.Set(contextGroupKey, grp)
		return next(ctx)
	}
}

// canEditMiddleware lets through moderators and admins of the group.
func (api *coverApi) canEditMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		grp := ctx.Get(contextGroupKey).(group.Group)

		usr, err := api.currentUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if usr == nil {
			return core.NewRESTError(
				"bp_rest_authorization_required",
				"Sorry, you need to be logged in to edit this group cover.",
				http.StatusUnauthorized,
			)
		}
		if usr.CanModerate() {
			return next(ctx)
		}

		isAdmin, err := api.groupSvc.IsAdmin(ctx.Request().Context(), usr.ID, grp.ID)
		if err != nil {
			return errors.Wrap(err, "checking group admin")
		}
		if !isAdmin || !usr.IsActive {
			return core.NewRESTError(
				"bp_rest_authorization_required",
				"Sorry, you cannot edit this group cover.",
				http.StatusForbidden,
			)
		}
		return next(ctx)
	}
}

// routeID parses a numeric route parameter.
// Ids too large for an int match the route but resolve to nothing (0).
func routeID(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, true
	}
	return id, true
}

// logArgs identifies the caller, if any, to the logger.
func logArgs(usr *user.User) []interface{} {
	if usr == nil {
		return nil
	}
	return []interface{}{*usr}
}
