package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/notification"
	"github.com/trezcool/jamii/core/user"
)

const (
	notificationsBase = "/notifications"

	headerTotal      = "X-WP-Total"
	headerTotalPages = "X-WP-TotalPages"

	defaultPerPage = 10
	maxPerPage     = 100
)

var (
	notificationSchema = &itemSchema{
		Schema: jsonSchemaDraft,
		Title:  "notification",
		Type:   "object",
		Properties: map[string]property{
			"id": {
				Context:     allContexts,
				Description: "A unique numeric ID for the notification.",
				Type:        "integer",
				ReadOnly:    true,
			},
			"user_id": {
				Context:     allContexts,
				Description: "The ID of the user the notification is addressed to.",
				Type:        "integer",
			},
			"item_id": {
				Context:     []string{contextView, contextEdit},
				Description: "The ID of the item associated with the notification.",
				Type:        "integer",
			},
			"secondary_item_id": {
				Context:     []string{contextView, contextEdit},
				Description: "The ID of the secondary item associated with the notification.",
				Type:        "integer",
			},
			"component": {
				Context:     allContexts,
				Description: "The name of the component that the notification is for.",
				Type:        "string",
			},
			"action": {
				Context:     allContexts,
				Description: "The component action which the notification is related to.",
				Type:        "string",
			},
			"date": {
				Context:     allContexts,
				Description: "The date the notification was created, in the site's timezone.",
				Type:        "string",
				Format:      "date-time",
			},
			"unread": {
				Context:     allContexts,
				Description: "Whether it's a new notification or not.",
				Type:        "boolean",
			},
		},
	}

	orderByValues   = []string{notification.OrderByID, notification.OrderByDateNotified, notification.OrderByComponentName, notification.OrderByComponentAction}
	sortOrderValues = []string{"ASC", "DESC"}
)

type notificationApi struct {
	*namespaceDeps
	svc      *notification.Service
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, deps *namespaceDeps, svc *notification.Service, validate *validator.Validate) {
	api := notificationApi{
		namespaceDeps: deps,
		svc:           svc,
		validate:      validate,
	}

	ng := g.Group(notificationsBase)
	ng.GET("", api.query)
	ng.POST("", api.create)
	ng.OPTIONS("", optionsHandler(newRouteOptions(deps.namespace, notificationSchema,
		endpoint{Methods: []string{http.MethodGet}, Args: queryArgs()},
		endpoint{Methods: []string{http.MethodPost}, Args: createArgs()},
	)))

	dg := ng.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.OPTIONS("", optionsHandler(newRouteOptions(deps.namespace, notificationSchema,
		endpoint{Methods: []string{http.MethodGet}, Args: detailArgs()},
		endpoint{Methods: []string{http.MethodDelete}, Args: detailArgs()},
	)))
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := api.requireUser(ctx, "Sorry, you need to be logged in to see the notifications.")
	if err != nil {
		return err
	}

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	reqCtx := params.Context(contextView)
	isNew := params.Bool("is_new", true)
	filter := notification.QueryFilter{
		UserID:          params.Int("user_id", 0, 0),
		ComponentName:   params.String("component_name", ""),
		ComponentAction: params.String("component_action", ""),
		IsNew:           &isNew,
		OrderBy:         params.Enum("order_by", notification.OrderByID, orderByValues...),
		Ascending:       params.Enum("sort_order", "DESC", sortOrderValues...) == "ASC",
		Page:            params.Int("page", 1, 1),
		PerPage:         params.Int("per_page", defaultPerPage, 1, maxPerPage),
	}
	if err = params.Err(); err != nil {
		return err
	}

	if !notification.CanSee(usr, filter.UserID) {
		return core.NewRESTError(
			"rest_user_cannot_view_notifications",
			"Sorry, you cannot view the notifications.",
			http.StatusInternalServerError,
		)
	}

	notifs, total, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}

	data := make([]map[string]interface{}, 0, len(notifs))
	for _, n := range notifs {
		data = append(data, api.prepare(ctx, n, reqCtx))
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + filter.PerPage - 1) / filter.PerPage
	}
	ctx.Response().Header().Set(headerTotal, strconv.Itoa(total))
	ctx.Response().Header().Set(headerTotalPages, strconv.Itoa(totalPages))
	return ctx.JSON(http.StatusOK, data)
}

func (api *notificationApi) retrieve(ctx echo.Context) error {
	usr, err := api.requireUser(ctx, "Sorry, you need to be logged in to see this notification.")
	if err != nil {
		return err
	}

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	reqCtx := params.Context(contextView)
	if err = params.Err(); err != nil {
		return err
	}

	n, err := api.getObject(ctx)
	if err != nil {
		return err
	}
	if !notification.CanSee(usr, n.UserID) {
		return core.NewRESTError(
			"rest_user_cannot_view_notification",
			"Sorry, you cannot view this notification.",
			http.StatusInternalServerError,
		)
	}

	return ctx.JSON(http.StatusOK, []map[string]interface{}{api.prepare(ctx, n, reqCtx)})
}

func (api *notificationApi) create(ctx echo.Context) error {
	usr, err := api.requireUser(ctx, "Sorry, you need to be logged in to create a notification.")
	if err != nil {
		return err
	}

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	reqCtx := params.Context(contextEdit)
	data := notification.NewNotification{
		UserID:          params.Int("user_id", usr.ID, 1),
		ItemID:          params.Int("item_id", 0, 0),
		SecondaryItemID: params.Int("secondary_item_id", 0, 0),
		ComponentName:   params.String("component_name", ""),
		ComponentAction: params.String("component_action", ""),
	}
	if params.Has("is_new") {
		isNew := params.Bool("is_new", true)
		data.IsNew = &isNew
	}
	if err = params.Err(); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if !notification.CanSee(usr, data.UserID) {
		return core.NewRESTError(
			"rest_user_cannot_create_notification",
			"Cannot create new notification.",
			http.StatusInternalServerError,
		)
	}

	n, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}

	api.logger.Info(fmt.Sprintf("notification %d created for user %d", n.ID, n.UserID), logArgs(usr)...)
	return ctx.JSON(http.StatusOK, []map[string]interface{}{api.prepare(ctx, n, reqCtx)})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	usr, err := api.requireUser(ctx, "Sorry, you need to be logged in to delete this notification.")
	if err != nil {
		return err
	}

	params, err := readParams(ctx)
	if err != nil {
		return err
	}
	reqCtx := params.Context(contextEdit)
	if err = params.Err(); err != nil {
		return err
	}

	n, err := api.getObject(ctx)
	if err != nil {
		return err
	}
	if !notification.CanSee(usr, n.UserID) {
		return core.NewRESTError(
			"rest_user_cannot_delete_notification",
			"Sorry, you cannot delete this notification.",
			http.StatusInternalServerError,
		)
	}

	deleted, err := api.svc.Delete(ctx.Request().Context(), n.ID)
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errInvalidNotificationID
		}
		return errors.Wrap(err, "deleting notification")
	}

	api.logger.Info(fmt.Sprintf("notification %d deleted", deleted.ID), logArgs(usr)...)
	return ctx.JSON(http.StatusOK, api.prepare(ctx, deleted, reqCtx))
}

// Helpers

var errInvalidNotificationID = core.NewRESTError("rest_notification_invalid_id", "Invalid notification id.", http.StatusInternalServerError)

// requireUser returns the caller, rejecting anonymous ones with msg.
func (api *notificationApi) requireUser(ctx echo.Context, msg string) (*user.User, error) {
	usr, err := api.currentUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	if usr == nil {
		return nil, core.NewRESTError("rest_authorization_required", msg, http.StatusUnauthorized)
	}
	return usr, nil
}

// getObject loads the notification of the route.
func (api *notificationApi) getObject(ctx echo.Context) (notification.Notification, error) {
	id, ok := routeID(ctx.Param("id"))
	if !ok {
		return notification.Notification{}, errNoRoute
	}
	n, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return notification.Notification{}, errInvalidNotificationID
		}
		return notification.Notification{}, errors.Wrap(err, "finding notification by ID")
	}
	return n, nil
}

// prepare shapes n for the response, keeping the fields shown in reqCtx.
func (api *notificationApi) prepare(ctx echo.Context, n notification.Notification, reqCtx string) map[string]interface{} {
	data := notificationSchema.filter(map[string]interface{}{
		"id":                n.ID,
		"user_id":           n.UserID,
		"item_id":           n.ItemID,
		"secondary_item_id": n.SecondaryItemID,
		"component":         n.ComponentName,
		"action":            n.ComponentAction,
		"date":              core.FormatDate(n.DateNotified),
		"unread":            n.IsNew,
	}, reqCtx)
	data["_links"] = api.links(ctx, n)
	return data
}

type link struct {
	Href       string `json:"href"`
	Embeddable bool   `json:"embeddable,omitempty"`
}

func (api *notificationApi) links(ctx echo.Context, n notification.Notification) map[string][]link {
	base := ctx.Scheme() + "://" + ctx.Request().Host + "/" + api.namespace
	return map[string][]link{
		"self":       {{Href: fmt.Sprintf("%s%s/%d", base, notificationsBase, n.ID)}},
		"collection": {{Href: base + notificationsBase}},
		"user":       {{Href: fmt.Sprintf("%s/members/%d", base, n.UserID), Embeddable: true}},
	}
}

func queryArgs() map[string]argument {
	return map[string]argument{
		"context":          contextArg(),
		"page":             {Description: "Current page of the collection.", Type: "integer", Default: 1, Minimum: 1},
		"per_page":         {Description: "Maximum number of items to be returned in result set.", Type: "integer", Default: defaultPerPage, Minimum: 1, Maximum: maxPerPage},
		"user_id":          {Description: "Limit result set to items created by a specific user.", Type: "integer", Default: 0},
		"component_name":   {Description: "Limit result set to items with a specific component name.", Type: "string"},
		"component_action": {Description: "Limit result set to items with a specific component action.", Type: "string"},
		"is_new":           {Description: "Limit result set to new items.", Type: "boolean", Default: true},
		"sort_order":       {Description: "Order sort attribute ascending or descending.", Type: "string", Default: "DESC", Enum: sortOrderValues},
		"order_by":         {Description: "Name of the field to order according to.", Type: "string", Default: notification.OrderByID, Enum: orderByValues},
	}
}

func createArgs() map[string]argument {
	return map[string]argument{
		"context":           contextArg(),
		"user_id":           {Description: "The ID of the user the notification is addressed to.", Type: "integer"},
		"item_id":           {Description: "The ID of the item associated with the notification.", Type: "integer"},
		"secondary_item_id": {Description: "The ID of the secondary item associated with the notification.", Type: "integer"},
		"component_name":    {Description: "The name of the component that the notification is for.", Type: "string", Required: true},
		"component_action":  {Description: "The component action which the notification is related to.", Type: "string"},
		"is_new":            {Description: "Whether it's a new notification or not.", Type: "boolean", Default: true},
	}
}

func detailArgs() map[string]argument {
	return map[string]argument{
		"context": contextArg(),
		"id":      {Description: "A unique numeric ID for the notification.", Type: "integer"},
	}
}
