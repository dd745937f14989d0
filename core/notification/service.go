package notification

import (
	"context"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")

	mailTemplate = texttmpl.Must(texttmpl.New("notification").Parse(
		`Hi {{.Recipient}},

You have a new {{.Component}} notification{{if .Action}} ({{.Action}}){{end}}.
`))
	mailHTMLTemplate = htmltmpl.Must(htmltmpl.New("notification").Parse(
		`<p>Hi {{.Recipient}},</p>
<p>You have a new <strong>{{.Component}}</strong> notification{{if .Action}} ({{.Action}}){{end}}.</p>
`))
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		GetNotification(ctx context.Context, id int, exec ...core.DBExecutor) (Notification, error)
		// QueryNotifications returns the requested page and the total number of matches.
		QueryNotifications(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Notification, int, error)
		DeleteNotification(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	UserGetter interface {
		GetByID(ctx context.Context, id int) (user.User, error)
	}

	Options struct {
		EmailOnCreate bool
		UserSvc       UserGetter
		MailSvc       core.EmailService
		Logger        core.Logger
	}

	Service struct {
		repo Repository
		opts Options
	}
)

func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, opts: opts}
}

// CanSee reports whether usr may read or remove the notifications of ownerID.
// Inactive users see nothing.
func CanSee(usr *user.User, ownerID int) bool {
	if usr == nil || !usr.IsActive {
		return false
	}
	return usr.CanModerate() || (ownerID != 0 && usr.ID == ownerID)
}

func (svc *Service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	isNew := true
	if nn.IsNew != nil {
		isNew = *nn.IsNew
	}
	n, err := svc.repo.CreateNotification(ctx, Notification{
		UserID:          nn.UserID,
		ItemID:          nn.ItemID,
		SecondaryItemID: nn.SecondaryItemID,
		ComponentName:   nn.ComponentName,
		ComponentAction: nn.ComponentAction,
		DateNotified:    core.NowFunc(),
		IsNew:           isNew,
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	if svc.opts.EmailOnCreate {
		svc.sendNotificationMail(ctx, n)
	}
	return n, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (Notification, error) {
	if id <= 0 {
		return Notification{}, ErrNotFound
	}
	return svc.repo.GetNotification(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Notification, int, error) {
	return svc.repo.QueryNotifications(ctx, filter)
}

// Delete removes the notification and returns it as it was before deletion.
func (svc *Service) Delete(ctx context.Context, id int) (Notification, error) {
	n, err := svc.GetByID(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if err = svc.repo.DeleteNotification(ctx, id); err != nil {
		return Notification{}, errors.Wrap(err, "deleting notification")
	}
	return n, nil
}

func (svc *Service) sendNotificationMail(ctx context.Context, n Notification) {
	if svc.opts.UserSvc == nil || svc.opts.MailSvc == nil {
		return
	}
	usr, err := svc.opts.UserSvc.GetByID(ctx, n.UserID)
	if err != nil || usr.Email == "" {
		if err != nil && svc.opts.Logger != nil {
			svc.opts.Logger.Warn(fmt.Sprintf("notification mail: recipient %d: %v", n.UserID, err), err)
		}
		return
	}

	recipient := usr.Name
	if recipient == "" {
		recipient = usr.Username
	}
	svc.opts.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "New notification",
		Categories:   []string{"notification", n.ComponentName},
		Template:     mailTemplate,
		HTMLTemplate: mailHTMLTemplate,
		TemplateData: map[string]string{
			"Recipient": recipient,
			"Component": n.ComponentName,
			"Action":    n.ComponentAction,
		},
	})
}
