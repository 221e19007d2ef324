package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/auth"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// Unsubscribe token kinds, as they appear in the token.
const (
	UnsubscribeArt     = "art"
	UnsubscribeComment = "comment"
	UnsubscribeLike    = "like"
)

var unsubscribeKinds = map[string]models.NotificationKind{
	UnsubscribeArt:     models.NotificationSharedArt,
	UnsubscribeComment: models.NotificationComment,
	UnsubscribeLike:    models.NotificationLike,
}

func unsubscribeKind(kind models.NotificationKind) string {
	for k, v := range unsubscribeKinds {
		if v == kind {
			return k
		}
	}
	return ""
}

// Options configure a Dispatcher.
type Options struct {
	SiteURL             string
	SecretKey           []byte
	UnsubscribeValidity time.Duration
	MaxRetries          uint64
	RetryBase           time.Duration
}

// Handle reports what Notify did.
type Handle struct {
	Notification *models.Notification
	Emailed      bool
	EmailErr     error
}

// Dispatcher persists notifications and emails recipients who opted in.
type Dispatcher struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      Mailer
	opts        Options
	logger      logging.Logger
}

func NewDispatcher(db *sql.DB, rm repomanager.RepositoryManager, mailer Mailer, opts Options, logger logging.Logger) *Dispatcher {
	if opts.UnsubscribeValidity <= 0 {
		opts.UnsubscribeValidity = 30 * 24 * time.Hour
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	return &Dispatcher{
		db:          db,
		repomanager: rm,
		mailer:      mailer,
		opts:        opts,
		logger:      logger.With("module", "dispatch"),
	}
}

// Notify records ev in the recipient's inbox and emails them when their
// preference for the kind is on. Only a failure to store the notification
// is returned as an error; email failures are logged and reported in the
// handle.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) (Handle, error) {
	var h Handle

	recipient, err := d.repomanager.Users(d.db).GetByID(ctx, ev.RecipientID())
	if err != nil {
		return h, fmt.Errorf("load recipient: %w", err)
	}

	n, err := d.store(ctx, ev)
	if err != nil {
		return h, err
	}
	h.Notification = n

	if !recipient.WantsEmail(ev.Kind()) {
		return h, nil
	}

	msg, err := d.message(recipient, ev, n)
	if err != nil {
		h.EmailErr = err
		d.logger.Error(ctx, "build email", "recipient", recipient.ID, "kind", string(ev.Kind()), "error", err)
		return h, nil
	}

	backoff := retry.WithMaxRetries(d.opts.MaxRetries, retry.NewExponential(d.opts.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.mailer.Send(ctx, msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		h.EmailErr = err
		d.logger.Error(ctx, "send email", "recipient", recipient.ID, "kind", string(ev.Kind()), "error", err)
		return h, nil
	}

	h.Emailed = true
	return h, nil
}

func (d *Dispatcher) store(ctx context.Context, ev Event) (*models.Notification, error) {
	repo := d.repomanager.Notifications(d.db)
	n := ev.notification()

	if ev.Kind() == models.NotificationSharedArt {
		existing, err := repo.FindSharedArt(ctx, n.RecipientID, n.SenderID, *n.ArtPieceID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}

	n.CreatedAt = time.Now().UTC()
	return repo.Create(ctx, n)
}

func (d *Dispatcher) message(recipient *models.User, ev Event, n *models.Notification) (Message, error) {
	token, err := auth.GenerateUnsubscribeToken(recipient.ID, unsubscribeKind(ev.Kind()), d.opts.SecretKey, d.opts.UnsubscribeValidity)
	if err != nil {
		return Message{}, err
	}

	var subject string
	switch ev.Kind() {
	case models.NotificationSharedArt:
		subject = "New art has been shared with you"
	case models.NotificationComment:
		subject = "You have a new comment"
	case models.NotificationLike:
		subject = "Someone liked your art"
	}

	return Message{
		To:             recipient.Email,
		Kind:           ev.Kind(),
		Subject:        subject,
		Body:           ev.Message(),
		TargetURL:      d.opts.SiteURL + ev.Target().Path(n.ID),
		UnsubscribeURL: d.opts.SiteURL + "/unsubscribe/" + token,
	}, nil
}

// Unsubscribe switches off the email preference named by a token from an
// email footer.
func (d *Dispatcher) Unsubscribe(ctx context.Context, token string) (models.NotificationKind, error) {
	claims, err := auth.ParseUnsubscribeToken(token, d.opts.SecretKey)
	if err != nil {
		return "", err
	}

	kind, ok := unsubscribeKinds[claims.Kind]
	if !ok {
		return "", common.ErrInvalidToken
	}

	if err := d.repomanager.Users(d.db).SetEmailPreference(ctx, claims.UserID, kind, false); err != nil {
		return "", err
	}

	d.logger.Info(ctx, "unsubscribed", "user_id", claims.UserID, "kind", claims.Kind)
	return kind, nil
}
