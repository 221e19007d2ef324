package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/dispatch"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/omnivore/internal/server/storetest"
)

// recorder collects events and optionally forwards them.
type recorder struct {
	mu     sync.Mutex
	events []dispatch.Event
	next   Notifier
}

func (r *recorder) Notify(ctx context.Context, ev dispatch.Event) (dispatch.Handle, error) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if r.next != nil {
		return r.next.Notify(ctx, ev)
	}
	return dispatch.Handle{}, nil
}

func (r *recorder) kinds() []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind())
	}
	return out
}

type env struct {
	t        *testing.T
	db       *sql.DB
	rm       repomanager.RepositoryManager
	events   *recorder
	dist     *DistributionService
	threads  *ThreadService
	likes    *LikeService
	inbox    *NotificationService
	gallery  *GalleryService
	selector *Selector
}

// newEnv wires every service against a fresh database. Events are recorded
// and stored through a real dispatcher with a log mailer.
func newEnv(t *testing.T) *env {
	t.Helper()
	db, rm := storetest.Open(t)
	logger := logging.Discard()

	d := dispatch.NewDispatcher(db, rm, dispatch.NewLogMailer(logger), dispatch.Options{
		SiteURL:   "https://omnivore.example",
		SecretKey: []byte("secret"),
	}, logger)
	rec := &recorder{next: d}

	selector := NewSelector(NewRandomSource(7))
	ledger := NewLedger(rm, selector, logger)

	return &env{
		t:        t,
		db:       db,
		rm:       rm,
		events:   rec,
		dist:     NewDistributionService(db, rm, ledger, selector, rec, logger),
		threads:  NewThreadService(db, rm, rec, logger),
		likes:    NewLikeService(db, rm, rec, logger),
		inbox:    NewNotificationService(db, rm),
		gallery:  NewGalleryService(db, rm, 0, logger),
		selector: selector,
	}
}

func (e *env) user(name string, mutate ...func(*models.User)) *models.User {
	return storetest.User(e.t, e.db, e.rm, name, mutate...)
}

func (e *env) piece(owner *models.User, name string, mutate ...func(*models.ArtPiece)) *models.ArtPiece {
	return storetest.Piece(e.t, e.db, e.rm, owner, name, mutate...)
}

func (e *env) send(user *models.User, piece *models.ArtPiece, source models.SentSource) {
	storetest.Send(e.t, e.db, e.rm, user, piece, source)
}

func (e *env) count(query string, args ...any) int {
	return storetest.Count(e.t, e.db, query, args...)
}

func paused(u *models.User) { u.ReceiveArtPaused = true }

func welcome(weight int) func(*models.ArtPiece) {
	return func(p *models.ArtPiece) {
		p.WelcomeEligible = true
		p.WelcomeWeight = weight
	}
}

func unapproved(p *models.ArtPiece) { p.Approved = false }
