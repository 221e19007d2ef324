package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/artpieces"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/comments"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/grants"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/likes"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/sent"
	"github.com/dmitrijs2005/omnivore/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ArtPieces(db dbx.DBTX) artpieces.Repository
	Sent(db dbx.DBTX) sent.Repository
	Grants(db dbx.DBTX) grants.Repository
	Comments(db dbx.DBTX) comments.Repository
	Likes(db dbx.DBTX) likes.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
