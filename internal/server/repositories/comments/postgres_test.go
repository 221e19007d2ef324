package comments

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var commentCols = []string{"id", "art_piece_id", "sender_id", "recipient_id", "parent_id", "text", "created_at", "updated_at"}

const insertRoot = `(?s)^INSERT\s+INTO\s+comments\s*\(id,\s*art_piece_id,\s*sender_id,\s*recipient_id,\s*text,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,.*\$7\)\s*ON\s+CONFLICT\s*\(art_piece_id,\s*sender_id,\s*recipient_id\)\s*WHERE\s+parent_id\s+IS\s+NULL\s+DO\s+NOTHING$`

func TestCreateRoot_Inserted(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertRoot).
		WithArgs(sqlmock.AnyArg(), "p-1", "u-2", "u-1", "hello", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &models.Comment{ArtPieceID: "p-1", SenderID: "u-2", RecipientID: "u-1", Text: "hello"}
	ok, err := repo.CreateRoot(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, c.ID)
	assert.True(t, c.IsRoot())
}

func TestCreateRoot_Conflict(t *testing.T) {
	for name, setup := range map[string]func(sqlmock.Sqlmock){
		"no rows": func(m sqlmock.Sqlmock) {
			m.ExpectExec(insertRoot).WillReturnResult(sqlmock.NewResult(0, 0))
		},
		"unique violation": func(m sqlmock.Sqlmock) {
			m.ExpectExec(insertRoot).WillReturnError(&pgconn.PgError{Code: "23505"})
		},
	} {
		t.Run(name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			setup(mock)

			ok, err := repo.CreateRoot(context.Background(), &models.Comment{ArtPieceID: "p-1", SenderID: "u-2", RecipientID: "u-1", Text: "x"})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCreateReply(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	root := "c-root"
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+comments\s*\(id,\s*art_piece_id,\s*sender_id,\s*recipient_id,\s*parent_id,.*VALUES\s*\(\$1,.*\$8\)$`).
		WithArgs(sqlmock.AnyArg(), "p-1", "u-1", "u-2", root, "reply", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateReply(context.Background(), &models.Comment{ArtPieceID: "p-1", SenderID: "u-1", RecipientID: "u-2", ParentID: &root, Text: "reply"})
	require.NoError(t, err)
}

func TestCreateReply_RequiresParent(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	err := repo.CreateReply(context.Background(), &models.Comment{ArtPieceID: "p-1"})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestFindRoot(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT\s+c\.id,.*FROM\s+comments\s+c\s+WHERE\s+c\.art_piece_id\s*=\s*\$1\s+AND\s+c\.sender_id\s*=\s*\$2\s+AND\s+c\.recipient_id\s*=\s*\$3\s+AND\s+c\.parent_id\s+IS\s+NULL$`).
		WithArgs("p-1", "u-2", "u-1").
		WillReturnRows(sqlmock.NewRows(commentCols).AddRow("c-1", "p-1", "u-2", "u-1", nil, "hi", at, at))

	c, err := repo.FindRoot(context.Background(), "p-1", "u-2", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
	assert.Nil(t, c.ParentID)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+comments\s+c\s+WHERE\s+c\.id\s*=\s*\$1$`).
		WithArgs("c-x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "c-x")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListBetween_BothDirections(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	at := time.Now().UTC()
	root := "c-1"
	mock.ExpectQuery(`(?s)^SELECT.*WHERE\s+c\.art_piece_id\s*=\s*\$1\s+AND\s+\(\(c\.sender_id\s*=\s*\$2\s+AND\s+c\.recipient_id\s*=\s*\$3\)\s+OR\s+\(c\.sender_id\s*=\s*\$4\s+AND\s+c\.recipient_id\s*=\s*\$5\)\)\s+ORDER\s+BY\s+c\.created_at,\s*c\.id$`).
		WithArgs("p-1", "u-1", "u-2", "u-2", "u-1").
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c-1", "p-1", "u-2", "u-1", nil, "hi", at, at).
			AddRow("c-2", "p-1", "u-1", "u-2", root, "hey", at.Add(time.Second), at.Add(time.Second)))

	got, err := repo.ListBetween(context.Background(), "p-1", "u-1", "u-2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[1].ParentID)
	assert.Equal(t, root, *got[1].ParentID)
}

func TestListForOwner_JoinsLivePieces(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+comments\s+c\s+JOIN\s+art_pieces\s+p\s+ON\s+p\.id\s*=\s*c\.art_piece_id\s+WHERE\s+p\.user_id\s*=\s*\$1\s+AND\s+p\.is_deleted\s*=\s*FALSE`).
		WithArgs("owner").
		WillReturnRows(sqlmock.NewRows(commentCols))

	got, err := repo.ListForOwner(context.Background(), "owner")
	require.NoError(t, err)
	assert.Empty(t, got)
}
