package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/dbx"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareWeekly_SendsOnceThenPoolEmpty(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")
	p1 := e.piece(y, "Harbour")

	got, err := e.dist.ShareWeekly(ctx, x.ID, ShareOptions{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p1.ID, got.ID)

	rec, err := e.rm.Sent(e.db).Get(ctx, x.ID, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceWeekly, rec.Source)

	u, err := e.rm.Users(e.db).GetByID(ctx, x.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastArtSentAt)

	got, err = e.dist.ShareWeekly(ctx, x.ID, ShareOptions{})
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, []models.NotificationKind{models.NotificationSharedArt}, e.events.kinds())
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND kind = 'shared_art'`, x.ID))
}

func TestShareWeekly_PausedNeverSends(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x", paused)
	y := e.user("y")
	for _, name := range []string{"a", "b", "c"} {
		e.piece(y, name)
	}

	for i := 0; i < 3; i++ {
		got, err := e.dist.ShareWeekly(ctx, x.ID, ShareOptions{})
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Zero(t, e.count(`SELECT COUNT(*) FROM sent_art_pieces WHERE user_id = ?`, x.ID))
	assert.Empty(t, e.events.kinds())
}

func TestShareWeekly_SkipsOwnUnapprovedDeletedAndReceived(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")
	e.piece(x, "own")
	e.piece(y, "draft", unapproved)
	gone := e.piece(y, "gone")
	require.NoError(t, e.rm.ArtPieces(e.db).SoftDelete(ctx, gone.ID, y.ID, "", gone.CreatedAt))
	seen := e.piece(y, "seen")
	e.send(x, seen, models.SourceManual)

	got, err := e.dist.ShareWeekly(ctx, x.ID, ShareOptions{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShareWeekly_DryRunRecordsNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	p := e.piece(e.user("y"), "Harbour")

	got, err := e.dist.ShareWeekly(ctx, x.ID, ShareOptions{DryRun: true})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Zero(t, e.count(`SELECT COUNT(*) FROM sent_art_pieces`))
	assert.Empty(t, e.events.kinds())
}

func TestShareWeekly_UnknownUser(t *testing.T) {
	e := newEnv(t)

	_, err := e.dist.ShareWeekly(context.Background(), "nobody", ShareOptions{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestShareWeekly_ConcurrentCallsNeverDoubleSend(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")
	for i := 0; i < 4; i++ {
		e.piece(y, strings.Repeat("p", i+1))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.dist.ShareWeekly(ctx, x.ID, ShareOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, e.count(`SELECT COUNT(*) FROM sent_art_pieces WHERE user_id = ?`, x.ID))
	assert.Equal(t, 4, e.count(`SELECT COUNT(DISTINCT art_piece_id) FROM sent_art_pieces WHERE user_id = ?`, x.ID))
}

func TestEnsureWelcomeGift_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")
	e.piece(y, "plain")
	w1 := e.piece(y, "w1", welcome(1))
	w2 := e.piece(y, "w2", welcome(3))

	first, err := e.dist.EnsureWelcomeGift(ctx, x.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Piece)
	assert.True(t, first.Created)
	assert.Contains(t, []string{w1.ID, w2.ID}, first.Piece.ID)

	for i := 0; i < 5; i++ {
		again, err := e.dist.EnsureWelcomeGift(ctx, x.ID)
		require.NoError(t, err)
		require.NotNil(t, again.Piece)
		assert.Equal(t, first.Piece.ID, again.Piece.ID)
		assert.False(t, again.Created)
	}

	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM welcome_grants WHERE user_id = ?`, x.ID))
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM sent_art_pieces WHERE user_id = ? AND source = 'welcome'`, x.ID))
	assert.Empty(t, e.events.kinds())
}

func TestEnsureWelcomeGift_ConcurrentSingleGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")
	for _, name := range []string{"w1", "w2", "w3", "w4"} {
		e.piece(y, name, welcome(2))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pieces  = map[string]int{}
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.dist.EnsureWelcomeGift(ctx, x.ID)
			if !assert.NoError(t, err) || !assert.NotNil(t, res.Piece) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			pieces[res.Piece.ID]++
			if res.Created {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, pieces, 1)
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM welcome_grants WHERE user_id = ?`, x.ID))
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM sent_art_pieces WHERE user_id = ? AND source = 'welcome'`, x.ID))
}

func TestEnsureWelcomeGift_EmptyPoolRetriedLater(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")

	res, err := e.dist.EnsureWelcomeGift(ctx, x.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Piece)
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM welcome_grants WHERE user_id = ? AND sent_art_piece_id IS NULL`, x.ID))

	w := e.piece(y, "late", welcome(1))

	res, err = e.dist.EnsureWelcomeGift(ctx, x.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Piece)
	assert.Equal(t, w.ID, res.Piece.ID)
	assert.True(t, res.Created)
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM welcome_grants WHERE user_id = ?`, x.ID))
}

func TestEnsureWelcomeGift_PausedStillGranted(t *testing.T) {
	e := newEnv(t)

	x := e.user("x", paused)
	w := e.piece(e.user("y"), "w", welcome(2))

	res, err := e.dist.EnsureWelcomeGift(context.Background(), x.ID)
	require.NoError(t, err)
	assert.True(t, res.Paused)
	require.NotNil(t, res.Piece)
	assert.Equal(t, w.ID, res.Piece.ID)
}

func TestSubmitPiece_GivesReciprocalGift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	gift := e.piece(e.user("y"), "gift")

	res, err := e.dist.SubmitPiece(ctx, x.ID, NewPiece{
		ArtistName: "  X  ",
		PieceName:  "Sunrise",
		Link:       "https://example.com/sunrise",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Piece)
	assert.Equal(t, "X", res.Piece.ArtistName)
	assert.True(t, res.Piece.Approved)
	assert.NotEmpty(t, res.Piece.PublicID)
	require.NotNil(t, res.Gift)
	assert.Equal(t, gift.ID, res.Gift.ID)
	assert.False(t, res.Paused)

	rec, err := e.rm.Sent(e.db).Get(ctx, x.ID, gift.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceReciprocal, rec.Source)

	shown, err := e.dist.ReciprocalGift(ctx, x.ID, gift.PublicID)
	require.NoError(t, err)
	require.NotNil(t, shown)
	assert.Equal(t, gift.ID, shown.ID)
	assert.Empty(t, e.events.kinds())
}

func TestSubmitPiece_PausedGetsNoGift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x", paused)
	e.piece(e.user("y"), "gift")

	res, err := e.dist.SubmitPiece(ctx, x.ID, NewPiece{ArtistName: "X", PieceName: "Night"})
	require.NoError(t, err)
	require.NotNil(t, res.Piece)
	assert.Nil(t, res.Gift)
	assert.True(t, res.Paused)

	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM art_pieces WHERE user_id = ?`, x.ID))
	assert.Zero(t, e.count(`SELECT COUNT(*) FROM reciprocal_grants`))
	assert.Zero(t, e.count(`SELECT COUNT(*) FROM sent_art_pieces WHERE user_id = ?`, x.ID))
}

func TestSubmitPiece_EmptyPoolStillStoresPiece(t *testing.T) {
	e := newEnv(t)

	x := e.user("x")
	res, err := e.dist.SubmitPiece(context.Background(), x.ID, NewPiece{ArtistName: "X", PieceName: "Alone"})
	require.NoError(t, err)
	require.NotNil(t, res.Piece)
	assert.Nil(t, res.Gift)
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM reciprocal_grants WHERE trigger_art_piece_id = ? AND sent_art_piece_id IS NULL`, res.Piece.ID))
}

func TestSubmitPiece_Validation(t *testing.T) {
	e := newEnv(t)
	x := e.user("x")

	cases := []struct {
		name string
		in   NewPiece
	}{
		{"missing artist", NewPiece{PieceName: "p"}},
		{"missing piece", NewPiece{ArtistName: "a", PieceName: "   "}},
		{"long artist", NewPiece{ArtistName: strings.Repeat("a", MaxArtistName+1), PieceName: "p"}},
		{"long piece", NewPiece{ArtistName: "a", PieceName: strings.Repeat("p", MaxPieceName+1)}},
		{"long description", NewPiece{ArtistName: "a", PieceName: "p", PieceDescription: strings.Repeat("d", MaxPieceDescription+1)}},
		{"bad scheme", NewPiece{ArtistName: "a", PieceName: "p", Link: "javascript:alert(1)"}},
		{"no host", NewPiece{ArtistName: "a", PieceName: "p", Link: "https://"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.dist.SubmitPiece(context.Background(), x.ID, tc.in)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
	assert.Zero(t, e.count(`SELECT COUNT(*) FROM art_pieces`))
}

func TestEnsureReciprocalGrant_ConcurrentSingleGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	y := e.user("y")
	trigger := e.piece(x, "trigger")
	for _, name := range []string{"a", "b", "c", "d"} {
		e.piece(y, name)
	}
	ledger := NewLedger(e.rm, e.selector, logging.Discard())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pieces  = map[string]int{}
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
				out, err := ledger.EnsureReciprocalGrant(ctx, tx, trigger, x)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if out.Piece != nil {
					pieces[out.Piece.ID]++
				}
				if out.Created {
					created++
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, pieces, 1)
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM reciprocal_grants WHERE trigger_art_piece_id = ?`, trigger.ID))
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM sent_art_pieces WHERE user_id = ?`, x.ID))
}

func TestReciprocalGift_HidesOtherSources(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	x := e.user("x")
	p := e.piece(e.user("y"), "weekly")
	e.send(x, p, models.SourceWeekly)

	for _, id := range []string{"", "missing", p.PublicID} {
		got, err := e.dist.ReciprocalGift(ctx, x.ID, id)
		require.NoError(t, err)
		assert.Nil(t, got, id)
	}
}
