package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostComment_ConversationFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)

	root, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "Hello"})
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
	assert.Equal(t, b.ID, root.SenderID)
	assert.Equal(t, a.ID, root.RecipientID)

	again, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "Again"})
	require.NoError(t, err)
	require.NotNil(t, again.ParentID)
	assert.Equal(t, root.ID, *again.ParentID)

	reply, err := e.threads.PostComment(ctx, a.ID, p.PublicID, PostCommentInput{Text: "Thanks", ParentID: again.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)
	assert.Equal(t, a.ID, reply.SenderID)
	assert.Equal(t, b.ID, reply.RecipientID)

	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM comments WHERE parent_id IS NULL`))

	thread, err := e.threads.Thread(ctx, b.ID, p.PublicID, a.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, []string{"Hello", "Again", "Thanks"}, []string{thread[0].Text, thread[1].Text, thread[2].Text})

	assert.Equal(t, []models.NotificationKind{
		models.NotificationComment, models.NotificationComment, models.NotificationComment,
	}, e.events.kinds())
	assert.Equal(t, 2, e.count(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND kind = 'comment'`, a.ID))
	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND kind = 'comment'`, b.ID))
}

func TestPostComment_ConcurrentFirstMessagesShareOneRoot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "first!"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM comments WHERE art_piece_id = ? AND parent_id IS NULL`, p.ID))
	assert.Equal(t, 6, e.count(`SELECT COUNT(*) FROM comments WHERE art_piece_id = ?`, p.ID))
}

func TestPostComment_Authorization(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	c := e.user("c")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)

	_, err := e.threads.PostComment(ctx, c.ID, p.PublicID, PostCommentInput{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.threads.PostComment(ctx, a.ID, p.PublicID, PostCommentInput{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	root, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "hi"})
	require.NoError(t, err)

	// c received the piece later but may not join b's thread.
	e.send(c, p, models.SourceWeekly)
	_, err = e.threads.PostComment(ctx, c.ID, p.PublicID, PostCommentInput{Text: "me too", ParentID: root.ID})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.threads.PostComment(ctx, b.ID, "missing", PostCommentInput{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "hi", ParentID: "missing"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.Equal(t, 1, e.count(`SELECT COUNT(*) FROM comments`))
}

func TestPostComment_ParentFromAnotherPiece(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	p1 := e.piece(a, "one")
	p2 := e.piece(a, "two")
	e.send(b, p1, models.SourceWeekly)
	e.send(b, p2, models.SourceWeekly)

	root, err := e.threads.PostComment(ctx, b.ID, p1.PublicID, PostCommentInput{Text: "on one"})
	require.NoError(t, err)

	_, err = e.threads.PostComment(ctx, a.ID, p2.PublicID, PostCommentInput{Text: "wrong", ParentID: root.ID})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostComment_SanitizesText(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)

	c, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "  <b>bold</b> &amp; <script>x()</script>plain  "})
	require.NoError(t, err)
	assert.Equal(t, "bold & plain", c.Text)

	_, err = e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "<i></i>   "})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: strings.Repeat("x", MaxCommentLength+1)})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestPostComment_DeletedPieceIsNotFound(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)
	require.NoError(t, e.gallery.SoftDeletePiece(ctx, a.ID, p.PublicID, "gone"))

	_, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPieceConversations_OwnerAndRecipientViews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	c := e.user("c")
	d := e.user("d")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)
	e.send(c, p, models.SourceWeekly)

	_, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "from b"})
	require.NoError(t, err)
	_, err = e.threads.PostComment(ctx, c.ID, p.PublicID, PostCommentInput{Text: "from c"})
	require.NoError(t, err)

	owner, err := e.threads.PieceConversations(ctx, a.ID, p.PublicID)
	require.NoError(t, err)
	assert.True(t, owner.IsOwner)
	require.Len(t, owner.Conversations, 2)
	others := []string{owner.Conversations[0].Other, owner.Conversations[1].Other}
	assert.ElementsMatch(t, []string{b.ID, c.ID}, others)

	view, err := e.threads.PieceConversations(ctx, b.ID, p.PublicID)
	require.NoError(t, err)
	assert.False(t, view.IsOwner)
	require.Len(t, view.Conversations, 1)
	assert.Equal(t, a.ID, view.Conversations[0].Other)
	require.Len(t, view.Conversations[0].Comments, 1)
	assert.Equal(t, "from b", view.Conversations[0].Comments[0].Text)

	rec, err := e.rm.Sent(e.db).Get(ctx, b.ID, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec.SeenAt)

	_, err = e.threads.PieceConversations(ctx, d.ID, p.PublicID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.threads.Thread(ctx, d.ID, p.PublicID, a.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOwnerThreads_Summaries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.user("a")
	b := e.user("b")
	p := e.piece(a, "Harbour")
	e.send(b, p, models.SourceWeekly)

	root, err := e.threads.PostComment(ctx, b.ID, p.PublicID, PostCommentInput{Text: "first"})
	require.NoError(t, err)
	_, err = e.threads.PostComment(ctx, a.ID, p.PublicID, PostCommentInput{Text: "last", ParentID: root.ID})
	require.NoError(t, err)

	threads, err := e.threads.OwnerThreads(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, p.PublicID, threads[0].PiecePublicID)
	assert.Equal(t, "Harbour", threads[0].PieceName)
	assert.Equal(t, b.ID, threads[0].Other)
	assert.Equal(t, 2, threads[0].Count)
	assert.Equal(t, "last", threads[0].LastText)

	none, err := e.threads.OwnerThreads(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGroupByCounterpart_MostRecentFirst(t *testing.T) {
	base := clock()
	all := []*models.Comment{
		{ID: "1", SenderID: "b", RecipientID: "a", CreatedAt: base},
		{ID: "2", SenderID: "c", RecipientID: "a", CreatedAt: base.Add(1)},
		{ID: "3", SenderID: "a", RecipientID: "b", CreatedAt: base.Add(2)},
	}

	got := groupByCounterpart(all, "a")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Other)
	assert.Len(t, got[0].Comments, 2)
	assert.Equal(t, "c", got[1].Other)
}
