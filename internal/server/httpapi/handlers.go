package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/omnivore/internal/common"
	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/dmitrijs2005/omnivore/internal/server/models"
	"github.com/dmitrijs2005/omnivore/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Unsubscriber switches off email preferences from signed links.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, token string) (models.NotificationKind, error)
}

// Services are the operations the API exposes.
type Services struct {
	Distribution  *services.DistributionService
	Threads       *services.ThreadService
	Likes         *services.LikeService
	Notifications *services.NotificationService
	Gallery       *services.GalleryService
	Unsubscriber  Unsubscriber
}

type Handler struct {
	svc    Services
	logger logging.Logger
}

func NewHandler(svc Services, logger logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("module", "http")}
}

// bindOptionalJSON decodes the body into dst; an empty body is allowed.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("malformed body: %w", common.ErrorValidation)
	}
	return nil
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("malformed body: %w", common.ErrorValidation)
	}
	return nil
}

func (h *Handler) SubmitPiece(c *gin.Context) {
	var in services.NewPiece
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	res, err := h.svc.Distribution.SubmitPiece(c.Request.Context(), currentUser(c), in)
	if err != nil && res.Piece == nil {
		h.abortWithError(c, err)
		return
	}
	// The piece is stored even when the gift failed; the error is logged.
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) OwnedPieces(c *gin.Context) {
	pieces, err := h.svc.Gallery.OwnedPieces(c.Request.Context(), currentUser(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pieces": nonNil(pieces)})
}

func (h *Handler) PieceDetail(c *gin.Context) {
	view, err := h.svc.Threads.PieceConversations(c.Request.Context(), currentUser(c), c.Param("public_id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type deleteRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) DeletePiece(c *gin.Context) {
	var req deleteRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.abortWithError(c, err)
		return
	}

	if err := h.svc.Gallery.SoftDeletePiece(c.Request.Context(), currentUser(c), c.Param("public_id"), req.Reason); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdatePiece(c *gin.Context) {
	var in services.NewPiece
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	piece, err := h.svc.Gallery.UpdatePiece(c.Request.Context(), currentUser(c), c.Param("public_id"), in)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, piece)
}

func (h *Handler) RestorePiece(c *gin.Context) {
	piece, err := h.svc.Gallery.RestorePiece(c.Request.Context(), currentUser(c), c.Param("public_id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, piece)
}

func (h *Handler) PostComment(c *gin.Context) {
	var in services.PostCommentInput
	if err := bindJSON(c, &in); err != nil {
		h.abortWithError(c, err)
		return
	}

	comment, err := h.svc.Threads.PostComment(c.Request.Context(), currentUser(c), c.Param("public_id"), in)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) Thread(c *gin.Context) {
	comments, err := h.svc.Threads.Thread(c.Request.Context(), currentUser(c), c.Param("public_id"), c.Param("other_id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": nonNil(comments)})
}

func (h *Handler) ToggleLike(c *gin.Context) {
	state, err := h.svc.Likes.ToggleLike(c.Request.Context(), currentUser(c), c.Param("public_id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type liker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) Likers(c *gin.Context) {
	users, err := h.svc.Likes.Likers(c.Request.Context(), currentUser(c), c.Param("public_id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	out := make([]liker, 0, len(users))
	for _, u := range users {
		out = append(out, liker{ID: u.ID, Name: u.FullName()})
	}
	c.JSON(http.StatusOK, gin.H{"likers": out})
}

func (h *Handler) Welcome(c *gin.Context) {
	res, err := h.svc.Distribution.EnsureWelcomeGift(c.Request.Context(), currentUser(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Thanks(c *gin.Context) {
	gift, err := h.svc.Distribution.ReciprocalGift(c.Request.Context(), currentUser(c), c.Query("p"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gift": gift})
}

func (h *Handler) Received(c *gin.Context) {
	items, err := h.svc.Gallery.Received(c.Request.Context(), currentUser(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNil(items)})
}

func (h *Handler) OwnerThreads(c *gin.Context) {
	threads, err := h.svc.Threads.OwnerThreads(c.Request.Context(), currentUser(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": nonNil(threads)})
}

func (h *Handler) Inbox(c *gin.Context) {
	inbox, err := h.svc.Notifications.Inbox(c.Request.Context(), currentUser(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	inbox.Unread = nonNil(inbox.Unread)
	inbox.Read = nonNil(inbox.Read)
	c.JSON(http.StatusOK, inbox)
}

func (h *Handler) OpenNotification(c *gin.Context) {
	id := c.Param("id")
	target, err := h.svc.Notifications.Open(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"target": target, "path": target.Path(id)})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (h *Handler) Unsubscribe(c *gin.Context) {
	kind, err := h.svc.Unsubscriber.Unsubscribe(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsubscribed": kind})
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
