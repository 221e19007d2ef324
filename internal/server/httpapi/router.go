package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/omnivore/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions configure NewRouter.
type RouterOptions struct {
	SecretKey  []byte
	CORSOrigin string
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	cfg.AllowCredentials = true
	return cfg
}

// NewRouter wires every route of the API.
func NewRouter(h *Handler, opts RouterOptions, logger logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), cors.New(corsConfig(opts.CORSOrigin)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/unsubscribe/:token", h.Unsubscribe)

	api := r.Group("/", AuthMiddleware(opts.SecretKey))
	{
		api.POST("/art", h.SubmitPiece)
		api.GET("/art", h.OwnedPieces)
		api.GET("/art/:public_id", h.PieceDetail)
		api.PUT("/art/:public_id", h.UpdatePiece)
		api.DELETE("/art/:public_id", h.DeletePiece)
		api.POST("/art/:public_id/restore", h.RestorePiece)
		api.POST("/art/:public_id/comments", h.PostComment)
		api.GET("/art/:public_id/threads/:other_id", h.Thread)
		api.POST("/art/:public_id/like", h.ToggleLike)
		api.GET("/art/:public_id/likes", h.Likers)

		api.GET("/welcome", h.Welcome)
		api.GET("/thanks", h.Thanks)
		api.GET("/received", h.Received)
		api.GET("/threads", h.OwnerThreads)

		api.GET("/notifications", h.Inbox)
		api.POST("/notifications/read-all", h.MarkAllRead)
		api.POST("/notifications/:id/open", h.OpenNotification)
	}

	return r
}
