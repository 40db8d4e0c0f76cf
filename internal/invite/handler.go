package invite

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/opsdeck/internal/store"
)

// SessionResolver turns a bearer token into a session.
type SessionResolver interface {
	SessionByToken(token string) (*store.Session, error)
}

type Handler struct {
	svc      *Service
	sessions SessionResolver
	log      logrus.FieldLogger
}

func NewHandler(svc *Service, sessions SessionResolver, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, log: log}
}

func (h *Handler) EnrichRoutes(router gin.IRoutes) {
	router.POST("/invite", h.inviteAction)
}

type inviteRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *Handler) inviteAction(c *gin.Context) {
	const op = "invite.Handler.inviteAction"
	log := h.log.WithField("operation", op)

	sess, err := h.sessions.SessionByToken(bearerToken(c))
	if err != nil {
		if errors.Is(err, store.ErrAuthRequired) {
			fail(c, http.StatusUnauthorized, "Unauthorized", "a valid bearer token is required")
			return
		}
		log.WithError(err).Error("resolve session")
		fail(c, http.StatusInternalServerError, "Internal error", "could not resolve session")
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	role := store.Role(req.Role)
	if role == "" {
		role = store.RoleUser
	}

	user, err := h.svc.Invite(c.Request.Context(), sess, req.Email, role)
	if err != nil {
		status, title := resolveError(err)
		if status == http.StatusInternalServerError {
			log.WithError(err).Error("invite")
		}
		fail(c, status, title, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": userResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     string(user.Role),
	}})
}

func resolveError(err error) (int, string) {
	var ve *store.ValidationError
	switch {
	case errors.Is(err, store.ErrAuthRequired):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden, "Only admins can invite users"
	case errors.Is(err, ErrAlreadyRegistered):
		return http.StatusConflict, "User already exists"
	case errors.As(err, &ve):
		return http.StatusBadRequest, "Invalid request"
	}
	return http.StatusInternalServerError, "Failed to invite user"
}

func fail(c *gin.Context, status int, title, details string) {
	c.AbortWithStatusJSON(status, gin.H{"error": title, "details": details})
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if t, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

// NewRouter mounts the handler behind recovery and CORS. Browser callers
// send a preflight before the bearer-authenticated POST.
func NewRouter(h *Handler, allowOrigins []string) *gin.Engine {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"*"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	h.EnrichRoutes(router)
	return router
}

// NewServer builds the HTTP server for the invitation endpoint.
func NewServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
