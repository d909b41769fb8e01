package messages

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/skekre98/chatlog/auth"
	"github.com/skekre98/chatlog/web"
)

const (
	TypeJSONRejection = "JSON_REJECTION_ERROR"
	TypeValidation    = "VALIDATION_ERROR"
	TypeDatabase      = "DATABASE_ERROR"
	TypeQuery         = "QUERY_REJECTION_ERROR"
)

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PostMessageRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

type PostMessageResponse struct {
	MessageID int64 `json:"messageId"`
}

// Handler serves the message API.
type Handler struct {
	repo          Repository
	tokens        *auth.Service
	defaultUserID int64
	validate      *validator.Validate
	logger        *slog.Logger
	now           func() time.Time
}

func NewHandler(repo Repository, tokens *auth.Service, defaultUserID int64, logger *slog.Logger) *Handler {
	return &Handler{
		repo:          repo,
		tokens:        tokens,
		defaultUserID: defaultUserID,
		validate:      newValidator(),
		logger:        logger,
		now:           time.Now,
	}
}

// Register mounts the API under /api/v1.
func (h *Handler) Register(r web.Router) {
	v1 := r.Group("/api/v1")
	v1.GET("/openapi.json", serveOpenAPIJSON)
	v1.GET("/openapi.yaml", serveOpenAPIYAML)
	v1.POST("/login", h.Login)

	authed := v1.Group("", auth.Bearer(h.tokens))
	authed.POST("/messages", h.Post)
	authed.GET("/messages", h.List)
}

// Login issues a token for the default user; there are no credentials to
// check yet.
func (h *Handler) Login(c *gin.Context) {
	token, expiresAt, err := h.tokens.Issue(h.defaultUserID)
	if err != nil {
		auth.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) Post(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		auth.Abort(c, auth.ErrInvalidToken)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		auth.Abort(c, auth.ErrInvalidClaims)
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.AbortWithError(c, http.StatusBadRequest, TypeJSONRejection, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		web.AbortWithError(c, http.StatusUnprocessableEntity, TypeValidation, validationMessage(err))
		return
	}

	id, err := h.repo.Create(c.Request.Context(), PostMessage{
		Content:  req.Text,
		UserID:   userID,
		PostedAt: h.now().UTC(),
	})
	if err != nil {
		h.logger.Error("create message", "error", err, "user_id", userID)
		web.AbortWithError(c, http.StatusInternalServerError, TypeDatabase, "failed to store message")
		return
	}
	c.JSON(http.StatusOK, PostMessageResponse{MessageID: id})
}

func (h *Handler) List(c *gin.Context) {
	offset, err := queryInt(c, "offset", DefaultOffset)
	if err != nil {
		web.AbortWithError(c, http.StatusBadRequest, TypeQuery, err.Error())
		return
	}
	limit, err := queryInt(c, "limit", DefaultLimit)
	if err != nil {
		web.AbortWithError(c, http.StatusBadRequest, TypeQuery, err.Error())
		return
	}

	msgs, err := h.repo.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.logger.Error("list messages", "error", err, "offset", offset, "limit", limit)
		web.AbortWithError(c, http.StatusInternalServerError, TypeDatabase, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// queryInt reads a non-negative integer query parameter. Absent or empty
// means def.
func queryInt(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New(key + ": invalid integer " + strconv.Quote(raw))
	}
	if n < 0 {
		return 0, errors.New(key + ": must not be negative")
	}
	return n, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + ": is required"
	case "max":
		return fe.Field() + ": must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + ": failed " + fe.Tag() + " validation"
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
