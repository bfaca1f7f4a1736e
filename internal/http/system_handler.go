package http

import (
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/covert/internal/errors"
	"github.com/allisson/covert/internal/httputil"
	"github.com/allisson/covert/internal/system"
)

// TokenHeader carries the caller token. Authorization: Bearer is accepted as well.
const TokenHeader = "X-Vault-Token"

const maxBodyBytes = 1 << 20

// SystemHandler adapts /v1/sys/* requests to the control-plane router.
type SystemHandler struct {
	router *system.Router
	logger *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(router *system.Router, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{router: router, logger: logger}
}

// Handle dispatches the request and writes {"data": ...} or an error body.
func (h *SystemHandler) Handle(c *gin.Context) {
	path := c.Param("path")

	operation, ok := h.operationFor(c.Request.Method, path)
	if !ok {
		c.JSON(http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Error:   "method_not_allowed",
			Message: "method " + c.Request.Method + " is not supported",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrMalformedInput, err.Error()), h.logger)
		return
	}

	response, err := h.router.Dispatch(c.Request.Context(), &system.Request{
		Operation: operation,
		Path:      path,
		Token:     tokenFromRequest(c),
		Body:      body,
		Query:     c.Request.URL.Query(),
		RequestID: requestid.Get(c),
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": response.Data})
}

// operationFor maps the HTTP method to a router operation. POST and PUT fall back to
// revoke on paths that only offer revoke.
func (h *SystemHandler) operationFor(method, path string) (system.Operation, bool) {
	var operation system.Operation
	switch method {
	case http.MethodGet:
		return system.ReadOperation, true
	case http.MethodDelete:
		return system.DeleteOperation, true
	case http.MethodPost:
		operation = system.CreateOperation
	case http.MethodPut, http.MethodPatch:
		operation = system.UpdateOperation
	default:
		return "", false
	}

	if method != http.MethodPatch {
		offered := h.router.Operations(path)
		if !slices.Contains(offered, operation) && slices.Contains(offered, system.RevokeOperation) {
			return system.RevokeOperation, true
		}
	}
	return operation, true
}

func tokenFromRequest(c *gin.Context) string {
	if token := c.GetHeader(TokenHeader); token != "" {
		return token
	}

	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
