package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
)

func (s *Server) RunReconciliation(c *gin.Context) {
	var req reconciledomain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, reconciledomain.ErrInvalidTenantID)
		return
	}

	// Only one run at a time: submissions share one vendor credential
	// and its rate limit.
	release, ok, err := s.runGuard.Acquire(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, reconciledomain.ErrRunInProgress)
		return
	}
	defer release()

	result, err := s.reconcileSvc.Run(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
