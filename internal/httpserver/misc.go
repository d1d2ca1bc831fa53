package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/ids"
	"anoncreds/pkg/helpers"
)

type nonceResponse struct {
	Nonce string `json:"nonce"`
}

func (s *Service) generateNonce(_ context.Context, _ *gin.Context) (any, error) {
	nonce, err := clcrypto.GenerateNonce()
	if err != nil {
		return nil, helpers.NewErrorFromError(err)
	}
	return nonceResponse{Nonce: nonce}, nil
}

type unqualifiedRequest struct {
	ID string `json:"id" binding:"required"`
}

type unqualifiedResponse struct {
	ID string `json:"id"`
}

func (s *Service) toUnqualified(_ context.Context, c *gin.Context) (any, error) {
	var req unqualifiedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	return unqualifiedResponse{ID: ids.ToUnqualified(req.ID)}, nil
}
