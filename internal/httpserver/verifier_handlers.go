package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"anoncreds/internal/types"
	"anoncreds/internal/verifier"
	"anoncreds/pkg/helpers"
)

type verifyProofRequest struct {
	ProofRequest types.ProofRequest         `json:"proof_request" binding:"required"`
	Proof        types.Proof                `json:"proof" binding:"required"`
	Schemas      map[string]types.Schema    `json:"schemas"`
	CredDefs     map[string]types.CredDef   `json:"cred_defs"`
	RevRegDefs   map[string]types.RevRegDef `json:"rev_reg_defs"`
	RevRegs      verifier.RevRegs           `json:"rev_regs"`
}

type verifyProofResponse struct {
	Verified bool `json:"verified"`
}

func (s *Service) verifyProof(ctx context.Context, c *gin.Context) (any, error) {
	var req verifyProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	ok, err := s.verifier.VerifyProof(ctx, req.ProofRequest, req.Proof, req.Schemas, req.CredDefs, req.RevRegDefs, req.RevRegs)
	if err != nil {
		return nil, err
	}
	return verifyProofResponse{Verified: ok}, nil
}
