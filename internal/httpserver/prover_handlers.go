package httpserver

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"anoncreds/internal/prover"
	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

type createMasterSecretRequest struct {
	ID string `json:"id"`
}

type createMasterSecretResponse struct {
	ID string `json:"id"`
}

func (s *Service) createMasterSecret(ctx context.Context, c *gin.Context) (any, error) {
	var req createMasterSecretRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, helpers.ErrInvalidStructure
	}
	id, err := s.prover.CreateMasterSecret(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return createMasterSecretResponse{ID: id}, nil
}

type createCredentialRequestRequest struct {
	ProverDID string                `json:"prover_did" binding:"required"`
	Offer     types.CredentialOffer `json:"offer" binding:"required"`
	CredDef   types.CredDef         `json:"cred_def" binding:"required"`
	MSID      string                `json:"ms_id" binding:"required"`
}

type createCredentialRequestResponse struct {
	Request  *types.CredentialRequest         `json:"request"`
	Metadata *types.CredentialRequestMetadata `json:"metadata"`
}

func (s *Service) createCredentialRequest(ctx context.Context, c *gin.Context) (any, error) {
	var req createCredentialRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	credReq, metadata, err := s.prover.CreateCredentialRequest(ctx, req.ProverDID, req.Offer, req.CredDef, req.MSID)
	if err != nil {
		return nil, err
	}
	return createCredentialRequestResponse{Request: credReq, Metadata: metadata}, nil
}

type storeCredentialRequest struct {
	CredID     string                          `json:"cred_id"`
	Metadata   types.CredentialRequestMetadata `json:"metadata" binding:"required"`
	Credential types.Credential                `json:"credential" binding:"required"`
	CredDef    types.CredDef                   `json:"cred_def" binding:"required"`
	RevRegDef  *types.RevRegDef                `json:"rev_reg_def"`
}

type storeCredentialResponse struct {
	ID string `json:"id"`
}

func (s *Service) storeCredential(ctx context.Context, c *gin.Context) (any, error) {
	var req storeCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	id, err := s.prover.StoreCredential(ctx, req.CredID, req.Metadata, req.Credential, req.CredDef, req.RevRegDef)
	if err != nil {
		return nil, err
	}
	return storeCredentialResponse{ID: id}, nil
}

func (s *Service) getCredential(ctx context.Context, c *gin.Context) (any, error) {
	info, err := s.prover.GetCredential(ctx, c.Param("id"))
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *Service) deleteCredential(ctx context.Context, c *gin.Context) (any, error) {
	if err := s.prover.DeleteCredential(ctx, c.Param("id")); err != nil {
		return nil, err
	}
	return gin.H{"deleted": true}, nil
}

type searchRequest struct {
	Query types.WQLQuery `json:"query"`
}

type searchResponse struct {
	Cursor string `json:"cursor"`
	Count  int    `json:"count"`
}

func (s *Service) openCredentialSearch(ctx context.Context, c *gin.Context) (any, error) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, helpers.ErrInvalidStructure
	}
	handle, total, err := s.prover.SearchCredentials(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return searchResponse{Cursor: s.credCursors.open(handle), Count: total}, nil
}

type fetchRequest struct {
	Count int `json:"count" binding:"required"`
}

func (s *Service) fetchCredentialSearch(_ context.Context, c *gin.Context) (any, error) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	handle, err := s.credCursors.resolve(c.Param("cursor"))
	if err != nil {
		return nil, err
	}
	items, err := s.prover.FetchCredentials(handle, req.Count)
	if err != nil {
		return nil, err
	}
	return gin.H{"credentials": items}, nil
}

func (s *Service) closeCredentialSearch(_ context.Context, c *gin.Context) (any, error) {
	token := c.Param("cursor")
	handle, err := s.credCursors.resolve(token)
	if err != nil {
		return nil, err
	}
	if err := s.prover.CloseCredentialsSearch(handle); err != nil {
		return nil, err
	}
	s.credCursors.close(token)
	return gin.H{"closed": true}, nil
}

type openProofSearchRequest struct {
	ProofRequest   types.ProofRequest `json:"proof_request" binding:"required"`
	ExtraQueryJSON []byte             `json:"extra_query_json"`
}

func (s *Service) openProofSearch(ctx context.Context, c *gin.Context) (any, error) {
	var req openProofSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	handle, err := s.prover.SearchCredentialsForProofReq(ctx, req.ProofRequest, req.ExtraQueryJSON)
	if err != nil {
		return nil, err
	}
	return searchResponse{Cursor: s.proofCursors.open(handle)}, nil
}

type fetchProofSearchRequest struct {
	Referent string `json:"referent" binding:"required"`
	Count    int    `json:"count" binding:"required"`
}

func (s *Service) fetchProofSearch(_ context.Context, c *gin.Context) (any, error) {
	var req fetchProofSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	handle, err := s.proofCursors.resolve(c.Param("cursor"))
	if err != nil {
		return nil, err
	}
	attrs, preds, err := s.prover.FetchCredentialsForProofReq(handle, req.Referent, req.Count)
	if err != nil {
		return nil, err
	}
	return gin.H{"attr_credentials": attrs, "pred_credentials": preds}, nil
}

func (s *Service) closeProofSearch(_ context.Context, c *gin.Context) (any, error) {
	token := c.Param("cursor")
	handle, err := s.proofCursors.resolve(token)
	if err != nil {
		return nil, err
	}
	if err := s.prover.CloseCredentialsSearchForProofReq(handle); err != nil {
		return nil, err
	}
	s.proofCursors.close(token)
	return gin.H{"closed": true}, nil
}

type createProofRequest struct {
	ProofRequest         types.ProofRequest         `json:"proof_request" binding:"required"`
	RequestedCredentials types.RequestedCredentials `json:"requested_credentials" binding:"required"`
	MSID                 string                     `json:"ms_id" binding:"required"`
	Schemas              map[string]types.Schema    `json:"schemas"`
	CredDefs             map[string]types.CredDef   `json:"cred_defs"`
	RevStates            prover.RevocationStates    `json:"rev_states"`
}

func (s *Service) createProof(ctx context.Context, c *gin.Context) (any, error) {
	var req createProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	proof, err := s.prover.CreateProof(ctx, req.ProofRequest, req.RequestedCredentials, req.MSID, req.Schemas, req.CredDefs, req.RevStates)
	if err != nil {
		return nil, err
	}
	return proof, nil
}
