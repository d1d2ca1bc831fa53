package prover

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"

	"anoncreds/internal/clcrypto"
	"anoncreds/internal/ids"
	"anoncreds/internal/normalize"
	"anoncreds/internal/store"
	"anoncreds/internal/tagpolicy"
	"anoncreds/internal/types"
	"anoncreds/pkg/helpers"
)

// CreateCredentialRequest blinds the link secret named ms_id under offer's
// credential-definition public key and returns the request to send to the
// issuer plus the metadata this prover must retain to unblind the eventual
// credential.
func (p *Prover) CreateCredentialRequest(ctx context.Context, proverDID string, offer types.CredentialOffer, credDef types.CredDef, msID string) (*types.CredentialRequest, *types.CredentialRequestMetadata, error) {
	msRec, err := p.store.GetLinkSecret(ctx, msID)
	if err != nil {
		return nil, nil, err
	}
	ms, ok := new(big.Int).SetString(msRec.Value, 10)
	if !ok {
		return nil, nil, helpers.ErrInvalidStructure
	}

	pk, err := decodePublicKey(credDef.Value.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	kcp, err := decodeKeyCorrectnessProof(offer.KeyCorrectnessProof)
	if err != nil {
		return nil, nil, err
	}
	okProof, err := clcrypto.VerifyKeyCorrectnessProof(pk, kcp)
	if err != nil {
		return nil, nil, helpers.NewErrorFromError(err)
	}
	if !okProof {
		return nil, nil, helpers.ErrUrsa
	}

	offerNonce, err := clcrypto.ParseNonce(offer.Nonce)
	if err != nil {
		return nil, nil, helpers.ErrInvalidStructure
	}

	blindedMS, blindProof, vPrime, err := clcrypto.BlindLinkSecret(pk, ms, offerNonce)
	if err != nil {
		return nil, nil, helpers.NewErrorFromError(err)
	}

	reqNonce, err := clcrypto.GenerateNonce()
	if err != nil {
		return nil, nil, helpers.NewErrorFromError(err)
	}

	req := &types.CredentialRequest{
		ProverDID: proverDID,
		CredDefID: offer.CredDefID,
		BlindedMS: blindedMS.String(),
		BlindedMSCorrectnessProof: types.BlindedMSCorrectnessProof{
			C:        blindProof.C.String(),
			VDashCap: blindProof.VDashCap.String(),
			MSCap:    blindProof.MSCap.String(),
		},
		Nonce: reqNonce,
	}
	metadata := &types.CredentialRequestMetadata{
		LinkSecretBlindingData: vPrime.String(),
		Nonce:                  reqNonce,
		MasterSecretName:       msID,
	}
	return req, metadata, nil
}

// StoreCredential unblinds cred's signature using the link secret named in
// metadata, validates it against credDef's public key, derives the
// credential's tag map, and persists it under credID (a store-assigned id
// if credID is empty), returning the id used.
func (p *Prover) StoreCredential(ctx context.Context, credID string, metadata types.CredentialRequestMetadata, cred types.Credential, credDef types.CredDef, revRegDef *types.RevRegDef) (string, error) {
	msRec, err := p.store.GetLinkSecret(ctx, metadata.MasterSecretName)
	if err != nil {
		return "", err
	}
	ms, ok := new(big.Int).SetString(msRec.Value, 10)
	if !ok {
		return "", helpers.ErrInvalidStructure
	}

	pk, err := decodePublicKey(credDef.Value.PublicKey)
	if err != nil {
		return "", err
	}

	vPrime, ok := new(big.Int).SetString(metadata.LinkSecretBlindingData, 10)
	if !ok {
		return "", helpers.ErrInvalidStructure
	}

	issuedSig, err := decodeSignature(cred.Signature)
	if err != nil {
		return "", err
	}
	unblinded := clcrypto.ProcessCredentialSignature(issuedSig, vPrime)

	scp, err := decodeSigCorrectnessProof(cred.SignatureCorrectnessProof)
	if err != nil {
		return "", err
	}
	reqNonce, err := clcrypto.ParseNonce(metadata.Nonce)
	if err != nil {
		return "", helpers.ErrInvalidStructure
	}
	okProof, err := clcrypto.VerifySignatureCorrectnessProof(pk, unblinded, scp, reqNonce)
	if err != nil {
		return "", helpers.NewErrorFromError(err)
	}
	if !okProof {
		return "", helpers.ErrUrsa
	}

	normalizedValues := make(map[string]types.AttrValue, len(cred.Values))
	attrs := map[string]*big.Int{clcrypto.LinkSecretName: ms}
	for name, v := range cred.Values {
		norm := normalize.Name(name)
		enc, ok := new(big.Int).SetString(v.Encoded, 10)
		if !ok {
			return "", helpers.ErrInvalidStructure
		}
		attrs[norm] = enc
		normalizedValues[norm] = v
	}
	if !unblinded.Verify(pk, attrs) {
		return "", helpers.ErrUrsa
	}

	var revRegID string
	var credRevID *int64
	if credDef.SupportsRevocation && cred.RevRegID != "" {
		if revRegDef == nil {
			return "", helpers.ErrRevocationRegistryNotFound
		}
		revRegID = cred.RevRegID

		existing, err := p.store.AllCredentials(ctx)
		if err != nil {
			return "", err
		}
		var count int64
		for _, c := range existing {
			if c.RevRegID == revRegID {
				count++
			}
		}
		// Derives a per-registry sequential revocation index from the
		// count of credentials already stored against it: a deliberate
		// stand-in for a real accumulator-assigned index, acceptable
		// because this store never reassigns or recycles indices.
		idx := count + 1
		if idx > int64(revRegDef.MaxCredNum) {
			return "", helpers.ErrRevocationRegistryFull
		}
		credRevID = &idx
	}

	stored := store.StoredCredential{
		ID:                        credID,
		SchemaID:                  cred.SchemaID,
		CredDefID:                 cred.CredDefID,
		RevRegID:                  revRegID,
		Values:                    normalizedValues,
		Signature:                 signatureToTypes(unblinded),
		SignatureCorrectnessProof: cred.SignatureCorrectnessProof,
		RevReg:                    cred.RevReg,
		Witness:                   cred.Witness,
		CredRevID:                 credRevID,
	}

	policy, hasPolicy, err := p.store.GetTagPolicy(ctx, cred.CredDefID)
	if err != nil {
		return "", err
	}
	var policyPtr *types.TagPolicy
	if hasPolicy {
		policyPtr = &policy
	}
	stored.Tags = tagsForStoredCredential(stored, policyPtr)

	savedID, err := p.store.SaveCredential(ctx, stored)
	if err != nil {
		return "", err
	}
	p.log.Debug("credential stored", "id", savedID, "credDefId", cred.CredDefID)
	return savedID, nil
}

// tagsForStoredCredential computes a stored credential's tag map, deriving
// the schema/issuer fields this repository's store doesn't separately
// carry from the credential's own schema_id and cred_def_id (see
// DESIGN.md: store_credential is never handed the full schema object).
func tagsForStoredCredential(cred store.StoredCredential, policy *types.TagPolicy) map[string]string {
	issuerDID, _ := ids.CredDefIssuerDID(cred.CredDefID)
	schemaIssuerDID, schemaName, schemaVersion, _ := ids.SchemaParts(cred.SchemaID)

	attrNames := make([]string, 0, len(cred.Values))
	for name := range cred.Values {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)

	return tagpolicy.ComputeTags(tagpolicy.Input{
		Schema: types.Schema{
			ID:        cred.SchemaID,
			IssuerDID: schemaIssuerDID,
			Name:      schemaName,
			Version:   schemaVersion,
			AttrNames: attrNames,
		},
		CredDefID: cred.CredDefID,
		IssuerDID: issuerDID,
		RevRegID:  cred.RevRegID,
		Values:    cred.Values,
		Policy:    policy,
	})
}

func decodePublicKey(raw json.RawMessage) (*clcrypto.PublicKey, error) {
	pk, err := clcrypto.DecodePublicKey(raw)
	if err != nil {
		return nil, helpers.ErrInvalidStructure
	}
	return pk, nil
}

func decodeKeyCorrectnessProof(p types.KeyCorrectnessProof) (*clcrypto.KeyCorrectnessProof, error) {
	c, ok := new(big.Int).SetString(p.C, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	xzCap, ok := new(big.Int).SetString(p.XZCap, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	xrCap := make(map[string]*big.Int, len(p.XRCap))
	for name, v := range p.XRCap {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, helpers.ErrInvalidStructure
		}
		xrCap[name] = n
	}
	return &clcrypto.KeyCorrectnessProof{C: c, XZCap: xzCap, XRCap: xrCap}, nil
}

func decodeSignature(sig types.CredentialSignature) (*clcrypto.CLSignature, error) {
	a, ok := new(big.Int).SetString(sig.A, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	e, ok := new(big.Int).SetString(sig.E, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	v, ok := new(big.Int).SetString(sig.V, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	return &clcrypto.CLSignature{A: a, E: e, V: v}, nil
}

func signatureToTypes(sig *clcrypto.CLSignature) types.CredentialSignature {
	return types.CredentialSignature{A: sig.A.String(), E: sig.E.String(), V: sig.V.String()}
}

func decodeSigCorrectnessProof(p types.SignatureCorrectnessProof) (*clcrypto.SignatureCorrectnessProof, error) {
	se, ok := new(big.Int).SetString(p.SE, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	c, ok := new(big.Int).SetString(p.C, 10)
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	return &clcrypto.SignatureCorrectnessProof{SE: se, C: c}, nil
}
