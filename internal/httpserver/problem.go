package httpserver

import (
	"errors"
	"net/http"

	"github.com/moogar0880/problems"

	"anoncreds/pkg/helpers"
)

// statusFor maps one of this repository's fixed error codes to the HTTP
// status the demo surface reports it under. Unrecognized errors (anything
// not wrapped as a *helpers.Error) are treated as internal.
func statusFor(err error) int {
	var typed *helpers.Error
	if !errors.As(err, &typed) {
		return http.StatusInternalServerError
	}

	switch typed.Title {
	case "CommonInvalidStructure", "CommonInvalidParam", "CommonInvalidParam2",
		"AnoncredsInvalidUserRevocId":
		return http.StatusBadRequest
	case "WalletItemNotFound":
		return http.StatusNotFound
	case "WalletItemAlreadyExists", "AnoncredsMasterSecretDuplicateNameError",
		"AnoncredsCredDefAlreadyExistsError":
		return http.StatusConflict
	case "AnoncredsProofRejected", "AnoncredsCredentialRevoked",
		"AnoncredsRevocationRegistryFullError":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// problemFor renders err as an RFC7807 problem detail, the same shape
// Problem404 already returns for routing misses.
func problemFor(err error) *problems.Problem {
	status := statusFor(err)
	p := problems.NewStatusProblem(status)
	p.Detail = helpers.NewErrorFromError(err).Error()
	return p
}

// Problem404 mirrors the teacher's NoRoute handler: a bare 404 problem with
// no caller-supplied detail.
func Problem404() *problems.Problem {
	return problems.NewStatusProblem(http.StatusNotFound)
}
