// Package credential holds the wire types for the async credential
// endpoint.
package credential

// CredentialStatusVocab is the fixed key the credential-status indicator is
// published under in success responses.
const CredentialStatusVocab = "https://vocab.account.gov.uk/v1/credentialStatus"

// StatusPending is the only status this endpoint ever reports: the journey
// has started and evaluation happens asynchronously.
const StatusPending = "pending"

// Request is the caller-declared session parameters. client_id must match
// the access token's client_id claim; that cross-check happens in the
// service, not here.
type Request struct {
	Subject     string `json:"sub" validate:"required"`
	JourneyID   string `json:"govuk_signin_journey_id" validate:"required"`
	ClientID    string `json:"client_id" validate:"required"`
	State       string `json:"state" validate:"required"`
	RedirectURI string `json:"redirect_uri,omitempty" validate:"omitempty,url"`
}

// PendingResponse is the body for both 201 (created) and 200 (already
// active).
type PendingResponse struct {
	Subject          string `json:"sub"`
	CredentialStatus string `json:"https://vocab.account.gov.uk/v1/credentialStatus"`
}

// NewPendingResponse builds the success payload for a subject.
func NewPendingResponse(sub string) PendingResponse {
	return PendingResponse{Subject: sub, CredentialStatus: StatusPending}
}
