package api

import (
	"time"

	"github.com/jmcleod/lockbox/breach"
	"github.com/jmcleod/lockbox/vault"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

type UnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// StateResponse reports the session state. RecoveryKey is only set while
// the session awaits confirmation that the key was saved.
type StateResponse struct {
	State       vault.State `json:"state"`
	RecoveryKey string      `json:"recoveryKey,omitempty"`
	CSRFToken   string      `json:"csrfToken,omitempty"`
}

type VaultStatusResponse struct {
	State       vault.State `json:"state"`
	Enrolled    bool        `json:"enrolled"`
	HasOrphaned bool        `json:"hasOrphaned"`
}

type RecoveryKeyResponse struct {
	RecoveryKey string `json:"recoveryKey"`
}

type BeginRecoveryRequest struct {
	RecoveryKey string `json:"recoveryKey"`
}

type BeginRecoveryResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CompleteRecoveryRequest struct {
	Token         string `json:"token"`
	NewPassphrase string `json:"newPassphrase"`
}

type ChangePassphraseRequest struct {
	NewPassphrase string `json:"newPassphrase"`
}

type ReclaimRequest struct {
	Passphrase string `json:"passphrase"`
}

type ReclaimResponse struct {
	Reclaimed int `json:"reclaimed"`
}

type ListRecordsResponse struct {
	Records []vault.Record `json:"records"`
}

type AttachTOTPRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

type NewTOTPSecretRequest struct {
	Account string `json:"account"`
}

type NewTOTPSecretResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

type BreachCheckRequest struct {
	Password string `json:"password"`
}

type BreachCheckResponse struct {
	breach.Result
	Message string `json:"message"`
}

type BreachAuditResponse struct {
	Results []breach.AuditResult `json:"results"`
	Summary breach.Summary       `json:"summary"`
}

type GenerateResponse struct {
	Password string `json:"password"`
	Strength int    `json:"strength"`
	Label    string `json:"label"`
}
