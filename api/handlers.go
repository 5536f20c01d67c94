package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/lockbox/breach"
	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/uuid"
	"github.com/jmcleod/lockbox/passgen"
	"github.com/jmcleod/lockbox/totp"
	"github.com/jmcleod/lockbox/vault"
)

const (
	maxSmallBodySize  = 8 << 10
	maxRecordBodySize = 4 * vault.MaxFieldSize
	maxAuditEntries   = 10_000
)

// decodeJSON reads a size-limited JSON body into T. On failure it writes the
// response itself and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return req, false
	}
	return req, true
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, failure.MalformedInput, "invalid record id")
		return 0, false
	}
	return id, true
}

// startSession binds vs to a fresh cookie and reports its state.
func (a *API) startSession(w http.ResponseWriter, r *http.Request, vs *vault.Session) {
	token := uuid.New()
	a.sessions.put(token, vs)
	writeSessionCookie(w, r, token)
	resp := StateResponse{State: vs.State(), CSRFToken: writeCSRFCookie(w, r)}
	if vs.State() == vault.AwaitingFirstEnrollment {
		key, err := vs.RecoveryKey()
		if err != nil {
			mapError(w, err)
			return
		}
		resp.RecoveryKey = key
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetState handles GET /state.
func (a *API) GetState(w http.ResponseWriter, r *http.Request) {
	resp := VaultStatusResponse{State: vault.Locked}
	if vs, ok := a.sessionFromCookie(r); ok {
		resp.State = vs.State()
	}
	enrolled, err := a.vault.Enrolled(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	resp.Enrolled = enrolled
	if resp.HasOrphaned, err = a.vault.HasOrphaned(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Unlock handles POST /unlock. The first unlock of an empty vault enrolls
// the passphrase and returns the recovery key.
func (a *API) Unlock(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[UnlockRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	client := clientKey(r)
	if blocked, retryAfter := a.rateLimiter.check(client); blocked {
		slog.Warn("unlock rate limited", slog.String("client_ip", client))
		writeRateLimited(w, retryAfter)
		return
	}

	vs, err := a.vault.Unlock(r.Context(), req.Passphrase)
	if err != nil {
		if errors.Is(err, failure.ErrWrongPassphrase) {
			a.rateLimiter.recordFailure(client)
		}
		mapError(w, err)
		return
	}
	a.rateLimiter.recordSuccess(client)
	a.startSession(w, r, vs)
}

// Lock handles POST /lock. Locking an already locked vault succeeds.
func (a *API) Lock(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		a.sessions.remove(cookie.Value)
	}
	clearSessionCookie(w, r)
	clearCSRFCookie(w, r)
	writeJSON(w, http.StatusOK, StateResponse{State: vault.Locked})
}

// GetRecoveryKey handles GET /recovery-key.
func (a *API) GetRecoveryKey(w http.ResponseWriter, r *http.Request) {
	key, err := sessionFromContext(r.Context()).RecoveryKey()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecoveryKeyResponse{RecoveryKey: key})
}

// ConfirmRecovery handles POST /recovery/confirm.
func (a *API) ConfirmRecovery(w http.ResponseWriter, r *http.Request) {
	vs := sessionFromContext(r.Context())
	if err := vs.ConfirmRecoverySaved(); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: vs.State()})
}

// BeginRecovery handles POST /recovery. An accepted key yields a short-lived
// token for POST /recovery/reset.
func (a *API) BeginRecovery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[BeginRecoveryRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	client := clientKey(r)
	if blocked, retryAfter := a.rateLimiter.check(client); blocked {
		writeRateLimited(w, retryAfter)
		return
	}

	rec, err := a.vault.RecoverAccount(r.Context(), req.RecoveryKey)
	if err != nil {
		if errors.Is(err, failure.ErrAuthFailure) {
			a.rateLimiter.recordFailure(client)
		}
		mapError(w, err)
		return
	}
	a.rateLimiter.recordSuccess(client)
	token, expiresAt := a.recoveries.put(rec)
	writeJSON(w, http.StatusOK, BeginRecoveryResponse{Token: token, ExpiresAt: expiresAt})
}

// CompleteRecovery handles POST /recovery/reset. Any open session is locked;
// the new one awaits confirmation of a fresh recovery key.
func (a *API) CompleteRecovery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CompleteRecoveryRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	rec, ok := a.recoveries.get(req.Token)
	if !ok {
		writeFailure(w, http.StatusUnauthorized, failure.AuthFailure, "recovery has expired; start again")
		return
	}
	vs, err := a.vault.SetNewMasterPassword(r.Context(), rec, req.NewPassphrase)
	if err != nil {
		mapError(w, err)
		return
	}
	a.recoveries.remove(req.Token)
	a.startSession(w, r, vs)
}

// ChangePassphrase handles POST /passphrase.
func (a *API) ChangePassphrase(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ChangePassphraseRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	vs := sessionFromContext(r.Context())
	if err := vs.ChangePassphrase(r.Context(), req.NewPassphrase); err != nil {
		mapError(w, err)
		return
	}
	key, err := vs.RecoveryKey()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: vs.State(), RecoveryKey: key})
}

// ReclaimOrphaned handles POST /orphaned/reclaim.
func (a *API) ReclaimOrphaned(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ReclaimRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	client := clientKey(r)
	if blocked, retryAfter := a.rateLimiter.check(client); blocked {
		writeRateLimited(w, retryAfter)
		return
	}
	n, err := sessionFromContext(r.Context()).ReclaimOrphaned(r.Context(), req.Passphrase)
	if err != nil {
		if errors.Is(err, failure.ErrAuthFailure) {
			a.rateLimiter.recordFailure(client)
		}
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReclaimResponse{Reclaimed: n})
}

// ResetVault handles POST /reset. Every slot is erased and all sessions are
// locked.
func (a *API) ResetVault(w http.ResponseWriter, r *http.Request) {
	if err := a.vault.Reset(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	a.sessions.lockAll()
	clearSessionCookie(w, r)
	clearCSRFCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// ListRecords handles GET /records.
func (a *API) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := sessionFromContext(r.Context()).Records(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if records == nil {
		records = []vault.Record{}
	}
	writeJSON(w, http.StatusOK, ListRecordsResponse{Records: records})
}

// AddRecord handles POST /records.
func (a *API) AddRecord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[vault.NewRecord](w, r, maxRecordBodySize)
	if !ok {
		return
	}
	rec, err := sessionFromContext(r.Context()).AddRecord(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetRecord handles GET /records/{id}.
func (a *API) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := sessionFromContext(r.Context()).Record(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord handles PUT /records/{id}.
func (a *API) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[vault.RecordUpdate](w, r, maxRecordBodySize)
	if !ok {
		return
	}
	rec, err := sessionFromContext(r.Context()).UpdateRecord(r.Context(), id, req)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /records/{id}.
func (a *API) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := sessionFromContext(r.Context()).DeleteRecord(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTOTPCode handles GET /records/{id}/totp.
func (a *API) GetTOTPCode(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	code, err := sessionFromContext(r.Context()).TOTPCode(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, code)
}

// AttachTOTP handles POST /records/{id}/totp. The secret is only stored once
// the code proves the authenticator was set up with it.
func (a *API) AttachTOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	req, ok := decodeJSON[AttachTOTPRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	rec, err := sessionFromContext(r.Context()).AttachTOTP(r.Context(), id, req.Secret, req.Code)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// NewTOTPSecret handles POST /totp/secret.
func (a *API) NewTOTPSecret(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[NewTOTPSecretRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	secret, err := totp.GenerateSecret()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTOTPSecretResponse{
		Secret: secret,
		URI:    sessionFromContext(r.Context()).ProvisioningURI(secret, req.Account),
	})
}

// CheckBreach handles POST /breach/check.
func (a *API) CheckBreach(w http.ResponseWriter, r *http.Request) {
	if !a.breachAvailable(w) {
		return
	}
	req, ok := decodeJSON[BreachCheckRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	if req.Password == "" {
		writeFailure(w, http.StatusBadRequest, failure.MalformedInput, "password is required")
		return
	}
	res, err := a.breach.CheckPassword(r.Context(), req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BreachCheckResponse{Result: res, Message: res.Message()})
}

// AuditBreaches handles POST /breach/audit. Every stored password is checked
// in order; lookups that fail are reported as unknown.
func (a *API) AuditBreaches(w http.ResponseWriter, r *http.Request) {
	if !a.breachAvailable(w) {
		return
	}
	records, err := sessionFromContext(r.Context()).Records(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if len(records) > a.auditLimit {
		mapError(w, failure.Errorf(failure.PolicyViolation,
			"vault holds %d records; a breach audit checks at most %d", len(records), a.auditLimit))
		return
	}
	entries := make([]breach.Entry, len(records))
	for i, rec := range records {
		entries[i] = breach.Entry{ID: rec.ID, Site: rec.Site, Username: rec.Username, Password: rec.Password}
	}

	results, err := a.breach.CheckMultiplePasswords(r.Context(), entries)
	if err != nil {
		mapError(w, err)
		return
	}
	if results == nil {
		results = []breach.AuditResult{}
	}
	writeJSON(w, http.StatusOK, BreachAuditResponse{Results: results, Summary: breach.Summarize(results)})
}

// Generate handles GET /generate?length=N&symbols=false. Character classes
// default to enabled.
func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	length := passgen.DefaultLength
	if s := q.Get("length"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, failure.MalformedInput, "invalid length")
			return
		}
		length = n
	}
	opts := passgen.DefaultOptions()
	for name, dst := range map[string]*bool{
		"lowercase": &opts.Lowercase,
		"uppercase": &opts.Uppercase,
		"numbers":   &opts.Numbers,
		"symbols":   &opts.Symbols,
	} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, failure.MalformedInput, "invalid value for "+name)
			return
		}
		*dst = v
	}

	pw, err := passgen.Generate(length, opts)
	if err != nil {
		mapError(w, err)
		return
	}
	score := passgen.Strength(pw)
	writeJSON(w, http.StatusOK, GenerateResponse{Password: pw, Strength: score, Label: passgen.Label(score)})
}
