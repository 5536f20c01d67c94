package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeFailure(w http.ResponseWriter, status int, kind failure.Kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind.String(), Permanent: kind.Permanent()})
}

// mapError translates a failure kind into an HTTP status. Unclassified
// errors are logged and reported without detail.
func mapError(w http.ResponseWriter, err error) {
	if errors.Is(err, vault.ErrRecoveryPending) {
		writeFailure(w, http.StatusForbidden, failure.PolicyViolation, detailOf(err))
		return
	}
	kind := failure.KindOf(err)
	switch kind {
	case failure.PolicyViolation, failure.MalformedInput:
		writeFailure(w, http.StatusBadRequest, kind, detailOf(err))
	case failure.WrongPassphrase, failure.AuthFailure:
		writeFailure(w, http.StatusUnauthorized, kind, detailOf(err))
	case failure.NotFound:
		writeFailure(w, http.StatusNotFound, kind, detailOf(err))
	case failure.IrrecoverableLoss:
		writeFailure(w, http.StatusGone, kind, detailOf(err))
	case failure.Locked:
		writeFailure(w, http.StatusLocked, kind, "vault is locked")
	case failure.TransportFailure:
		writeFailure(w, http.StatusBadGateway, kind, detailOf(err))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeFailure(w, http.StatusInternalServerError, failure.Other, "internal error")
	}
}

// detailOf returns the human-readable part of a failure without its cause
// chain.
func detailOf(err error) string {
	var fe *failure.Error
	if errors.As(err, &fe) && fe.Detail != "" {
		return fe.Detail
	}
	return err.Error()
}
