package vault

import "time"

// Option configures a Vault.
type Option func(*Vault)

// WithClock sets the time source used for record ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// WithTOTPIssuer sets the issuer used in provisioning URIs for record
// second factors.
func WithTOTPIssuer(issuer string) Option {
	return func(v *Vault) {
		v.issuer = issuer
	}
}
