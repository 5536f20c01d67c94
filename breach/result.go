package breach

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Status is the outcome of a breach lookup.
type Status int

const (
	// Unknown means the lookup could not be completed. It is not a negative.
	Unknown Status = iota
	// Safe means the hash suffix was absent from the range response.
	Safe
	// Breached means the hash suffix was present with a positive count.
	Breached
)

func (s Status) String() string {
	switch s {
	case Safe:
		return "safe"
	case Breached:
		return "breached"
	default:
		return "unknown"
	}
}

// MarshalText renders the status as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of checking one password.
type Result struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

var printer = message.NewPrinter(language.English)

// Message is the user-facing sentence for r.
func (r Result) Message() string {
	switch r.Status {
	case Breached:
		return printer.Sprintf("This password has been seen %d times in data breaches", r.Count)
	case Safe:
		return "This password has not been found in any known data breaches"
	default:
		return "Unable to check password against breach database"
	}
}
