// Package bounce maps provider error codes and free-text reasons onto a
// bounce classification. Pure lookup tables; extend by adding entries, not
// call sites.
package bounce

import "strings"

// Class is the severity assigned to a failed send.
type Class string

const (
	Hard    Class = "hard"
	Soft    Class = "soft"
	Failure Class = "failed"
)

var hardCodes = map[string]bool{
	"550": true, "551": true, "553": true, "554": true,
	"5.1.1": true, "5.1.2": true, "5.4.1": true,
}

var softCodes = map[string]bool{
	"421": true, "450": true, "451": true, "452": true,
	"4.2.2": true, "4.4.2": true,
}

var hardSignatures = []string{
	"mailbox not found",
	"user unknown",
	"no such user",
	"does not exist",
	"invalid recipient",
	"address rejected",
	"account disabled",
	"domain not found",
	"permanent failure",
}

var softSignatures = []string{
	"mailbox full",
	"over quota",
	"insufficient storage",
	"try again later",
	"rate limit",
	"temporarily deferred",
	"temporarily unavailable",
	"service unavailable",
	"greylisted",
}

// Classify maps an SMTP-like code and a provider error message to a Class.
// Unrecognized failures classify as Failure, not as a bounce.
func Classify(code, message string) Class {
	code = strings.TrimSpace(code)
	if hardCodes[code] {
		return Hard
	}
	if softCodes[code] {
		return Soft
	}

	msg := strings.ToLower(message)
	for _, sig := range hardSignatures {
		if strings.Contains(msg, sig) {
			return Hard
		}
	}
	for _, sig := range softSignatures {
		if strings.Contains(msg, sig) {
			return Soft
		}
	}
	return Failure
}
