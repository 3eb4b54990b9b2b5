package runtime

import (
	"context"
	"errors"
	"net"

	"github.com/aretw0/parley/pkg/domain"
)

const unexpectedNotice = "An unexpected error occurred. Please try again or restart the conversation."

var notices = map[domain.ErrorKind]string{
	domain.KindLostPosition:     "Let's start over at this step.",
	domain.KindDanglingEdge:     "Error finding the next step in the workflow. Please try again.",
	domain.KindUnreachable:      "Unable to connect to the AI service. Please try again later.",
	domain.KindTimeout:          "The request timed out. Please try a shorter message or try again later.",
	domain.KindMalformedRequest: "There was a problem with your request. Please try rephrasing your message.",
	domain.KindEmptyResponse:    "I couldn't generate a response. Please try asking your question differently.",
	domain.KindUnknown:          "An error occurred while generating a response. Please try again.",
}

// Notice returns the user-facing text for a notice kind.
func Notice(kind domain.ErrorKind) string {
	if msg, ok := notices[kind]; ok {
		return msg
	}
	return unexpectedNotice
}

// Classify maps a completion failure to a notice kind.
// Errors already classified by an adapter keep their kind.
func Classify(err error) domain.ErrorKind {
	var ce *domain.CompletionError
	if errors.As(err, &ce) && ce.Kind != "" {
		return ce.Kind
	}
	if errors.Is(err, domain.ErrEmptyStream) {
		return domain.KindEmptyResponse
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return domain.KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.KindUnreachable
	}
	return domain.KindUnknown
}
