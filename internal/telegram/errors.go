package telegram

import (
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type errorKind int

const (
	kindTransport errorKind = iota
	kindRetryAfter
	kindForbidden
	kindBadRequest
)

type classifiedError struct {
	kind       errorKind
	retryAfter time.Duration
}

// classify maps a tgbotapi send error onto the kinds the gateway's retry
// policy distinguishes between.
func classify(err error) classifiedError {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return classifiedError{kind: kindRetryAfter, retryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
		}
		if apiErr.Code == 403 {
			return classifiedError{kind: kindForbidden}
		}
		if apiErr.Code == 400 {
			return classifiedError{kind: kindBadRequest}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "forbidden"):
		return classifiedError{kind: kindForbidden}
	case strings.Contains(msg, "bad request"):
		return classifiedError{kind: kindBadRequest}
	default:
		return classifiedError{kind: kindTransport}
	}
}
