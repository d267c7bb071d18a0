package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	dom "UserService/internal/domain"
	"UserService/internal/events"
	"UserService/internal/metrics"

	"github.com/samber/oops"
)

const (
	maxUsernameLen        = 100
	defaultStorageTimeout = 5 * time.Second
	publishTimeout        = 2 * time.Second
)

// Options are the collaborators shared by the services. Zero values are
// replaced with safe defaults.
type Options struct {
	StorageTimeout time.Duration
	Events         events.Publisher
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = defaultStorageTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Events == nil {
		o.Events = events.NewLogPublisher(o.Logger)
	}
	return o
}

// normalizeUsername trims surrounding whitespace. Case is preserved:
// "Alice" and "alice" are different users.
func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", dom.ErrValidation)
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return "", fmt.Errorf("%w: username must be at most %d characters", dom.ErrValidation, maxUsernameLen)
	}
	return username, nil
}

// internalError tags err as a storage failure, logs the detail and returns
// the tagged error. Callers only ever show a generic message for it.
func internalError(ctx context.Context, log *slog.Logger, op string, err error) error {
	if !errors.Is(err, dom.ErrStorage) {
		err = fmt.Errorf("%w: %w", dom.ErrStorage, err)
	}
	wrapped := oops.Code("STORAGE_FAILURE").
		With("operation", op).
		Wrap(err)
	log.ErrorContext(ctx, "operation failed",
		"operation", op,
		"outcome", "failure",
		"error", wrapped.Error(),
	)
	return wrapped
}

// publish sends e without letting a slow or failing bus affect the caller.
func publish(ctx context.Context, log *slog.Logger, p events.Publisher, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		log.WarnContext(ctx, "event publish failed",
			"type", e.Type,
			"event_id", e.ID,
			"error", err,
		)
	}
}
