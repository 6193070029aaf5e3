package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/internhub/internal/events"
	apperrors "github.com/charlesng35/internhub/pkg/errors"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func ensurePublisher(p events.Publisher) events.Publisher {
	if p == nil {
		return events.NoopPublisher{}
	}
	return p
}

// publishEvent never fails the caller; the database write already succeeded.
func publishEvent(ctx context.Context, publisher events.Publisher, log *zap.Logger, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn("publish event failed",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func validationError(message string) error {
	return apperrors.NewBadRequest(message)
}

// validID rejects identifiers that could never match a uuid primary key.
func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// wrapServiceError keeps AppErrors intact and adds context to everything else.
func wrapServiceError(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return fmt.Errorf("%s: %w", op, err)
}
