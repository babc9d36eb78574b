package service

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lnd-admin-api/internal/models"
	appErrors "github.com/noah-isme/lnd-admin-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditEntry describes one audited change.
type auditEntry struct {
	Action     string
	Resource   string
	ResourceID string
	Old        interface{}
	New        interface{}
}

func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor *models.JWTClaims, entry auditEntry) {
	if audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:    actorID(actor),
		Action:    entry.Action,
		Resource:  entry.Resource,
		IPAddress: "system",
		UserAgent: entry.Resource + "-service",
	}
	if entry.ResourceID != "" {
		id := entry.ResourceID
		log.ResourceID = &id
	}
	if entry.Old != nil {
		log.OldValues, _ = json.Marshal(entry.Old)
	}
	if entry.New != nil {
		log.NewValues, _ = json.Marshal(entry.New)
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.String("resource_id", entry.ResourceID), zap.Error(err))
	}
}

func actorID(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

// actorName is the label stored in created_by and approved_by columns.
func actorName(actor *models.JWTClaims) string {
	switch {
	case actor == nil:
		return "system"
	case actor.FullName != "":
		return actor.FullName
	case actor.Email != "":
		return actor.Email
	default:
		return actor.UserID
	}
}

// passThrough returns typed application errors unchanged and wraps anything else as internal.
func passThrough(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func paginate(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
