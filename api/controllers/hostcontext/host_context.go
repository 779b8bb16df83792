package hostcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hauslist/hauslist-backend/api/middleware"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
)

// ResolveHostID extracts the authenticated host from the request context.
func ResolveHostID(r *http.Request) (uuid.UUID, error) {
	hostID := middleware.HostIDFromContext(r.Context())
	if hostID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "host context required")
	}

	id, err := uuid.Parse(hostID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid host id")
	}
	return id, nil
}
