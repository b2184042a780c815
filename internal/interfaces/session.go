package interfaces

import (
	"context"

	"brokerage-mcp/internal/types"
)

// SessionStore persists the brokerage session between restarts. Load returns
// ok=false when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (sess types.Session, ok bool, err error)
	Save(ctx context.Context, sess types.Session) error
	Clear(ctx context.Context) error
}
