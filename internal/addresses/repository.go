// Package addresses answers ownership questions about delivery addresses.
// Address CRUD is served by the account service.
package addresses

import (
	"context"
	"fmt"

	"github.com/ferreexpress/ferreexpress/internal/platform/db"
	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// EnsureOwned fails with shared.ErrNotFound unless addressID exists and
// belongs to userID. Foreign addresses are reported the same way as missing
// ones.
func EnsureOwned(ctx context.Context, q db.DBTX, addressID, userID int64) error {
	var owned bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`, addressID, userID).Scan(&owned)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("%w: address %d", shared.ErrNotFound, addressID)
	}
	return nil
}
