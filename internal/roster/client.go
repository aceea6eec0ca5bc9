package roster

import (
	"context"
	"time"
)

// Client fetches roster data for a single school from the source system.
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/BillSOS/CleverSyncSOS-sub001/internal/roster Client
type Client interface {
	// FetchEntities returns every record of entityType for the school. When
	// since is non-nil only records modified after it are returned.
	FetchEntities(ctx context.Context, schoolID string, entityType EntityType, since *time.Time) ([]Entity, error)
	// FetchEvents returns the events recorded after sinceEventID, oldest first.
	FetchEvents(ctx context.Context, schoolID string, sinceEventID string) ([]Event, error)
	// LatestEventID returns the id of the newest event, or "" if there are none.
	LatestEventID(ctx context.Context, schoolID string) (string, error)
}
