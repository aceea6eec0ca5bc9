package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/upsert"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenantdb"
)

var (
	seededAt = time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	runAt    = seededAt.Add(24 * time.Hour)
)

var school = tenant.Tenant{
	ID:           5,
	ExternalID:   "5d1b7c0e2f",
	Name:         "Lincoln Elementary",
	DistrictID:   "d1",
	DatabaseName: "school_5",
	Active:       true,
}

func student(id, first string) roster.Entity {
	return roster.Entity{
		SourceID: id,
		Fields: map[string]*string{
			"first_name": ptr.String(first),
			"last_name":  ptr.String("Lovelace"),
		},
	}
}

func studentsN(n int) []roster.Entity {
	out := make([]roster.Entity, n)
	for i := range out {
		out[i] = student(fmt.Sprintf("s%02d", i), fmt.Sprintf("Student %d", i))
	}
	return out
}

// seed writes entities with timestamps before the run under test
func seed(t *testing.T, store upsert.Store, entityType roster.EntityType, entities []roster.Entity) {
	t.Helper()
	_, err := upsert.NewEngine(testingclock.NewFakeClock(seededAt)).
		Upsert(context.Background(), store, entityType, entities, true)
	require.NoError(t, err)
}

func newJob(t *testing.T) (Job, *tenantdb.Handle) {
	t.Helper()
	store := tenantdb.NewTestHandle(t)
	return Job{
		Tenant:   school,
		Store:    store,
		Upserter: upsert.NewEngine(testingclock.NewFakeClock(runAt)),
	}, store
}

func activeIDs(t *testing.T, store *tenantdb.Handle, entityType roster.EntityType) []string {
	t.Helper()
	recs, err := store.List(context.Background(), entityType)
	require.NoError(t, err)
	var ids []string
	for _, r := range recs {
		if r.Active {
			ids = append(ids, r.SourceID)
		}
	}
	return ids
}
