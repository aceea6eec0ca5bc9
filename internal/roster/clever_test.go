package roster

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/httpclient"
)

const testSchoolID = "58da8a43cc70ab00017a1a87"

func newTestCleverClient(t *testing.T, handler http.HandlerFunc) *CleverClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewCleverClient(
		httpclient.NewDefaultClient(5*time.Second, httpclient.WithInitialBackoff(time.Millisecond)),
		server.URL,
		2,
	)
	require.NoError(t, err)
	return client
}

func TestCleverClient_FetchEntities(t *testing.T) {
	t.Parallel()

	client := newTestCleverClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3.0/schools/"+testSchoolID+"/students", r.URL.Path)
		switch r.URL.Query().Get("starting_after") {
		case "":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			fmt.Fprintf(w, `{
				"data": [
					{"data": {"id": "s1", "name": {"first": "Ada", "last": "Lovelace"}, "grade": 7,
					          "email": "ada@example.edu", "last_modified": "2024-01-10T10:00:00Z"}},
					{"data": {"id": "s2", "name": {"first": "Alan", "middle": "M", "last": "Turing"},
					          "last_modified": "2024-03-01T10:00:00Z"}}
				],
				"links": [{"rel": "self", "uri": "/v3.0/schools/%[1]s/students"},
				          {"rel": "next", "uri": "/v3.0/schools/%[1]s/students?limit=2&starting_after=s2"}]
			}`, testSchoolID)
		case "s2":
			_, _ = w.Write([]byte(`{
				"data": [{"data": {"id": "s3", "name": {"first": "Grace", "last": "Hopper"},
				                   "last_modified": "2024-02-01T10:00:00Z"}}],
				"links": []
			}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("starting_after"))
		}
	})

	ctx := context.Background()
	all, err := client.FetchEntities(ctx, testSchoolID, EntityStudent, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, "s1", all[0].SourceID)
	assert.Equal(t, "Ada", *all[0].Value("first_name"))
	assert.Equal(t, "7", *all[0].Value("grade"))
	assert.Nil(t, all[0].Value("middle_name"))
	assert.Equal(t, "M", *all[1].Value("middle_name"))
	require.NotNil(t, all[2].LastModified)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), all[2].LastModified.UTC())

	since := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	recent, err := client.FetchEntities(ctx, testSchoolID, EntityStudent, &since)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s2", recent[0].SourceID)
	assert.Equal(t, "s3", recent[1].SourceID)
}

func TestCleverClient_FetchEntitiesSectionTeacher(t *testing.T) {
	t.Parallel()

	client := newTestCleverClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3.0/schools/"+testSchoolID+"/sections", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [{"data": {"id": "sec1", "name": "Algebra I", "teacher": "t9", "period": "3"}}]}`))
	})

	sections, err := client.FetchEntities(context.Background(), testSchoolID, EntitySection, nil)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "t9", *sections[0].Value("teacher_source_id"))
	assert.Equal(t, "Algebra I", *sections[0].Value("name"))
}

func TestCleverClient_FetchEntitiesErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown entity type", func(t *testing.T) {
		t.Parallel()
		client := newTestCleverClient(t, func(http.ResponseWriter, *http.Request) {})
		_, err := client.FetchEntities(context.Background(), testSchoolID, "course", nil)
		require.Error(t, err)
	})

	t.Run("record without id", func(t *testing.T) {
		t.Parallel()
		client := newTestCleverClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": [{"data": {"name": {"first": "X"}}}]}`))
		})
		_, err := client.FetchEntities(context.Background(), testSchoolID, EntityTeacher, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "without id")
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		client := newTestCleverClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := client.FetchEntities(context.Background(), testSchoolID, EntityTeacher, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
	})
}

func TestCleverClient_FetchEvents(t *testing.T) {
	t.Parallel()

	client := newTestCleverClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3.0/events", r.URL.Path)
		assert.Equal(t, testSchoolID, r.URL.Query().Get("school"))
		assert.Equal(t, "E100", r.URL.Query().Get("starting_after"))
		_, _ = w.Write([]byte(`{"data": [
			{"data": {"id": "E101", "type": "students.updated", "created": "2024-05-01T12:00:00Z",
			          "data": {"object": {"id": "s1", "name": {"first": "Ada", "last": "King"}}}}},
			{"data": {"id": "E102", "type": "teachers.deleted", "created": "2024-05-01T12:01:00Z",
			          "data": {"object": {"id": "t1"}}}},
			{"data": {"id": "E103", "type": "courses.created", "created": "2024-05-01T12:02:00Z",
			          "data": {"object": {"id": "c1"}}}}
		]}`))
	})

	events, err := client.FetchEvents(context.Background(), testSchoolID, "E100")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "E101", events[0].ID)
	assert.Equal(t, EntityStudent, events[0].EntityType)
	assert.Equal(t, ActionUpdated, events[0].Action)
	require.NotNil(t, events[0].Payload)
	assert.Equal(t, "King", *events[0].Payload.Value("last_name"))

	assert.Equal(t, EntityTeacher, events[1].EntityType)
	assert.Equal(t, ActionDeleted, events[1].Action)
	assert.Equal(t, "t1", events[1].Payload.SourceID)

	assert.Equal(t, EntityType(""), events[2].EntityType)
	assert.Nil(t, events[2].Payload)
	assert.Equal(t, "courses.created", events[2].Type)
}

func TestCleverClient_LatestEventID(t *testing.T) {
	t.Parallel()

	t.Run("has events", func(t *testing.T) {
		t.Parallel()
		client := newTestCleverClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "last", r.URL.Query().Get("ending_before"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"data": [{"data": {"id": "E500", "type": "students.created"}}]}`))
		})
		id, err := client.LatestEventID(context.Background(), testSchoolID)
		require.NoError(t, err)
		assert.Equal(t, "E500", id)
	})

	t.Run("no events", func(t *testing.T) {
		t.Parallel()
		client := newTestCleverClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": []}`))
		})
		id, err := client.LatestEventID(context.Background(), testSchoolID)
		require.NoError(t, err)
		assert.Empty(t, id)
	})
}
