package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/httpclient"
)

const cleverAPIVersion = "/v3.0"

// CleverClient implements Client against the Clever data API. Every list
// endpoint is paginated through its links[rel=next] entry.
type CleverClient struct {
	http     httpclient.Client
	baseURL  *url.URL
	pageSize int
}

var _ Client = (*CleverClient)(nil)

// NewCleverClient returns a client for the API at baseURL, requesting
// pageSize records per page.
func NewCleverClient(httpClient httpclient.Client, baseURL string, pageSize int) (*CleverClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Clever endpoint %q: %w", baseURL, err)
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &CleverClient{http: httpClient, baseURL: u, pageSize: pageSize}, nil
}

type cleverList struct {
	Data []struct {
		Data json.RawMessage `json:"data"`
	} `json:"data"`
	Links []struct {
		Rel string `json:"rel"`
		URI string `json:"uri"`
	} `json:"links"`
}

type cleverEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created time.Time `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// FetchEntities lists every record of entityType for the school. Clever has
// no server-side modified-since filter so since is applied to last_modified.
func (c *CleverClient) FetchEntities(
	ctx context.Context, schoolID string, entityType EntityType, since *time.Time,
) ([]Entity, error) {
	schema, ok := SchemaFor(entityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	query := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
	path := fmt.Sprintf("%s/schools/%s/%s", cleverAPIVersion, schoolID, schema.Resource)

	var entities []Entity
	err := c.paginate(ctx, c.resolve(path, query), func(raw json.RawMessage) error {
		entity, err := decodeEntity(schema, raw)
		if err != nil {
			return err
		}
		if since != nil && entity.LastModified != nil && !entity.LastModified.After(*since) {
			return nil
		}
		entities = append(entities, entity)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s for school %s: %w", schema.Resource, schoolID, err)
	}
	return entities, nil
}

// FetchEvents lists the school's events after sinceEventID in source order.
func (c *CleverClient) FetchEvents(ctx context.Context, schoolID string, sinceEventID string) ([]Event, error) {
	query := url.Values{
		"school": {schoolID},
		"limit":  {strconv.Itoa(c.pageSize)},
	}
	if sinceEventID != "" {
		query.Set("starting_after", sinceEventID)
	}

	var events []Event
	err := c.paginate(ctx, c.resolve(cleverAPIVersion+"/events", query), func(raw json.RawMessage) error {
		event, err := decodeEvent(raw)
		if err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events for school %s: %w", schoolID, err)
	}
	return events, nil
}

// LatestEventID returns the id of the school's newest event.
func (c *CleverClient) LatestEventID(ctx context.Context, schoolID string) (string, error) {
	query := url.Values{
		"school":        {schoolID},
		"ending_before": {"last"},
		"limit":         {"1"},
	}
	body, err := c.http.Get(ctx, c.resolve(cleverAPIVersion+"/events", query))
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest event for school %s: %w", schoolID, err)
	}

	var page cleverList
	if err := json.Unmarshal(body, &page); err != nil {
		return "", fmt.Errorf("failed to decode events page: %w", err)
	}
	if len(page.Data) == 0 {
		return "", nil
	}
	var event cleverEvent
	if err := json.Unmarshal(page.Data[0].Data, &event); err != nil {
		return "", fmt.Errorf("failed to decode event: %w", err)
	}
	return event.ID, nil
}

func (c *CleverClient) paginate(ctx context.Context, next string, fn func(json.RawMessage) error) error {
	for next != "" {
		body, err := c.http.Get(ctx, next)
		if err != nil {
			return err
		}

		var page cleverList
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("failed to decode page: %w", err)
		}
		for _, item := range page.Data {
			if err := fn(item.Data); err != nil {
				return err
			}
		}

		next = ""
		for _, link := range page.Links {
			if link.Rel == "next" && link.URI != "" {
				next = c.resolveRef(link.URI)
				break
			}
		}
	}
	return nil
}

func (c *CleverClient) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// resolveRef turns the relative next-page URI Clever returns into an absolute one.
func (c *CleverClient) resolveRef(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return c.baseURL.ResolveReference(r).String()
}

func decodeEvent(raw json.RawMessage) (Event, error) {
	var ce cleverEvent
	if err := json.Unmarshal(raw, &ce); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if ce.ID == "" {
		return Event{}, fmt.Errorf("event without id")
	}

	event := Event{ID: ce.ID, Type: ce.Type, Created: ce.Created}
	event.EntityType, event.Action = ParseEventType(ce.Type)
	if event.EntityType == "" || len(ce.Data.Object) == 0 {
		return event, nil
	}

	schema, _ := SchemaFor(event.EntityType)
	payload, err := decodeEntity(schema, ce.Data.Object)
	if err != nil {
		return Event{}, fmt.Errorf("event %s: %w", ce.ID, err)
	}
	event.Payload = &payload
	return event, nil
}

func decodeEntity(schema Schema, raw json.RawMessage) (Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return Entity{}, fmt.Errorf("failed to decode %s: %w", schema.Type, err)
	}

	id, _ := obj["id"].(string)
	if id == "" {
		return Entity{}, fmt.Errorf("%s record without id", schema.Type)
	}

	entity := Entity{SourceID: id, Fields: make(map[string]*string, len(schema.Fields))}
	for _, field := range schema.Fields {
		entity.Fields[field] = lookup(obj, schema.Path(field))
	}
	if lm := lookup(obj, "last_modified"); lm != nil {
		if ts, err := time.Parse(time.RFC3339, *lm); err == nil {
			entity.LastModified = &ts
		}
	}
	return entity, nil
}

// lookup walks a dotted path through nested objects and returns the scalar
// found there as text, or nil.
func lookup(obj map[string]any, path string) *string {
	var cur any = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}

	var s string
	switch v := cur.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	default:
		return nil
	}
	return &s
}
