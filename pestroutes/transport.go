package pestroutes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jinzhu/inflection"

	"github.com/goliatone/go-crm-repository/repository"
)

var _ repository.Transport = (*Client)(nil)

// Search implements repository.Transport with GET {resource}/search.
func (c *Client) Search(ctx context.Context, req repository.SearchRequest) ([]int, error) {
	params, err := req.Criteria.Params()
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for field, value := range params {
		query.Set(field, value)
	}
	setOffice(query, req.OfficeID)
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		query.Set("offset", strconv.Itoa(req.Offset))
	}

	doc, err := c.call(ctx, http.MethodGet, req.Resource, "search", query, nil)
	if err != nil {
		return nil, classify(err, 0)
	}

	var raw []json.RawMessage
	if data, ok := doc["idsReturned"]; ok {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s ids: %w", req.Resource, err)
		}
	}

	ids := make([]int, 0, len(raw))
	for _, item := range raw {
		id, err := parseID(item)
		if err != nil {
			return nil, fmt.Errorf("decode %s ids: %w", req.Resource, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get implements repository.Transport with GET {resource}/get. Id lists
// longer than Config.MaxIDsPerGet are split into several requests. Missing
// entities are left out of the result.
func (c *Client) Get(ctx context.Context, req repository.GetRequest) ([]json.RawMessage, error) {
	if len(req.IDs) == 0 {
		return []json.RawMessage{}, nil
	}

	idParam := repository.PrimaryKeyField(req.Resource, req.IDField) + "s"
	collection := inflection.Plural(req.Resource)

	out := make([]json.RawMessage, 0, len(req.IDs))
	for _, chunk := range chunkIDs(req.IDs, c.cfg.MaxIDsPerGet) {
		encoded, err := json.Marshal(chunk)
		if err != nil {
			return nil, err
		}

		query := url.Values{}
		query.Set(idParam, string(encoded))
		setOffice(query, req.OfficeID)

		doc, err := c.call(ctx, http.MethodGet, req.Resource, "get", query, nil)
		if err != nil {
			return nil, classify(err, chunk[0])
		}

		data, ok := doc[collection]
		if !ok || isNull(data) {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

// Create implements repository.Transport with POST {resource}/create.
func (c *Client) Create(ctx context.Context, resource string, officeID int, payload any) (int, error) {
	body, err := withFields(payload, map[string]any{"officeID": officeID}, officeID > 0)
	if err != nil {
		return 0, err
	}

	doc, err := c.call(ctx, http.MethodPost, resource, "create", nil, body)
	if err != nil {
		return 0, classify(err, 0)
	}

	id, err := parseID(doc["result"])
	if err != nil {
		return 0, fmt.Errorf("decode %s create result: %w", resource, err)
	}
	return id, nil
}

// Update implements repository.Transport with POST {resource}/update.
func (c *Client) Update(ctx context.Context, resource string, officeID int, id int, payload any) error {
	fields := map[string]any{repository.PrimaryKeyField(resource, ""): id}
	if officeID > 0 {
		fields["officeID"] = officeID
	}
	body, err := withFields(payload, fields, true)
	if err != nil {
		return err
	}

	if _, err := c.call(ctx, http.MethodPost, resource, "update", nil, body); err != nil {
		return classify(err, id)
	}
	return nil
}

// Delete implements repository.Transport with POST {resource}/delete.
func (c *Client) Delete(ctx context.Context, resource string, officeID int, id int) error {
	body := map[string]any{repository.PrimaryKeyField(resource, ""): id}
	if officeID > 0 {
		body["officeID"] = officeID
	}

	if _, err := c.call(ctx, http.MethodPost, resource, "delete", nil, body); err != nil {
		return classify(err, id)
	}
	return nil
}

func setOffice(query url.Values, officeID int) {
	if officeID > 0 {
		query.Set("officeIDs", "["+strconv.Itoa(officeID)+"]")
	}
}

func chunkIDs(ids []int, size int) [][]int {
	if size <= 0 || len(ids) <= size {
		return [][]int{ids}
	}
	chunks := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// parseID reads an id the CRM sent either as a number or a string.
func parseID(data json.RawMessage) (int, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		data = []byte(s)
	}
	return strconv.Atoi(string(data))
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// withFields encodes payload as a JSON object and sets fields on it.
func withFields(payload any, fields map[string]any, apply bool) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("encode payload: payload is not an object: %w", err)
	}
	if apply {
		for k, v := range fields {
			body[k] = v
		}
	}
	return body, nil
}
