package repository

import (
	"context"
	"encoding/json"
)

// SearchRequest asks the CRM for the ids of the entities matching Criteria.
type SearchRequest struct {
	Resource string
	// IDField is the primary key of Resource. Empty means "<resource>ID".
	IDField  string
	OfficeID int
	Criteria Criteria
	Limit    int
	Offset   int
}

// GetRequest asks the CRM for the full entities behind IDs.
type GetRequest struct {
	Resource string
	IDField  string
	OfficeID int
	IDs      []int
}

// Transport is the wire level CRM protocol: searching returns ids, getting
// returns raw entity documents.
type Transport interface {
	Search(ctx context.Context, req SearchRequest) ([]int, error)
	Get(ctx context.Context, req GetRequest) ([]json.RawMessage, error)
	Create(ctx context.Context, resource string, officeID int, payload any) (int, error)
	Update(ctx context.Context, resource string, officeID int, id int, payload any) error
	Delete(ctx context.Context, resource string, officeID int, id int) error
}

// PrimaryKeyField returns idField, or the CRM convention "<resource>ID" when
// it is empty.
func PrimaryKeyField(resource, idField string) string {
	if idField != "" {
		return idField
	}
	return resource + "ID"
}
