package pestroutes_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crm-repository/crm"
	"github.com/goliatone/go-crm-repository/pestroutes"
	"github.com/goliatone/go-crm-repository/pkg/testsupport"
	"github.com/goliatone/go-crm-repository/repository"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

type fakeCRM struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r recordedRequest)
}

func newFakeCRM(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) (*fakeCRM, *pestroutes.Client) {
	t.Helper()

	f := &fakeCRM{t: t, handler: handler}
	server := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(server.Close)

	client, err := pestroutes.New(pestroutes.Config{
		BaseURL:   server.URL + "/api",
		AuthKey:   "key",
		AuthToken: "token",
	}, pestroutes.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return f, client
}

func (f *fakeCRM) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  map[string]string{},
	}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &rec.Body); err != nil {
				f.t.Errorf("request body is not a JSON object: %v", err)
			}
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	f.handler(w, rec)
}

func (f *fakeCRM) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func fixture(t *testing.T, name string) func(w http.ResponseWriter, r recordedRequest) {
	data := testsupport.LoadFixture(t, testsupport.FixturePath(name))
	return func(w http.ResponseWriter, r recordedRequest) {
		_, _ = w.Write(data)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     pestroutes.Config
		wantErr bool
	}{
		{name: "valid", cfg: pestroutes.Config{BaseURL: "https://demo.pestroutes.com/api", AuthKey: "k", AuthToken: "t"}},
		{name: "missing url", cfg: pestroutes.Config{AuthKey: "k", AuthToken: "t"}, wantErr: true},
		{name: "bad url", cfg: pestroutes.Config{BaseURL: "not a url", AuthKey: "k", AuthToken: "t"}, wantErr: true},
		{name: "missing credentials", cfg: pestroutes.Config{BaseURL: "https://demo.pestroutes.com/api"}, wantErr: true},
		{name: "negative chunk", cfg: pestroutes.Config{BaseURL: "https://demo.pestroutes.com/api", AuthKey: "k", AuthToken: "t", MaxIDsPerGet: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, goerrors.IsValidation(err))

			_, err = pestroutes.New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSearch(t *testing.T) {
	crmServer, client := newFakeCRM(t, fixture(t, "customer_search.json"))

	ids, err := client.Search(context.Background(), repository.SearchRequest{
		Resource: "customer",
		OfficeID: 1,
		Criteria: repository.Where("status", 1).In("customerID", 1, 2, 3),
		Limit:    25,
		Offset:   50,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)

	requests := crmServer.Requests()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/customer/search", req.Path)
	assert.Equal(t, map[string]string{
		"authenticationKey":   "key",
		"authenticationToken": "token",
		"officeIDs":           "[1]",
		"status":              "1",
		"customerID":          "[1,2,3]",
		"limit":               "25",
		"offset":              "50",
	}, req.Query)
}

func TestSearch_OperatorFilters(t *testing.T) {
	crmServer, client := newFakeCRM(t, fixture(t, "customer_search.json"))

	_, err := client.Search(context.Background(), repository.SearchRequest{
		Resource: "appointment",
		Criteria: repository.Criteria{}.Between("date", "2026-10-01", "2026-10-31").GreaterThan("status", -1),
	})
	require.NoError(t, err)

	req := crmServer.Requests()[0]
	assert.Equal(t, `{"operator":"BETWEEN","value":["2026-10-01","2026-10-31"]}`, req.Query["date"])
	assert.Equal(t, `{"operator":">","value":-1}`, req.Query["status"])
	assert.NotContains(t, req.Query, "officeIDs")
	assert.NotContains(t, req.Query, "limit")
}

func TestSearch_NoIDs(t *testing.T) {
	_, client := newFakeCRM(t, func(w http.ResponseWriter, r recordedRequest) {
		_, _ = io.WriteString(w, `{"success":true,"idsReturned":[],"count":0}`)
	})

	ids, err := client.Search(context.Background(), repository.SearchRequest{Resource: "spot"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGet(t *testing.T) {
	crmServer, client := newFakeCRM(t, fixture(t, "customer_get.json"))

	docs, err := client.Get(context.Background(), repository.GetRequest{
		Resource: "customer",
		OfficeID: 1,
		IDs:      []int{1, 2},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var first crm.Customer
	require.NoError(t, json.Unmarshal(docs[0], &first))
	assert.Equal(t, "Ada", first.FirstName)

	req := crmServer.Requests()[0]
	assert.Equal(t, "/api/customer/get", req.Path)
	assert.Equal(t, "[1,2]", req.Query["customerIDs"])
	assert.Equal(t, "[1]", req.Query["officeIDs"])
}

func TestGet_EmptyIDsSkipsRequest(t *testing.T) {
	crmServer, client := newFakeCRM(t, fixture(t, "customer_get.json"))

	docs, err := client.Get(context.Background(), repository.GetRequest{Resource: "customer"})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, crmServer.Requests())
}

func TestGet_IDFieldAndCollection(t *testing.T) {
	crmServer, client := newFakeCRM(t, func(w http.ResponseWriter, r recordedRequest) {
		_, _ = io.WriteString(w, `{"success":true,"serviceTypes":[{"typeID":"7","description":"Quarterly"}]}`)
	})

	docs, err := client.Get(context.Background(), repository.GetRequest{
		Resource: "serviceType",
		IDField:  "typeID",
		IDs:      []int{7},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	req := crmServer.Requests()[0]
	assert.Equal(t, "/api/serviceType/get", req.Path)
	assert.Equal(t, "[7]", req.Query["typeIDs"])
}

func TestGet_SplitsLargeIDLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ids []int
		_ = json.Unmarshal([]byte(r.URL.Query().Get("spotIDs")), &ids)
		items := make([]string, len(ids))
		for i, id := range ids {
			items[i] = fmt.Sprintf(`{"spotID":"%d"}`, id)
		}
		_, _ = fmt.Fprintf(w, `{"success":true,"spots":[%s]}`, strings.Join(items, ","))
	}))
	t.Cleanup(server.Close)

	client, err := pestroutes.New(pestroutes.Config{
		BaseURL:      server.URL,
		AuthKey:      "key",
		AuthToken:    "token",
		MaxIDsPerGet: 2,
	})
	require.NoError(t, err)

	docs, err := client.Get(context.Background(), repository.GetRequest{
		Resource: "spot",
		IDs:      []int{1, 2, 3, 4, 5},
	})
	require.NoError(t, err)
	require.Len(t, docs, 5)

	var last crm.Spot
	require.NoError(t, json.Unmarshal(docs[4], &last))
	assert.Equal(t, crm.Int(5), last.SpotID)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
		remote   bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"success":false}`, notFound: true},
		{name: "server error", status: http.StatusServiceUnavailable, body: `upstream down`, remote: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"success":false}`, remote: true},
		{name: "unsuccessful", status: http.StatusOK, body: `{"success":false,"errorMessage":"Authentication failed"}`, remote: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newFakeCRM(t, func(w http.ResponseWriter, r recordedRequest) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Get(context.Background(), repository.GetRequest{Resource: "customer", IDs: []int{9}})
			require.Error(t, err)
			assert.Equal(t, tt.notFound, repository.IsNotFound(err))
			assert.Equal(t, tt.remote, pestroutes.IsRemote(err))

			if tt.remote {
				assert.Equal(t, tt.status, pestroutes.StatusCode(err))

				var richErr *goerrors.Error
				require.True(t, errors.As(err, &richErr))
				assert.Equal(t, goerrors.CategoryExternal, richErr.Category)
				assert.Equal(t, pestroutes.TextCodeRemote, richErr.TextCode)
			}
		})
	}
}

func TestErrors_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := pestroutes.New(pestroutes.Config{BaseURL: server.URL, AuthKey: "k", AuthToken: "t"})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), repository.SearchRequest{Resource: "customer"})
	require.Error(t, err)
	assert.True(t, pestroutes.IsRemote(err))
	assert.Equal(t, 0, pestroutes.StatusCode(err))
}

func TestWrites(t *testing.T) {
	crmServer, client := newFakeCRM(t, func(w http.ResponseWriter, r recordedRequest) {
		_, _ = io.WriteString(w, `{"success":true,"result":"1234"}`)
	})
	ctx := context.Background()

	id, err := client.Create(ctx, "customer", 1, &crm.Customer{FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 1234, id)

	require.NoError(t, client.Update(ctx, "customer", 1, 1234, &crm.Customer{CustomerID: 1234, Email: "ada@example.com"}))
	require.NoError(t, client.Delete(ctx, "customer", 0, 1234))

	requests := crmServer.Requests()
	require.Len(t, requests, 3)

	assert.Equal(t, http.MethodPost, requests[0].Method)
	assert.Equal(t, "/api/customer/create", requests[0].Path)
	assert.Equal(t, "Ada", requests[0].Body["fname"])
	assert.Equal(t, float64(1), requests[0].Body["officeID"])
	assert.Equal(t, "key", requests[0].Query["authenticationKey"])

	assert.Equal(t, "/api/customer/update", requests[1].Path)
	assert.Equal(t, float64(1234), requests[1].Body["customerID"])
	assert.Equal(t, "ada@example.com", requests[1].Body["email"])

	assert.Equal(t, "/api/customer/delete", requests[2].Path)
	assert.Equal(t, map[string]any{"customerID": float64(1234)}, requests[2].Body)
}

func TestRemoteRepository_OverHTTP(t *testing.T) {
	crmServer, client := newFakeCRM(t, func(w http.ResponseWriter, r recordedRequest) {
		name := "customer_get.json"
		if strings.HasSuffix(r.Path, "/search") {
			name = "customer_search.json"
		}
		_, _ = w.Write(testsupport.LoadFixture(t, testsupport.FixturePath(name)))
	})

	customers := repository.NewRemote(crm.CustomerResource, client, nil)
	items, err := customers.Office(1).Search(context.Background(), repository.Where("status", 1))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Hopper", items[1].LastName)
	assert.Equal(t, crm.Float(12.5), items[0].Balance)

	requests := crmServer.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "/api/customer/search", requests[0].Path)
	assert.Equal(t, "/api/customer/get", requests[1].Path)
	assert.Equal(t, "[1,2]", requests[1].Query["customerIDs"])
}
