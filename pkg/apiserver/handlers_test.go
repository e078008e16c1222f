package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/folio-sites/folio-domains/pkg/db"
	"github.com/folio-sites/folio-domains/pkg/lifecycle"
	"github.com/folio-sites/folio-domains/pkg/model"
	"github.com/folio-sites/folio-domains/pkg/verifier"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeResolver struct {
	txt map[string][]string
}

func (f *fakeResolver) LookupTXT(_ context.Context, hostname string) ([]string, error) {
	return f.txt[hostname], nil
}

func (f *fakeResolver) LookupCNAME(_ context.Context, hostname string) ([]string, error) {
	return nil, nil
}

func (f *fakeResolver) LookupA(_ context.Context, hostname string) ([]string, error) {
	return nil, nil
}

func (f *fakeResolver) HTTPCheck(_ context.Context, _ string) bool {
	return false
}

type apiFixture struct {
	server *httptest.Server
	db     db.Database
	res    *fakeResolver
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.sqlite")
	database, err := db.New(context.Background(), "sqlite", dsn, nil)
	require.NoError(t, err)

	secret := "test-secret"
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)

	tenant, err := database.CreateTenant("acme", string(hash))
	require.NoError(t, err)

	res := &fakeResolver{txt: map[string][]string{}}
	controller := lifecycle.New(database, verifier.New(res, nil), nil, lifecycle.Options{},
		logrus.WithField("test", t.Name()))

	router := newRouter(logrus.WithField("test", t.Name()), controller, NewTokenResolver(database))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{
		server: server,
		db:     database,
		res:    res,
		token:  fmt.Sprintf("%d.%s", tenant.ID, secret),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func decodeDomain(t *testing.T, resp *http.Response) model.DomainResponse {
	t.Helper()
	defer resp.Body.Close()

	var d model.DomainResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))

	return d
}

func TestCreateDomainEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	d := decodeDomain(t, resp)
	assert.Equal(t, "example.com", d.Hostname)
	assert.Equal(t, model.StatusNeedsDNS, d.Status)
	// The response carries ready-to-render DNS instructions.
	assert.Equal(t, "TXT", d.DNSRecord.Type)
	assert.Equal(t, "_verify.example.com", d.DNSRecord.Name)
	assert.Equal(t, d.VerificationValue, d.DNSRecord.Value)
}

func TestCreateDomainRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", "", model.CreateDomainRequest{Hostname: "example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, "POST", "/v1/domains", "1.wrong-secret", model.CreateDomainRequest{Hostname: "example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateDomainConflict(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateDomainInvalidHostname(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "not a hostname"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCheckDomainEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeDomain(t, resp)

	f.res.txt["_verify.example.com"] = []string{created.VerificationValue}

	resp = f.do(t, "POST", fmt.Sprintf("/v1/domains/%d/check", created.ID), f.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	d := decodeDomain(t, resp)
	assert.Equal(t, model.StatusVerified, d.Status)
	assert.Empty(t, d.Error)
}

func TestSetPrimaryEndpointInvalidState(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeDomain(t, resp)

	resp = f.do(t, "POST", fmt.Sprintf("/v1/domains/%d/primary", created.ID), f.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetDomainNotFound(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "GET", "/v1/domains/999", f.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, "GET", "/v1/domains/abc", f.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoveDomainEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: "example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeDomain(t, resp)

	resp = f.do(t, "DELETE", fmt.Sprintf("/v1/domains/%d", created.ID), f.token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, "GET", fmt.Sprintf("/v1/domains/%d", created.ID), f.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListDomainsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	for _, hostname := range []string{"a.example.com", "b.example.com"} {
		resp := f.do(t, "POST", "/v1/domains", f.token, model.CreateDomainRequest{Hostname: hostname})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := f.do(t, "GET", "/v1/domains", f.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	var domains []model.DomainResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&domains))
	assert.Len(t, domains, 2)
}
