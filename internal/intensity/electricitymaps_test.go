package intensity

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type mockHTTPClient struct {
	lastReq *http.Request
	resp    *http.Response
	err     error
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	return m.resp, m.err
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestFetchIntensity(t *testing.T) {
	mock := &mockHTTPClient{
		resp: jsonResponse(http.StatusOK, `{"zone":"DE","carbonIntensity":231.5,"datetime":"2025-06-01T12:00:00Z"}`),
	}
	client := NewElectricityMapsClient("https://api.example.com", "secret", 5*time.Second, WithHTTPClient(mock))

	value, err := client.FetchIntensity(context.Background(), "DE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 231.5 {
		t.Errorf("expected 231.5, got %f", value)
	}

	if got := mock.lastReq.URL.String(); got != "https://api.example.com/v3/carbon-intensity/latest?zone=DE" {
		t.Errorf("unexpected request URL: %s", got)
	}
	if got := mock.lastReq.Header.Get("auth-token"); got != "secret" {
		t.Errorf("expected auth-token header, got %q", got)
	}
}

func TestFetchIntensityOmitsEmptyToken(t *testing.T) {
	mock := &mockHTTPClient{
		resp: jsonResponse(http.StatusOK, `{"zone":"DE","carbonIntensity":100}`),
	}
	client := NewElectricityMapsClient("https://api.example.com", "", time.Second, WithHTTPClient(mock))

	if _, err := client.FetchIntensity(context.Background(), "DE"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mock.lastReq.Header["Auth-Token"]; ok {
		t.Error("auth-token header set despite empty token")
	}
}

func TestFetchIntensityNonOKStatus(t *testing.T) {
	mock := &mockHTTPClient{resp: jsonResponse(http.StatusForbidden, `{"message":"invalid token"}`)}
	client := NewElectricityMapsClient("https://api.example.com", "bad", time.Second, WithHTTPClient(mock))

	if _, err := client.FetchIntensity(context.Background(), "DE"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestFetchIntensityRejectsMissingValue(t *testing.T) {
	mock := &mockHTTPClient{resp: jsonResponse(http.StatusOK, `{"zone":"DE"}`)}
	client := NewElectricityMapsClient("https://api.example.com", "secret", time.Second, WithHTTPClient(mock))

	if _, err := client.FetchIntensity(context.Background(), "DE"); err == nil {
		t.Fatal("expected error for response without carbonIntensity")
	}
}
