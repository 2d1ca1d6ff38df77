package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/storage"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantLat float64
		wantLon float64
		wantErr error
	}{
		{
			name:    "ok",
			status:  http.StatusOK,
			body:    `{"status":"OK","results":[{"geometry":{"location":{"lat":47.61,"lng":-122.33}}}]}`,
			wantLat: 47.61,
			wantLon: -122.33,
		},
		{
			name:    "partial match",
			status:  http.StatusOK,
			body:    `{"status":"OK","results":[{"partial_match":true,"geometry":{"location":{"lat":1,"lng":2}}}]}`,
			wantErr: policies.ErrAddressNotFound,
		},
		{
			name:    "zero results",
			status:  http.StatusOK,
			body:    `{"status":"ZERO_RESULTS","results":[]}`,
			wantErr: policies.ErrAddressNotFound,
		},
		{
			name:    "quota",
			status:  http.StatusOK,
			body:    `{"status":"OVER_QUERY_LIMIT","results":[]}`,
			wantErr: storage.ErrUnavailable,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `oops`,
			wantErr: storage.ErrUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("address") != "1 Main St" || r.URL.Query().Get("key") != "k" {
					t.Errorf("unexpected query %q", r.URL.RawQuery)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "k", time.Second)
			lat, lon, err := c.Resolve(context.Background(), "1 Main St")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if lat != tc.wantLat || lon != tc.wantLon {
				t.Fatalf("unexpected coordinates %v,%v", lat, lon)
			}
		})
	}
}

func TestResolveEmptyAddress(t *testing.T) {
	c := NewClient("http://unused", "", time.Second)
	if _, _, err := c.Resolve(context.Background(), "  "); !errors.Is(err, policies.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}
