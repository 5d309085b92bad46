package admin_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"link-insights/internal/http-server/middleware/admin"
)

func TestAdmin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		token      string
		header     string
		statusCode int
	}{
		{name: "bare token", token: "s3cret", header: "s3cret", statusCode: http.StatusOK},
		{name: "bearer token", token: "s3cret", header: "Bearer s3cret", statusCode: http.StatusOK},
		{name: "wrong token", token: "s3cret", header: "nope", statusCode: http.StatusForbidden},
		{name: "missing header", token: "s3cret", statusCode: http.StatusForbidden},
		{name: "not configured", token: "", header: "", statusCode: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			handler := admin.New(slog.New(slog.NewTextHandler(io.Discard, nil)), tc.token)(next)

			req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.Equal(t, tc.statusCode, rr.Code)
		})
	}
}
