package save_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "link-insights/internal/domain/link"
	"link-insights/internal/http-server/handlers/link/save"
	"link-insights/internal/http-server/handlers/link/save/mocks"
	linksvc "link-insights/internal/service/link"
)

func TestSaveHandler(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		mockReq    *linksvc.AllocateRequest
		mockRec    domain.Record
		mockError  error
		respError  string
		statusCode int
		wantShort  string
	}{
		{
			name:       "Success",
			body:       `{"url": "example.com"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "example.com"},
			mockRec:    domain.Record{Code: "aB3dE9x", DestinationURL: "https://example.com"},
			statusCode: http.StatusCreated,
			wantShort:  "https://lnk.test/aB3dE9x",
		},
		{
			name:       "With alias and visibility",
			body:       `{"url": "https://example.com", "alias": "promo", "visibility": "public", "title": "Launch"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://example.com", Alias: "promo", Visibility: "public", Title: "Launch"},
			mockRec:    domain.Record{Code: "aB3dE9x", Alias: "promo"},
			statusCode: http.StatusCreated,
			wantShort:  "https://lnk.test/aB3dE9x",
		},
		{
			name:       "Empty URL",
			body:       `{"url": ""}`,
			respError:  "field URL is a required field",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "Bad visibility",
			body:       `{"url": "https://example.com", "visibility": "friends"}`,
			respError:  "field Visibility must be one of [PUBLIC PRIVATE public private]",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "Malformed body",
			body:       `{"url": `,
			respError:  "invalid request body",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "Invalid alias",
			body:       `{"url": "https://example.com", "alias": "a!"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://example.com", Alias: "a!"},
			mockError:  fmt.Errorf("service: %w", domain.ErrInvalidAlias),
			respError:  "alias must be 3-20 characters of letters, digits, '-' or '_' and not a reserved path",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "Reserved alias",
			body:       `{"url": "https://example.com", "alias": "public"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://example.com", Alias: "public"},
			mockError:  fmt.Errorf("service: %w", domain.ErrInvalidAlias),
			respError:  "alias must be 3-20 characters of letters, digits, '-' or '_' and not a reserved path",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "Alias taken",
			body:       `{"url": "https://example.com", "alias": "promo"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://example.com", Alias: "promo"},
			mockError:  fmt.Errorf("service: %w", domain.ErrAliasExists),
			respError:  "alias already exists",
			statusCode: http.StatusConflict,
		},
		{
			name:       "Unsafe URL",
			body:       `{"url": "https://malware.test"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://malware.test"},
			mockError:  fmt.Errorf("service: %w", domain.ErrUnsafeURL),
			respError:  "malicious URL detected",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "Exhausted",
			body:       `{"url": "https://example.com"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://example.com"},
			mockError:  fmt.Errorf("service: %w", domain.ErrAllocationExhausted),
			respError:  "service unavailable",
			statusCode: http.StatusServiceUnavailable,
		},
		{
			name:       "Unexpected error",
			body:       `{"url": "https://example.com"}`,
			mockReq:    &linksvc.AllocateRequest{DestinationURL: "https://example.com"},
			mockError:  errors.New("unexpected error"),
			respError:  "internal error",
			statusCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			allocatorMock := mocks.NewMockLinkAllocator(t)

			if tc.mockReq != nil {
				allocatorMock.On("Allocate", mock.Anything, *tc.mockReq).
					Return(tc.mockRec, tc.mockError).
					Once()
			}

			handler := save.New(slog.New(slog.NewTextHandler(io.Discard, nil)), allocatorMock, "https://lnk.test/")

			req, err := http.NewRequest(http.MethodPost, "/shorten", bytes.NewReader([]byte(tc.body)))
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.Equal(t, tc.statusCode, rr.Code)

			var resp save.Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

			require.Equal(t, tc.respError, resp.Error)
			require.Equal(t, tc.wantShort, resp.ShortURL)
			if tc.statusCode == http.StatusCreated {
				require.Equal(t, tc.mockRec.Code, resp.Code)
				require.Equal(t, tc.mockRec.Alias, resp.Alias)
			}
		})
	}
}
