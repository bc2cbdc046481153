package network

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateUpload(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Location", "https://x/session/42")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, log.NewLogger())
	location, err := client.CreateUpload(context.Background(), 1234, "package.zip")

	require.NoError(t, err)
	assert.Equal(t, "https://x/session/42", location)
	assert.Equal(t, "1.0.0", gotHeaders.Get("Tus-Resumable"))
	assert.Equal(t, "1234", gotHeaders.Get("Upload-Length"))
	wantMeta := "filename " + base64.StdEncoding.EncodeToString([]byte("package.zip"))
	assert.Equal(t, wantMeta, gotHeaders.Get("Upload-Metadata"))
}

func TestClient_CreateUpload_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		location  string
		body      string
		wantInErr []string
	}{
		{
			name:      "structured error body",
			status:    http.StatusUnprocessableEntity,
			body:      `{"error": "quota exceeded"}`,
			wantInErr: []string{"quota exceeded", "(HTTP 422)"},
		},
		{
			name:      "raw error body",
			status:    http.StatusInternalServerError,
			body:      "backend exploded",
			wantInErr: []string{"backend exploded", "(HTTP 500)"},
		},
		{
			name:      "JSON body without error field",
			status:    http.StatusBadRequest,
			body:      `{"detail": "nope"}`,
			wantInErr: []string{`{"detail": "nope"}`, "(HTTP 400)"},
		},
		{
			name:      "empty body",
			status:    http.StatusBadRequest,
			wantInErr: []string{"upload creation failed", "(HTTP 400)"},
		},
		{
			name:      "201 without session location",
			status:    http.StatusCreated,
			wantInErr: []string{"upload creation failed", "(HTTP 201)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.location != "" {
					w.Header().Set("Location", tt.location)
				}
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL, nil, log.NewLogger())
			_, err := client.CreateUpload(context.Background(), 10, "package.zip")

			require.Error(t, err)
			for _, want := range tt.wantInErr {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestClient_Offset(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		offset  string
		want    int64
		wantErr bool
	}{
		{name: "accepted bytes reported", status: http.StatusOK, offset: "42", want: 42},
		{name: "zero offset", status: http.StatusOK, offset: "0", want: 0},
		{name: "missing header", status: http.StatusOK, wantErr: true},
		{name: "non-numeric header", status: http.StatusOK, offset: "many", wantErr: true},
		{name: "negative header", status: http.StatusOK, offset: "-1", wantErr: true},
		{name: "session gone", status: http.StatusNotFound, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "1.0.0", r.Header.Get("Tus-Resumable"))
				if tt.offset != "" {
					w.Header().Set("Upload-Offset", tt.offset)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, nil, log.NewLogger())
			offset, err := client.Offset(context.Background(), server.URL+"/files/abc")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, offset)
		})
	}
}

func TestClient_SendChunk(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "1.0.0", r.Header.Get("Tus-Resumable"))
		assert.Equal(t, "application/offset+octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, "10", r.Header.Get("Upload-Offset"))

		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		w.Header().Set("Upload-Offset", "15")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, log.NewLogger())
	newOffset, err := client.SendChunk(context.Background(), server.URL+"/files/abc", 10, []byte("hello"))

	require.NoError(t, err)
	assert.Equal(t, int64(15), newOffset)
	assert.Equal(t, []byte("hello"), gotBody)
}

func TestClient_SendChunk_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		offset    string
		body      string
		wantInErr string
	}{
		{name: "offset conflict", status: http.StatusConflict, body: "offset mismatch", wantInErr: "status 409"},
		{name: "missing offset header", status: http.StatusNoContent, wantInErr: "Upload-Offset"},
		{name: "unparsable offset header", status: http.StatusNoContent, offset: "NaN", wantInErr: "Upload-Offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.offset != "" {
					w.Header().Set("Upload-Offset", tt.offset)
				}
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL, nil, log.NewLogger())
			_, err := client.SendChunk(context.Background(), server.URL+"/files/abc", 0, []byte("data"))

			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantInErr)
		})
	}
}
