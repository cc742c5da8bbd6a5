package media

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remoteinfer/internal/utils/httpclients"
	"remoteinfer/internal/utils/platformerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestLoadBytesFromLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o644))

	data, err := NewFileLoader(nil).LoadBytes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestLoadBytesFromHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	}))
	defer server.Close()

	client := httpclients.NewClient("MediaTest", httpclients.Options{Timeout: 5 * time.Second})
	data, err := NewFileLoader(client).LoadBytes(context.Background(), server.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestLoadBytesHTTPWithoutClient(t *testing.T) {
	_, err := NewFileLoader(nil).LoadBytes(context.Background(), "https://example.com/cat.png")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConfiguration))
}

func TestLoadBytesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := httpclients.NewClient("MediaTest", httpclients.Options{Timeout: 5 * time.Second})
	_, err := NewFileLoader(client).LoadBytes(context.Background(), server.URL+"/missing.png")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTransport))
}

func TestLoadBytesMissingFile(t *testing.T) {
	_, err := NewFileLoader(nil).LoadBytes(context.Background(), filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
}

func TestDataURI(t *testing.T) {
	uri := DataURI(pngHeader)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	encoded := strings.TrimPrefix(uri, "data:image/png;base64,")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, decoded)
}
