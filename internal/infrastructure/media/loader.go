package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"remoteinfer/internal/utils/platformerrors"

	"resty.dev/v3"
)

// Loader resolves an image reference to raw bytes.
type Loader interface {
	LoadBytes(ctx context.Context, ref string) ([]byte, error)
}

// FileLoader reads image references from the local filesystem; http(s)
// references are fetched over the wire.
type FileLoader struct {
	client *resty.Client
}

// NewFileLoader builds a loader. The client is only used for http(s)
// references and may be nil when all references are local paths.
func NewFileLoader(client *resty.Client) *FileLoader {
	return &FileLoader{client: client}
}

func (l *FileLoader) LoadBytes(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if l.client == nil {
			return nil, platformerrors.NewError(platformerrors.LayerInfrastructure, platformerrors.ErrorTypeConfiguration, "no HTTP client configured for remote image references", nil)
		}
		resp, err := l.client.R().SetContext(ctx).Get(ref)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, platformerrors.NewError(platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransport, fmt.Sprintf("fetch image %s: status %d", ref, resp.StatusCode()), nil)
		}
		return resp.Bytes(), nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, platformerrors.AsError(platformerrors.LayerInfrastructure, err, "read image file")
	}
	return data, nil
}

// DataURI encodes raw image bytes as a base64 data URI with a sniffed mime
// prefix, the form the chat-completions image_url field accepts.
func DataURI(data []byte) string {
	mimeType := http.DetectContentType(data)
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
