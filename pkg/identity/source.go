package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/jsonc"
)

// maxDocumentBytes bounds identity documents fetched over HTTP.
const maxDocumentBytes = 10 << 20

// Source reads and writes a JSON document. Comments and trailing commas are
// accepted on read.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	String() string
}

// FileSource is a JSON document on local disk. Reading a missing file
// creates it with Empty.
type FileSource struct {
	Path  string
	Empty []byte
}

func (s FileSource) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		empty := s.Empty
		if len(empty) == 0 {
			empty = []byte("{}")
		}
		if err := writeFile(s.Path, empty); err != nil {
			return nil, fmt.Errorf("create %s: %w", s.Path, err)
		}
		return empty, nil
	}
	if err != nil {
		return nil, err
	}
	return jsonc.ToJSON(data), nil
}

func (s FileSource) Write(_ context.Context, data []byte) error {
	return writeFile(s.Path, data)
}

func (s FileSource) String() string {
	return "file:" + s.Path
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// URLSource fetches a JSON document over HTTP. It cannot be written.
type URLSource struct {
	URL    string
	Client *http.Client
}

// NewURLSource uses a pooled cleanhttp client when client is nil.
func NewURLSource(url string, client *http.Client) URLSource {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return URLSource{URL: url, Client: client}
}

func (s URLSource) Read(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = cleanhttp.DefaultClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", s.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, err
	}
	return jsonc.ToJSON(data), nil
}

func (s URLSource) Write(context.Context, []byte) error {
	return ErrReadOnlySource
}

func (s URLSource) String() string {
	return "url:" + s.URL
}
