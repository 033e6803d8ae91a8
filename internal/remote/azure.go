package remote

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const blobAPIVersion = "2021-08-06"

// BlobStore reads an Azure Blob Storage container over the REST API,
// authenticated with a shared access signature.
type BlobStore struct {
	containerURL *url.URL
	sas          url.Values
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
}

// NewBlobStore builds a BlobStore from an Azure storage connection string.
func NewBlobStore(connectionString, container string, client *http.Client, backoff BackoffConfig) (*BlobStore, error) {
	endpoint, sas, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	if container == "" {
		return nil, errors.New("blob container name is required")
	}

	u, err := url.Parse(strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(container))
	if err != nil {
		return nil, fmt.Errorf("invalid blob endpoint: %w", err)
	}
	sasValues, err := url.ParseQuery(strings.TrimPrefix(sas, "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid shared access signature: %w", err)
	}

	if backoff.InitialInterval <= 0 {
		backoff = BackoffConfig{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
	}

	return &BlobStore{
		containerURL: u,
		sas:          sasValues,
		httpCfg:      HTTPClientConfig{Client: client, Backoff: backoff},
		circuit:      newBreaker("azure-blob:" + container),
	}, nil
}

// ParseConnectionString extracts the blob endpoint and SAS token from an
// Azure connection string. Shared-key-only strings are rejected.
func ParseConnectionString(cs string) (endpoint, sas string, err error) {
	parts := make(map[string]string)
	for _, kv := range strings.Split(cs, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return "", "", fmt.Errorf("malformed connection string segment %q", kv)
		}
		parts[strings.ToLower(k)] = v
	}

	endpoint = parts["blobendpoint"]
	if endpoint == "" {
		account, suffix := parts["accountname"], parts["endpointsuffix"]
		if account == "" {
			return "", "", errors.New("connection string needs BlobEndpoint or AccountName")
		}
		if suffix == "" {
			suffix = "core.windows.net"
		}
		proto := parts["defaultendpointsprotocol"]
		if proto == "" {
			proto = "https"
		}
		endpoint = fmt.Sprintf("%s://%s.blob.%s", proto, account, suffix)
	}

	sas = parts["sharedaccesssignature"]
	if sas == "" {
		return "", "", errors.New("connection string needs SharedAccessSignature; shared key auth is not supported")
	}
	return endpoint, sas, nil
}

type enumerationResults struct {
	XMLName xml.Name `xml:"EnumerationResults"`
	Blobs   []struct {
		Name string `xml:"Name"`
	} `xml:"Blobs>Blob"`
	NextMarker string `xml:"NextMarker"`
}

// List implements one page of the List Blobs operation.
func (s *BlobStore) List(ctx context.Context, prefix, marker string) ([]string, string, error) {
	q := s.query()
	q.Set("restype", "container")
	q.Set("comp", "list")
	q.Set("prefix", prefix)
	if marker != "" {
		q.Set("marker", marker)
	}
	u := *s.containerURL
	u.RawQuery = q.Encode()

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, s.get(u.String()))
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var payload enumerationResults
	if err := xml.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("decode blob listing: %w", err)
	}

	keys := make([]string, 0, len(payload.Blobs))
	for _, b := range payload.Blobs {
		keys = append(keys, b.Name)
	}
	return keys, payload.NextMarker, nil
}

// Download implements Get Blob, streaming the body to w. A body shorter than
// the advertised length is an error.
func (s *BlobStore) Download(ctx context.Context, key string, w io.Writer) error {
	u := *s.containerURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(key, "/")
	u.RawPath = ""
	u.RawQuery = s.query().Encode()

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, s.get(u.String()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("read blob body: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return fmt.Errorf("read blob body: %w (%d of %d bytes)", io.ErrUnexpectedEOF, n, resp.ContentLength)
	}
	return nil
}

func (s *BlobStore) query() url.Values {
	q := url.Values{}
	for k, v := range s.sas {
		q[k] = append([]string(nil), v...)
	}
	return q
}

func (s *BlobStore) get(rawURL string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-ms-version", blobAPIVersion)
		return req, nil
	}
}
