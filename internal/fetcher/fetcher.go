// Package fetcher retrieves the invoice document for an order.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/order-history-export/internal/types"
)

// MaxInvoiceBytes is the largest invoice response accepted. A larger body is
// a fetch failure rather than a truncated page.
const MaxInvoiceBytes = 8 << 20

// Fetcher returns the raw invoice markup for an order. A non-success answer
// is reported as an error wrapping types.ErrFetchFailure.
type Fetcher interface {
	Fetch(ctx context.Context, orderID string) ([]byte, error)
}

// InvoiceURL appends the order id to the invoice URL template.
func InvoiceURL(template, orderID string) string {
	return template + url.QueryEscape(orderID)
}

// =============================================================================
// HTTP
// =============================================================================

// HTTPFetcher fetches invoices from the shop's printable invoice page.
type HTTPFetcher struct {
	client   *http.Client
	template string
	headers  map[string]string
}

// NewHTTPFetcher creates a fetcher for the given URL template. headers are
// sent with every request (typically the session Cookie).
func NewHTTPFetcher(client *http.Client, template string, headers map[string]string) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, template: template, headers: headers}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, orderID string) ([]byte, error) {
	invoiceURL := InvoiceURL(f.template, orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, invoiceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice request: %w", err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrFetchFailure, invoiceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxInvoiceBytes))
		return nil, fmt.Errorf("%w: %s: status %d", types.ErrFetchFailure, invoiceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxInvoiceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", types.ErrFetchFailure, invoiceURL, err)
	}
	if len(body) > MaxInvoiceBytes {
		return nil, fmt.Errorf("%w: %s: invoice exceeds %d bytes", types.ErrFetchFailure, invoiceURL, MaxInvoiceBytes)
	}
	return body, nil
}

// =============================================================================
// SAVED PAGES
// =============================================================================

// DirFetcher reads invoices saved as <dir>/<order id>.html.
type DirFetcher struct {
	dir string
}

// NewDirFetcher creates a fetcher over a directory of saved invoices.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

func (f *DirFetcher) Fetch(ctx context.Context, orderID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.dir, filepath.Base(orderID)+".html")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no saved invoice %s", types.ErrFetchFailure, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read saved invoice: %w", err)
	}
	return data, nil
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*DirFetcher)(nil)
)
