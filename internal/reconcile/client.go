package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerkeep/ledgerkeep/internal/record"
)

// Client is the authoritative-store surface the reconciler and the mirror
// passthroughs need.
type Client interface {
	Changelog(ctx context.Context) (*record.Changelog, error)
	Customers(ctx context.Context) ([]record.Customer, error)
	Invoices(ctx context.Context) ([]record.Invoice, error)

	CreateCustomer(ctx context.Context, businessID, fullName, phone string) (*record.Customer, error)
	CreateCustomerWithInvoice(ctx context.Context, businessID, fullName, phone, invoiceBusinessID string, invoiceNumber, invoiceYear int) (*record.Customer, *record.Invoice, error)
	EditCustomer(ctx context.Context, businessID, fullName, phone string, isDeleted bool, updatedAtMs int64) (*record.Customer, error)
	RemoveCustomer(ctx context.Context, businessID string) (int64, error)

	CreateInvoice(ctx context.Context, businessID, customerID string, number, year int) (*record.Invoice, error)
	EditInvoice(ctx context.Context, businessID string, number, year int, isDeleted bool, updatedAtMs int64) (*record.Invoice, error)
	RemoveInvoice(ctx context.Context, businessID string) error
}

// HTTPError is a non-2xx response that survived retries.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the ledgerkeep server API. 5xx responses and network
// errors are retried with exponential backoff; 4xx responses are mapped to
// the mutation error taxonomy and returned immediately.
type HTTPClient struct {
	baseURL    string
	token      string
	debugOwner string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// UseDebugOwner switches the client to the dev-mode X-Debug-Owner header
// instead of a bearer token. Only honored by servers running with DevMode.
func (c *HTTPClient) UseDebugOwner(owner string) {
	c.debugOwner = owner
}

// NewHTTPClient creates a client for the server at baseURL authenticating
// with the given bearer token.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
}

// doJSON performs one API call, decoding a 2xx body into out when out is
// non-nil. notFoundOK turns a 404 into (false, nil) so callers can treat
// absence as a value rather than an error.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any, notFoundOK bool) (bool, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return false, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		} else if c.debugOwner != "" {
			req.Header.Set("X-Debug-Owner", c.debugOwner)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
			continue
		}

		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound && notFoundOK:
			return false, nil
		case resp.StatusCode == http.StatusNotFound:
			return false, record.ErrNotFound
		case resp.StatusCode == http.StatusForbidden:
			return false, record.ErrForbidden
		case resp.StatusCode >= 400:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return false, &HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return false, fmt.Errorf("decode response: %w", err)
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Changelog returns the server-side counters, or nil when the owner has no
// changelog row yet.
func (c *HTTPClient) Changelog(ctx context.Context) (*record.Changelog, error) {
	var cl record.Changelog
	found, err := c.doJSON(ctx, http.MethodGet, "/v1/changelog", nil, &cl, true)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &cl, nil
}

// Customers pulls the owner's full customer set.
func (c *HTTPClient) Customers(ctx context.Context) ([]record.Customer, error) {
	var out []record.Customer
	if _, err := c.doJSON(ctx, http.MethodGet, "/v1/customers", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// Invoices pulls the owner's full invoice set.
func (c *HTTPClient) Invoices(ctx context.Context) ([]record.Invoice, error) {
	var out []record.Invoice
	if _, err := c.doJSON(ctx, http.MethodGet, "/v1/invoices", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCustomer creates a customer on the server.
func (c *HTTPClient) CreateCustomer(ctx context.Context, businessID, fullName, phone string) (*record.Customer, error) {
	body := map[string]any{"businessId": businessID, "fullName": fullName, "phone": phone}
	var out record.Customer
	if _, err := c.doJSON(ctx, http.MethodPost, "/v1/customers", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCustomerWithInvoice creates a customer and its first invoice as one
// server-side action.
func (c *HTTPClient) CreateCustomerWithInvoice(ctx context.Context, businessID, fullName, phone, invoiceBusinessID string, invoiceNumber, invoiceYear int) (*record.Customer, *record.Invoice, error) {
	body := map[string]any{
		"businessId":        businessID,
		"fullName":          fullName,
		"phone":             phone,
		"invoiceBusinessId": invoiceBusinessID,
		"invoiceNumber":     invoiceNumber,
		"invoiceYear":       invoiceYear,
	}
	var out struct {
		Customer *record.Customer `json:"customer"`
		Invoice  *record.Invoice  `json:"invoice"`
	}
	if _, err := c.doJSON(ctx, http.MethodPost, "/v1/customers/with-invoice", body, &out, false); err != nil {
		return nil, nil, err
	}
	return out.Customer, out.Invoice, nil
}

// EditCustomer overwrites the customer's mutable fields on the server.
func (c *HTTPClient) EditCustomer(ctx context.Context, businessID, fullName, phone string, isDeleted bool, updatedAtMs int64) (*record.Customer, error) {
	body := map[string]any{"fullName": fullName, "phone": phone, "isDeleted": isDeleted, "updatedAt": updatedAtMs}
	var out record.Customer
	if _, err := c.doJSON(ctx, http.MethodPut, "/v1/customers/"+businessID, body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveCustomer soft-deletes the customer and returns the number of
// cascaded invoices.
func (c *HTTPClient) RemoveCustomer(ctx context.Context, businessID string) (int64, error) {
	var out struct {
		OK       bool  `json:"ok"`
		Cascaded int64 `json:"cascaded"`
	}
	if _, err := c.doJSON(ctx, http.MethodDelete, "/v1/customers/"+businessID, nil, &out, false); err != nil {
		return 0, err
	}
	return out.Cascaded, nil
}

// CreateInvoice creates an invoice on the server.
func (c *HTTPClient) CreateInvoice(ctx context.Context, businessID, customerID string, number, year int) (*record.Invoice, error) {
	body := map[string]any{"businessId": businessID, "customerId": customerID, "number": number, "year": year}
	var out record.Invoice
	if _, err := c.doJSON(ctx, http.MethodPost, "/v1/invoices", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditInvoice overwrites the invoice's mutable fields on the server.
func (c *HTTPClient) EditInvoice(ctx context.Context, businessID string, number, year int, isDeleted bool, updatedAtMs int64) (*record.Invoice, error) {
	body := map[string]any{"number": number, "year": year, "isDeleted": isDeleted, "updatedAt": updatedAtMs}
	var out record.Invoice
	if _, err := c.doJSON(ctx, http.MethodPut, "/v1/invoices/"+businessID, body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveInvoice soft-deletes a single invoice.
func (c *HTTPClient) RemoveInvoice(ctx context.Context, businessID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/v1/invoices/"+businessID, nil, nil, false)
	return err
}
