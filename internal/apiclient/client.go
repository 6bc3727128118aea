// ABOUTME: HTTP/JSON client for the parking backend issue API
// ABOUTME: Creates issues and lists issue categories

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IssueRecord is the payload of createIssue. Optional fields carry "-" when
// the operator left them blank.
type IssueRecord struct {
	CategoryID    string `json:"categoryId"`
	GateID        string `json:"gateId"`
	Description   string `json:"description"`
	Action        string `json:"action"`
	Photo         string `json:"photo"`
	Plate         string `json:"plate"`
	TransactionNo string `json:"transactionNo"`
}

// IssueRef identifies a created issue.
type IssueRef struct {
	ID ID `json:"id"`
}

// Category is an issue category the operator picks from.
type Category struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ID is a backend identifier. The backend sends numbers or strings.
type ID string

func (i *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*i = ID(n.String())
	return nil
}

// IssueClient is the issue collaborator used by the resolution workflows.
type IssueClient interface {
	CreateIssue(ctx context.Context, rec IssueRecord) (IssueRef, error)
}

// HTTPClient implements IssueClient using the backend REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ IssueClient = (*HTTPClient)(nil)

// NewHTTPClient creates a client targeting baseURL (e.g. "https://parking.example.com/api").
// When token is non-empty, an Authorization header is set on every request.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateIssue submits an issue and returns the id the backend assigned.
func (c *HTTPClient) CreateIssue(ctx context.Context, rec IssueRecord) (IssueRef, error) {
	var ref IssueRef
	if err := c.doJSON(ctx, http.MethodPost, "/issues", rec, &ref); err != nil {
		return IssueRef{}, err
	}
	if ref.ID == "" {
		return IssueRef{}, fmt.Errorf("backend returned no issue id")
	}
	return ref, nil
}

// ListCategories returns the selectable issue categories.
func (c *HTTPClient) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.doJSON(ctx, http.MethodGet, "/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Error != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
			}
			if errResp.Message != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
