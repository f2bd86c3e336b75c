// Package opas is a client for the OPAS backend admin REST API.
package opas

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "opas-admin-workers/internal/common/http"
	"opas-admin-workers/internal/models"
)

// DecisionResult is the backend's answer to an approve, reject or suspend
// call. Success=false means the backend refused the decision.
type DecisionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	baseURL string
	http    *httpclient.Client
}

func NewClient(baseURL string, timeout time.Duration, tokens httpclient.TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpclient.NewClient(timeout, tokens),
	}
}

// maxPendingPages guards against a backend that keeps returning a next link.
const maxPendingPages = 100

// ErrTooManyPages is returned when the pending list is still paginating
// after maxPendingPages pages. A truncated list is never returned.
var ErrTooManyPages = stderrors.New("pending applications exceed page limit")

type pendingPage struct {
	Next    *string              `json:"next"`
	Results []models.Application `json:"results"`
}

// FetchPendingApplications returns every pending seller registration,
// following pagination links when the endpoint is paginated.
func (c *Client) FetchPendingApplications(ctx context.Context) ([]models.Application, error) {
	next := c.baseURL + "/admin/sellers/pending/"
	var apps []models.Application

	for page := 0; next != "" && page < maxPendingPages; page++ {
		raw, err := c.http.DoJSON(ctx, http.MethodGet, next, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch pending applications: %w", err)
		}

		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "[") {
			var list []models.Application
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode pending applications: %w", err)
			}
			return append(apps, list...), nil
		}

		var p pendingPage
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode pending applications: %w", err)
		}
		apps = append(apps, p.Results...)

		next = ""
		if p.Next != nil {
			next = c.resolve(*p.Next)
		}
	}
	if next != "" {
		return nil, fmt.Errorf("fetch pending applications: %w (%d pages)", ErrTooManyPages, maxPendingPages)
	}
	return apps, nil
}

// ApproveSeller approves one seller registration. Approval is permanent on
// the backend; there is no undo call.
func (c *Client) ApproveSeller(ctx context.Context, sellerID, notes string) (*DecisionResult, error) {
	return c.decide(ctx, sellerID, "approve", map[string]interface{}{"admin_notes": notes})
}

// RejectSeller rejects one seller registration with a reason shown to the seller.
func (c *Client) RejectSeller(ctx context.Context, sellerID, reason string) (*DecisionResult, error) {
	return c.decide(ctx, sellerID, "reject", map[string]interface{}{"reason": reason})
}

// SuspendSeller suspends an active seller. durationDays <= 0 means indefinite.
func (c *Client) SuspendSeller(ctx context.Context, sellerID, reason string, durationDays int) (*DecisionResult, error) {
	body := map[string]interface{}{"reason": reason}
	if durationDays > 0 {
		body["duration_days"] = durationDays
	}
	return c.decide(ctx, sellerID, "suspend", body)
}

func (c *Client) decide(ctx context.Context, sellerID, action string, body map[string]interface{}) (*DecisionResult, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, fmt.Errorf("%s seller: empty seller id", action)
	}
	endpoint := fmt.Sprintf("%s/admin/sellers/%s/%s/", c.baseURL, url.PathEscape(sellerID), action)

	var resp struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	raw, err := c.http.DoJSON(ctx, http.MethodPost, endpoint, body, &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && isDomainRefusal(statusErr.StatusCode) {
			return &DecisionResult{Success: false, Error: refusalText(raw, statusErr)}, nil
		}
		return nil, fmt.Errorf("%s seller %s: %w", action, sellerID, err)
	}

	result := &DecisionResult{Success: true, Error: resp.Error, Message: resp.Message}
	if resp.Success != nil {
		result.Success = *resp.Success
	}
	if !result.Success && result.Error == "" {
		result.Error = firstNonEmpty(resp.Detail, resp.Message, "request refused by backend")
	}
	return result, nil
}

// Client errors that mean "the backend understood and said no".
func isDomainRefusal(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func refusalText(raw []byte, statusErr *httpclient.StatusError) string {
	var body struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if s := firstNonEmpty(body.Error, body.Detail, body.Message); s != "" {
			return s
		}
	}
	return fmt.Sprintf("backend returned status %d", statusErr.StatusCode)
}

func (c *Client) resolve(next string) string {
	if next == "" || strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://") {
		return next
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return next
	}
	ref, err := url.Parse(next)
	if err != nil {
		return next
	}
	return base.ResolveReference(ref).String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
