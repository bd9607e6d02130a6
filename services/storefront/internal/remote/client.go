// Package remote talks to the user service's server-side wishlist.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/pkg/httpclient"
	"github.com/utafrali/shopsync/pkg/logger"
	"github.com/utafrali/shopsync/pkg/middleware"
	"github.com/utafrali/shopsync/pkg/tracing"
	"github.com/utafrali/shopsync/services/storefront/internal/domain"
)

const (
	serviceName = "user"
	tracerName  = "storefront/remote"

	wishlistPath = "/api/v1/users/wishlist"

	// PageSize is the per_page value used when listing. The user service
	// caps it at 100.
	PageSize = 100

	// maxPages bounds listing when the server misreports its total.
	maxPages = 1000
)

// WishlistClient is the server-side wishlist of the authenticated user.
// Every call carries the user's access token.
type WishlistClient interface {
	List(ctx context.Context, token string) (domain.WishlistSet, error)
	Add(ctx context.Context, token, productID string) error
	Remove(ctx context.Context, token, productID string) error
}

// HTTPWishlistClient implements WishlistClient over the user service REST
// API.
type HTTPWishlistClient struct {
	baseURL string
	client  httpclient.Doer
	logger  *slog.Logger
}

// NewHTTPWishlistClient creates a client for the user service at baseURL.
func NewHTTPWishlistClient(baseURL string, client httpclient.Doer, log *slog.Logger) *HTTPWishlistClient {
	return &HTTPWishlistClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  log,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type listPage struct {
	Items   []domain.ProductRef `json:"items"`
	Total   int                 `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
}

// List fetches every page of the wishlist.
func (c *HTTPWishlistClient) List(ctx context.Context, token string) (ids domain.WishlistSet, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "wishlist.list")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	for page := 1; page <= maxPages; page++ {
		p, err := c.fetchPage(ctx, token, page)
		if err != nil {
			return domain.WishlistSet{}, err
		}
		for _, id := range domain.ProductIDs(p.Items) {
			ids.Add(id)
		}
		seen := (page-1)*PageSize + len(p.Items)
		if len(p.Items) == 0 || len(p.Items) < PageSize || seen >= p.Total {
			break
		}
	}

	span.SetAttributes(attribute.Int("wishlist.count", ids.Len()))
	c.logger.DebugContext(ctx, "fetched remote wishlist", slog.Int("count", ids.Len()))
	return ids, nil
}

func (c *HTTPWishlistClient) fetchPage(ctx context.Context, token string, page int) (listPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(PageSize))

	req, err := c.newRequest(ctx, http.MethodGet, wishlistPath+"?"+q.Encode(), token)
	if err != nil {
		return listPage{}, err
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return listPage{}, callError(err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return listPage{}, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return listPage{}, fmt.Errorf("decode wishlist response: %w", err)
	}
	return decodePage(env.Data)
}

// decodePage accepts either the paginated object or a bare array of items.
func decodePage(data json.RawMessage) (listPage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return listPage{}, nil
	}
	if data[0] == '[' {
		var items []domain.ProductRef
		if err := json.Unmarshal(data, &items); err != nil {
			return listPage{}, fmt.Errorf("decode wishlist items: %w", err)
		}
		return listPage{Items: items, Total: len(items)}, nil
	}
	var p listPage
	if err := json.Unmarshal(data, &p); err != nil {
		return listPage{}, fmt.Errorf("decode wishlist page: %w", err)
	}
	return p, nil
}

// Add puts productID on the server-side wishlist. Adding an existing item
// succeeds.
func (c *HTTPWishlistClient) Add(ctx context.Context, token, productID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "wishlist.add", attribute.String("product.id", productID))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	return c.mutate(ctx, http.MethodPost, token, productID)
}

// Remove deletes productID from the server-side wishlist. Removing an item
// the server does not have succeeds.
func (c *HTTPWishlistClient) Remove(ctx context.Context, token, productID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "wishlist.remove", attribute.String("product.id", productID))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	err = c.mutate(ctx, http.MethodDelete, token, productID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}

func (c *HTTPWishlistClient) mutate(ctx context.Context, method, token, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return apperrors.InvalidInput("product id is required")
	}

	req, err := c.newRequest(ctx, method, wishlistPath+"/"+url.PathEscape(productID), token)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return callError(err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *HTTPWishlistClient) newRequest(ctx context.Context, method, path, token string) (*http.Request, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("no access token")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationIDHeader, id)
	}
	return req, nil
}

var _ WishlistClient = (*HTTPWishlistClient)(nil)

// callError reports an open breaker as unavailable so callers back off
// instead of treating it as a rejected request.
func callError(err error) error {
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return apperrors.Unavailable("user service circuit open", err)
	}
	return apperrors.Wrap(err, "call user service")
}
