// Package odoo is a thin JSON-RPC client for the Odoo ERP backend.
// Orders confirmed here are mirrored into Odoo sale orders keyed by
// client_order_ref, so retries never create duplicates.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lucasfarre/ordercore-backend/pkg/config"
	pkgerrors "github.com/lucasfarre/ordercore-backend/pkg/errors"
)

const (
	jsonrpcPath               = "/jsonrpc"
	responseBodyReadLimit     = 1 << 20
	defaultRequestTimeout     = 15 * time.Second
	modelResPartner           = "res.partner"
	modelSaleOrder            = "sale.order"
	methodSearch              = "search"
	methodCreate              = "create"
	methodActionConfirm       = "action_confirm"
	serviceCommon             = "common"
	serviceObject             = "object"
	authenticateRetryCooldown = 5 * time.Second
)

var (
	errBaseURLRequired  = errors.New("odoo base url is required")
	errDatabaseRequired = errors.New("odoo database is required")
	errUsernameRequired = errors.New("odoo username is required")
	errAPIKeyRequired   = errors.New("odoo api key is required")
)

// Client speaks Odoo's external JSON-RPC API. It authenticates lazily
// and caches the session uid.
type Client struct {
	httpClient *http.Client
	baseURL    string
	database   string
	username   string
	apiKey     string

	mu          sync.Mutex
	uid         int64
	lastAuthErr time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the Odoo client from configuration.
func NewClient(cfg config.OdooConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errDatabaseRequired
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errUsernameRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		database:   strings.TrimSpace(cfg.Database),
		username:   strings.TrimSpace(cfg.Username),
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CustomerParams identifies a buyer to mirror into res.partner.
type CustomerParams struct {
	ExternalRef string
	Name        string
	Email       string
	Phone       string
}

// OrderLine is one sale.order.line to create.
type OrderLine struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  float64
}

// OrderParams describes a sale order keyed by ClientOrderRef.
type OrderParams struct {
	ClientOrderRef string
	CustomerID     int64
	Lines          []OrderLine
}

// UpsertCustomer finds a partner by external reference or creates one,
// returning the Odoo partner id.
func (c *Client) UpsertCustomer(ctx context.Context, params CustomerParams) (int64, error) {
	if strings.TrimSpace(params.ExternalRef) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "odoo customer external ref is required")
	}

	ids, err := c.searchIDs(ctx, modelResPartner, []any{
		[]any{"ref", "=", params.ExternalRef},
	})
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		return ids[0], nil
	}

	values := map[string]any{
		"ref":  params.ExternalRef,
		"name": params.Name,
	}
	if trimmed := strings.TrimSpace(params.Email); trimmed != "" {
		values["email"] = trimmed
	}
	if trimmed := strings.TrimSpace(params.Phone); trimmed != "" {
		values["phone"] = trimmed
	}

	id, err := c.createRecord(ctx, modelResPartner, values)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateOrFindOrder creates a sale order for the given client
// reference, or returns the existing one when a previous attempt
// already got through.
func (c *Client) CreateOrFindOrder(ctx context.Context, params OrderParams) (int64, error) {
	ref := strings.TrimSpace(params.ClientOrderRef)
	if ref == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "odoo client order ref is required")
	}
	if params.CustomerID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "odoo customer id is required")
	}

	ids, err := c.searchIDs(ctx, modelSaleOrder, []any{
		[]any{"client_order_ref", "=", ref},
	})
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		return ids[0], nil
	}

	lines := make([]any, 0, len(params.Lines))
	for _, line := range params.Lines {
		lines = append(lines, []any{0, 0, map[string]any{
			"name":            line.Name,
			"product_uom_qty": line.Quantity,
			"price_unit":      line.UnitPrice,
		}})
	}

	values := map[string]any{
		"partner_id":       params.CustomerID,
		"client_order_ref": ref,
		"order_line":       lines,
	}
	return c.createRecord(ctx, modelSaleOrder, values)
}

// ConfirmOrder moves a sale order out of draft.
func (c *Client) ConfirmOrder(ctx context.Context, orderID int64) error {
	if orderID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "odoo order id is required")
	}
	var out any
	return c.executeKw(ctx, modelSaleOrder, methodActionConfirm, []any{[]any{orderID}}, nil, &out)
}

func (c *Client) searchIDs(ctx context.Context, model string, domain []any) ([]int64, error) {
	var ids []int64
	err := c.executeKw(ctx, model, methodSearch, []any{domain}, map[string]any{"limit": 1}, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) createRecord(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	err := c.executeKw(ctx, model, methodCreate, []any{values}, nil, &id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	callArgs := []any{c.database, uid, c.apiKey, model, method, args}
	if kwargs != nil {
		callArgs = append(callArgs, kwargs)
	}
	return c.call(ctx, serviceObject, "execute_kw", callArgs, out)
}

func (c *Client) authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.uid > 0 {
		uid := c.uid
		c.mu.Unlock()
		return uid, nil
	}
	if !c.lastAuthErr.IsZero() && time.Since(c.lastAuthErr) < authenticateRetryCooldown {
		c.mu.Unlock()
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "odoo authentication cooling down")
	}
	c.mu.Unlock()

	var uid int64
	err := c.call(ctx, serviceCommon, "authenticate", []any{c.database, c.username, c.apiKey, map[string]any{}}, &uid)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastAuthErr = time.Now()
		return 0, err
	}
	if uid <= 0 {
		c.lastAuthErr = time.Now()
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "odoo rejected credentials")
	}
	c.uid = uid
	c.lastAuthErr = time.Time{}
	return uid, nil
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      int64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]any{
			"service": service,
			"method":  method,
			"args":    args,
		},
		ID: time.Now().UnixNano(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal odoo request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+jsonrpcPath, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build odoo request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute odoo request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read odoo response")
	}
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			"odoo request failed",
		)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode odoo response")
	}
	if rpcResp.Error != nil {
		msg := rpcResp.Error.Data.Message
		if msg == "" {
			msg = rpcResp.Error.Message
		}
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("odoo rpc error %d: %s", rpcResp.Error.Code, msg),
			fmt.Sprintf("odoo %s.%s failed", service, method),
		)
	}

	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode odoo result")
	}
	return nil
}
