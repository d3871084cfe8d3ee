package auth

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/ecolink-core/internal/infrastructure/config"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
)

// Vendor app fingerprint used during login. The account service rejects
// unknown client applications.
const (
	clientKey    = "1520391301804"
	clientSecret = "6c319b2a5cd3e66e39159c2e28f2fce9"

	authClientKey    = "1520391491841"
	authClientSecret = "77ef58ce3afbe337da74aa8c5ab963a9"

	appCode    = "global_e"
	appVersion = "1.6.3"
	channel    = "google_play"
	deviceType = "1"
)

// Gateway retry policy. A 502 from the account gateway is transient and
// resolves within seconds; anything else is not worth retrying.
var (
	gatewayRetryDelay      = 10 * time.Second
	gatewayMaxTries   uint = 3
)

// credentialLifetime is how long a portal token is trusted before a
// fresh login. renewalSlack re-authenticates slightly early so in-flight
// requests never ride an expiring token.
const (
	credentialLifetime = 24 * time.Hour
	renewalSlack       = 60 * time.Second
)

// Credentials is one authenticated portal identity.
type Credentials struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// expired reports whether the credentials need renewal.
func (c Credentials) expired() bool {
	return time.Now().After(c.ExpiresAt.Add(-renewalSlack))
}

// Client authenticates against the vendor account service and issues
// authenticated portal requests.
//
// Credentials are cached until shortly before expiry; renewals notify
// registered listeners so the broker connection can rotate its password.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	httpClient *http.Client
	cfg        *config.Config
	log        *logging.Logger

	// Test seams; empty means the production endpoints.
	mainBase string
	authBase string

	mu        sync.Mutex
	creds     *Credentials
	listeners map[int]func(Credentials)
	nextID    int
}

// NewClient creates an authentication client.
//
// Parameters:
//   - cfg: Account, portal and timeout configuration
//   - log: Logger for authentication diagnostics
//
// Returns:
//   - *Client: Ready-to-use client; no network traffic happens until the
//     first Authenticate or PostAuthenticated call
func NewClient(cfg *config.Config, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		cfg:        cfg,
		log:        log.With("component", "auth"),
		listeners:  make(map[int]func(Credentials)),
	}
}

// Subscribe registers a listener for credential renewals.
//
// Returns:
//   - func(): Removal handle for the listener
func (c *Client) Subscribe(fn func(Credentials)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Authenticate returns valid portal credentials, logging in when the
// cache is empty or about to expire.
func (c *Client) Authenticate(ctx context.Context) (Credentials, error) {
	c.mu.Lock()
	if c.creds != nil && !c.creds.expired() {
		creds := *c.creds
		c.mu.Unlock()
		return creds, nil
	}
	c.mu.Unlock()

	creds, err := c.login(ctx)
	if err != nil {
		return Credentials{}, err
	}

	c.mu.Lock()
	c.creds = &creds
	listeners := make([]func(Credentials), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	c.log.Info("authenticated", "user_id", creds.UserID, "expires_at", creds.ExpiresAt)
	for _, fn := range listeners {
		fn(creds)
	}
	return creds, nil
}

// Invalidate drops the cached credentials so the next call logs in again.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = nil
}

// login walks the three account service steps: password login, auth code
// issuance and the portal token exchange.
func (c *Client) login(ctx context.Context) (Credentials, error) {
	uid, accessToken, err := c.loginMain(ctx)
	if err != nil {
		return Credentials{}, err
	}
	authCode, err := c.requestAuthCode(ctx, uid, accessToken)
	if err != nil {
		return Credentials{}, err
	}
	return c.loginByItToken(ctx, uid, authCode)
}

// loginMain exchanges the password hash for an account access token.
func (c *Client) loginMain(ctx context.Context) (uid, accessToken string, err error) {
	params := map[string]string{
		"account":      c.cfg.Account.Username,
		"password":     c.cfg.Account.PasswordHash,
		"requestId":    strings.ReplaceAll(uuid.NewString(), "-", ""),
		"authTimespan": strconv.FormatInt(time.Now().UnixMilli(), 10),
		"authTimeZone": "GMT-8",
	}
	meta := c.metaParams()
	signOver := merge(params, meta)

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	for k, v := range meta {
		query.Set(k, v)
	}
	query.Set("authAppkey", clientKey)
	query.Set("authSign", sign(clientKey, clientSecret, signOver))

	doc, err := c.getJSON(ctx, c.mainURL("user/login"), query)
	if err != nil {
		return "", "", err
	}

	code, _ := doc["code"].(string)
	switch code {
	case "0000":
	case "1005", "1010":
		return "", "", ErrInvalidCredentials
	default:
		return "", "", fmt.Errorf("%w: code %s", ErrLoginFailed, code)
	}

	data, ok := doc["data"].(map[string]any)
	if !ok {
		return "", "", fmt.Errorf("%w: malformed login response", ErrLoginFailed)
	}
	uid, _ = data["uid"].(string)
	accessToken, _ = data["accessToken"].(string)
	if uid == "" || accessToken == "" {
		return "", "", fmt.Errorf("%w: missing uid or access token", ErrLoginFailed)
	}
	return uid, accessToken, nil
}

// requestAuthCode trades the account token for a one-shot auth code.
func (c *Client) requestAuthCode(ctx context.Context, uid, accessToken string) (string, error) {
	params := map[string]string{
		"uid":          uid,
		"accessToken":  accessToken,
		"bizType":      "ECOVACS_IOT",
		"deviceId":     c.cfg.Account.ClientID,
		"authTimespan": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("authAppkey", authClientKey)
	query.Set("authSign", sign(authClientKey, authClientSecret, params))

	base := c.authBase
	if base == "" {
		base = fmt.Sprintf("https://gl-%s-openapi.ecovacs.com", strings.ToLower(c.cfg.Account.Country))
	}
	doc, err := c.getJSON(ctx, base+"/v1/global/auth/getAuthCode", query)
	if err != nil {
		return "", err
	}

	if code, _ := doc["code"].(string); code != "0000" {
		return "", fmt.Errorf("%w: auth code request failed with code %s", ErrLoginFailed, code)
	}
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: malformed auth code response", ErrLoginFailed)
	}
	authCode, _ := data["authCode"].(string)
	if authCode == "" {
		return "", fmt.Errorf("%w: missing auth code", ErrLoginFailed)
	}
	return authCode, nil
}

// loginByItToken exchanges the auth code for the portal user token.
func (c *Client) loginByItToken(ctx context.Context, uid, authCode string) (Credentials, error) {
	body := map[string]any{
		"edition":  "ECOGLOBLE",
		"userId":   uid,
		"token":    authCode,
		"realm":    "ecouser.net",
		"resource": ResourceID(c.cfg.Account.ClientID),
		"org":      "ECOWW",
		"last":     "",
		"country":  strings.ToUpper(c.cfg.Account.Country),
		"todo":     "loginByItToken",
	}

	doc, err := c.postJSON(ctx, c.portalURL("users/user.do"), body, nil)
	if err != nil {
		return Credentials{}, err
	}

	if result, _ := doc["result"].(string); result != "ok" {
		return Credentials{}, fmt.Errorf("%w: token exchange result %v", ErrLoginFailed, doc["result"])
	}
	userID, _ := doc["userId"].(string)
	token, _ := doc["token"].(string)
	if userID == "" || token == "" {
		return Credentials{}, fmt.Errorf("%w: missing portal token", ErrLoginFailed)
	}

	return Credentials{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(credentialLifetime),
	}, nil
}

// PostAuthenticated posts a portal request with the auth block injected
// into the body and the user id appended to the query.
//
// Parameters:
//   - ctx: Cancellation context
//   - path: Portal path below the api root, e.g. "iot/devmanager.do"
//   - body: Request document; the auth block is added to a copy
//   - query: Optional query parameters
//
// Returns:
//   - map[string]any: Decoded response document
//   - error: Authentication or transport failure
func (c *Client) PostAuthenticated(ctx context.Context, path string, body map[string]any, query url.Values) (map[string]any, error) {
	creds, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	authed := make(map[string]any, len(body)+1)
	for k, v := range body {
		authed[k] = v
	}
	authed["auth"] = map[string]any{
		"with":     "users",
		"userid":   creds.UserID,
		"realm":    "ecouser.net",
		"token":    creds.Token,
		"resource": ResourceID(c.cfg.Account.ClientID),
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("u", creds.UserID)

	return c.postJSON(ctx, c.portalURL(path), authed, q)
}

// getJSON issues a GET with gateway retry and decodes the JSON answer.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values) (map[string]any, error) {
	return c.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	})
}

// postJSON issues a POST with gateway retry and decodes the JSON answer.
func (c *Client) postJSON(ctx context.Context, endpoint string, body map[string]any, query url.Values) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// doJSON runs one HTTP exchange under the gateway retry policy.
func (c *Client) doJSON(ctx context.Context, build func() (*http.Request, error)) (map[string]any, error) {
	operation := func() (map[string]any, error) {
		req, err := build()
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusBadGateway {
			c.log.Warn("gateway returned 502, retrying", "url", req.URL.Path)
			return nil, ErrPortalUnavailable
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return doc, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(gatewayRetryDelay)),
		backoff.WithMaxTries(gatewayMaxTries),
	)
}

// mainURL builds an account service endpoint.
func (c *Client) mainURL(path string) string {
	country := strings.ToLower(c.cfg.Account.Country)
	base := c.mainBase
	if base == "" {
		base = fmt.Sprintf("https://gl-%s-api.ecovacs.com", country)
	}
	return fmt.Sprintf("%s/v1/private/%s/en/%s/%s/%s/%s/%s/%s",
		base, country, c.cfg.Account.ClientID, appCode, appVersion, channel, deviceType, path)
}

// portalURL builds a portal api endpoint, honouring the self-hosted
// override.
func (c *Client) portalURL(path string) string {
	base := c.cfg.Portal.URLOverride
	if base == "" {
		base = fmt.Sprintf("https://portal-%s.ecouser.net", Continent(c.cfg.Account.Country))
	}
	return strings.TrimRight(base, "/") + "/api/" + path
}

// BrokerURL returns the vendor broker endpoint for a country, unless an
// override points at a self-hosted broker.
func BrokerURL(country, override string) string {
	if override != "" {
		return override
	}
	return fmt.Sprintf("mqtts://mq-%s.ecouser.net:443", Continent(country))
}

// Continent maps a country code to its portal and broker shard.
func Continent(country string) string {
	switch strings.ToUpper(country) {
	case "US", "CA", "MX", "BR", "AR":
		return "na"
	case "JP", "KR", "TW", "MY", "SG", "TH", "AU", "NZ":
		return "as"
	case "CN":
		return "cn"
	default:
		return "eu"
	}
}

// ResourceID derives the per-client resource from the client id; the
// portal and broker distinguish concurrent sessions of one account by it.
func ResourceID(clientID string) string {
	if len(clientID) > 8 {
		return clientID[:8]
	}
	return clientID
}

// sign computes the md5 request signature over the sorted parameters.
func sign(key, secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(key)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
	}
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// metaParams returns the app fingerprint parameters included in signed
// account requests.
func (c *Client) metaParams() map[string]string {
	return map[string]string{
		"country":    strings.ToLower(c.cfg.Account.Country),
		"lang":       "en",
		"deviceId":   c.cfg.Account.ClientID,
		"appCode":    appCode,
		"appVersion": appVersion,
		"channel":    channel,
		"deviceType": deviceType,
	}
}

func merge(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
