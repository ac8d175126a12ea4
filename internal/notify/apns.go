// Package notify implements per-recipient push construction, APNs delivery,
// and token-invalidation handling. Authentication is an ES256 bearer JWT,
// cached and re-signed once it nears Apple's expiry window.
package notify

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	jsoncodec "github.com/goccy/go-json"
	"github.com/gbrlsnchs/jwt/v3"

	"github.com/hanssonlabs/puckline/internal/telemetry"
)

// PushResult classifies an APNs response.
type PushResult int

const (
	PushOk PushResult = iota
	PushBadDeviceToken
	PushOther
)

const tokenTTL = 55 * time.Minute

// Alert is the user-visible title/body of a push.
type Alert struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// ContentState is the live-activity payload's evolving state.
type ContentState struct {
	Report any `json:"report"`
	Event  any `json:"event,omitempty"`
}

// APS is the Apple-defined "aps" dictionary.
type APS struct {
	Alert          *Alert        `json:"alert,omitempty"`
	Sound          string        `json:"sound,omitempty"`
	Event          string        `json:"event,omitempty"` // "end" | "update", live-activity only
	RelevanceScore float64       `json:"relevance-score,omitempty"`
	StaleDate      int64         `json:"stale-date,omitempty"`
	Timestamp      int64         `json:"timestamp,omitempty"`
	ContentState   *ContentState `json:"content-state,omitempty"`
}

// PushPayload is the full body POSTed to APNs.
type PushPayload struct {
	APS              APS      `json:"aps"`
	GameUUID         string   `json:"game_uuid,omitempty"`
	LocalAttachments []string `json:"localAttachements,omitempty"`
}

// APNsClient holds the ES256 signing key and the cached bearer token, and
// issues the device POSTs.
type APNsClient struct {
	host   string
	topic  string
	teamID string
	keyID  string

	httpClient *http.Client
	alg        jwt.Algorithm

	mu            sync.Mutex
	token         string
	tokenIssuedAt time.Time
}

// NewAPNsClient loads the ES256 private key from keyPath and prepares a
// client for one APNs topic.
func NewAPNsClient(host, keyPath, keyID, teamID, topic string) (*APNsClient, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("apns: read key %s: %w", keyPath, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("apns: no PEM block in %s", keyPath)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("apns: parse EC key %s: %w", keyPath, err)
	}

	return &APNsClient{
		host:       host,
		topic:      topic,
		teamID:     teamID,
		keyID:      keyID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		alg:        jwt.NewES256(jwt.ECDSAPrivateKey(key)),
	}, nil
}

// bearerToken returns a cached token, signing a fresh one when the cached
// one is older than 55 minutes.
func (c *APNsClient) bearerToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.tokenIssuedAt) < tokenTTL {
		return c.token, nil
	}

	now := time.Now()
	payload := &jwt.Payload{
		Issuer:   c.teamID,
		IssuedAt: jwt.NumericDate(now),
	}
	raw, err := jwt.Sign(payload, c.alg, jwt.KeyID(c.keyID))
	if err != nil {
		return "", fmt.Errorf("apns: sign jwt: %w", err)
	}

	c.token = string(raw)
	c.tokenIssuedAt = now
	return c.token, nil
}

// pushTypeTopic appends ".push-type.liveactivity" for live-activity pushes;
// plain alerts use the base topic.
func (c *APNsClient) pushTypeTopic(pushType string) string {
	if pushType == "liveactivity" {
		return c.topic + ".push-type.liveactivity"
	}
	return c.topic
}

// Send POSTs one push to a device and classifies the response.
func (c *APNsClient) Send(ctx context.Context, deviceToken, pushType string, priority int, collapseID string, payload PushPayload) PushResult {
	token, err := c.bearerToken()
	if err != nil {
		telemetry.Warnf("apns: %v", err)
		telemetry.Metrics.NotificationErrors.Inc()
		return PushOther
	}

	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		telemetry.Warnf("apns: marshal payload: %v", err)
		return PushOther
	}

	url := fmt.Sprintf("%s/3/device/%s", c.host, deviceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return PushOther
	}
	req.Header.Set("authorization", "bearer "+token)
	req.Header.Set("apns-topic", c.pushTypeTopic(pushType))
	req.Header.Set("apns-push-type", pushType)
	req.Header.Set("apns-priority", strconv.Itoa(priority))
	req.Header.Set("apns-collapse-id", collapseID)
	req.Header.Set("apns-expiration", "0")
	req.Header.Set("content-type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	telemetry.Metrics.PushLatency.Record(time.Since(start))
	if err != nil {
		telemetry.Metrics.NotificationErrors.Inc()
		telemetry.Warnf("apns: post %s: %v", url, err)
		return PushOther
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		telemetry.Metrics.NotificationsSent.Inc()
		return PushOk
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusBadRequest:
		telemetry.Metrics.BadDeviceTokens.Inc()
		return PushBadDeviceToken
	default:
		telemetry.Metrics.NotificationErrors.Inc()
		telemetry.Warnf("apns: %s -> %d", url, resp.StatusCode)
		return PushOther
	}
}
