package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lfgarc/giftcode-redeemer/internal/config"
	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// Outcome is the normalized result of one redemption attempt. NoResponse is
// set when no valid HTTP response was obtained after exhausting retries; the
// orchestrator treats that as a rate-limit signal, not a per-pair failure.
type Outcome struct {
	Status      model.HistoryStatus
	Message     string
	HTTPStatus  int
	Raw         json.RawMessage
	RawMsg      string
	BlockReason model.BlockReason
	NoResponse  bool
}

// Profile is the subset of the upstream player lookup we care about.
type Profile struct {
	Nickname string `json:"nickname"`
	KID      int    `json:"kid"`
	StoveLv  int    `json:"stove_lv"`
}

// apiResponse is the upstream JSON envelope. Code 0 means success for the
// profile lookup; Msg carries the free-text redemption result.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Client talks to the third-party gift-code API.
type Client struct {
	cfg  config.UpstreamConfig
	http *http.Client
}

// New creates a Client from the upstream configuration.
func New(cfg config.UpstreamConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// browserOrigin is sent as Origin/Referer; the upstream serves a web frontend
// and rejects requests that do not look like it.
const browserOrigin = "https://ks-giftcode.centurygame.com"

// friendlyMessages maps the upstream result codes to human-readable text.
var friendlyMessages = map[string]string{
	"SUCCESS":            "Successfully redeemed",
	"RECEIVED":           "Already redeemed",
	"SAME TYPE EXCHANGE": "Successfully redeemed (same type)",
	"TIME ERROR":         "Code has expired",
	"TIMEOUT RETRY":      "Server requested retry",
	"USED":               "Claim limit reached, unable to claim",
	"NOT LOGIN":          "Rate limited - please wait",
}

// DeriveBlockReason maps a raw upstream result and its rendered message to a
// code-wide block reason, or "" when the failure is not code-terminal.
func DeriveBlockReason(rawMsg, message string) model.BlockReason {
	upper := strings.ToUpper(message)
	if rawMsg == "TIME ERROR" || strings.Contains(upper, "EXPIRED") {
		return model.BlockExpired
	}
	if rawMsg == "USED" || strings.Contains(upper, "CLAIM LIMIT") {
		return model.BlockLimit
	}
	return ""
}

// FetchProfile performs the upstream player lookup. The orchestrator calls it
// best-effort before redeeming; a prior lookup improves the odds the upstream
// accepts the redemption call.
func (c *Client) FetchProfile(ctx context.Context, playerID string) (*Profile, error) {
	payload := map[string]any{
		"fid":  strings.TrimSpace(playerID),
		"time": time.Now().UnixMilli(),
	}
	status, resp, _, err := c.request(ctx, c.cfg.LoginURL, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || resp == nil {
		return nil, fmt.Errorf("login request failed: http %d", status)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("login failed: %s", firstNonEmpty(resp.Msg, "unknown"))
	}
	var p Profile
	if err := json.Unmarshal(resp.Data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// Redeem performs one "redeem code for player" interaction and normalizes the
// result. It never returns an error for an ordinary upstream rejection; the
// error return covers only unusable transport, e.g. request construction
// failure. Retries are bounded by MaxAttempts and happen only on transport
// failure or an explicit TIMEOUT RETRY from the upstream.
func (c *Client) Redeem(ctx context.Context, playerID, code string) (*Outcome, error) {
	if _, err := c.FetchProfile(ctx, playerID); err != nil {
		log.Debug().Err(err).Str("player_id", playerID).Msg("profile lookup failed, proceeding with redemption")
	}

	payload := map[string]any{
		"fid":  strings.TrimSpace(playerID),
		"cdk":  code,
		"time": time.Now().UnixMilli(),
	}
	status, resp, raw, err := c.request(ctx, c.cfg.RedeemURL, payload)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Outcome{
			Status:     model.StatusError,
			Message:    "No response",
			HTTPStatus: status,
			NoResponse: true,
		}, nil
	}
	return normalize(status, resp, raw), nil
}

// request posts a signed payload, retrying up to MaxAttempts. It returns a
// nil apiResponse when every attempt failed to produce a valid response.
func (c *Client) request(ctx context.Context, endpoint string, payload map[string]any) (int, *apiResponse, json.RawMessage, error) {
	// The upstream expects a form-encoded body, not JSON.
	form := url.Values{}
	for k, v := range SignedPayload(payload, c.cfg.Secret) {
		form.Set(k, encodeValue(v))
	}
	body := form.Encode()

	attempts := c.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	lastStatus := 0
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastStatus, nil, nil, nil
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		status, resp, raw, reqErr := c.post(ctx, endpoint, body)
		if reqErr != nil {
			log.Warn().Err(reqErr).Str("url", endpoint).Int("attempt", attempt+1).Msg("upstream request failed")
			lastStatus = 0
			continue
		}
		lastStatus = status

		if status == http.StatusTooManyRequests {
			// The upstream answered, just unhappily. Surface it as a
			// normal rejection rather than a dead transport.
			synthetic := apiResponse{Code: 429, Msg: "RATE LIMITED"}
			rawSyn, _ := json.Marshal(synthetic)
			return status, &synthetic, rawSyn, nil
		}

		if status == http.StatusOK && resp != nil {
			if stripTrailingPeriod(resp.Msg) == "TIMEOUT RETRY" && attempt < attempts-1 {
				continue
			}
			return status, resp, raw, nil
		}
	}

	return lastStatus, nil, nil, nil
}

func (c *Client) post(ctx context.Context, endpoint, body string) (int, *apiResponse, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", browserOrigin)
	req.Header.Set("Referer", browserOrigin+"/")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer res.Body.Close()

	var resp apiResponse
	var raw json.RawMessage
	dec := json.NewDecoder(res.Body)
	if err := dec.Decode(&raw); err == nil {
		_ = json.Unmarshal(raw, &resp)
	} else {
		return res.StatusCode, nil, nil, nil
	}
	return res.StatusCode, &resp, raw, nil
}

// normalize maps the upstream free-text result into an outcome category.
// Expired and claim-limit rejections additionally carry the block reason the
// pair index uses to retire the code for every player.
func normalize(httpStatus int, resp *apiResponse, raw json.RawMessage) *Outcome {
	rawMsg := stripTrailingPeriod(firstNonEmpty(resp.Msg, "Unknown error"))
	message := firstNonEmpty(friendlyMessages[rawMsg], rawMsg)

	status := model.StatusError
	switch rawMsg {
	case "SUCCESS", "SAME TYPE EXCHANGE":
		status = model.StatusSuccess
	case "RECEIVED":
		status = model.StatusAlreadyRedeemed
	}

	return &Outcome{
		Status:      status,
		Message:     message,
		HTTPStatus:  httpStatus,
		Raw:         raw,
		RawMsg:      rawMsg,
		BlockReason: DeriveBlockReason(rawMsg, message),
	}
}

func stripTrailingPeriod(s string) string {
	return strings.TrimSuffix(s, ".")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
