package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfgarc/giftcode-redeemer/internal/config"
	"github.com/lfgarc/giftcode-redeemer/internal/model"
)

// scriptedServer answers the login endpoint with a fixed success and the
// redeem endpoint with the scripted responses in order, repeating the last
// one when the script runs out.
func scriptedServer(t *testing.T, script []apiResponse) (*httptest.Server, *int32) {
	t.Helper()
	var redeemCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/player", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{Code: 0, Data: json.RawMessage(`{"nickname":"tester","kid":7}`)})
	})
	mux.HandleFunc("/api/gift_code", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&redeemCalls, 1)
		idx := int(n) - 1
		if idx >= len(script) {
			idx = len(script) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(script[idx])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &redeemCalls
}

func testClient(baseURL string) *Client {
	return New(config.UpstreamConfig{
		LoginURL:    baseURL + "/api/player",
		RedeemURL:   baseURL + "/api/gift_code",
		Secret:      "test-secret",
		MaxAttempts: 3,
		RetryDelay:  0, // no pauses in tests
	})
}

func TestRedeem_Success(t *testing.T) {
	srv, calls := scriptedServer(t, []apiResponse{{Code: 0, Msg: "SUCCESS"}})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "12345", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, outcome.Status)
	assert.Equal(t, "Successfully redeemed", outcome.Message)
	assert.Equal(t, http.StatusOK, outcome.HTTPStatus)
	assert.Empty(t, outcome.BlockReason)
	assert.False(t, outcome.NoResponse)
	assert.NotEmpty(t, outcome.Raw, "raw upstream payload must be retained")
	assert.Equal(t, int32(1), *calls)
}

func TestRedeem_SameTypeExchangeIsSuccess(t *testing.T) {
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "SAME TYPE EXCHANGE"}})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, outcome.Status)
	assert.Equal(t, "Successfully redeemed (same type)", outcome.Message)
}

func TestRedeem_AlreadyRedeemed(t *testing.T) {
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "RECEIVED"}})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusAlreadyRedeemed, outcome.Status)
	assert.Equal(t, "Already redeemed", outcome.Message)
	assert.Empty(t, outcome.BlockReason)
}

func TestRedeem_ExpiredCodeTagged(t *testing.T) {
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "TIME ERROR."}}) // trailing period stripped
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, "Code has expired", outcome.Message)
	assert.Equal(t, model.BlockExpired, outcome.BlockReason)
}

func TestRedeem_ClaimLimitTagged(t *testing.T) {
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "USED"}})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, "Claim limit reached, unable to claim", outcome.Message)
	assert.Equal(t, model.BlockLimit, outcome.BlockReason)
}

func TestRedeem_TimeoutRetryThenSuccess(t *testing.T) {
	srv, calls := scriptedServer(t, []apiResponse{
		{Msg: "TIMEOUT RETRY"},
		{Msg: "TIMEOUT RETRY"},
		{Msg: "SUCCESS"},
	})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, outcome.Status)
	assert.Equal(t, int32(3), *calls, "exactly three attempts expected")
}

func TestRedeem_TimeoutRetryExhausted(t *testing.T) {
	srv, calls := scriptedServer(t, []apiResponse{
		{Msg: "TIMEOUT RETRY"},
		{Msg: "TIMEOUT RETRY"},
		{Msg: "TIMEOUT RETRY"},
	})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	// The last attempt returns the response as-is instead of retrying past
	// the bound; TIMEOUT RETRY itself is not in the success table.
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, "Server requested retry", outcome.Message)
	assert.False(t, outcome.NoResponse)
	assert.Equal(t, int32(3), *calls)
}

func TestRedeem_UnknownMessageIsGenericError(t *testing.T) {
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "CDK NOT FOUND"}})
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, "CDK NOT FOUND", outcome.Message)
	assert.Empty(t, outcome.BlockReason)
}

func TestRedeem_NoResponseAfterRetries(t *testing.T) {
	// A server that is down entirely: every attempt fails at the transport
	// layer, producing the distinguished no-response outcome.
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "SUCCESS"}})
	addr := srv.URL
	srv.Close()
	client := testClient(addr)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.True(t, outcome.NoResponse)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, "No response", outcome.Message)
}

func TestRedeem_Http429IsRejectionNotDeadTransport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/player", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/api/gift_code", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.False(t, outcome.NoResponse, "429 is an answer, not a dead transport")
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, http.StatusTooManyRequests, outcome.HTTPStatus)
}

func TestRedeem_ProfileLookupFailureDoesNotAbort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/player", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{Code: 40004, Msg: "NOT EXIST"})
	})
	mux.HandleFunc("/api/gift_code", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{Msg: "SUCCESS"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := testClient(srv.URL)

	outcome, err := client.Redeem(context.Background(), "1", "FOO")

	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, outcome.Status)
}

func TestRedeem_RequestIsSignedForm(t *testing.T) {
	var captured url.Values
	var contentType string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/player", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{Code: 0, Data: json.RawMessage(`{}`)})
	})
	mux.HandleFunc("/api/gift_code", func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		captured = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(apiResponse{Msg: "SUCCESS"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := testClient(srv.URL)

	_, err := client.Redeem(context.Background(), "  12345  ", "FOO")
	require.NoError(t, err)

	// The upstream speaks form encoding, not JSON.
	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	require.NotNil(t, captured)
	assert.Equal(t, "12345", captured.Get("fid"), "player id must be trimmed")
	assert.Equal(t, "FOO", captured.Get("cdk"))
	assert.NotEmpty(t, captured.Get("sign"))
	assert.NotEmpty(t, captured.Get("time"))
}

func TestFetchProfile_Success(t *testing.T) {
	srv, _ := scriptedServer(t, []apiResponse{{Msg: "SUCCESS"}})
	client := testClient(srv.URL)

	profile, err := client.FetchProfile(context.Background(), "12345")

	require.NoError(t, err)
	assert.Equal(t, "tester", profile.Nickname)
	assert.Equal(t, 7, profile.KID)
}

func TestDeriveBlockReason(t *testing.T) {
	tests := []struct {
		name    string
		rawMsg  string
		message string
		want    model.BlockReason
	}{
		{"time error raw", "TIME ERROR", "", model.BlockExpired},
		{"expired in message", "", "Code has EXPIRED", model.BlockExpired},
		{"used raw", "USED", "", model.BlockLimit},
		{"claim limit in message", "", "Claim limit reached", model.BlockLimit},
		{"success", "SUCCESS", "Successfully redeemed", ""},
		{"unknown", "CDK NOT FOUND", "CDK NOT FOUND", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveBlockReason(tt.rawMsg, tt.message))
		})
	}
}
