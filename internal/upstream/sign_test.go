package upstream

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_SortedKeyOrder(t *testing.T) {
	// The signature must be computed over keys in lexicographic order
	// regardless of map construction order.
	payload := map[string]any{
		"time": int64(1700000000000),
		"fid":  "12345",
		"cdk":  "GIFTCODE",
	}

	expected := md5.Sum([]byte("cdk=GIFTCODE&fid=12345&time=1700000000000" + "secret"))
	assert.Equal(t, hex.EncodeToString(expected[:]), Sign(payload, "secret"))
}

func TestSign_Deterministic(t *testing.T) {
	payload := map[string]any{
		"fid":  "999",
		"cdk":  "FOO",
		"time": int64(42),
	}

	first := Sign(payload, "s3cret")
	second := Sign(payload, "s3cret")
	assert.Equal(t, first, second, "same payload must always produce the same signature")
}

func TestSign_FieldChangeChangesSignature(t *testing.T) {
	base := map[string]any{"fid": "1", "cdk": "FOO", "time": int64(1)}

	variants := []map[string]any{
		{"fid": "2", "cdk": "FOO", "time": int64(1)},
		{"fid": "1", "cdk": "BAR", "time": int64(1)},
		{"fid": "1", "cdk": "FOO", "time": int64(2)},
	}

	baseSig := Sign(base, "secret")
	for _, v := range variants {
		assert.NotEqual(t, baseSig, Sign(v, "secret"))
	}
}

func TestSign_SecretChangesSignature(t *testing.T) {
	payload := map[string]any{"fid": "1", "time": int64(1)}
	assert.NotEqual(t, Sign(payload, "a"), Sign(payload, "b"))
}

func TestSign_NonPrimitiveValuesJSONSerialized(t *testing.T) {
	payload := map[string]any{
		"fid":  "1",
		"meta": map[string]string{"k": "v"},
	}

	expected := md5.Sum([]byte(`fid=1&meta={"k":"v"}` + "x"))
	assert.Equal(t, hex.EncodeToString(expected[:]), Sign(payload, "x"))
}

func TestSignedPayload_AddsSignWithoutMutating(t *testing.T) {
	payload := map[string]any{"fid": "1", "time": int64(5)}

	signed := SignedPayload(payload, "secret")

	require.Contains(t, signed, "sign")
	assert.Equal(t, Sign(payload, "secret"), signed["sign"])
	assert.NotContains(t, payload, "sign", "input payload must not be mutated")
	assert.Equal(t, "1", signed["fid"])
	assert.Equal(t, int64(5), signed["time"])
}
