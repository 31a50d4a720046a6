package share_test

import (
	"encoding/base64"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func encodeRaw(t *testing.T, body string) string {
	t.Helper()
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	defer encoder.Close()
	return base64.RawURLEncoding.EncodeToString(encoder.EncodeAll([]byte(body), nil))
}
