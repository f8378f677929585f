package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// APICreds are the L2 credentials returned by the CLOB key derivation flow.
type APICreds struct {
	Key        string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Valid reports whether all three parts are present.
func (c APICreds) Valid() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// L2Headers signs one request: HMAC-SHA256 over timestamp+method+path+body
// keyed by the url-safe base64 secret.
func (c APICreds) L2Headers(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secret, err := base64.URLEncoding.DecodeString(c.Secret)
	if err != nil {
		secret, err = base64.StdEncoding.DecodeString(c.Secret)
		if err != nil {
			secret = []byte(c.Secret)
		}
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + method + path + strings.ReplaceAll(body, "'", `"`)))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    c.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": c.Passphrase,
		"POLY_SIGNATURE":  base64.URLEncoding.EncodeToString(mac.Sum(nil)),
	}
}

func (c APICreds) String() string {
	return fmt.Sprintf("APICreds{key=%s}", mask(c.Key))
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
