package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload 用私钥对请求体做 HMAC-SHA256 签名，十六进制编码。
func SignPayload(payload []byte, privateKey string) string {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
