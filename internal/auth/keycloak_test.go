package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/qmsops/capa-gin/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJWKSServer 构造提供单个 RSA 公钥的 JWKS 测试服务器
func newJWKSServer(t *testing.T, kid string, key *rsa.PublicKey) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/protocol/openid-connect/certs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp := map[string]interface{}{
			"keys": []map[string]string{{
				"kid": kid,
				"kty": "RSA",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

// signToken 用给定私钥签发携带 kid 头部的 RS256 token
func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims *auth.KeycloakClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newTestClaims(issuer string) *auth.KeycloakClaims {
	claims := &auth.KeycloakClaims{
		Sub:               "user-001",
		PreferredUsername: "zhangsan",
		Department:        "dept-01",
	}
	claims.Issuer = issuer
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	claims.RealmAccess.Roles = []string{"quality"}
	return claims
}

// TestValidateToken 合法 RS256 token 通过 JWKS 公钥校验并解析出身份
func TestValidateToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newJWKSServer(t, "kid-001", &key.PublicKey)
	defer srv.Close()

	validator := auth.NewKeycloakTokenValidator(srv.URL)
	claims, err := validator.ValidateToken(signToken(t, key, "kid-001", newTestClaims(srv.URL)))
	require.NoError(t, err)

	identity := claims.Identity()
	assert.Equal(t, "user-001", identity.ID)
	assert.Equal(t, "zhangsan", identity.Username)
	assert.Equal(t, "dept-01", identity.DepartmentID)
	assert.Equal(t, []string{"quality"}, identity.Roles)
}

// TestValidateToken_WrongAlg 非 RSA 签名算法在取公钥前就被拒绝
func TestValidateToken_WrongAlg(t *testing.T) {
	validator := auth.NewKeycloakTokenValidator("http://keycloak.invalid/realms/qms")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, newTestClaims("http://keycloak.invalid/realms/qms"))
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = validator.ValidateToken(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected signing method")
}

// TestValidateToken_MissingKid 头部没有 kid 的 token 无法定位公钥
func TestValidateToken_MissingKid(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	validator := auth.NewKeycloakTokenValidator("http://keycloak.invalid/realms/qms")

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, newTestClaims("http://keycloak.invalid/realms/qms"))
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	_, err = validator.ValidateToken(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing kid")
}

// TestValidateToken_WrongKey 用错误私钥签名的 token 验签失败
func TestValidateToken_WrongKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newJWKSServer(t, "kid-001", &key.PublicKey)
	defer srv.Close()

	validator := auth.NewKeycloakTokenValidator(srv.URL)
	_, err = validator.ValidateToken(signToken(t, otherKey, "kid-001", newTestClaims(srv.URL)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to validate token")
}

// TestValidateToken_WrongIssuer issuer 不匹配的 token 被拒绝
func TestValidateToken_WrongIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := newJWKSServer(t, "kid-001", &key.PublicKey)
	defer srv.Close()

	validator := auth.NewKeycloakTokenValidator(srv.URL)
	_, err = validator.ValidateToken(signToken(t, key, "kid-001", newTestClaims("http://other.invalid/realms/qms")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid issuer")
}
