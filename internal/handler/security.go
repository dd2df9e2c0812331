package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/velora/checkout/internal/domain/auth"
)

const headerAPIKey = "X-API-Key"

// APIKeyAuth authenticates requests via HMAC-SHA256 hashed API keys. The
// gateway return and cancel redirects bypass it elsewhere in the router;
// everything else requires a key.
func APIKeyAuth(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(headerAPIKey)
			info, err := auth.Verify(r.Context(), apikeys, raw, pepper)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Constant-time comparison guards against timing side-channels
			// even though the lookup already succeeded.
			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			computed, err := hex.DecodeString(auth.HashKey(raw, pepper))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if subtle.ConstantTimeCompare(computed, stored) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
