package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const cartIDKey contextKey = "cart_id"

const cartCookieName = "cart_session"

// CartSessionMiddleware identifies the buyer's cart. The session id
// lives in a long-lived cookie, standing in for the original's
// per-browser local storage: same cart across visits, no expiry.
func CartSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cartID string
		if cookie, err := r.Cookie(cartCookieName); err == nil && cookie.Value != "" {
			cartID = cookie.Value
		} else {
			cartID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     cartCookieName,
				Value:    cartID,
				Path:     "/",
				MaxAge:   0, // session-scoped is enough; the store has no expiry either
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), cartIDKey, cartID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getCartID(ctx context.Context) string {
	if id, ok := ctx.Value(cartIDKey).(string); ok {
		return id
	}
	return ""
}
