package cookie

import (
	"net/http"
	"time"
)

// Cookie names shared with the client-side experiment script.
const (
	AssignmentCookieName = "__utmx"
	TimestampCookieName  = "__utmxx"
)

// ReadAssignment returns the raw assignment cookie value from a request, or
// "" when the cookie is absent.
func ReadAssignment(r *http.Request) string {
	return readValue(r, AssignmentCookieName)
}

// ReadTimestamp returns the raw timestamp cookie value from a request, or ""
// when the cookie is absent.
func ReadTimestamp(r *http.Request) string {
	return readValue(r, TimestampCookieName)
}

func readValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Write sets both experiment cookies on a response. The cookies are scoped to
// "."+domain with path "/" and expire TTLSeconds after now; Secure, HttpOnly
// and SameSite stay off so the client-side script keeps full access.
func Write(w http.ResponseWriter, domain, assignment, timestamp string, now time.Time) {
	expires := now.Add(TTLSeconds * time.Second)
	setValue(w, AssignmentCookieName, assignment, domain, expires)
	setValue(w, TimestampCookieName, timestamp, domain, expires)
}

func setValue(w http.ResponseWriter, name, value, domain string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:    name,
		Value:   value,
		Path:    "/",
		Domain:  "." + domain,
		Expires: expires,
	})
}
