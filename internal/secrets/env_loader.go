package secrets

import "os"

// Keys for upstream source credentials resolved through the vault when a
// target has no credential of its own.
const (
	KeyWikiSessionCookie = "WIKI_SESSION_COOKIE"
	KeyMailClientID      = "MAIL_CLIENT_ID"
	KeyMailClientSecret  = "MAIL_CLIENT_SECRET"
	KeyMailRefreshToken  = "MAIL_REFRESH_TOKEN"
)

// EnvLoader returns a Loader that reads the specified environment variables.
// Missing variables are silently omitted from the result map.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}
