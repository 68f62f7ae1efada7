package migrator

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const redacted = "[REDACTED]"

var credentialPatterns = []struct {
	re      *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`), "://$1:" + redacted + "@"},
	{regexp.MustCompile(`(\b\w+):([^@\s/]+)@tcp\(`), "$1:" + redacted + "@tcp("},
	{regexp.MustCompile(`password=([^&\s]+)`), "password=" + redacted},
	{regexp.MustCompile(`"password":\s*"[^"]*"`), `"password":"` + redacted + `"`},
}

// sanitizeConnectionError strips the credentials in dbURL from err. dbURL may
// be a URL or a MySQL DSN.
func sanitizeConnectionError(err error, dbURL string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("migrate.New: %s", removeCredentials(err.Error(), dbURL))
}

func removeCredentials(msg, dbURL string) string {
	if dbURL != "" {
		msg = strings.ReplaceAll(msg, dbURL, redactURL(dbURL))
		for _, secret := range secrets(dbURL) {
			msg = strings.ReplaceAll(msg, secret, redacted)
			if enc := url.QueryEscape(secret); enc != secret {
				msg = strings.ReplaceAll(msg, enc, redacted)
			}
		}
	}
	for _, p := range credentialPatterns {
		msg = p.re.ReplaceAllString(msg, p.replace)
	}
	return msg
}

// secrets returns the passwords found in dbURL.
func secrets(dbURL string) []string {
	var out []string
	if u, err := url.Parse(dbURL); err == nil && u.User != nil {
		if pass, ok := u.User.Password(); ok && pass != "" {
			out = append(out, pass)
		}
	}
	dsn := strings.TrimPrefix(dbURL, "mysql://")
	if cfg, err := mysql.ParseDSN(dsn); err == nil && cfg.Passwd != "" {
		out = append(out, cfg.Passwd)
	}
	if len(out) == 0 {
		// Unparseable: take whatever sits between the user and the last '@'.
		rest := dbURL
		if i := strings.Index(rest, "://"); i >= 0 {
			rest = rest[i+3:]
		}
		if at := strings.LastIndex(rest, "@"); at >= 0 {
			if colon := strings.Index(rest[:at], ":"); colon >= 0 && colon+1 < at {
				out = append(out, rest[colon+1:at])
			}
		}
	}
	return out
}

// redactURL keeps the scheme, host and path of dbURL.
func redactURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.Host == "" {
		return "[DATABASE_URL_REDACTED]"
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil && u.User.Username() != "" {
		b.WriteString(u.User.Username())
		b.WriteString(":" + redacted + "@")
	}
	b.WriteString(u.Host)
	b.WriteString(u.Path)
	return b.String()
}
