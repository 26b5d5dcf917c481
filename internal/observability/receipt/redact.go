package receipt

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitiveFlags have their values replaced outright.
var sensitiveFlags = map[string]bool{
	"token":       true,
	"password":    true,
	"secret":      true,
	"api-key":     true,
	"credentials": true,
	"key-pass":    true,
}

// dsnFlags carry connection strings; only their credentials are masked.
var dsnFlags = map[string]bool{
	"dsn":          true,
	"database-dsn": true,
}

var sensitivePrefixes = []string{
	"ghp_",
	"github_pat_",
	"gho_",
	"ghs_",
	"AKIA",
}

// postgres key/value DSNs: password=secret
var kvPassword = regexp.MustCompile(`(?i)(password=)(\S+)`)

const redactedValue = "[REDACTED]"

// RedactArgs masks secrets in CLI arguments and reports whether anything
// was masked.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}

	out := make([]string, len(args))
	redacted := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if eq := strings.Index(arg, "="); eq > 0 && strings.HasPrefix(arg, "-") {
			flag := flagName(arg[:eq])
			value := arg[eq+1:]
			switch {
			case sensitiveFlags[flag] || sensitiveValue(value):
				out[i] = arg[:eq+1] + redactedValue
				redacted = true
			case dsnFlags[flag]:
				masked := redactDSN(value)
				out[i] = arg[:eq+1] + masked
				redacted = redacted || masked != value
			default:
				out[i] = arg
			}
			continue
		}

		if strings.HasPrefix(arg, "-") && i+1 < len(args) {
			flag := flagName(arg)
			if sensitiveFlags[flag] {
				out[i] = arg
				i++
				out[i] = redactedValue
				redacted = true
				continue
			}
			if dsnFlags[flag] {
				out[i] = arg
				i++
				out[i] = redactDSN(args[i])
				redacted = redacted || out[i] != args[i]
				continue
			}
		}

		if sensitiveValue(arg) {
			out[i] = redactedValue
			redacted = true
			continue
		}
		out[i] = arg
	}
	return out, redacted
}

func flagName(s string) string {
	s = strings.TrimPrefix(s, "--")
	s = strings.TrimPrefix(s, "-")
	return strings.ToLower(s)
}

func sensitiveValue(v string) bool {
	for _, p := range sensitivePrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

// redactDSN masks the password of a URL or key/value connection string.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return strings.Replace(u.String(), "xxxxx", redactedValue, 1)
		}
		return dsn
	}
	return kvPassword.ReplaceAllString(dsn, "${1}"+redactedValue)
}
