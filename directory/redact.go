package directory

import "strings"

const mask = "***"

// secretAttrs are attribute names whose values never reach the log.
var secretAttrs = map[string]bool{
	"userpassword": true,
	"unicodepwd":   true,
}

func isSecret(attr string) bool { return secretAttrs[strings.ToLower(attr)] }

// RedactArgs masks passwords in the logged copy of args: both passwords of
// passwd, the value of compare against a password attribute, and password
// attributes of add and modify calls.
func (b *Backend) RedactArgs(op string, args []any) []any {
	out := append([]any(nil), args...)
	switch op {
	case "passwd":
		for i := 1; i < len(out) && i <= 2; i++ {
			if out[i] != nil {
				out[i] = mask
			}
		}
	case "compare":
		if len(out) > 2 {
			if attr, ok := out[1].(string); ok && isSecret(attr) {
				out[2] = mask
			}
		}
	case "add", "modify", "mod_add", "mod_del", "mod_replace":
		if len(out) > 1 {
			out[1] = redactAttrs(out[1])
		}
	}
	return out
}

func redactAttrs(v any) any {
	switch m := v.(type) {
	case map[string][]string:
		out := make(map[string][]string, len(m))
		for k, vals := range m {
			if isSecret(k) {
				vals = []string{mask}
			}
			out[k] = vals
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, s := range m {
			if isSecret(k) {
				s = mask
			}
			out[k] = s
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, raw := range m {
			if isSecret(k) {
				raw = mask
			}
			out[k] = raw
		}
		return out
	}
	return v
}
