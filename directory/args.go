package directory

import (
	"fmt"
	"strconv"

	"github.com/unkn0wn-root/servicetools"
)

// Positional arguments arrive either as Go values or as decoded JSON/YAML
// (strings, float64s, []any, map[string]any). The helpers accept both.

func argErr(op string, i int, name, want string, got any) error {
	return fmt.Errorf("%w: %s argument %d (%s): want %s, got %T", servicetools.ErrInvalidArgument, op, i, name, want, got)
}

func argString(op string, args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%w: %s requires argument %d (%s)", servicetools.ErrInvalidArgument, op, i, name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", argErr(op, i, name, "string", args[i])
	}
	return s, nil
}

func optString(op string, args []any, i int, name, def string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	return argString(op, args, i, name)
}

func optStrings(op string, args []any, i int, name string) ([]string, error) {
	if i >= len(args) || args[i] == nil {
		return nil, nil
	}
	out, ok := toStrings(args[i])
	if !ok {
		return nil, argErr(op, i, name, "list of strings", args[i])
	}
	return out, nil
}

func optInt(op string, args []any, i int, name string) (int, error) {
	if i >= len(args) || args[i] == nil {
		return 0, nil
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n, nil
		}
	}
	return 0, argErr(op, i, name, "integer", args[i])
}

func optBool(op string, args []any, i int, name string, def bool) (bool, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	switch v := args[i].(type) {
	case bool:
		return v, nil
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
	}
	return false, argErr(op, i, name, "bool", args[i])
}

func argAttrs(op string, args []any, i int, name string) (map[string][]string, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: %s requires argument %d (%s)", servicetools.ErrInvalidArgument, op, i, name)
	}
	switch v := args[i].(type) {
	case map[string][]string:
		return v, nil
	case map[string]string:
		out := make(map[string][]string, len(v))
		for k, s := range v {
			out[k] = []string{s}
		}
		return out, nil
	case map[string]any:
		out := make(map[string][]string, len(v))
		for k, raw := range v {
			vals, ok := toStrings(raw)
			if !ok {
				return nil, argErr(op, i, name+"."+k, "string or list of strings", raw)
			}
			out[k] = vals
		}
		return out, nil
	}
	return nil, argErr(op, i, name, "attribute map", args[i])
}

func toStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
