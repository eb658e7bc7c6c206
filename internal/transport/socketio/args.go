package socketio

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errNoPayload = errors.New("missing payload")

// payload returns the first event argument. Clients may send a bare value
// or wrap it as {"value": v}.
func payload(args []any) any {
	if len(args) == 0 {
		return nil
	}
	v := args[0]
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["value"]; ok {
			return inner
		}
	}
	return v
}

func stringArg(args []any) (string, bool) {
	switch v := payload(args).(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func numberArg(args []any) (float64, bool) {
	switch v := payload(args).(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolArg(args []any) (value, ok bool) {
	v, ok := payload(args).(bool)
	return v, ok
}

// decodeArg converts the first event argument into v through JSON.
func decodeArg(args []any, v any) error {
	if len(args) == 0 || args[0] == nil {
		return errNoPayload
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
