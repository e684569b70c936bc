package core

import "strconv"

// itoa keeps call sites short; core avoids fmt so it stays cheap on TinyGo
func itoa(n int) string {
	return strconv.Itoa(n)
}

// ftoa formats a duty or percentage with the precision the calibration
// table is measured to
func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 5, 64)
}

// valueToString renders a dictionary constant
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return ftoa(val)
	default:
		return ""
	}
}
