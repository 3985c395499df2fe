package kv

// Request field names.
const (
	FieldBody  = "body"
	FieldKey   = "main_key"
	FieldValue = "value"
)

// ValidateEntry checks that fields carries a non-empty string main_key and a
// string value, returning them as an Entry. A nil map means the request had
// no body.
func ValidateEntry(fields map[string]any) (Entry, error) {
	key, err := ValidateKey(fields)
	if err != nil {
		return Entry{}, err
	}
	value, err := stringField(fields, FieldValue)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Value: value}, nil
}

// ValidateKey checks that fields carries a non-empty string main_key.
func ValidateKey(fields map[string]any) (string, error) {
	if fields == nil {
		return "", &ValidationError{Field: FieldBody, Reason: "missing request body"}
	}
	key, err := stringField(fields, FieldKey)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", &ValidationError{Field: FieldKey, Reason: "must not be empty"}
	}
	return key, nil
}

func stringField(fields map[string]any, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || raw == nil {
		return "", &ValidationError{Field: name, Reason: "missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Field: name, Reason: typeName(raw) + " is not a string"}
	}
	return s, nil
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "value"
	}
}
