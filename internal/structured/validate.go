package structured

// Validator is implemented by extraction result types that can check their
// own fields. Validate nulls every invalid field and returns their names.
type Validator interface {
	Validate() []string
}

// Validate runs v's Validator, if any, and returns the invalidated fields.
func Validate(v any) []string {
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}
