package relocate

// Code tags the stable failure kinds Relocator operations can produce.
type Code string

const (
	// MarkNotFound means no line within the search window contained the
	// bookmark's mark text.
	MarkNotFound Code = "MarkNotFound"
)

// Error is the structured failure type CurrentLocation returns.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
