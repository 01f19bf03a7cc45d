package reconcile

import "fmt"

// Diagnostic codes.
const (
	CodeDuplicateKey    = "VB201"
	CodeUncomparableKey = "VB202"
	CodeNotList         = "VB203"
)

// Diagnostic reports a structural problem found during a pass. Diagnostics
// never abort a pass.
type Diagnostic struct {
	Code    string
	Message string
	Key     any
	Index   int
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s (key=%v index=%d)", d.Code, d.Message, d.Key, d.Index)
}
