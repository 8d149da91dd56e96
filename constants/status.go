package constants

// DocStatus is the canonical status for a scanned document job.
type DocStatus string

// Stable values (these exact strings travel on the wire and are stored in DB).
const (
	StatusQueued     DocStatus = "queued"     // accepted, waiting for a worker
	StatusProcessing DocStatus = "processing" // OCR/parsing in progress
	StatusDone       DocStatus = "done"       // terminal success
	StatusError      DocStatus = "error"      // terminal failure
)

// IsTerminal reports whether no further status transitions may occur.
func (s DocStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// IsValid reports whether s is one of the four canonical values.
func (s DocStatus) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusDone, StatusError:
		return true
	}
	return false
}
