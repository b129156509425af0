package store

// SaveStatus is the persistence indicator of the local variant, driven
// by mutation events and timer completions: a mutation moves to Saving,
// a successful debounced write to Saved (and later back to Idle), a
// failed write to Error. All write failures look the same to the user;
// quota problems are not singled out.
type SaveStatus int

const (
	StatusIdle SaveStatus = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s SaveStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	}
	return "unknown"
}
