package library

import "errors"

// Kind classifies client errors so callers can branch without string
// matching.
type Kind int

const (
	// KindInvalidInput is a pre-flight validation failure. It never
	// reaches the network.
	KindInvalidInput Kind = iota + 1
	// KindAuthRejected means the server explicitly refused credentials or
	// reported a failure for the attempted action.
	KindAuthRejected
	// KindNotAuthenticated covers missing identity: no acting user locally,
	// or a 401 from the server.
	KindNotAuthenticated
	// KindNoOpenLoan is the toggle-specific failure: the acting user has no
	// open loan for the book being returned.
	KindNoOpenLoan
	// KindNetwork is the catch-all for transport and server faults.
	KindNetwork
)

// Error carries a machine-readable Kind and a human-readable message. The
// message is what a front end shows the user; server-provided messages are
// passed through verbatim.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func authRejected(msg string, cause error) *Error {
	return &Error{Kind: KindAuthRejected, Message: msg, Cause: cause}
}

func notAuthenticated(msg string) *Error {
	return &Error{Kind: KindNotAuthenticated, Message: msg}
}

func noOpenLoan(msg string) *Error {
	return &Error{Kind: KindNoOpenLoan, Message: msg}
}

func networkErr(msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Cause: cause}
}

// KindOf extracts the Kind from err, or 0 if err is not a library error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

// IsKind reports whether err is a library error of the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }
