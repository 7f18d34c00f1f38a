package memory

// Kind classifies the outcome of an Index or Ask call.
type Kind int

const (
	// KindOK is a successful index or answer.
	KindOK Kind = iota
	// KindEmpty is an informational no-op: blank input, nothing to index,
	// or no matching memory. It is not an error.
	KindEmpty
	// KindFailed wraps a configuration, transport, remote or store error.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEmpty:
		return "empty"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what Index and Ask return instead of raising. Message is the
// text shown to the user; Err keeps the underlying cause for callers that
// want to branch on it.
type Result struct {
	Kind    Kind
	Message string
	Err     error

	// Chunks is the number of chunks written by Index.
	Chunks int
	// IDs are the stored entry ids written by Index, in chunk order.
	IDs []string
	// Matches are the store hits Ask grounded its answer on.
	Matches []Match
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

// String renders the result for display.
func (r Result) String() string { return r.Message }

func okResult(msg string) Result { return Result{Kind: KindOK, Message: msg} }

func emptyResult(msg string) Result { return Result{Kind: KindEmpty, Message: msg} }

func failedResult(msg string, err error) Result {
	return Result{Kind: KindFailed, Message: msg, Err: err}
}
