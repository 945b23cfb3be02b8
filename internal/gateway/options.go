package gateway

// Kind states the caller's intent. All kinds behave the same on the wire.
type Kind string

const (
	KindFetch  Kind = "fetch"
	KindPost   Kind = "post"
	KindNotify Kind = "notify"
)

// Defaults
const (
	DefaultTimeoutSeconds = 120
	DefaultAttempts       = 3
)

type callOptions struct {
	timeoutSeconds int
	attempts       int
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// WithTimeout sets the per-attempt deadline in seconds.
func WithTimeout(seconds int) CallOption {
	return func(o *callOptions) {
		if seconds > 0 {
			o.timeoutSeconds = seconds
		}
	}
}

// WithAttempts sets how many emissions a call may make.
func WithAttempts(n int) CallOption {
	return func(o *callOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}
