package ipc

import (
	"time"

	"github.com/pkg/errors"
)

// ErrorAction defines what Serve does after a failed poll.
type ErrorAction int

const (
	// Abort ends Serve with the error.
	Abort ErrorAction = iota
	// Continue logs the error and keeps polling.
	Continue
)

// Default configuration values.
const (
	// defaultReadTimeout bounds Client.SendAndWait.
	defaultReadTimeout = 500 * time.Millisecond
	// defaultStreamReadTimeout bounds the frame read on an accepted connection.
	defaultStreamReadTimeout = 5 * time.Second
	// defaultPollInterval is the idle sleep of Serve between polls.
	defaultPollInterval = 100 * time.Millisecond
	// defaultMaxMessageSize is the receive buffer used by Serve (64KB).
	defaultMaxMessageSize = 64 * 1024
)

// options holds the configuration for an endpoint.
type options struct {
	logger Logger

	// onError decides whether Serve survives a poll error.
	onError func(error) ErrorAction

	readTimeout       time.Duration // Client.SendAndWait bound, 0 waits forever
	readTimeoutSet    bool          // distinguishes an explicit 0 from unset
	streamReadTimeout time.Duration // per accepted stream connection
	pollInterval      time.Duration // Serve idle interval
	maxMessageSize    int           // buffer size used by Serve
	pinSource         bool          // Client.SendAndWait accepts only the destination
}

// Option is a function that configures endpoint options.
type Option func(*options)

func newOptions(opt []Option) options {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)
	return opts
}

// checkOptions sets default values for unset options.
func checkOptions(opts *options) {
	if !opts.readTimeoutSet {
		opts.readTimeout = defaultReadTimeout
	}
	if opts.readTimeout < 0 {
		opts.readTimeout = 0
	}

	if opts.streamReadTimeout <= 0 {
		opts.streamReadTimeout = defaultStreamReadTimeout
	}

	if opts.pollInterval <= 0 {
		opts.pollInterval = defaultPollInterval
	}

	if opts.maxMessageSize <= 0 {
		opts.maxMessageSize = defaultMaxMessageSize
	}

	if opts.onError == nil {
		opts.onError = defaultOnError
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}

// defaultOnError keeps serving past failures of a single stream connection
// and aborts on anything that affects the endpoint itself.
func defaultOnError(err error) ErrorAction {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return Continue
	}
	return Abort
}

// ReadTimeoutOption sets how long Client.SendAndWait waits for a reply.
// Zero waits forever.
func ReadTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.readTimeout = timeout
		o.readTimeoutSet = true
	}
}

// StreamReadTimeoutOption bounds reading one frame from an accepted stream
// connection, so a stalled peer cannot block Listener.Poll indefinitely.
func StreamReadTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.streamReadTimeout = timeout
	}
}

// PollIntervalOption sets how long Serve sleeps when nothing is pending.
func PollIntervalOption(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

// MessageMaxSize sets the receive buffer size Serve passes to Poll.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxMessageSize = size
	}
}

// PinSourceOption makes Client.SendAndWait ignore datagrams whose source is
// not the destination it sent to. Off by default: the first datagram from
// any source is returned.
func PinSourceOption(pin bool) Option {
	return func(o *options) {
		o.pinSource = pin
	}
}

// OnErrorOption sets the callback Serve consults when Poll fails.
// Return Continue to keep polling, or Abort to end Serve with the error.
// The default continues after a *FrameError and aborts otherwise.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
