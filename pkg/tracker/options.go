package tracker

import (
	"net/http"
	"time"

	"github.com/coder/quartz"

	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/tracker/identity"
	"github.com/okian/footprint/pkg/tracker/kv"
	"github.com/okian/footprint/pkg/tracker/transport"
)

const defaultQueueSize = 256

// Option configures a Client.
type Option func(*Client)

// WithStorage sets client storage. Defaults to in-memory storage.
func WithStorage(s kv.Storage) Option {
	return func(c *Client) {
		if s != nil {
			c.storage = s
		}
	}
}

// WithClock sets the clock for dwell timers and signal timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithConfirmationDelay sets how long a section must stay highly visible
// before an impression starts.
func WithConfirmationDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithSignals sets the device traits used for the visitor fingerprint.
func WithSignals(s identity.Signals) Option {
	return func(c *Client) {
		c.signals = s
	}
}

// WithHTTPClient sets the HTTP client used for reports.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, transport.WithHTTPClient(h))
	}
}

// WithTimeout bounds every report request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, transport.WithTimeout(d))
	}
}

// WithHeader adds a header to every report request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, transport.WithHeader(key, value))
	}
}

// WithQueueSize bounds impression reports waiting to be sent.
func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.queueSize = n
		}
	}
}
