package relay

import (
	"fmt"
	"time"
)

const (
	// PongWait specifies the maximum time to wait for a pong response message from the server
	// after sending a ping
	PongWait = 10 * time.Second

	// PingPeriod specifies the interval at which ping messages are sent to the server.
	// This value must be less than pongWait.
	PingPeriod = (PongWait * 9) / 10

	// WriteWait specifies a timeout for the write operation. If the write
	// isn't completed within this duration, it fails with a timeout error.
	WriteWait = 10 * time.Second
)

// Config configures the connection to the session coordination server.
type Config struct {
	// URL is the websocket endpoint of the server, e.g. ws://localhost:8080/rpc
	URL string `mapstructure:"url"`
	// DialRetries bounds the number of retries of the initial dial.
	DialRetries uint64 `mapstructure:"dial-retries"`
	// DialBackoff is the initial delay between dial attempts, doubled on every retry.
	DialBackoff time.Duration `mapstructure:"dial-backoff"`
	// MaxRequestsPerSecond limits outgoing frames. Zero disables the limit.
	MaxRequestsPerSecond float64 `mapstructure:"max-requests-per-second"`
}

func DefaultConfig() Config {
	return Config{
		URL:                  "ws://127.0.0.1:8080",
		DialRetries:          5,
		DialBackoff:          200 * time.Millisecond,
		MaxRequestsPerSecond: 50,
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("relay url must not be empty")
	}
	if c.DialBackoff <= 0 {
		return fmt.Errorf("dial backoff must be positive, got %s", c.DialBackoff)
	}
	if c.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("max requests per second must not be negative, got %f", c.MaxRequestsPerSecond)
	}
	return nil
}
