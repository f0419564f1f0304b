package utils

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DesktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	MobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	GenericUserAgent = "Mozilla/5.0"
)

type RestyOptions struct {
	// Timeout caps a whole request including the body read. Zero disables it,
	// which streaming callers need.
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// NewRestyClient builds a client that backs off on 429 and honours Retry-After.
func NewRestyClient(opts RestyOptions) *resty.Client {
	client := resty.New()
	client.SetLogger(disableLogger{})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept-Charset", "utf-8")
	if opts.RetryCount > 0 {
		client.SetRetryCount(opts.RetryCount).
			SetRetryWaitTime(3 * time.Second).
			SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
				if resp.StatusCode() == http.StatusTooManyRequests {
					if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
						if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
							return seconds, nil
						}
						if t, err := http.ParseTime(retryAfter); err == nil {
							return time.Until(t), nil
						}
					}
					return 3 * time.Second, nil
				}
				return 0, nil
			}).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return r != nil && r.StatusCode() == http.StatusTooManyRequests
			})
	}
	return client
}

type disableLogger struct{}

func (d disableLogger) Errorf(string, ...interface{}) {}
func (d disableLogger) Warnf(string, ...interface{})  {}
func (d disableLogger) Debugf(string, ...interface{}) {}
