// Package httpclient builds the HTTP client shared by model providers.
package httpclient

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gencommit/gencommit/pkg/version"
)

// DefaultTimeout bounds a whole model request, including reading the body.
const DefaultTimeout = 2 * time.Minute

// UserAgent identifies gencommit to the provider APIs.
func UserAgent() string {
	return fmt.Sprintf("gencommit/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)
}

type userAgentTransport struct {
	agent string
	rt    http.RoundTripper
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	r2.Header.Set("User-Agent", u.agent)
	return u.rt.RoundTrip(r2)
}

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

type Opt func(*options)

func WithTimeout(d time.Duration) Opt {
	return func(o *options) {
		o.timeout = d
	}
}

// WithTransport replaces http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Opt {
	return func(o *options) {
		o.transport = rt
	}
}

func NewHTTPClient(opts ...Opt) *http.Client {
	o := options{
		timeout:   DefaultTimeout,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &http.Client{
		Timeout: o.timeout,
		Transport: &userAgentTransport{
			agent: UserAgent(),
			rt:    o.transport,
		},
	}
}
