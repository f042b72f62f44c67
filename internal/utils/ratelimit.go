package utils

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter allowing rps requests per second; rps <= 0
// means unlimited.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// LimitTransport makes every request through base wait for limiter. All
// clients talking to one backend should share a limiter.
func LimitTransport(base http.RoundTripper, limiter *rate.Limiter) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if limiter == nil || limiter.Limit() == rate.Inf {
		return base
	}
	return &limitedTransport{base: base, limiter: limiter}
}

type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// Limited routes client's requests through limiter and returns client.
func Limited(client *http.Client, limiter *rate.Limiter) *http.Client {
	client.Transport = LimitTransport(client.Transport, limiter)
	return client
}
