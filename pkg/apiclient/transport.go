package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type tokenKey struct{}

// WithToken attaches the signed-in user's ID token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey{}).(string)
	return v
}

// AuthTransport adds a bearer header to requests for protected paths and
// passes every other request through untouched.
type AuthTransport struct {
	Base      http.RoundTripper
	Protected []string
}

func NewAuthTransport(base http.RoundTripper, protected []string) *AuthTransport {
	if base == nil {
		base = instrumented(http.DefaultTransport)
	}
	return &AuthTransport{Base: base, Protected: protected}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := TokenFromContext(req.Context())
	if token == "" || !t.protected(req.URL.Path) {
		return t.Base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return t.Base.RoundTrip(r)
}

func (t *AuthTransport) protected(path string) bool {
	for _, p := range t.Protected {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

var upstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "hostel",
	Subsystem: "upstream",
	Name:      "request_duration_seconds",
	Help:      "Latency of calls to the hostel REST API.",
	Buckets:   prometheus.DefBuckets,
}, []string{"code", "method"})

func init() {
	prometheus.MustRegister(upstreamDuration)
}

func instrumented(base http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperDuration(upstreamDuration, base)
}
