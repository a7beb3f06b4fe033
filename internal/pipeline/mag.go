package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
)

// DecisionBundle is the external ledger's pre-authorization record, either
// fetched by X-Decision-ID or supplied inline in the request body.
type DecisionBundle struct {
	Verdict string `json:"verdict"`
}

// MagVerifier fetches a decision bundle from the external ledger service
// (Open Question decision #4: pluggable interface, verdict compared
// case-sensitively to "allow").
type MagVerifier interface {
	Fetch(ctx context.Context, decisionID string) (*DecisionBundle, error)
}

// HTTPMagVerifier is the default MagVerifier, calling a configured ledger
// endpoint over HTTP.
type HTTPMagVerifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPMagVerifier builds a verifier against the given ledger endpoint.
func NewHTTPMagVerifier(endpoint string) *HTTPMagVerifier {
	return &HTTPMagVerifier{endpoint: endpoint, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (v *HTTPMagVerifier) Fetch(ctx context.Context, decisionID string) (*DecisionBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"/"+decisionID, nil)
	if err != nil {
		return nil, fmt.Errorf("mag: build request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mag: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("mag: ledger returned status %d: %s", resp.StatusCode, string(body))
	}

	var bundle DecisionBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("mag: decode bundle: %w", err)
	}
	return &bundle, nil
}

var errNotFound = fmt.Errorf("mag: decision bundle not found")

// TenantMagEnabled reports whether MAG enforcement applies to a tenant;
// the gateway-wide config flag is the default implementation, but this is
// a function value so a per-tenant override can be substituted later.
type TenantMagEnabled func(tenantID string) bool

// MagValidation enforces optional external pre-authorization: when enabled
// for the tenant, the request must carry either an X-Decision-ID header or
// an inline decision_bundle, and the bundle's verdict must equal "allow".
func MagValidation(verifier MagVerifier, enabledForTenant TenantMagEnabled) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tenantID, err := auth.GetTenantID(r.Context())
			if err != nil || !enabledForTenant(tenantID) {
				next.ServeHTTP(w, r)
				return
			}

			decisionID := r.Header.Get("X-Decision-ID")
			var bundle *DecisionBundle

			if decisionID != "" {
				b, err := verifier.Fetch(r.Context(), decisionID)
				if err != nil {
					if err == errNotFound {
						apierror.NotFound(w, "decision bundle not found")
						return
					}
					apierror.BadRequest(w, "could not verify decision bundle")
					return
				}
				bundle = b
			} else {
				inline, err := readInlineBundle(r)
				if err != nil {
					apierror.BadRequest(w, "missing X-Decision-ID or decision_bundle")
					return
				}
				bundle = inline
			}

			if bundle.Verdict != "allow" {
				apierror.Forbidden(w, "decision bundle did not authorize this request")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readInlineBundle(r *http.Request) (*DecisionBundle, error) {
	var body struct {
		DecisionBundle *DecisionBundle `json:"decision_bundle"`
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err := json.Unmarshal(data, &body); err != nil || body.DecisionBundle == nil {
		return nil, fmt.Errorf("mag: missing inline decision_bundle")
	}
	return body.DecisionBundle, nil
}
