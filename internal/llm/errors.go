package llm

import (
	"errors"
	"fmt"

	"github.com/nulzo/tier-router/internal/httpclient"
	"github.com/nulzo/tier-router/pkg/api"
)

// WrapUpstream turns a transport or vendor failure into a 502 api.Error
// that keeps the original error for logging.
func WrapUpstream(provider string, err error) error {
	if err == nil {
		return nil
	}
	var upstreamErr *httpclient.UpstreamError
	if errors.As(err, &upstreamErr) {
		return api.ProviderError(
			fmt.Sprintf("%s returned status %d: %s", provider, upstreamErr.StatusCode, upstreamErr.Message()),
			err,
		)
	}
	return api.ProviderError(fmt.Sprintf("%s request failed", provider), err)
}
