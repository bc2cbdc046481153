package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// CheckServer verifies that the endpoint advertises the tus protocol version
// this client implements. The check is idempotent, so transport-level retries
// are delegated to retryablehttp instead of the chunk retry budget.
func CheckServer(ctx context.Context, endpoint string, logger log.Logger) error {
	client := retryhttp.NewClient(logger)

	req, err := retryablehttp.NewRequest(http.MethodOptions, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set(headerTusResumable, ProtocolVersion)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("check upload server: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("check upload server: HTTP %d", resp.StatusCode)
	}

	versions := resp.Header.Get(headerTusVersion)
	if versions == "" {
		// Some servers only echo Tus-Resumable on OPTIONS
		versions = resp.Header.Get(headerTusResumable)
	}
	for _, version := range strings.Split(versions, ",") {
		if strings.TrimSpace(version) == ProtocolVersion {
			return nil
		}
	}
	return fmt.Errorf("server does not support tus %s (advertised: %q)", ProtocolVersion, versions)
}
