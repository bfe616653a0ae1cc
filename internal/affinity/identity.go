// Package affinity decides which machine owns a tenant's session. It reads
// ownership records from the shared document store, compares against this
// machine's identity, and resolves remote instance names to reachable
// addresses through the fleet inventory API.
package affinity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalInstance is the identity sentinel used outside the fleet (dev mode).
// An ownership record naming it never routes remotely.
const LocalInstance = "localhost"

const metadataPath = "/computeMetadata/v1/instance/name"

// IdentityConfig configures instance-name resolution.
type IdentityConfig struct {
	// Dev short-circuits to the LocalInstance sentinel.
	Dev bool

	// MetadataBaseURL is the hosting environment's metadata service,
	// e.g. http://metadata.google.internal.
	MetadataBaseURL string

	HTTPClient *http.Client
}

// ResolveInstanceName returns this machine's identity. Called once at
// startup; the identity never changes for the life of the process.
func ResolveInstanceName(ctx context.Context, cfg IdentityConfig) (string, error) {
	if cfg.Dev {
		return LocalInstance, nil
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	url := strings.TrimRight(cfg.MetadataBaseURL, "/") + metadataPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query metadata service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata service: status %d", resp.StatusCode)
	}

	name, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("read metadata response: %w", err)
	}
	return strings.TrimSpace(string(name)), nil
}
