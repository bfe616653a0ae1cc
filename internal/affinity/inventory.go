package affinity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Inventory resolves a machine name to its externally reachable address.
type Inventory interface {
	ResolveAddress(ctx context.Context, instanceName string) (string, error)
}

// ComputeInventory is an Inventory backed by the cloud compute API's
// instance-describe endpoint.
type ComputeInventory struct {
	baseURL string
	project string
	zone    string
	http    *http.Client
}

// NewComputeInventory creates an inventory client for one project/zone.
func NewComputeInventory(baseURL, project, zone string, httpClient *http.Client) *ComputeInventory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ComputeInventory{
		baseURL: strings.TrimRight(baseURL, "/"),
		project: project,
		zone:    zone,
		http:    httpClient,
	}
}

// instanceDescription is the subset of the compute API response we need:
// the NAT address of the first access config on the first interface.
type instanceDescription struct {
	NetworkInterfaces []struct {
		AccessConfigs []struct {
			NatIP string `json:"natIP"`
		} `json:"accessConfigs"`
	} `json:"networkInterfaces"`
}

// ResolveAddress looks up the instance and returns its external address.
func (c *ComputeInventory) ResolveAddress(ctx context.Context, instanceName string) (string, error) {
	if instanceName == "" {
		return "", fmt.Errorf("instance name is required")
	}

	endpoint := fmt.Sprintf("%s/projects/%s/zones/%s/instances/%s",
		c.baseURL, url.PathEscape(c.project), url.PathEscape(c.zone), url.PathEscape(instanceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("describe instance %s: %w", instanceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("describe instance %s: status %d", instanceName, resp.StatusCode)
	}

	var desc instanceDescription
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return "", fmt.Errorf("decode instance %s: %w", instanceName, err)
	}

	if len(desc.NetworkInterfaces) == 0 || len(desc.NetworkInterfaces[0].AccessConfigs) == 0 {
		return "", fmt.Errorf("instance %s has no external address", instanceName)
	}
	addr := desc.NetworkInterfaces[0].AccessConfigs[0].NatIP
	if addr == "" {
		return "", fmt.Errorf("instance %s has no external address", instanceName)
	}
	return addr, nil
}
