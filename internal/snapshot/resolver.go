package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// DefaultIPLookupURL answers a plain GET with the caller's address as text.
const DefaultIPLookupURL = "https://api.ipify.org"

// maxIPBody caps how much of the lookup response is read.
const maxIPBody = 256

// HTTPResolver looks up the public IP with a GET to a "what is my IP" endpoint.
type HTTPResolver struct {
	URL    string
	Client *http.Client
}

// NewHTTPResolver creates a resolver for url using client. An empty url
// selects DefaultIPLookupURL.
func NewHTTPResolver(url string, client *http.Client) *HTTPResolver {
	if url == "" {
		url = DefaultIPLookupURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResolver{URL: url, Client: client}
}

func (r *HTTPResolver) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", fmt.Errorf("ip lookup: create request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip lookup: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ip lookup: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIPBody))
	if err != nil {
		return "", fmt.Errorf("ip lookup: read body: %w", err)
	}

	// Captive portals answer with an HTML page instead of an address.
	text := strings.TrimSpace(string(body))
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return "", fmt.Errorf("ip lookup: response is not an IP address: %q", truncate(text, 64))
	}
	return addr.String(), nil
}

// HostUptime reads the host uptime from the operating system.
var HostUptime UptimeSource = UptimeFunc(host.UptimeWithContext)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
