package freshness

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/drydock/drydock/internal/reference"
)

// httpClient is the shared HTTP client for all registry-direct requests.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// Credential is a registry username/password pair, sourced from a Docker
// config.json or operator configuration.
type Credential struct {
	Username string
	Secret   string
}

// DirectChecker queries a registry's v2 manifests endpoint directly via
// HTTP HEAD, without pulling the image into local storage. This is the
// optional registry-direct mode (spec §4.D): useful when a container's
// image is large and a pull-based check would be wasteful network and
// disk cost merely to learn "no update available".
type DirectChecker struct {
	creds map[string]Credential // registry host -> credential
}

// NewDirectChecker constructs a DirectChecker with the given per-registry
// credentials (may be empty; public images need none).
func NewDirectChecker(creds map[string]Credential) *DirectChecker {
	return &DirectChecker{creds: creds}
}

// LoadDockerConfigCredentials parses a Docker config.json file (as found
// at ~/.docker/config.json) into per-registry credentials.
func LoadDockerConfigCredentials(path string) (map[string]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docker config: %w", err)
	}
	var cfg struct {
		Auths map[string]struct {
			Auth string `json:"auth"`
		} `json:"auths"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse docker config: %w", err)
	}

	out := make(map[string]Credential, len(cfg.Auths))
	for host, entry := range cfg.Auths {
		if entry.Auth == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
		if err != nil {
			continue
		}
		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) != 2 {
			continue
		}
		out[host] = Credential{Username: parts[0], Secret: parts[1]}
	}
	return out, nil
}

// RemoteDigest performs a HEAD request against the registry's v2
// manifests endpoint and returns the Docker-Content-Digest header,
// authenticating with an anonymous bearer token for Docker Hub, or the
// configured credential's Basic auth for other registries. On a 401 it
// retries once with a freshly fetched token/credential; for a non-Hub
// registry that still fails (authToken only negotiates Docker Hub's
// anonymous token, and does not parse the WWW-Authenticate challenge a
// private registry would issue), the retry is a no-op and the original
// error wins.
func (d *DirectChecker) RemoteDigest(ctx context.Context, ref reference.Reference) (string, error) {
	host := ref.Registry
	if host == "docker.io" {
		host = "registry-1.docker.io"
	}
	url := "https://" + host + "/v2/" + ref.Repository + "/manifests/" + ref.Tag

	digest, status, err := d.headManifest(ctx, url, d.authToken(ctx, ref))
	if err == nil {
		return digest, nil
	}
	if status != http.StatusUnauthorized {
		return "", err
	}

	// Retry once with a freshly negotiated token/credential.
	digest, _, err = d.headManifest(ctx, url, d.authToken(ctx, ref))
	if err != nil {
		return "", err
	}
	return digest, nil
}

func (d *DirectChecker) headManifest(ctx context.Context, url, token string) (digest string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", strings.Join([]string{
		"application/vnd.docker.distribution.manifest.list.v2+json",
		"application/vnd.oci.image.index.v1+json",
		"application/vnd.docker.distribution.manifest.v2+json",
		"application/vnd.oci.image.manifest.v1+json",
	}, ", "))

	switch {
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	default:
		if cred, ok := d.creds[req.URL.Host]; ok {
			req.SetBasicAuth(cred.Username, cred.Secret)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("manifest HEAD: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("manifest HEAD returned %d", resp.StatusCode)
	}

	digest = resp.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return "", resp.StatusCode, fmt.Errorf("no Docker-Content-Digest header")
	}
	return digest, resp.StatusCode, nil
}

// authToken fetches an anonymous pull token for Docker Hub images. Other
// registries rely on the configured Basic-auth credential instead.
func (d *DirectChecker) authToken(ctx context.Context, ref reference.Reference) string {
	if ref.Registry != "docker.io" {
		return ""
	}
	url := "https://auth.docker.io/token?service=registry.docker.io&scope=repository:" + ref.Repository + ":pull"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return ""
	}
	return tok.Token
}
