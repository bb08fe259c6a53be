package npm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/pipo/pkg/integrations"
)

// DefaultRegistry is the public npm registry.
const DefaultRegistry = "https://registry.npmjs.org"

// ErrUnknownVersion is returned when a tag or version is not published.
var ErrUnknownVersion = errors.New("unknown version")

// PackageInfo is the registry metadata the resolver needs.
type PackageInfo struct {
	Name     string            `json:"name"`
	Latest   string            `json:"latest"`
	DistTags map[string]string `json:"dist_tags"`
	Versions []string          `json:"versions"`
}

type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a client for the public registry with an in-memory
// cache of the given TTL.
func NewClient(cacheTTL time.Duration) *Client {
	return NewClientWithRegistry(DefaultRegistry, cacheTTL)
}

// NewClientWithRegistry creates a client for a registry mirror.
func NewClientWithRegistry(base string, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(integrations.NewCache(cacheTTL).Namespace("npm:"), nil),
		baseURL: strings.TrimSuffix(base, "/"),
	}
}

// FetchPackage returns the dist-tags and published versions of pkg.
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))

	var info PackageInfo
	err := c.Cached(ctx, pkg, refresh, &info, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ResolveVersion maps tag to a published version of pkg.
func (c *Client) ResolveVersion(ctx context.Context, pkg, tag string) (string, error) {
	info, err := c.FetchPackage(ctx, pkg, false)
	if err != nil {
		return "", err
	}
	if tag == "" {
		tag = "latest"
	}
	if v, ok := info.DistTags[tag]; ok {
		return v, nil
	}
	if slices.Contains(info.Versions, tag) {
		return tag, nil
	}
	return "", fmt.Errorf("%w: %s@%s", ErrUnknownVersion, pkg, tag)
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	var data registryResponse
	if err := c.Get(ctx, c.baseURL+"/"+url.PathEscape(pkg), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: npm package %s", err, pkg)
		}
		return err
	}

	versions := make([]string, 0, len(data.Versions))
	for v := range data.Versions {
		versions = append(versions, v)
	}
	slices.Sort(versions)

	*info = PackageInfo{
		Name:     data.Name,
		Latest:   data.DistTags["latest"],
		DistTags: data.DistTags,
		Versions: versions,
	}
	return nil
}

type registryResponse struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
}
