package archive

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
)

// Backend names a remote object store
type Backend string

const (
	BackendS3    Backend = "s3"
	BackendGCS   Backend = "gcs"
	BackendAzure Backend = "azurerm"
)

// Location is a parsed archive URL
type Location struct {
	Backend Backend
	// Bucket is the S3/GCS bucket or the Azure storage account
	Bucket string
	// Container is the Azure blob container
	Container string
	Prefix    string
	Region    string
}

// ParseURL parses archive URLs of the forms
//
//	s3://bucket/prefix?region=eu-north-1
//	gs://bucket/prefix (gcs:// is accepted too)
//	azurerm://account/container/prefix
func ParseURL(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, opserrors.ConfigurationError("archive.url is not set").
			WithSolutions("Set archive.url in config.yaml, e.g. s3://my-bucket/golden")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, opserrors.ConfigurationError("invalid archive url %q: %v", raw, err)
	}
	if u.Host == "" {
		return Location{}, opserrors.ConfigurationError("archive url %q has no bucket", raw)
	}

	loc := Location{Bucket: u.Host, Prefix: cleanPrefix(u.Path)}

	switch strings.ToLower(u.Scheme) {
	case "s3":
		loc.Backend = BackendS3
		loc.Region = u.Query().Get("region")
	case "gs", "gcs":
		loc.Backend = BackendGCS
	case "azurerm":
		loc.Backend = BackendAzure
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		if parts[0] == "" {
			return Location{}, opserrors.ConfigurationError("archive url %q has no container", raw).
				WithSolutions("Use azurerm://<account>/<container>/<prefix>")
		}
		loc.Container = parts[0]
		loc.Prefix = ""
		if len(parts) == 2 {
			loc.Prefix = cleanPrefix(parts[1])
		}
	default:
		return Location{}, opserrors.ConfigurationError("unsupported archive scheme %q", u.Scheme).
			WithSolutions("Use s3://, gs:// or azurerm://")
	}

	return loc, nil
}

// Key returns the object key for an artifact name
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return l.Prefix + "/" + name
}

// URL renders the location of key
func (l Location) URL(key string) string {
	switch l.Backend {
	case BackendAzure:
		return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", l.Bucket, l.Container, key)
	case BackendGCS:
		return fmt.Sprintf("gs://%s/%s", l.Bucket, key)
	default:
		return fmt.Sprintf("s3://%s/%s", l.Bucket, key)
	}
}

func cleanPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
