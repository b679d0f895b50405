// Package cache stores rendered artifacts keyed by image, settings and
// output options.
//
// Three backends implement [Cache]:
//   - [FileCache]: JSON entries under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for preview servers behind a
//     load balancer
//   - [NullCache]: caching disabled
//
// Keys come from a [Keyer] so callers never assemble key strings by hand:
//
//	keyer := cache.NewDefaultKeyer()
//	key := keyer.ArtifactKey(img.Hash(), cache.ArtifactKeyOpts{
//	    Settings: s, Format: "png", Width: 1200, Height: 800,
//	})
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matzehuels/fractalglass/pkg/settings"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the entry for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLArtifact is the default lifetime of a rendered artifact.
const TTLArtifact = 7 * 24 * time.Hour

// ArtifactKeyOpts are the inputs that change a rendered artifact besides
// the image itself.
type ArtifactKeyOpts struct {
	Settings settings.Settings `json:"settings"`
	Format   string            `json:"format"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Taper    float64           `json:"taper"`
	Seed     int64             `json:"seed"`
}

// Keyer generates cache keys.
type Keyer interface {
	// ArtifactKey returns the key of one rendered format of an image.
	ArtifactKey(imageHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes the key inputs into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(imageHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact:"+opts.Format, imageHash, opts)
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
