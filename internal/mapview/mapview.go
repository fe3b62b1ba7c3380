package mapview

import (
	"context"
	"strings"

	"github.com/example/cario/internal/models"
)

// PlaceholderKey is the value shipped in sample configs in place of a real key.
const PlaceholderKey = "YOUR_GOOGLE_MAPS_API_KEY"

type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
)

var DefaultCenter = models.Coord{Lat: 40.7128, Lon: -74.0060}

const (
	DefaultZoom   = 14
	nearbyRadiusM = 5000
	nearbyLimit   = 50
)

type Config struct {
	APIKey string
	Center models.Coord
	Zoom   int
}

func (c Config) HasCredentials() bool {
	k := strings.TrimSpace(c.APIKey)
	return k != "" && k != PlaceholderKey
}

// View is what the client needs to draw the map surface.
type View struct {
	State   State        `json:"state"`
	APIKey  string       `json:"api_key,omitempty"`
	Center  models.Coord `json:"center"`
	Zoom    int          `json:"zoom"`
	Drivers []string     `json:"drivers"`
}

type DriverLocator interface {
	Nearby(ctx context.Context, center models.Coord, radiusM float64, limit int) ([]string, error)
}

// Build resolves the map view. Missing credentials fall back to the loading
// placeholder; a failing locator just yields no markers.
func Build(ctx context.Context, cfg Config, loc DriverLocator) View {
	if cfg.Zoom == 0 {
		cfg.Zoom = DefaultZoom
	}
	if cfg.Center == (models.Coord{}) {
		cfg.Center = DefaultCenter
	}
	v := View{State: StateLoading, Center: cfg.Center, Zoom: cfg.Zoom, Drivers: []string{}}
	if !cfg.HasCredentials() {
		return v
	}
	v.State = StateReady
	v.APIKey = strings.TrimSpace(cfg.APIKey)
	if loc != nil {
		if ids, err := loc.Nearby(ctx, cfg.Center, nearbyRadiusM, nearbyLimit); err == nil && ids != nil {
			v.Drivers = ids
		}
	}
	return v
}
