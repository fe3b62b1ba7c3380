package presence

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/cario/internal/models"
)

// Presence tracks which drivers are online and where they were placed on the map.
type Presence interface {
	SetOnline(ctx context.Context, driverID string, at models.Coord) error
	SetOffline(ctx context.Context, driverID string) error
	Nearby(ctx context.Context, center models.Coord, radiusM float64, limit int) ([]string, error)
	Count(ctx context.Context) (int, error)
}

type entry struct {
	loc     models.Coord
	updated time.Time
}

type Index struct {
	mu      sync.RWMutex
	drivers map[string]entry
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]entry)}
}

func (g *Index) SetOnline(_ context.Context, driverID string, at models.Coord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[driverID] = entry{loc: at, updated: time.Now()}
	return nil
}

func (g *Index) SetOffline(_ context.Context, driverID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.drivers, driverID)
	return nil
}

// naive scan; the redis implementation uses GEOSEARCH
func (g *Index) Nearby(_ context.Context, center models.Coord, radiusM float64, limit int) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		id   string
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for id, e := range g.drivers {
		dist := Haversine(center.Lat, center.Lon, e.loc.Lat, e.loc.Lon)
		if dist > radiusM {
			continue
		}
		arr = append(arr, pair{id, dist})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].dist == arr[j].dist {
			return arr[i].id < arr[j].id
		}
		return arr[i].dist < arr[j].dist
	})
	if limit > 0 && len(arr) > limit {
		arr = arr[:limit]
	}
	out := make([]string, 0, len(arr))
	for _, p := range arr {
		out = append(out, p.id)
	}
	return out, nil
}

func (g *Index) Count(context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.drivers), nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// Recorder is an event sink that keeps presence in step with driver availability.
// Online drivers are pinned at Origin since the mock has no real positions.
type Recorder struct {
	Presence Presence
	Origin   models.Coord
}

func (r *Recorder) Publish(ctx context.Context, ev models.Event) error {
	if ev.Role != models.RoleDriver {
		return nil
	}
	switch ev.Type {
	case models.EventDriverOnline:
		return r.Presence.SetOnline(ctx, ev.SessionID, r.Origin)
	case models.EventDriverOffline, models.EventLogout:
		return r.Presence.SetOffline(ctx, ev.SessionID)
	}
	return nil
}
