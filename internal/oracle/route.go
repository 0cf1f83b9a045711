package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/rescuebite/rescuebite/internal/listing"
)

// RoadNetwork resolves an ordered path between two coordinates. The core
// calls it exactly once per rider assignment.
type RoadNetwork interface {
	Route(ctx context.Context, from, to listing.Location) ([]listing.Waypoint, error)
}

// OSRMRouter talks to an OSRM-compatible routing endpoint.
type OSRMRouter struct {
	BaseURL string
	Client  *http.Client
}

func NewOSRMRouter() *OSRMRouter {
	base := os.Getenv("OSRM_URL")
	if base == "" {
		base = "https://router.project-osrm.org"
	}
	return &OSRMRouter{
		BaseURL: base,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route fetches driving waypoints donor -> NGO. Any failure surfaces as
// listing.ErrOracleUnavailable; the caller decides whether to retry.
func (r *OSRMRouter) Route(ctx context.Context, from, to listing.Location) ([]listing.Waypoint, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		r.BaseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		log.Printf("[route] osrm call failed: %v", err)
		return nil, listing.ErrOracleUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[route] osrm status %d", resp.StatusCode)
		return nil, listing.ErrOracleUnavailable
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, listing.ErrOracleUnavailable
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, listing.ErrOracleUnavailable
	}

	coords := body.Routes[0].Geometry.Coordinates
	waypoints := make([]listing.Waypoint, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		// GeoJSON order is lng,lat
		waypoints = append(waypoints, listing.Waypoint{Lat: c[1], Lng: c[0]})
	}
	if len(waypoints) == 0 {
		return nil, listing.ErrOracleUnavailable
	}
	return waypoints, nil
}
