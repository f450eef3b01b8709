// Package google provides a maps.Provider backed by the Google Maps Platform
// REST APIs: Routes (directions/v2:computeRoutes) for routing, and the
// Geocoding and Place Details web services for lookups.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/types"
)

const (
	defaultRoutesURL = "https://routes.googleapis.com"
	defaultMapsURL   = "https://maps.googleapis.com/maps/api"
	defaultTimeout   = 15 * time.Second

	// DefaultFieldMask selects the route fields the assistant reads.
	DefaultFieldMask = "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline," +
		"routes.localizedValues,routes.description,routes.warnings,routes.travelAdvisory.tollInfo," +
		"routes.legs.startLocation,routes.legs.endLocation"
)

var _ maps.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Google Provider.
type Option func(*Provider)

// WithRoutesURL overrides the Routes API root. Used by tests.
func WithRoutesURL(u string) Option {
	return func(p *Provider) { p.routesURL = strings.TrimRight(u, "/") }
}

// WithMapsURL overrides the Geocoding/Places API root. Used by tests.
func WithMapsURL(u string) Option {
	return func(p *Provider) { p.mapsURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithRegion sets the region bias (ccTLD, e.g. "sg") for routes and geocoding.
func WithRegion(region string) Option {
	return func(p *Provider) { p.region = region }
}

// WithLanguage sets the language of addresses and localized values.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithFieldMask overrides DefaultFieldMask.
func WithFieldMask(mask string) Option {
	return func(p *Provider) { p.fieldMask = mask }
}

// Provider implements maps.Provider.
type Provider struct {
	apiKey    string
	routesURL string
	mapsURL   string
	region    string
	language  string
	fieldMask string
	client    *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google maps: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:    apiKey,
		routesURL: defaultRoutesURL,
		mapsURL:   defaultMapsURL,
		language:  "en",
		fieldMask: DefaultFieldMask,
		client:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ── Routes ───────────────────────────────────────────────────────────────────

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type waypoint struct {
	Location *struct {
		LatLng latLng `json:"latLng"`
	} `json:"location,omitempty"`
	PlaceID string `json:"placeId,omitempty"`
	Address string `json:"address,omitempty"`
}

type computeRoutesRequest struct {
	Origin            waypoint `json:"origin"`
	Destination       waypoint `json:"destination"`
	TravelMode        string   `json:"travelMode"`
	RoutingPreference string   `json:"routingPreference,omitempty"`
	LanguageCode      string   `json:"languageCode,omitempty"`
	RegionCode        string   `json:"regionCode,omitempty"`
}

type localizedText struct {
	Text string `json:"text"`
}

type computeRoutesResponse struct {
	Routes []struct {
		Duration       string `json:"duration"`
		DistanceMeters int    `json:"distanceMeters"`
		Description    string `json:"description"`
		Polyline       struct {
			EncodedPolyline string `json:"encodedPolyline"`
		} `json:"polyline"`
		Warnings        []string `json:"warnings"`
		LocalizedValues struct {
			Distance localizedText `json:"distance"`
			Duration localizedText `json:"duration"`
		} `json:"localizedValues"`
		TravelAdvisory struct {
			TollInfo *json.RawMessage `json:"tollInfo"`
		} `json:"travelAdvisory"`
	} `json:"routes"`
}

func toWaypoint(w maps.Waypoint) (waypoint, error) {
	var out waypoint
	switch {
	case w.Location != nil:
		out.Location = &struct {
			LatLng latLng `json:"latLng"`
		}{LatLng: latLng{Latitude: w.Location.Lat, Longitude: w.Location.Lng}}
	case w.PlaceID != "":
		out.PlaceID = w.PlaceID
	case w.Address != "":
		out.Address = w.Address
	default:
		return out, errors.New("empty waypoint")
	}
	return out, nil
}

// ComputeRoute implements maps.Provider.
func (p *Provider) ComputeRoute(ctx context.Context, req maps.RouteRequest) (*types.RouteInfo, error) {
	origin, err := toWaypoint(req.Origin)
	if err != nil {
		return nil, fmt.Errorf("google maps: origin: %w", err)
	}
	dest, err := toWaypoint(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("google maps: destination: %w", err)
	}
	mode := strings.ToUpper(req.TravelMode)
	if mode == "" {
		mode = "DRIVE"
	}
	body := computeRoutesRequest{
		Origin:       origin,
		Destination:  dest,
		TravelMode:   mode,
		LanguageCode: p.language,
		RegionCode:   p.region,
	}
	if mode == "DRIVE" || mode == "TWO_WHEELER" {
		body.RoutingPreference = "TRAFFIC_AWARE_OPTIMAL"
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("google maps: marshal route request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.routesURL+"/directions/v2:computeRoutes", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("google maps: build route request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", p.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", p.fieldMask)

	var resp computeRoutesResponse
	if err := p.do(httpReq, &resp); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, maps.ErrNotFound
	}
	r := resp.Routes[0]

	info := &types.RouteInfo{
		DistanceMeters: r.DistanceMeters,
		Polyline:       r.Polyline.EncodedPolyline,
		DurationText:   r.LocalizedValues.Duration.Text,
		DistanceText:   r.LocalizedValues.Distance.Text,
		Summary:        r.Description,
	}
	if r.Duration != "" {
		d, err := time.ParseDuration(r.Duration)
		if err != nil {
			return nil, fmt.Errorf("google maps: parse duration %q: %w", r.Duration, err)
		}
		info.DurationSeconds = int(d.Seconds())
	}
	if r.TravelAdvisory.TollInfo != nil {
		info.Warnings = append(info.Warnings, types.RouteWarning{Severity: "INFO", Message: "Route contains tolls."})
	}
	for _, w := range r.Warnings {
		info.Warnings = append(info.Warnings, types.RouteWarning{Severity: "WARNING", Message: w})
	}
	if info.DurationText == "" && info.DurationSeconds > 0 {
		info.DurationText = fmt.Sprintf("%d mins", int(math.Round(float64(info.DurationSeconds)/60)))
	}
	if info.DistanceText == "" && info.DistanceMeters > 0 {
		info.DistanceText = fmt.Sprintf("%.1f km", float64(info.DistanceMeters)/1000)
	}
	return info, nil
}

// ── Geocoding / Places ───────────────────────────────────────────────────────

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	FormattedAddress string   `json:"formatted_address"`
	Name             string   `json:"name"`
	Types            []string `json:"types"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

func (r placeResult) toPlace() *types.PlaceInfo {
	return &types.PlaceInfo{
		PlaceID:          r.PlaceID,
		FormattedAddress: r.FormattedAddress,
		Name:             r.Name,
		Types:            r.Types,
		Location:         types.Location{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
	}
}

type geocodeResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type detailsResponse struct {
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message"`
	Result       *placeResult `json:"result"`
}

// Geocode implements maps.Provider.
func (p *Provider) Geocode(ctx context.Context, address string) (*types.PlaceInfo, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("google maps: geocode: address must not be empty")
	}
	q := url.Values{"address": {address}}
	return p.geocode(ctx, q)
}

// ReverseGeocode implements maps.Provider.
func (p *Provider) ReverseGeocode(ctx context.Context, loc types.Location) (*types.PlaceInfo, error) {
	q := url.Values{"latlng": {fmt.Sprintf("%f,%f", loc.Lat, loc.Lng)}}
	return p.geocode(ctx, q)
}

func (p *Provider) geocode(ctx context.Context, q url.Values) (*types.PlaceInfo, error) {
	if p.region != "" {
		q.Set("region", p.region)
	}
	var resp geocodeResponse
	if err := p.get(ctx, "/geocode/json", q, &resp); err != nil {
		return nil, err
	}
	if err := statusErr("geocode", resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, maps.ErrNotFound
	}
	return resp.Results[0].toPlace(), nil
}

// PlaceDetails implements maps.Provider.
func (p *Provider) PlaceDetails(ctx context.Context, placeID string) (*types.PlaceInfo, error) {
	if placeID == "" {
		return nil, errors.New("google maps: place details: place ID must not be empty")
	}
	q := url.Values{
		"place_id": {placeID},
		"fields":   {"place_id,name,formatted_address,geometry,types"},
	}
	var resp detailsResponse
	if err := p.get(ctx, "/place/details/json", q, &resp); err != nil {
		return nil, err
	}
	if err := statusErr("place details", resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, maps.ErrNotFound
	}
	return resp.Result.toPlace(), nil
}

// statusErr maps the legacy web-service status field onto errors.
func statusErr(op, status, msg string) error {
	switch status {
	case "OK", "":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return maps.ErrNotFound
	default:
		if msg != "" {
			return fmt.Errorf("google maps: %s: %s: %s", op, status, msg)
		}
		return fmt.Errorf("google maps: %s: %s", op, status)
	}
}

func (p *Provider) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", p.apiKey)
	if p.language != "" {
		q.Set("language", p.language)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.mapsURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("google maps: build request: %w", err)
	}
	return p.do(httpReq, out)
}

func (p *Provider) do(httpReq *http.Request, out any) error {
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("google maps: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("google maps: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ae struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			return fmt.Errorf("google maps: status %d: %s", resp.StatusCode, ae.Error.Message)
		}
		return fmt.Errorf("google maps: unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("google maps: decode response: %w", err)
	}
	return nil
}
