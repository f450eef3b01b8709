package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/drivewise/pkg/provider/maps"
	"github.com/MrWong99/drivewise/pkg/types"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestComputeRoute(t *testing.T) {
	t.Parallel()

	var got computeRoutesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/directions/v2:computeRoutes" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "k" {
			t.Error("missing api key header")
		}
		if r.Header.Get("X-Goog-FieldMask") == "" {
			t.Error("missing field mask header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"routes":[{
			"duration":"1205s","distanceMeters":15320,"description":"ECP",
			"polyline":{"encodedPolyline":"abc"},
			"localizedValues":{"duration":{"text":"20 mins"},"distance":{"text":"15.3 km"}},
			"travelAdvisory":{"tollInfo":{}},
			"warnings":["This route has restricted usage."]
		}]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithRoutesURL(srv.URL), WithRegion("sg"))
	info, err := p.ComputeRoute(context.Background(), maps.RouteRequest{
		Origin:      maps.At(types.Location{Lat: 1.3, Lng: 103.8}),
		Destination: maps.ParseWaypoint("place_id:ChIJairport"),
	})
	if err != nil {
		t.Fatalf("ComputeRoute: %v", err)
	}

	if got.Origin.Location == nil || got.Origin.Location.LatLng.Latitude != 1.3 {
		t.Errorf("origin = %+v", got.Origin)
	}
	if got.Destination.PlaceID != "ChIJairport" {
		t.Errorf("destination = %+v", got.Destination)
	}
	if got.TravelMode != "DRIVE" || got.RoutingPreference != "TRAFFIC_AWARE_OPTIMAL" || got.RegionCode != "sg" {
		t.Errorf("request = %+v", got)
	}

	if info.DurationSeconds != 1205 || info.DistanceMeters != 15320 {
		t.Errorf("info = %+v", info)
	}
	if info.DurationText != "20 mins" || info.DistanceText != "15.3 km" || info.Summary != "ECP" {
		t.Errorf("texts = %+v", info)
	}
	if len(info.Warnings) != 2 || info.Warnings[0].Message != "Route contains tolls." {
		t.Errorf("warnings = %+v", info.Warnings)
	}
}

func TestComputeRoute_FallbackTexts(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[{"duration":"610s","distanceMeters":4250}]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithRoutesURL(srv.URL))
	info, err := p.ComputeRoute(context.Background(), maps.RouteRequest{
		Origin: maps.ParseWaypoint("1,2"), Destination: maps.ParseWaypoint("Orchard Road"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if info.DurationText != "10 mins" {
		t.Errorf("DurationText = %q, want 10 mins", info.DurationText)
	}
	if info.DistanceText != "4.2 km" && info.DistanceText != "4.3 km" {
		t.Errorf("DistanceText = %q", info.DistanceText)
	}
}

func TestComputeRoute_NoRoutes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithRoutesURL(srv.URL))
	_, err := p.ComputeRoute(context.Background(), maps.RouteRequest{
		Origin: maps.ParseWaypoint("a"), Destination: maps.ParseWaypoint("b"),
	})
	if !errors.Is(err, maps.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestComputeRoute_EmptyWaypoint(t *testing.T) {
	p, _ := New("k")
	if _, err := p.ComputeRoute(context.Background(), maps.RouteRequest{Destination: maps.ParseWaypoint("x")}); err == nil {
		t.Fatal("expected error for empty origin")
	}
}

func TestGeocode(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("address") != "Jewel Changi" || q.Get("key") != "k" || q.Get("region") != "sg" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"P1","formatted_address":"78 Airport Blvd",
			"types":["shopping_mall","point_of_interest"],"geometry":{"location":{"lat":1.36,"lng":103.99}}}]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithMapsURL(srv.URL), WithRegion("sg"))
	place, err := p.Geocode(context.Background(), "Jewel Changi")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if place.PlaceID != "P1" || place.Types[0] != "shopping_mall" || place.Location.Lat != 1.36 {
		t.Errorf("place = %+v", place)
	}
}

func TestGeocode_ZeroResults(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithMapsURL(srv.URL))
	if _, err := p.Geocode(context.Background(), "nowhere"); !errors.Is(err, maps.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGeocode_Denied(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithMapsURL(srv.URL))
	_, err := p.Geocode(context.Background(), "x")
	if err == nil || errors.Is(err, maps.ErrNotFound) {
		t.Fatalf("err = %v, want a non-NotFound error", err)
	}
}

func TestReverseGeocode(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latlng") == "" {
			t.Error("missing latlng")
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Jurong East St 13"}]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithMapsURL(srv.URL))
	place, err := p.ReverseGeocode(context.Background(), types.Location{Lat: 1.33, Lng: 103.74})
	if err != nil {
		t.Fatal(err)
	}
	if place.FormattedAddress != "Jurong East St 13" {
		t.Errorf("address = %q", place.FormattedAddress)
	}
}

func TestPlaceDetails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/place/details/json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("place_id") == "missing" {
			_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","result":{"place_id":"P2","name":"Changi Airport","types":["airport"]}}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithMapsURL(srv.URL))
	place, err := p.PlaceDetails(context.Background(), "P2")
	if err != nil {
		t.Fatal(err)
	}
	if place.Name != "Changi Airport" || len(place.Types) != 1 {
		t.Errorf("place = %+v", place)
	}
	if _, err := p.PlaceDetails(context.Background(), "missing"); !errors.Is(err, maps.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
