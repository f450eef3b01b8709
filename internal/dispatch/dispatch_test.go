package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MrWong99/drivewise/internal/navigation"
	"github.com/MrWong99/drivewise/internal/nlu"
	"github.com/MrWong99/drivewise/pkg/provider/maps"
	mapsmock "github.com/MrWong99/drivewise/pkg/provider/maps/mock"
	"github.com/MrWong99/drivewise/pkg/provider/sms"
	smsmock "github.com/MrWong99/drivewise/pkg/provider/sms/mock"
	"github.com/MrWong99/drivewise/pkg/types"
)

var loc = &types.Location{Lat: 3.139, Lng: 101.6869}

func result(in nlu.Intent, entities map[string]any, reply string) *nlu.Result {
	if entities == nil {
		entities = map[string]any{}
	}
	return &nlu.Result{Intent: in, Entities: entities, Reply: reply}
}

// stubNav is a Navigator with canned answers.
type stubNav struct {
	route    *types.RouteInfo
	routeErr error
	reroute  *types.RouteInfo
	complex  bool
	cplxErr  error
	warnings []types.RouteWarning
	floodErr error
	floodOff bool
	panicOn  string
}

func (s *stubNav) Route(context.Context, string, types.Location, string) (*types.RouteInfo, error) {
	if s.panicOn == "route" {
		panic("boom")
	}
	return s.route, s.routeErr
}

func (s *stubNav) CheckReroute(context.Context, string, types.Location, string) (*types.RouteInfo, error) {
	return s.reroute, s.routeErr
}

func (s *stubNav) IsPickupComplex(context.Context, string, string) (bool, error) {
	return s.complex, s.cplxErr
}

func (s *stubNav) FloodWarnings(context.Context, string, types.Location) ([]types.RouteWarning, error) {
	return s.warnings, s.floodErr
}

func (s *stubNav) FloodEnabled() bool { return !s.floodOff }

func TestHandle_NeverFailsOnEmptyContext(t *testing.T) {
	t.Parallel()
	d := New(&stubNav{panicOn: "route"})
	for _, in := range nlu.Intents {
		out := d.Handle(context.Background(), Request{NLU: result(in, nil, "")})
		if strings.TrimSpace(out.Reply) == "" {
			t.Errorf("%s: empty reply", in)
		}
		if out.Action != nil {
			t.Errorf("%s: action = %+v, want nil", in, out.Action)
		}
		if out.Err != nil {
			t.Errorf("%s: err = %v, want clarification", in, out.Err)
		}
	}

	out := d.Handle(context.Background(), Request{NLU: result(nlu.IntentGetRoute, nil, "")})
	if !strings.Contains(out.Reply, "directions") {
		t.Errorf("get_route clarification = %q", out.Reply)
	}
	out = d.Handle(context.Background(), Request{})
	if out.Reply == "" {
		t.Error("nil NLU result produced empty reply")
	}
}

func TestHandle_Clarifications(t *testing.T) {
	t.Parallel()
	d := New(&stubNav{})
	dest := map[string]any{"destination": "KLCC"}
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"route without location", Request{NLU: result(nlu.IntentGetRoute, dest, "")}, "current location"},
		{"route without destination", Request{NLU: result(nlu.IntentGetRoute, nil, ""), Location: loc}, "Where would you like"},
		{"reroute without location", Request{NLU: result(nlu.IntentRerouteCheck, nil, "")}, "check for a reroute"},
		{"reroute without order", Request{NLU: result(nlu.IntentRerouteCheck, nil, ""), Location: loc}, "active order with a destination"},
		{"message without content", Request{NLU: result(nlu.IntentSendMessage, nil, "")}, "What message"},
		{"gate without order", Request{NLU: result(nlu.IntentAskGateInfo, nil, "")}, "active order to ask about the gate"},
		{"gate without phone", Request{NLU: result(nlu.IntentAskGateInfo, nil, ""), Order: &types.OrderContext{PassengerPickupAddress: "KLIA"}}, "contact number"},
		{"gate without pickup", Request{NLU: result(nlu.IntentAskGateInfo, nil, ""), Order: &types.OrderContext{PassengerPhoneNumber: "+60"}}, "pickup address or Place ID"},
		{"flood without location", Request{NLU: result(nlu.IntentCheckFlood, nil, "")}, "flood warnings"},
	}
	for _, tc := range tests {
		out := d.Handle(context.Background(), tc.req)
		if !strings.Contains(out.Reply, tc.want) {
			t.Errorf("%s: reply %q does not contain %q", tc.name, out.Reply, tc.want)
		}
	}
}

func TestHandle_GetRoute(t *testing.T) {
	t.Parallel()
	route := &types.RouteInfo{
		DurationText: "20 mins",
		DistanceText: "12.4 km",
		EndAddress:   "KL International Airport",
		Summary:      "E6",
		Warnings:     []types.RouteWarning{{Message: "Toll road"}, {Message: "Road works"}},
	}
	d := New(&stubNav{route: route})

	out := d.Handle(context.Background(), Request{
		NLU:      result(nlu.IntentGetRoute, map[string]any{"destination": "the airport"}, "Okay"),
		Location: loc,
	})
	want := "Okay, heading to KL International Airport. It should take about 20 mins (12.4 km). The route is mainly via E6. Also, be aware: Toll road, Road works"
	if out.Reply != want {
		t.Errorf("reply = %q\nwant    %q", out.Reply, want)
	}
	if out.Action == nil || out.Action.Type != ActionRoute || out.Action.Route != route {
		t.Errorf("action = %+v", out.Action)
	}
}

func TestRouteReply_Fallbacks(t *testing.T) {
	t.Parallel()
	got := routeReply(&types.RouteInfo{DurationSeconds: 1530, DistanceMeters: 12345}, "KLCC")
	want := "Okay, heading to KLCC. It should take about 26 mins (12.3 km)."
	if got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestHandle_NavigationFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		nav  *stubNav
		req  Request
		want string
	}{
		{
			"no route",
			&stubNav{routeErr: navigation.ErrNoRoute},
			Request{NLU: result(nlu.IntentGetRoute, map[string]any{"destination": "Atlantis"}, ""), Location: loc},
			"Sorry, I had trouble with the navigation request: Could not find a route to Atlantis.",
		},
		{
			"maps down",
			&stubNav{routeErr: &navigation.Error{Op: "compute route", Err: errors.New("503")}},
			Request{NLU: result(nlu.IntentRerouteCheck, nil, ""), Location: loc, Order: &types.OrderContext{PassengerDestinationAddress: "KLCC"}},
			"Sorry, I had trouble with the navigation request:",
		},
		{
			"flood lookup down",
			&stubNav{floodErr: &navigation.Error{Op: "reverse geocode", Err: errors.New("503")}},
			Request{NLU: result(nlu.IntentCheckFlood, nil, ""), Location: loc},
			"Sorry, I had trouble with the navigation request:",
		},
		{
			"unusable destination",
			&stubNav{routeErr: fmt.Errorf("%w: %q", navigation.ErrInvalidDestination, "place_id:")},
			Request{NLU: result(nlu.IntentGetRoute, map[string]any{"destination": "place_id:"}, ""), Location: loc},
			"I can't do that right now. I couldn't make out a place from",
		},
		{
			"unexpected",
			&stubNav{routeErr: errors.New("nil pointer somewhere")},
			Request{NLU: result(nlu.IntentGetRoute, map[string]any{"destination": "KLCC"}, ""), Location: loc},
			"Sorry, an unexpected error occurred while processing your request.",
		},
		{
			"panic",
			&stubNav{panicOn: "route"},
			Request{NLU: result(nlu.IntentGetRoute, map[string]any{"destination": "KLCC"}, ""), Location: loc},
			"Sorry, an unexpected error occurred while processing your request.",
		},
	}
	for _, tc := range tests {
		out := New(tc.nav).Handle(context.Background(), tc.req)
		if !strings.HasPrefix(out.Reply, tc.want) {
			t.Errorf("%s: reply = %q, want prefix %q", tc.name, out.Reply, tc.want)
		}
		if out.Err == nil {
			t.Errorf("%s: Outcome.Err is nil", tc.name)
		}
	}
}

func TestHandle_Reroute(t *testing.T) {
	t.Parallel()
	order := &types.OrderContext{PassengerDestinationAddress: "Pavilion KL"}
	req := Request{NLU: result(nlu.IntentRerouteCheck, nil, ""), Location: loc, Order: order}

	out := New(&stubNav{}).Handle(context.Background(), req)
	if out.Reply != "Looks like you're on the best route currently." || out.Action != nil {
		t.Errorf("no reroute: %+v", out)
	}

	out = New(&stubNav{reroute: &types.RouteInfo{DurationText: "12 mins"}}).Handle(context.Background(), req)
	want := "Found a potentially faster route to Pavilion KL. It should take about 12 mins. Check your map for the updated route."
	if out.Reply != want || out.Action == nil || out.Action.Type != ActionReroute {
		t.Errorf("reroute: %+v", out)
	}
}

func TestHandle_Flood(t *testing.T) {
	t.Parallel()
	req := Request{NLU: result(nlu.IntentCheckFlood, nil, ""), Location: loc}

	out := New(&stubNav{warnings: []types.RouteWarning{{Message: "A"}, {Message: "B"}}}).Handle(context.Background(), req)
	if out.Reply != "Attention: A; B" || out.Action == nil || len(out.Action.Warnings) != 2 {
		t.Errorf("warnings: %+v", out)
	}
	out = New(&stubNav{}).Handle(context.Background(), req)
	if !strings.HasPrefix(out.Reply, "Good news") {
		t.Errorf("no warnings: %q", out.Reply)
	}
}

func TestHandle_FloodChecksDisabled(t *testing.T) {
	t.Parallel()
	req := Request{NLU: result(nlu.IntentCheckFlood, nil, ""), Location: loc}
	out := New(&stubNav{floodOff: true, warnings: []types.RouteWarning{{Message: "A"}}}).Handle(context.Background(), req)
	if !strings.Contains(out.Reply, "flood checks aren't available") || out.Action != nil {
		t.Errorf("disabled: %+v", out)
	}

	m := &mapsmock.Provider{}
	out = New(navigation.New(m)).Handle(context.Background(), req)
	if strings.HasPrefix(out.Reply, "Good news") {
		t.Errorf("reassured without a lookup: %q", out.Reply)
	}
	if n := len(m.ReverseCalls) + len(m.RouteCalls); n != 0 {
		t.Errorf("maps lookups = %d, want 0", n)
	}
}

func TestHandle_EmptyPlaceReference(t *testing.T) {
	t.Parallel()
	m := &mapsmock.Provider{Route: &types.RouteInfo{DurationText: "20 mins"}}
	out := New(navigation.New(m)).Handle(context.Background(), Request{
		SessionID: "s1",
		NLU:       result(nlu.IntentGetRoute, map[string]any{"destination": "place_id:"}, ""),
		Location:  loc,
	})
	var inv *InvalidRequestError
	if !errors.As(out.Err, &inv) {
		t.Fatalf("err = %v, want *InvalidRequestError", out.Err)
	}
	if !strings.HasPrefix(out.Reply, "I can't do that right now.") {
		t.Errorf("reply = %q", out.Reply)
	}
	if len(m.RouteCalls) != 0 {
		t.Errorf("route calls = %d, want 0", len(m.RouteCalls))
	}
}

func TestHandle_SendMessage(t *testing.T) {
	t.Parallel()
	msg := result(nlu.IntentSendMessage, map[string]any{"message_content": "I'm outside"}, "")

	out := New(&stubNav{}).Handle(context.Background(), Request{NLU: msg})
	if out.Reply != "Okay, message sent." {
		t.Errorf("without messenger: %q", out.Reply)
	}

	p := &smsmock.Provider{}
	d := New(&stubNav{}, WithMessenger(p))
	out = d.Handle(context.Background(), Request{NLU: msg, Order: &types.OrderContext{PassengerPhoneNumber: "+6012345"}})
	if out.Reply != "Okay, message sent." || out.Action == nil || out.Action.Receipt == nil {
		t.Errorf("with messenger: %+v", out)
	}
	if sent := p.Messages(); len(sent) != 1 || sent[0].To != "+6012345" || sent[0].Body != "I'm outside" {
		t.Errorf("sent = %+v", sent)
	}

	out = d.Handle(context.Background(), Request{NLU: msg})
	if !strings.HasPrefix(out.Reply, "Sorry, I can't do that in the current state.") {
		t.Errorf("no phone: %q", out.Reply)
	}

	out = New(&stubNav{}, WithMessenger(&smsmock.Provider{Err: sms.ErrDisabled})).
		Handle(context.Background(), Request{NLU: msg, Order: &types.OrderContext{PassengerPhoneNumber: "+6012345"}})
	if !strings.HasPrefix(out.Reply, "Sorry, I couldn't complete the communication task:") {
		t.Errorf("disabled: %q", out.Reply)
	}
}

func TestHandle_AskGateInfo(t *testing.T) {
	t.Parallel()
	order := &types.OrderContext{OrderID: "o1", PassengerPhoneNumber: "+6598765432", PassengerPickupAddress: "Changi Airport T3"}
	req := Request{NLU: result(nlu.IntentAskGateInfo, nil, ""), Order: order}

	p := &smsmock.Provider{}
	out := New(&stubNav{complex: true}, WithMessenger(p)).Handle(context.Background(), req)
	if !strings.HasPrefix(out.Reply, "Okay, the pickup location seems complex.") {
		t.Errorf("complex reply = %q", out.Reply)
	}
	sent := p.Messages()
	if len(sent) != 1 || sent[0].To != "+6598765432" || !strings.Contains(sent[0].Body, "reaching Changi Airport T3") {
		t.Errorf("sent = %+v", sent)
	}

	out = New(&stubNav{complex: false}, WithMessenger(p)).Handle(context.Background(), req)
	if !strings.Contains(out.Reply, "doesn't seem like a place with multiple gates") {
		t.Errorf("simple reply = %q", out.Reply)
	}
	if len(p.Messages()) != 1 {
		t.Error("message sent for a simple pickup")
	}

	out = New(&stubNav{cplxErr: &navigation.Error{Op: "pickup lookup", Err: maps.ErrNotFound}}).Handle(context.Background(), req)
	if out.Reply != "Sorry, I had trouble checking the details of the pickup location." {
		t.Errorf("lookup failure reply = %q", out.Reply)
	}
	out = New(&stubNav{cplxErr: errors.New("weird")}).Handle(context.Background(), req)
	if out.Reply != "Sorry, an unexpected error occurred while checking the pickup location." {
		t.Errorf("unexpected failure reply = %q", out.Reply)
	}

	out = New(&stubNav{complex: true}, WithMessenger(&smsmock.Provider{Err: errors.New("twilio 500")})).Handle(context.Background(), req)
	if !strings.HasPrefix(out.Reply, "Sorry, I couldn't complete the communication task:") {
		t.Errorf("sms failure reply = %q", out.Reply)
	}
}

func TestHandle_PassThrough(t *testing.T) {
	t.Parallel()
	d := New(&stubNav{})
	out := d.Handle(context.Background(), Request{NLU: result(nlu.IntentGeneralChat, nil, "Nice weather today!")})
	if out.Reply != "Nice weather today!" {
		t.Errorf("chat = %q", out.Reply)
	}
	out = d.Handle(context.Background(), Request{NLU: result(nlu.IntentUnknown, nil, "")})
	if out.Reply != "Sorry, I'm not sure how to help with that." {
		t.Errorf("unknown = %q", out.Reply)
	}
}

func TestHandle_WithNavigationService(t *testing.T) {
	t.Parallel()
	m := &mapsmock.Provider{Route: &types.RouteInfo{DurationText: "20 mins", DistanceText: "15 km"}}
	d := New(navigation.New(m))

	out := d.Handle(context.Background(), Request{
		SessionID: "s1",
		NLU:       result(nlu.IntentGetRoute, map[string]any{"destination": "the airport"}, "Okay"),
		Location:  loc,
	})
	if !strings.Contains(out.Reply, "20 mins") {
		t.Errorf("reply = %q", out.Reply)
	}
}
