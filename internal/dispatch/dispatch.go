// Package dispatch turns a classified intent into a reply and, for some
// intents, a machine-readable action result.
//
// Every branch checks its required inputs first and answers with a
// clarification question when something is missing. Failures of the
// navigation or messaging collaborators are classified and converted into an
// apology reply: [Dispatcher.Handle] never returns an error, so a turn always
// completes with something to say.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MrWong99/drivewise/internal/nlu"
	"github.com/MrWong99/drivewise/internal/observe"
	"github.com/MrWong99/drivewise/pkg/provider/sms"
	"github.com/MrWong99/drivewise/pkg/types"
)

// Navigator is the navigation collaborator. [*navigation.Service]
// satisfies it.
type Navigator interface {
	Route(ctx context.Context, sessionID string, origin types.Location, destination string) (*types.RouteInfo, error)
	CheckReroute(ctx context.Context, sessionID string, origin types.Location, destination string) (*types.RouteInfo, error)
	IsPickupComplex(ctx context.Context, placeID, address string) (bool, error)
	FloodWarnings(ctx context.Context, sessionID string, loc types.Location) ([]types.RouteWarning, error)
	FloodEnabled() bool
}

// Request is everything a dispatch decision may depend on.
type Request struct {
	SessionID string
	NLU       *nlu.Result
	Location  *types.Location
	Order     *types.OrderContext
}

// Action kinds carried by [ActionResult.Type].
const (
	ActionRoute   = "route"
	ActionReroute = "reroute"
	ActionFlood   = "flood_warnings"
	ActionMessage = "message_sent"
)

// ActionResult is the structured payload returned alongside some replies.
type ActionResult struct {
	Type     string               `json:"type"`
	Route    *types.RouteInfo     `json:"route,omitempty"`
	Warnings []types.RouteWarning `json:"warnings,omitempty"`
	Receipt  *sms.Receipt         `json:"receipt,omitempty"`
}

// Outcome is the result of [Dispatcher.Handle].
type Outcome struct {
	// Reply is in the internal processing language. Never empty.
	Reply  string
	Action *ActionResult

	// Err is the classified collaborator failure behind an apology reply,
	// kept for logs and metrics. Nil on success and on clarifications.
	Err error
}

// Option is a functional option for configuring a [Dispatcher].
type Option func(*Dispatcher)

// WithMessenger enables outbound SMS. Without one, messages are logged and
// reported as sent.
func WithMessenger(p sms.Provider) Option {
	return func(d *Dispatcher) { d.sms = p }
}

// Dispatcher routes intents to collaborators. It is safe for concurrent use.
type Dispatcher struct {
	nav Navigator
	sms sms.Provider
}

// New returns a [Dispatcher] using nav for every location-based intent.
func New(nav Navigator, opts ...Option) *Dispatcher {
	d := &Dispatcher{nav: nav}
	for _, o := range opts {
		o(d)
	}
	return d
}

// handler answers one intent. A returned error is converted to an apology.
type handler func(ctx context.Context, req Request) (string, *ActionResult, error)

// Handle produces the reply for req. It never panics and never fails.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (out Outcome) {
	log := observe.Logger(ctx)
	res := req.NLU
	if res == nil {
		res = nlu.Unknown("")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch: handler panicked", "intent", res.Intent, "panic", r)
			out = Outcome{Reply: replyUnexpected, Err: fmt.Errorf("dispatch: panic: %v", r)}
		}
	}()

	h := d.handlerFor(res.Intent)
	reply, action, err := h(ctx, req)
	if err != nil {
		log.Warn("dispatch: intent failed", "intent", res.Intent, "class", errorClass(err), "err", err)
		return Outcome{Reply: apology(err), Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		reply = nlu.ReplyKnownDefault
	}
	log.Info("dispatch: handled", "intent", res.Intent, "action", action != nil)
	return Outcome{Reply: reply, Action: action}
}

func (d *Dispatcher) handlerFor(in nlu.Intent) handler {
	switch in {
	case nlu.IntentGetRoute:
		return d.getRoute
	case nlu.IntentRerouteCheck:
		return d.rerouteCheck
	case nlu.IntentSendMessage:
		return d.sendMessage
	case nlu.IntentAskGateInfo:
		return d.askGateInfo
	case nlu.IntentCheckFlood:
		return d.checkFlood
	case nlu.IntentGeneralChat:
		return passthrough("Okay.")
	default:
		return passthrough("Sorry, I'm not sure how to help with that.")
	}
}

func passthrough(fallback string) handler {
	return func(_ context.Context, req Request) (string, *ActionResult, error) {
		if req.NLU != nil && strings.TrimSpace(req.NLU.Reply) != "" {
			return req.NLU.Reply, nil, nil
		}
		return fallback, nil, nil
	}
}

// ── Navigation intents ──────────────────────────────────────────────────────

func (d *Dispatcher) getRoute(ctx context.Context, req Request) (string, *ActionResult, error) {
	destination := req.NLU.Entity("destination")
	switch {
	case destination == "":
		return "Where would you like me to get directions to?", nil, nil
	case req.Location == nil:
		return "I need your current location to get directions. Can you enable location services?", nil, nil
	}

	route, err := d.nav.Route(ctx, req.SessionID, *req.Location, destination)
	if err != nil {
		return "", nil, navigationFailure(destination, err)
	}
	return routeReply(route, destination), &ActionResult{Type: ActionRoute, Route: route}, nil
}

func (d *Dispatcher) rerouteCheck(ctx context.Context, req Request) (string, *ActionResult, error) {
	if req.Location == nil {
		return "I need your current location to check for a reroute.", nil, nil
	}
	destination := req.Order.Destination()
	if destination == "" {
		return "I need an active order with a destination to check for a reroute.", nil, nil
	}

	route, err := d.nav.CheckReroute(ctx, req.SessionID, *req.Location, destination)
	if err != nil {
		return "", nil, navigationFailure(destination, err)
	}
	if route == nil {
		return "Looks like you're on the best route currently.", nil, nil
	}
	name := firstNonEmpty(route.EndAddress, req.Order.PassengerDestinationAddress, "your destination")
	reply := fmt.Sprintf("Found a potentially faster route to %s. It should take about %s. Check your map for the updated route.",
		name, durationText(route))
	return reply, &ActionResult{Type: ActionReroute, Route: route}, nil
}

func (d *Dispatcher) checkFlood(ctx context.Context, req Request) (string, *ActionResult, error) {
	if !d.nav.FloodEnabled() {
		return "Sorry, flood checks aren't available right now, so I can't tell you whether your area is affected.", nil, nil
	}
	if req.Location == nil {
		return "I need your current location to check for flood warnings.", nil, nil
	}
	warnings, err := d.nav.FloodWarnings(ctx, req.SessionID, *req.Location)
	if err != nil {
		return "", nil, navigationFailure("your area", err)
	}
	if len(warnings) == 0 {
		return "Good news, I didn't find any active flood alerts reported for your current area right now.", nil, nil
	}
	msgs := make([]string, len(warnings))
	for i, w := range warnings {
		msgs[i] = w.Message
	}
	return "Attention: " + strings.Join(msgs, "; "), &ActionResult{Type: ActionFlood, Warnings: warnings}, nil
}

// ── Messaging intents ───────────────────────────────────────────────────────

func (d *Dispatcher) sendMessage(ctx context.Context, req Request) (string, *ActionResult, error) {
	content := req.NLU.Entity("message_content")
	if content == "" {
		return "What message would you like me to send?", nil, nil
	}
	recipient := firstNonEmpty(req.NLU.Entity("recipient_hint"), "the passenger")

	if d.sms == nil {
		observe.Logger(ctx).Info("dispatch: no messenger configured; message not delivered",
			"recipient", recipient, "chars", len(content))
		return "Okay, message sent.", nil, nil
	}

	var phone string
	if req.Order != nil {
		phone = req.Order.PassengerPhoneNumber
	}
	if phone == "" {
		return "", nil, &StateError{Msg: fmt.Sprintf("I don't have a contact number for %s.", recipient)}
	}
	receipt, err := d.send(ctx, phone, content)
	if err != nil {
		return "", nil, err
	}
	return "Okay, message sent.", &ActionResult{Type: ActionMessage, Receipt: receipt}, nil
}

func (d *Dispatcher) askGateInfo(ctx context.Context, req Request) (string, *ActionResult, error) {
	o := req.Order
	switch {
	case o == nil:
		return "I need an active order to ask about the gate.", nil, nil
	case o.PassengerPhoneNumber == "":
		return "I need the passenger's contact number from the order details to ask about the gate.", nil, nil
	case o.PassengerPickupAddress == "" && o.PassengerPickupPlaceID == "":
		return "I need the pickup address or Place ID from the order details to determine if the location is complex.", nil, nil
	}

	isComplex, err := d.nav.IsPickupComplex(ctx, o.PassengerPickupPlaceID, o.PassengerPickupAddress)
	if err != nil {
		observe.Logger(ctx).Warn("dispatch: pickup complexity check failed", "err", err)
		if isNavigationFailure(err) {
			return "Sorry, I had trouble checking the details of the pickup location.", nil, nil
		}
		return "Sorry, an unexpected error occurred while checking the pickup location.", nil, nil
	}
	if !isComplex {
		return "Okay, I checked the pickup location. It doesn't seem like a place with multiple gates, so I haven't messaged the passenger about it. I'm heading there now.", nil, nil
	}

	pickup := o.PassengerPickupAddress
	if pickup == "" {
		pickup = fmt.Sprintf("the pickup location (Place ID: %s)", o.PassengerPickupPlaceID)
	}
	body := fmt.Sprintf("Hi, this is your Grab driver reaching %s. As it seems like a large place, could you please let me know which specific gate, entrance, or lobby I should meet you at? Thanks!", pickup)

	var action *ActionResult
	if d.sms != nil {
		receipt, err := d.send(ctx, o.PassengerPhoneNumber, body)
		if err != nil {
			return "", nil, err
		}
		action = &ActionResult{Type: ActionMessage, Receipt: receipt}
	} else {
		observe.Logger(ctx).Info("dispatch: no messenger configured; gate question not delivered", "order_id", o.OrderID)
	}
	return "Okay, the pickup location seems complex. I've sent a message to the passenger asking for the specific gate or entrance.", action, nil
}

func (d *Dispatcher) send(ctx context.Context, to, body string) (*sms.Receipt, error) {
	receipt, err := d.sms.Send(ctx, sms.Message{To: to, Body: body})
	if errors.Is(err, sms.ErrDisabled) {
		return nil, &CommunicationError{Msg: "Messaging is turned off.", Err: err}
	}
	if err != nil {
		return nil, &CommunicationError{Msg: "The message could not be delivered.", Err: err}
	}
	return receipt, nil
}

// ── Reply formatting ────────────────────────────────────────────────────────

func routeReply(r *types.RouteInfo, destination string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Okay, heading to %s. It should take about %s (%s).",
		firstNonEmpty(r.EndAddress, destination), durationText(r), distanceText(r))
	if r.Summary != "" {
		fmt.Fprintf(&b, " The route is mainly via %s.", r.Summary)
	}
	if len(r.Warnings) > 0 {
		msgs := make([]string, 0, len(r.Warnings))
		for _, w := range r.Warnings {
			msgs = append(msgs, w.Message)
		}
		b.WriteString(" Also, be aware: ")
		b.WriteString(strings.Join(msgs, ", "))
	}
	return b.String()
}

func durationText(r *types.RouteInfo) string {
	if r.DurationText != "" {
		return r.DurationText
	}
	return fmt.Sprintf("%d mins", int(math.Round(float64(r.DurationSeconds)/60)))
}

func distanceText(r *types.RouteInfo) string {
	if r.DistanceText != "" {
		return r.DistanceText
	}
	return fmt.Sprintf("%.1f km", float64(r.DistanceMeters)/1000)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
