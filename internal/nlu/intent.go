package nlu

import "strings"

// Intent is one of the closed set of things a driver can ask for.
type Intent string

const (
	IntentGetRoute     Intent = "get_route"
	IntentSendMessage  Intent = "send_message"
	IntentCheckFlood   Intent = "check_flood"
	IntentAskGateInfo  Intent = "ask_gate_info"
	IntentRerouteCheck Intent = "reroute_check"
	IntentGeneralChat  Intent = "general_chat"
	IntentUnknown      Intent = "unknown"
)

// Intents lists every intent in prompt order.
var Intents = []Intent{
	IntentGetRoute,
	IntentSendMessage,
	IntentCheckFlood,
	IntentAskGateInfo,
	IntentRerouteCheck,
	IntentGeneralChat,
	IntentUnknown,
}

// ParseIntent maps a classifier label to an [Intent]. Labels are matched
// after trimming and lower-casing; anything else is [IntentUnknown].
func ParseIntent(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, in := range Intents {
		if string(in) == s {
			return in
		}
	}
	return IntentUnknown
}

// Valid reports whether i is a member of the closed set.
func (i Intent) Valid() bool {
	for _, in := range Intents {
		if in == i {
			return true
		}
	}
	return false
}
