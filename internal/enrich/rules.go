package enrich

import "strings"

// Action is the suggested next step for the rep working a lead.
type Action string

const (
	ActionCheckNumber    Action = "check_number"
	ActionRespondToReply Action = "respond_to_reply"
	ActionCallBack       Action = "call_back"
	ActionFollowUpQuote  Action = "follow_up_quote"
	ActionCallNow        Action = "call_now"
	ActionCallAndText    Action = "call_and_text"
	ActionSendText       Action = "send_text"
	ActionWait           Action = "wait"
)

type Temperature string

const (
	TemperatureHot  Temperature = "hot"
	TemperatureWarm Temperature = "warm"
	TemperatureCold Temperature = "cold"
	TemperatureNew  Temperature = "new"
)

// RuleConfig holds the lead-source categories that get a call and a text on
// first touch instead of a call only.
type RuleConfig struct {
	TextFirstSources []string
}

func DefaultRuleConfig() RuleConfig {
	return RuleConfig{TextFirstSources: []string{"web", "online", "form"}}
}

func (c RuleConfig) textFirst(source string) bool {
	s := strings.ToLower(source)
	for _, v := range c.TextFirstSources {
		if v != "" && strings.Contains(s, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// Direction picks the next action. Rules are checked in order and the first
// match wins.
func Direction(l Lead, rc RC, cfg RuleConfig) Action {
	switch {
	case rc.AllSMSFailed:
		return ActionCheckNumber
	case rc.HasReplied:
		return ActionRespondToReply
	case rc.HasInboundCall:
		return ActionCallBack
	case rc.HasLongCall:
		return ActionFollowUpQuote
	case rc.CallsTotal == 0 && rc.SMSTotal == 0:
		if cfg.textFirst(l.Source) {
			return ActionCallAndText
		}
		return ActionCallNow
	case rc.CallsTotal > 0 && rc.SMSTotal == 0:
		return ActionSendText
	case rc.SMSTotal > 0 && rc.CallsTotal == 0:
		return ActionCallNow
	default:
		return ActionWait
	}
}

// TemperatureOf grades how engaged a lead is from its activity.
func TemperatureOf(rc RC) Temperature {
	switch {
	case rc.HasReplied || rc.HasInboundCall || rc.HasLongCall:
		return TemperatureHot
	case rc.CallsTotal > rc.VMTotal || rc.CallsTotal+rc.SMSTotal >= 2:
		return TemperatureWarm
	case rc.CallsTotal+rc.SMSTotal > 0:
		return TemperatureCold
	default:
		return TemperatureNew
	}
}
