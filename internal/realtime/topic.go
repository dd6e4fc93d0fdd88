// Package realtime defines the broadcast topic protocol and the pub/sub bus
// carrying bet, market, and result events between server instances and the
// websocket bridge.
package realtime

import "strings"

// ──────────────────────────────────────────────────────────────────────────────
// Topics
// ──────────────────────────────────────────────────────────────────────────────

// Kind selects a sub-channel of a stream's bet topic. KindAll is the
// combined firehose and contributes no segment to the topic name.
type Kind string

const (
	KindAll        Kind = "all"
	KindPool       Kind = "pool"
	KindPlacement  Kind = "placement"
	KindResolution Kind = "resolution"
)

// ResultsTopic is the single global channel for market resolution outcomes.
const ResultsTopic = "results"

// TopicBetStream derives the bet topic for a stream. Platform and name are
// lowercased so that differently-cased references to the same stream land on
// one channel:
//
//	TopicBetStream("Twitch", "CaseOblonge", KindAll)  -> "bets:twitch:caseoblonge"
//	TopicBetStream("Twitch", "CaseOblonge", KindPool) -> "bets:pool:twitch:caseoblonge"
func TopicBetStream(platform, name string, kind Kind) string {
	var b strings.Builder
	b.WriteString("bets")
	if kind != KindAll && kind != "" {
		b.WriteString(":")
		b.WriteString(string(kind))
	}
	b.WriteString(":")
	b.WriteString(strings.ToLower(platform))
	b.WriteString(":")
	b.WriteString(strings.ToLower(name))
	return b.String()
}

// ──────────────────────────────────────────────────────────────────────────────
// Events
// ──────────────────────────────────────────────────────────────────────────────

// Event names carried on the per-stream bet topics and the results topic.
const (
	EventBetTeamA  = "bet_team_a" // confirmed bet on answer A; payload domain.BetPayload
	EventBetTeamB  = "bet_team_b" // confirmed bet on answer B; payload domain.BetPayload
	EventNewMarket = "new_market" // market announced; payload domain.Market
	EventResult    = "result"     // resolution outcome; payload domain.ResultPayload
)

// BetEvent returns the event name for a bet on the given side.
func BetEvent(isAnswerA bool) string {
	if isAnswerA {
		return EventBetTeamA
	}
	return EventBetTeamB
}
