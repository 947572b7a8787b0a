// ABOUTME: Settings document types, defaults and the per-tier limits table
// ABOUTME: Every feature area is a typed sub-document so merges can be total

package profile

import "time"

// Tier is the paid feature level a user is entitled to.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// Settings is the full configuration document owned by one profile.
// The "settings" sub-document (page wiring) keeps its historical JSON name.
type Settings struct {
	Tier          Tier `json:"tier"`
	MessagesUsed  int  `json:"messagesUsed"`
	MessagesLimit int  `json:"messagesLimit"`
	ReferralBonus int  `json:"referralBonus"`
	MasterEnabled bool `json:"masterEnabled"`

	Limits     FeatureLimits      `json:"limits"`
	Welcome    WelcomeSettings    `json:"welcome"`
	Timer      TimerSettings      `json:"timer"`
	FAQ        FAQSettings        `json:"faq"`
	Moderation ModerationSettings `json:"moderation"`
	Giveaway   GiveawaySettings   `json:"giveaway"`
	Templates  []Template         `json:"templates"`
	Page       PageSettings       `json:"settings"`
}

// FeatureLimits holds the numeric per-tier caps written into the profile so
// UI and automation surfaces never need tier branching of their own.
type FeatureLimits struct {
	FAQRules      int `json:"faqRules"`
	Templates     int `json:"templates"`
	TimerMessages int `json:"timerMessages"`
}

// WelcomeSettings greets first-time chatters.
type WelcomeSettings struct {
	Enabled      bool   `json:"enabled"`
	Message      string `json:"message"`
	DelaySeconds int    `json:"delaySeconds"`
}

// TimerSettings posts rotating messages on an interval.
type TimerSettings struct {
	Enabled         bool     `json:"enabled"`
	IntervalMinutes int      `json:"intervalMinutes"`
	Messages        []string `json:"messages"`
}

// FAQRule maps a trigger word to a canned response.
type FAQRule struct {
	Trigger  string `json:"trigger"`
	Response string `json:"response"`
}

// FAQSettings auto-answers trigger words.
type FAQSettings struct {
	Enabled bool      `json:"enabled"`
	Rules   []FAQRule `json:"rules"`
}

// ModerationSettings filters chat content.
type ModerationSettings struct {
	Enabled        bool     `json:"enabled"`
	BlockedWords   []string `json:"blockedWords"`
	RepeatBlocking bool     `json:"repeatBlocking"`
	TimeoutSeconds int      `json:"timeoutSeconds"`
}

// GiveawayEntry records one entrant.
type GiveawayEntry struct {
	User      string    `json:"user"`
	EnteredAt time.Time `json:"enteredAt"`
}

// GiveawaySettings collects entrants on keywords.
type GiveawaySettings struct {
	Keywords   []string        `json:"keywords"`
	UniqueOnly bool            `json:"uniqueOnly"`
	Entries    []GiveawayEntry `json:"entries"`
}

// Template is a reusable canned message.
type Template struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// PageSettings wires the automation surface to the chat page DOM.
type PageSettings struct {
	ChatSelector  string `json:"chatSelector"`
	InputSelector string `json:"inputSelector"`
	SendDelayMs   int    `json:"sendDelayMs"`
	Theme         string `json:"theme"`
}

// TierLimits is one row of the tier limits table.
type TierLimits struct {
	MessagesLimit int
	FeatureLimits
}

var tierLimits = map[Tier]TierLimits{
	TierFree:     {MessagesLimit: 100, FeatureLimits: FeatureLimits{FAQRules: 3, Templates: 3, TimerMessages: 2}},
	TierPro:      {MessagesLimit: 1000, FeatureLimits: FeatureLimits{FAQRules: 20, Templates: 20, TimerMessages: 10}},
	TierBusiness: {MessagesLimit: 10000, FeatureLimits: FeatureLimits{FAQRules: 100, Templates: 100, TimerMessages: 50}},
}

// LimitsForTier returns the numeric feature limits for a tier.
// Unknown tiers get the free limits.
func LimitsForTier(tier Tier) TierLimits {
	limits, ok := tierLimits[tier]
	if !ok {
		return tierLimits[TierFree]
	}
	return limits
}

// DefaultSettings returns the full settings document a new profile starts with.
func DefaultSettings() Settings {
	limits := LimitsForTier(TierFree)
	return Settings{
		Tier:          TierFree,
		MessagesLimit: limits.MessagesLimit,
		MasterEnabled: true,
		Limits:        limits.FeatureLimits,
		Welcome: WelcomeSettings{
			Message:      "Welcome to the chat, {user}!",
			DelaySeconds: 5,
		},
		Timer: TimerSettings{
			IntervalMinutes: 15,
			Messages:        []string{},
		},
		FAQ: FAQSettings{
			Rules: []FAQRule{},
		},
		Moderation: ModerationSettings{
			BlockedWords:   []string{},
			TimeoutSeconds: 60,
		},
		Giveaway: GiveawaySettings{
			Keywords:   []string{},
			UniqueOnly: true,
			Entries:    []GiveawayEntry{},
		},
		Templates: []Template{},
		Page: PageSettings{
			ChatSelector:  "#chat-messages",
			InputSelector: "#chat-input",
			SendDelayMs:   500,
			Theme:         "system",
		},
	}
}
