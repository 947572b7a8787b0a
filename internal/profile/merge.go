// ABOUTME: Patch types and the recursive merge applied by settings updates
// ABOUTME: Nested objects merge field-by-field, arrays and scalars replace wholesale

package profile

// SettingsPatch is a partial settings update. A nil field means "absent" and
// never erases the existing value; arrays are replaced as a whole, never
// merged element-wise.
type SettingsPatch struct {
	Tier          *Tier `json:"tier,omitempty"`
	MessagesUsed  *int  `json:"messagesUsed,omitempty"`
	MessagesLimit *int  `json:"messagesLimit,omitempty"`
	ReferralBonus *int  `json:"referralBonus,omitempty"`
	MasterEnabled *bool `json:"masterEnabled,omitempty"`

	Limits     *FeatureLimitsPatch `json:"limits,omitempty"`
	Welcome    *WelcomePatch       `json:"welcome,omitempty"`
	Timer      *TimerPatch         `json:"timer,omitempty"`
	FAQ        *FAQPatch           `json:"faq,omitempty"`
	Moderation *ModerationPatch    `json:"moderation,omitempty"`
	Giveaway   *GiveawayPatch      `json:"giveaway,omitempty"`
	Templates  *[]Template         `json:"templates,omitempty"`
	Page       *PagePatch          `json:"settings,omitempty"`
}

// FeatureLimitsPatch partially updates FeatureLimits.
type FeatureLimitsPatch struct {
	FAQRules      *int `json:"faqRules,omitempty"`
	Templates     *int `json:"templates,omitempty"`
	TimerMessages *int `json:"timerMessages,omitempty"`
}

// WelcomePatch partially updates WelcomeSettings.
type WelcomePatch struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	Message      *string `json:"message,omitempty"`
	DelaySeconds *int    `json:"delaySeconds,omitempty"`
}

// TimerPatch partially updates TimerSettings.
type TimerPatch struct {
	Enabled         *bool     `json:"enabled,omitempty"`
	IntervalMinutes *int      `json:"intervalMinutes,omitempty"`
	Messages        *[]string `json:"messages,omitempty"`
}

// FAQPatch partially updates FAQSettings.
type FAQPatch struct {
	Enabled *bool      `json:"enabled,omitempty"`
	Rules   *[]FAQRule `json:"rules,omitempty"`
}

// ModerationPatch partially updates ModerationSettings.
type ModerationPatch struct {
	Enabled        *bool     `json:"enabled,omitempty"`
	BlockedWords   *[]string `json:"blockedWords,omitempty"`
	RepeatBlocking *bool     `json:"repeatBlocking,omitempty"`
	TimeoutSeconds *int      `json:"timeoutSeconds,omitempty"`
}

// GiveawayPatch partially updates GiveawaySettings.
type GiveawayPatch struct {
	Keywords   *[]string        `json:"keywords,omitempty"`
	UniqueOnly *bool            `json:"uniqueOnly,omitempty"`
	Entries    *[]GiveawayEntry `json:"entries,omitempty"`
}

// PagePatch partially updates PageSettings.
type PagePatch struct {
	ChatSelector  *string `json:"chatSelector,omitempty"`
	InputSelector *string `json:"inputSelector,omitempty"`
	SendDelayMs   *int    `json:"sendDelayMs,omitempty"`
	Theme         *string `json:"theme,omitempty"`
}

// Merge applies a patch to settings in place. The function is total: every
// patch field is handled explicitly, so applying the same patch twice yields
// the same result as applying it once.
func Merge(s *Settings, p SettingsPatch) {
	if p.Tier != nil {
		s.Tier = *p.Tier
	}
	if p.MessagesUsed != nil {
		s.MessagesUsed = *p.MessagesUsed
	}
	if p.MessagesLimit != nil {
		s.MessagesLimit = *p.MessagesLimit
	}
	if p.ReferralBonus != nil {
		s.ReferralBonus = *p.ReferralBonus
	}
	if p.MasterEnabled != nil {
		s.MasterEnabled = *p.MasterEnabled
	}
	if p.Limits != nil {
		mergeLimits(&s.Limits, *p.Limits)
	}
	if p.Welcome != nil {
		mergeWelcome(&s.Welcome, *p.Welcome)
	}
	if p.Timer != nil {
		mergeTimer(&s.Timer, *p.Timer)
	}
	if p.FAQ != nil {
		mergeFAQ(&s.FAQ, *p.FAQ)
	}
	if p.Moderation != nil {
		mergeModeration(&s.Moderation, *p.Moderation)
	}
	if p.Giveaway != nil {
		mergeGiveaway(&s.Giveaway, *p.Giveaway)
	}
	if p.Templates != nil {
		s.Templates = cloneSlice(*p.Templates)
	}
	if p.Page != nil {
		mergePage(&s.Page, *p.Page)
	}
}

func mergeLimits(l *FeatureLimits, p FeatureLimitsPatch) {
	if p.FAQRules != nil {
		l.FAQRules = *p.FAQRules
	}
	if p.Templates != nil {
		l.Templates = *p.Templates
	}
	if p.TimerMessages != nil {
		l.TimerMessages = *p.TimerMessages
	}
}

func mergeWelcome(w *WelcomeSettings, p WelcomePatch) {
	if p.Enabled != nil {
		w.Enabled = *p.Enabled
	}
	if p.Message != nil {
		w.Message = *p.Message
	}
	if p.DelaySeconds != nil {
		w.DelaySeconds = *p.DelaySeconds
	}
}

func mergeTimer(t *TimerSettings, p TimerPatch) {
	if p.Enabled != nil {
		t.Enabled = *p.Enabled
	}
	if p.IntervalMinutes != nil {
		t.IntervalMinutes = *p.IntervalMinutes
	}
	if p.Messages != nil {
		t.Messages = cloneSlice(*p.Messages)
	}
}

func mergeFAQ(f *FAQSettings, p FAQPatch) {
	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	if p.Rules != nil {
		f.Rules = cloneSlice(*p.Rules)
	}
}

func mergeModeration(m *ModerationSettings, p ModerationPatch) {
	if p.Enabled != nil {
		m.Enabled = *p.Enabled
	}
	if p.BlockedWords != nil {
		m.BlockedWords = cloneSlice(*p.BlockedWords)
	}
	if p.RepeatBlocking != nil {
		m.RepeatBlocking = *p.RepeatBlocking
	}
	if p.TimeoutSeconds != nil {
		m.TimeoutSeconds = *p.TimeoutSeconds
	}
}

func mergeGiveaway(g *GiveawaySettings, p GiveawayPatch) {
	if p.Keywords != nil {
		g.Keywords = cloneSlice(*p.Keywords)
	}
	if p.UniqueOnly != nil {
		g.UniqueOnly = *p.UniqueOnly
	}
	if p.Entries != nil {
		g.Entries = cloneSlice(*p.Entries)
	}
}

func mergePage(pg *PageSettings, p PagePatch) {
	if p.ChatSelector != nil {
		pg.ChatSelector = *p.ChatSelector
	}
	if p.InputSelector != nil {
		pg.InputSelector = *p.InputSelector
	}
	if p.SendDelayMs != nil {
		pg.SendDelayMs = *p.SendDelayMs
	}
	if p.Theme != nil {
		pg.Theme = *p.Theme
	}
}

// cloneSlice copies a patch slice so the merged document never aliases
// caller-owned memory.
func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
