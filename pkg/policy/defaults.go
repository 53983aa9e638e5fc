package policy

import (
	"time"

	"mercator-hq/warden/pkg/moderation"
)

// Defaults returns the seed policies, one per category other than none.
func Defaults(now time.Time) []Policy {
	seed := func(c moderation.Category, name, description string, warn, mute, flag float64) Policy {
		return Policy{
			ID:            IDFor(c),
			Category:      c,
			Name:          name,
			Description:   description,
			WarnThreshold: warn,
			MuteThreshold: mute,
			FlagThreshold: flag,
			Enabled:       true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	return []Policy{
		seed(moderation.CategoryHarassment, "Harassment", "Targeted abuse or bullying of participants", 0.5, 0.7, 0.85),
		seed(moderation.CategoryHateSpeech, "Hate Speech", "Attacks on protected characteristics", 0.4, 0.6, 0.75),
		seed(moderation.CategorySpam, "Spam", "Unsolicited promotion or repetitive content", 0.6, 0.8, 0.9),
		seed(moderation.CategoryViolence, "Violence", "Threats or glorification of violence", 0.4, 0.6, 0.75),
		seed(moderation.CategoryAdultContent, "Adult Content", "Sexually explicit material", 0.5, 0.7, 0.85),
	}
}
