package calls

import "strings"

// ClassifierConfig holds the business heuristics used to label calls.
// The voicemail window is specific to this company's phone system and is
// therefore configuration, not a telephony constant.
type ClassifierConfig struct {
	// VoicemailVocabulary is matched case-insensitively as substrings of the
	// call result text.
	VoicemailVocabulary []string

	// Outbound calls lasting within [VoicemailMinSeconds, VoicemailMaxSeconds]
	// are treated as voicemail drops.
	VoicemailMinSeconds int
	VoicemailMaxSeconds int

	// Calls strictly longer than LongCallSeconds count as a real conversation.
	LongCallSeconds int
}

// DefaultClassifierConfig returns the heuristics the sales floor runs with.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		VoicemailVocabulary: []string{
			"voicemail",
			"vm",
			"left voicemail",
			"voice mail",
			"no answer",
			"busy",
			"not available",
		},
		VoicemailMinSeconds: 30,
		VoicemailMaxSeconds: 90,
		LongCallSeconds:     240,
	}
}

// Classifier labels call records. The zero value is not useful; use
// NewClassifier.
type Classifier struct {
	cfg   ClassifierConfig
	vocab []string
}

func NewClassifier(cfg ClassifierConfig) Classifier {
	vocab := make([]string, 0, len(cfg.VoicemailVocabulary))
	for _, w := range cfg.VoicemailVocabulary {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			vocab = append(vocab, w)
		}
	}
	return Classifier{cfg: cfg, vocab: vocab}
}

func (c Classifier) Config() ClassifierConfig { return c.cfg }

// IsVoicemail reports whether a call most likely reached voicemail. Result
// text always counts; the duration window applies to outbound calls only,
// since dropping a voicemail is something only the rep's side does.
func (c Classifier) IsVoicemail(resultText string, durationSeconds int, inbound bool) bool {
	text := strings.ToLower(resultText)
	for _, w := range c.vocab {
		if strings.Contains(text, w) {
			return true
		}
	}
	if inbound {
		return false
	}
	return durationSeconds >= c.cfg.VoicemailMinSeconds && durationSeconds <= c.cfg.VoicemailMaxSeconds
}

// IsLongCall reports whether the call exceeded the long-call threshold.
func (c Classifier) IsLongCall(durationSeconds int) bool {
	return durationSeconds > c.cfg.LongCallSeconds
}

var defaultClassifier = NewClassifier(DefaultClassifierConfig())

// ClassifyVoicemail applies the default heuristics.
func ClassifyVoicemail(resultText string, durationSeconds int, inbound bool) bool {
	return defaultClassifier.IsVoicemail(resultText, durationSeconds, inbound)
}

// ClassifyLongCall applies the default long-call threshold.
func ClassifyLongCall(durationSeconds int) bool {
	return defaultClassifier.IsLongCall(durationSeconds)
}
