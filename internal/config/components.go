package config

import (
	"leadbot/internal/calls"
	"leadbot/internal/contacts"
	"leadbot/internal/enrich"
	"leadbot/internal/resilience"
	"leadbot/internal/sms"
	"leadbot/internal/syncer"
	"leadbot/internal/telephony"
	"leadbot/pkg/utils"
)

func (c Config) PoolConfig() utils.PoolConfig {
	p := utils.PoolConfig{MaxOpenConns: c.Store.MaxOpenConns}
	if c.Store.Driver == "sqlite" {
		// One writer at a time keeps WAL mode free of SQLITE_BUSY.
		p.MaxOpenConns = 1
	}
	return p
}

func (c Config) Telephony() telephony.Config {
	return telephony.Config{
		ServerURL:         c.RingCentral.ServerURL,
		ClientID:          c.RingCentral.ClientID,
		ClientSecret:      c.RingCentral.ClientSecret,
		RefreshToken:      c.RingCentral.RefreshToken,
		AccessToken:       c.RingCentral.AccessToken,
		RequestsPerSecond: c.RingCentral.RequestsPerSecond,
		Burst:             c.RingCentral.Burst,
		Timeout:           c.RingCentral.Timeout,
		Location:          c.Location(),
	}
}

func (c Config) Syncer() syncer.Config {
	retry := resilience.DefaultPolicy()
	retry.MaxAttempts = c.Sync.RetryAttempts
	retry.InitialBackoff = c.Sync.InitialBackoff
	retry.MaxBackoff = c.Sync.MaxBackoff

	poll := resilience.DefaultPollSchedule()
	poll.Initial = c.Sync.PollInitial
	poll.Max = c.Sync.PollMax
	poll.Timeout = c.Sync.PollTimeout

	return syncer.Config{
		PageSize:   c.Sync.PageSize,
		BatchSize:  c.Sync.BatchSize,
		BatchDelay: c.Sync.BatchDelay,
		Retry:      retry,
		Poll:       poll,
		LockTTL:    c.Sync.LockTTL,
		RunTimeout: c.Sync.RunTimeout,
		Location:   c.Location(),
	}
}

func (c Config) Build() contacts.BuildConfig {
	return contacts.BuildConfig{
		Classifier: calls.NewClassifier(calls.ClassifierConfig{
			VoicemailVocabulary: c.Enrich.VoicemailVocabulary,
			VoicemailMinSeconds: c.Enrich.VoicemailMinSeconds,
			VoicemailMaxSeconds: c.Enrich.VoicemailMaxSeconds,
			LongCallSeconds:     c.Enrich.LongCallSeconds,
		}),
		Failure:  sms.NewFailureMatcher(c.Enrich.SMSFailureVocabulary),
		Location: c.Location(),
	}
}

func (c Config) Rules() enrich.RuleConfig {
	if len(c.Enrich.TextFirstSources) == 0 {
		return enrich.DefaultRuleConfig()
	}
	return enrich.RuleConfig{TextFirstSources: c.Enrich.TextFirstSources}
}
