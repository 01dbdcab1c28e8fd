package config

import "encoding/json"

// Sanitizer redacts secrets before a Config is logged at startup.
type Sanitizer interface {
	Sanitize(cfg *Config) *Config
}

// DefaultSanitizer implements Sanitizer.
type DefaultSanitizer struct {
	redactionValue string
}

func NewDefaultSanitizer() Sanitizer {
	return &DefaultSanitizer{redactionValue: "***REDACTED***"}
}

func NewSanitizer(redactionValue string) Sanitizer {
	return &DefaultSanitizer{redactionValue: redactionValue}
}

// Sanitize returns a deep copy of cfg with secret fields redacted.
func (s *DefaultSanitizer) Sanitize(cfg *Config) *Config {
	sanitized := s.deepCopy(cfg)
	sanitized.Database.Password = s.redactionValue
	sanitized.Redis.Password = s.redactionValue
	if sanitized.Bus.URL != "" {
		sanitized.Bus.URL = s.redactionValue
	}
	return sanitized
}

func (s *DefaultSanitizer) deepCopy(cfg *Config) *Config {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var copied Config
	if err := json.Unmarshal(raw, &copied); err != nil {
		return cfg
	}
	return &copied
}
