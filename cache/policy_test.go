package cache

import (
	"testing"
	"time"

	"github.com/jonwraymond/modelrelay/provider"
)

func requestWithTemperature(temp *float64) provider.CompletionRequest {
	return provider.CompletionRequest{
		Model:       "llama3:8b",
		Temperature: temp,
		Messages:    []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	}
}

func TestPolicy_TTLFor(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		temp     *float64
		want     time.Duration
	}{
		{"selective low temperature", StrategySelective, floatPtr(0.1), 15 * time.Minute},
		{"selective boundary temperature", StrategySelective, floatPtr(0.2), 15 * time.Minute},
		{"selective unset temperature", StrategySelective, nil, 15 * time.Minute},
		{"selective high temperature", StrategySelective, floatPtr(0.8), time.Minute},
		{"aggressive high temperature", StrategyAggressive, floatPtr(1.5), 15 * time.Minute},
		{"conservative low temperature", StrategyConservative, floatPtr(0.0), time.Minute},
		{"disabled", StrategyDisabled, floatPtr(0.1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{Strategy: tt.strategy}
			if got := p.TTLFor(requestWithTemperature(tt.temp)); got != tt.want {
				t.Errorf("TTLFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_CustomDurations(t *testing.T) {
	p := Policy{
		Strategy: StrategySelective,
		LongTTL:  time.Hour,
		ShortTTL: 10 * time.Second,
	}

	if got := p.TTLFor(requestWithTemperature(nil)); got != time.Hour {
		t.Errorf("deterministic TTL = %v, want 1h", got)
	}
	if got := p.TTLFor(requestWithTemperature(floatPtr(1.0))); got != 10*time.Second {
		t.Errorf("nondeterministic TTL = %v, want 10s", got)
	}
}

func TestPolicy_Enabled(t *testing.T) {
	if (Policy{Strategy: StrategyDisabled}).Enabled() {
		t.Error("disabled policy reports enabled")
	}
	if !DefaultPolicy().Enabled() {
		t.Error("default policy reports disabled")
	}
}
