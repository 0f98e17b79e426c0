package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ratipstack/ratip-engine/internal/models"
)

// Built-in recommended actions.
const (
	ActionLatency  = "Investigate service dependencies and database query performance"
	ActionErrors   = "Review application logs and check for recent deployments"
	ActionCapacity = "Scale up service capacity or optimize resource usage"
	ActionMonitor  = "Monitor the situation and investigate if pattern persists"
)

// ActionPolicy maps a correlated alarm onto a recommended action. Rules are
// evaluated in order and the first match wins.
type ActionPolicy struct {
	rules    []Rule
	fallback string
	logger   *slog.Logger
}

// Rule represents a single recommendation rule.
type Rule struct {
	ID     string    `yaml:"id"`
	Match  RuleMatch `yaml:"match"`
	Action string    `yaml:"action"`
}

// RuleMatch defines optional attributes for rule matching. MetricContains is a
// case-sensitive any-of substring test against the alarm's metric type.
type RuleMatch struct {
	MetricContains []string `yaml:"metric_contains"`
	Severity       string   `yaml:"severity"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules         []Rule `yaml:"rules"`
	DefaultAction string `yaml:"default_action"`
}

// DefaultRules is the built-in table: Latency, then Error, then CPU or Memory.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "latency", Match: RuleMatch{MetricContains: []string{"Latency"}}, Action: ActionLatency},
		{ID: "errors", Match: RuleMatch{MetricContains: []string{"Error"}}, Action: ActionErrors},
		{ID: "capacity", Match: RuleMatch{MetricContains: []string{"CPU", "Memory"}}, Action: ActionCapacity},
	}
}

// DefaultActionPolicy returns the built-in policy.
func DefaultActionPolicy() *ActionPolicy {
	return &ActionPolicy{rules: DefaultRules(), fallback: ActionMonitor, logger: slog.Default()}
}

// NewActionPolicy loads rules from path. An empty path or missing file yields the
// built-in policy.
func NewActionPolicy(path string, logger *slog.Logger) (*ActionPolicy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy := DefaultActionPolicy()
	policy.logger = logger
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("action rule pack not found, using built-in rules", slog.String("path", path))
			return policy, nil
		}
		return nil, fmt.Errorf("read action rules: %w", err)
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse action rules: %w", err)
	}
	for i, rule := range cfg.Rules {
		if rule.Action == "" {
			return nil, fmt.Errorf("action rule %d (%s) has no action", i, rule.ID)
		}
	}
	if len(cfg.Rules) > 0 {
		policy.rules = cfg.Rules
	}
	if cfg.DefaultAction != "" {
		policy.fallback = cfg.DefaultAction
	}
	logger.Info("loaded action rules", slog.String("path", path), slog.Int("rules", len(policy.rules)))
	return policy, nil
}

// Recommend returns the action of the first matching rule, or the fallback.
func (p *ActionPolicy) Recommend(alarm models.AlarmRecord) string {
	if p == nil {
		return DefaultActionPolicy().Recommend(alarm)
	}
	for _, rule := range p.rules {
		if rule.matches(alarm) {
			return rule.Action
		}
	}
	return p.fallback
}

func (r Rule) matches(alarm models.AlarmRecord) bool {
	if r.Match.Severity != "" && !strings.EqualFold(r.Match.Severity, alarm.Severity) {
		return false
	}
	if len(r.Match.MetricContains) == 0 {
		return true
	}
	for _, kw := range r.Match.MetricContains {
		if kw != "" && strings.Contains(alarm.MetricType, kw) {
			return true
		}
	}
	return false
}
