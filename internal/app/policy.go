package app

import "fmt"

// DefaultPassRatio is used for levels without an explicit rule.
const DefaultPassRatio = 0.7

// LevelRule is the configured size and pass mark of a level.
type LevelRule struct {
	RequiredCount int `yaml:"requiredCount" json:"requiredCount"`
	PassThreshold int `yaml:"passThreshold" json:"passThreshold"`
}

// LevelPolicy supplies pass marks per level index.
type LevelPolicy struct {
	Levels           map[int]LevelRule
	DefaultPassRatio float64
}

// DefaultLevelRules returns the EduKids level sizes and pass marks.
func DefaultLevelRules() map[int]LevelRule {
	return map[int]LevelRule{
		1: {RequiredCount: 50, PassThreshold: 45},
		2: {RequiredCount: 60, PassThreshold: 55},
		3: {RequiredCount: 80, PassThreshold: 75},
	}
}

// NewLevelPolicy builds a policy; a zero ratio falls back to DefaultPassRatio.
func NewLevelPolicy(levels map[int]LevelRule, ratio float64) LevelPolicy {
	if ratio == 0 {
		ratio = DefaultPassRatio
	}
	return LevelPolicy{Levels: levels, DefaultPassRatio: ratio}
}

// Validate checks every configured rule.
func (p LevelPolicy) Validate() error {
	if p.DefaultPassRatio < 0 || p.DefaultPassRatio > 1 {
		return fmt.Errorf("default pass ratio %v must be between 0 and 1", p.DefaultPassRatio)
	}
	for idx, rule := range p.Levels {
		if idx < 1 {
			return fmt.Errorf("level %d: index must be >= 1", idx)
		}
		if rule.RequiredCount < 0 || rule.PassThreshold < 0 {
			return fmt.Errorf("level %d: negative count or threshold", idx)
		}
		if rule.PassThreshold > rule.RequiredCount {
			return fmt.Errorf("level %d: pass threshold %d exceeds required count %d", idx, rule.PassThreshold, rule.RequiredCount)
		}
	}
	return nil
}

// Rule returns the configured rule for a level, or the proportional default
// where the whole level is expected and the pass mark is ceil(available*ratio).
func (p LevelPolicy) Rule(levelIndex, available int) LevelRule {
	if rule, ok := p.Levels[levelIndex]; ok {
		return rule
	}
	ratio := p.DefaultPassRatio
	if ratio == 0 {
		ratio = DefaultPassRatio
	}
	// Ratio is applied in per-mille to keep the ceiling in integer arithmetic.
	perMille := int(ratio*1000 + 0.5)
	return LevelRule{
		RequiredCount: available,
		PassThreshold: ceilDiv(available*perMille, 1000),
	}
}

// EffectiveRequired scales the pass threshold down when fewer questions than
// required are available, flooring at one. An empty level keeps the configured threshold.
func EffectiveRequired(rule LevelRule, actual int) int {
	if actual == 0 {
		return rule.PassThreshold
	}
	if actual < rule.RequiredCount {
		return max(1, ceilDiv(rule.PassThreshold*actual, rule.RequiredCount))
	}
	return rule.PassThreshold
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
