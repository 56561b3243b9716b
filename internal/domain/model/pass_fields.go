package model

import "fmt"

// PassFieldValues composes the field bundle forwarded to pass delivery.
// Pure and synchronous; the engine never blocks on the notifier.
func PassFieldValues(balance int, p *Program) map[string]string {
	label := p.Branding.StampLabel
	if label == "" {
		label = "stamps"
	}
	return map[string]string{
		"Points":    fmt.Sprintf("%d", balance),
		"Threshold": fmt.Sprintf("%d", p.Rules.RewardThreshold),
		"Status":    fmt.Sprintf("%d/%d %s", balance, p.Rules.RewardThreshold, label),
		"Reward":    p.Branding.RewardDescription,
	}
}
