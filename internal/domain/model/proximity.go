package model

// ProximityMessage returns the advisory copy describing how close a balance
// is to its reward. Deterministic, advisory only; empty string means no
// message.
func ProximityMessage(balance, threshold int) string {
	remaining := threshold - balance
	switch {
	case remaining <= 0:
		return "Reward available!"
	case remaining == 1:
		return "Just 1 more visit!"
	case remaining == 2:
		return "Only 2 more to go!"
	case remaining == 3:
		return "Almost there — 3 more!"
	case balance*2 >= threshold:
		return "You're over halfway!"
	default:
		return ""
	}
}
