// Copyright (c) 2026 Tallysync Team
// Tallysync - tier-routed ledger persistence and license binding
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"fmt"
	"strings"
)

// Tier is the license class of a user. It determines which backend every
// persistence operation is routed to.
type Tier string

const (
	// TierGold routes to the shared remote backend.
	TierGold Tier = "GOLD"
	// TierTrial routes to the shared remote backend, same as GOLD.
	TierTrial Tier = "TRIAL"
	// TierSilver routes to the local embedded backend.
	TierSilver Tier = "SILVER"
)

// ParseTier normalizes and validates a tier label supplied by an external
// authority. Unknown labels fail with ErrUnsupportedTier before any I/O.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierGold:
		return TierGold, nil
	case TierTrial:
		return TierTrial, nil
	case TierSilver:
		return TierSilver, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTier, s)
	}
}

// Remote reports whether the tier is served by the remote backend.
func (t Tier) Remote() bool {
	return t == TierGold || t == TierTrial
}
