package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserPremium(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"free plan", User{Plan: PlanFree}, false},
		{"premium active no expiry", User{Plan: PlanPremium, SubscriptionStatus: SubscriptionActive}, true},
		{"premium active unexpired", User{Plan: PlanPremium, SubscriptionStatus: SubscriptionActive, SubscriptionExpiresAt: &future}, true},
		{"premium active expired", User{Plan: PlanPremium, SubscriptionStatus: SubscriptionActive, SubscriptionExpiresAt: &past}, false},
		{"premium canceled", User{Plan: PlanPremium, SubscriptionStatus: SubscriptionCanceled, SubscriptionExpiresAt: &future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.Premium(now))
		})
	}
}
