package identitystore

import (
	"testing"
	"time"
)

func TestTimeConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant time.Duration
		expected time.Duration
	}{
		{"DefaultCleanupInterval", DefaultCleanupInterval, 1 * time.Minute},
		{"DefaultCacheTTL", DefaultCacheTTL, 5 * time.Minute},
		{"DefaultPasswordRateLimiterIdleTimeout", DefaultPasswordRateLimiterIdleTimeout, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestSizeConstants(t *testing.T) {
	if DefaultShardCount != 32 {
		t.Errorf("DefaultShardCount = %d, want 32", DefaultShardCount)
	}
	if DefaultPasswordRateBurst != 5 {
		t.Errorf("DefaultPasswordRateBurst = %d, want 5", DefaultPasswordRateBurst)
	}
}
