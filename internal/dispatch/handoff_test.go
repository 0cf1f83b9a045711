package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/rescuebite/rescuebite/internal/listing"
)

func TestOtpGuardLocksAfterMaxFailures(t *testing.T) {
	var g otpGuard
	now := time.Now()

	for i := 1; i < maxOtpAttempts; i++ {
		remaining := g.fail("l1", now)
		if remaining != maxOtpAttempts-i {
			t.Fatalf("after failure %d remaining = %d, want %d", i, remaining, maxOtpAttempts-i)
		}
		if err := g.check("l1", now); err != nil {
			t.Fatalf("locked after only %d failures: %v", i, err)
		}
	}

	if remaining := g.fail("l1", now); remaining != 0 {
		t.Fatalf("final failure remaining = %d, want 0", remaining)
	}
	if err := g.check("l1", now); !errors.Is(err, listing.ErrOtpLocked) {
		t.Fatalf("check after lockout = %v, want ErrOtpLocked", err)
	}
}

func TestOtpGuardCooldownExpires(t *testing.T) {
	var g otpGuard
	now := time.Now()

	for i := 0; i < maxOtpAttempts; i++ {
		g.fail("l1", now)
	}
	if err := g.check("l1", now.Add(otpCooldown-time.Second)); !errors.Is(err, listing.ErrOtpLocked) {
		t.Fatalf("check inside cooldown = %v, want ErrOtpLocked", err)
	}

	after := now.Add(otpCooldown)
	if err := g.check("l1", after); err != nil {
		t.Fatalf("check after cooldown = %v, want nil", err)
	}
	// the elapsed cooldown cleared the counter, so a fresh miss starts over
	if remaining := g.fail("l1", after); remaining != maxOtpAttempts-1 {
		t.Fatalf("remaining after cooldown reset = %d, want %d", remaining, maxOtpAttempts-1)
	}
}

func TestOtpGuardTracksListingsIndependently(t *testing.T) {
	var g otpGuard
	now := time.Now()

	for i := 0; i < maxOtpAttempts; i++ {
		g.fail("locked", now)
	}
	if err := g.check("other", now); err != nil {
		t.Fatalf("unrelated listing locked: %v", err)
	}
}

func TestOtpGuardResetClearsState(t *testing.T) {
	var g otpGuard
	now := time.Now()

	g.fail("l1", now)
	g.fail("l1", now)
	g.reset("l1")
	if remaining := g.fail("l1", now); remaining != maxOtpAttempts-1 {
		t.Fatalf("remaining after reset = %d, want %d", remaining, maxOtpAttempts-1)
	}
}

func TestOtpGuardAgesOutIdleEntries(t *testing.T) {
	var g otpGuard
	now := time.Now()

	g.fail("abandoned", now)
	g.fail("abandoned", now)

	// Any later touch past the retention window sweeps the idle entry,
	// so expired or reverted listings do not pin counters forever.
	later := now.Add(otpRetention + time.Minute)
	if err := g.check("fresh", later); err != nil {
		t.Fatalf("check: %v", err)
	}

	g.mu.Lock()
	_, kept := g.state["abandoned"]
	g.mu.Unlock()
	if kept {
		t.Fatal("idle entry survived past retention")
	}
}

func TestOtpGuardRetentionOutlastsCooldown(t *testing.T) {
	// An active lockout must never be dropped early by the age-out.
	if otpRetention <= otpCooldown {
		t.Fatalf("retention %s must exceed cooldown %s", otpRetention, otpCooldown)
	}

	var g otpGuard
	now := time.Now()
	for i := 0; i < maxOtpAttempts; i++ {
		g.fail("l1", now)
	}
	inside := now.Add(otpCooldown / 2)
	if err := g.check("l1", inside); !errors.Is(err, listing.ErrOtpLocked) {
		t.Fatalf("check mid-cooldown = %v, want ErrOtpLocked", err)
	}
}

func TestGenerateOTPFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		if err != nil {
			t.Fatalf("generateOTP: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("otp %q length = %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("otp %q contains non-digit %q", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("50 generated codes were all identical")
	}
}
