package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	lastCode string
	fail     bool
}

func (s *stubSender) Send(_ context.Context, _, code string) error {
	if s.fail {
		return errors.New("provider down")
	}
	s.lastCode = code
	return nil
}

func (s *stubSender) Masked(string) string { return "****4567" }

func newTestOTP(now *time.Time) (*OTPService, *stubSender) {
	sender := &stubSender{}
	svc := &OTPService{
		Store:  NewMemoryChallengeStore(),
		Secret: []byte("test-secret"),
		SMS:    sender,
		Email:  sender,
		Now:    func() time.Time { return *now },
	}
	return svc, sender
}

func TestOTPRequestAndVerify(t *testing.T) {
	now := time.Now()
	svc, sender := newTestOTP(&now)
	memberID := uuid.New()

	issued, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Ref)
	assert.Equal(t, "sms", issued.Channel)
	assert.Equal(t, "****4567", issued.Destination)
	assert.Len(t, sender.lastCode, 6)

	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.NoError(t, err)
}

func TestOTPChallengeIsSingleUse(t *testing.T) {
	now := time.Now()
	svc, sender := newTestOTP(&now)
	memberID := uuid.New()

	issued, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	require.NoError(t, err)

	require.NoError(t, svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode))

	// The same ref and code must never verify a second time.
	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPWrongCodeConsumesAttempts(t *testing.T) {
	now := time.Now()
	svc, sender := newTestOTP(&now)
	memberID := uuid.New()

	issued, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	require.NoError(t, err)

	// Every wrong code up to the budget reads as invalid, never as a
	// lockout that would tell the caller which attempt was the last.
	for i := 0; i < OTPMaxAttempts; i++ {
		err := svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", "000000")
		assert.ErrorIs(t, err, ErrOTPInvalid)
	}

	// With the budget spent, even the correct code hits the lockout,
	// which destroys the challenge.
	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.ErrorIs(t, err, ErrOTPLocked)

	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPMismatchDoesNotConsumeAttempts(t *testing.T) {
	now := time.Now()
	svc, sender := newTestOTP(&now)
	memberID := uuid.New()

	issued, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	require.NoError(t, err)

	// Another member's id never matches, however many times it tries.
	for i := 0; i < OTPMaxAttempts+2; i++ {
		err := svc.Verify(context.Background(), issued.Ref, uuid.New(), "09171234567", sender.lastCode)
		assert.ErrorIs(t, err, ErrOTPMismatch)
	}

	// A phone bound to a different number is also a mismatch.
	err = svc.Verify(context.Background(), issued.Ref, memberID, "09990000000", sender.lastCode)
	assert.ErrorIs(t, err, ErrOTPMismatch)

	// The rightful member still verifies: mismatches burned nothing.
	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.NoError(t, err)
}

func TestOTPExpiry(t *testing.T) {
	now := time.Now()
	svc, sender := newTestOTP(&now)
	memberID := uuid.New()

	issued, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	require.NoError(t, err)

	now = now.Add(OTPTTL + time.Second)
	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.ErrorIs(t, err, ErrOTPExpired)

	// Expiry consumed the challenge.
	err = svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", sender.lastCode)
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestOTPRequestRateLimit(t *testing.T) {
	now := time.Now()
	svc, _ := newTestOTP(&now)
	memberID := uuid.New()

	for i := 0; i < OTPMaxRequests; i++ {
		_, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
		require.NoError(t, err)
		now = now.Add(time.Minute)
	}

	_, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	assert.ErrorIs(t, err, ErrOTPRateLimited)

	// A different member is unaffected.
	_, err = svc.Request(context.Background(), uuid.New(), "VCS26000002", "09170000000", "", "sms")
	assert.NoError(t, err)

	// Once the window slides past the early requests, the member can
	// ask again.
	now = now.Add(OTPRateWindow)
	_, err = svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	assert.NoError(t, err)
}

func TestOTPRejectedRequestsDoNotExtendWindow(t *testing.T) {
	now := time.Now()
	svc, _ := newTestOTP(&now)
	memberID := uuid.New()

	start := now
	for i := 0; i < OTPMaxRequests; i++ {
		_, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
		require.NoError(t, err)
	}

	// A retrying client keeps hitting the limit while the window runs.
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		_, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
		require.ErrorIs(t, err, ErrOTPRateLimited)
	}

	// Only the issued requests count, so the member recovers as soon as
	// those age out of the window, rejected retries notwithstanding.
	now = start.Add(OTPRateWindow + time.Second)
	_, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	assert.NoError(t, err)
}

func TestOTPInvalidChannel(t *testing.T) {
	now := time.Now()
	svc, _ := newTestOTP(&now)

	_, err := svc.Request(context.Background(), uuid.New(), "VCS26000001", "09171234567", "", "carrier-pigeon")
	assert.ErrorIs(t, err, ErrOTPChannelInvalid)

	// Email channel without an address on file.
	_, err = svc.Request(context.Background(), uuid.New(), "VCS26000001", "09171234567", "", "email")
	assert.ErrorIs(t, err, ErrOTPChannelInvalid)
}

func TestOTPProviderFailure(t *testing.T) {
	now := time.Now()
	svc, sender := newTestOTP(&now)
	sender.fail = true
	memberID := uuid.New()

	// Without dev echo a delivery failure surfaces as an error and the
	// challenge is withdrawn.
	_, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	assert.ErrorIs(t, err, ErrOTPSendFailed)

	// With dev echo outside production the code is handed back instead.
	svc.DevEcho = true
	issued, err := svc.Request(context.Background(), memberID, "VCS26000001", "09171234567", "", "sms")
	require.NoError(t, err)
	assert.Len(t, issued.DevCode, 6)
	assert.NoError(t, svc.Verify(context.Background(), issued.Ref, memberID, "09171234567", issued.DevCode))
}

func TestHashCodeBindsRef(t *testing.T) {
	svc := &OTPService{Secret: []byte("test-secret")}
	assert.NotEqual(t, svc.HashCode("ref-a", "123456"), svc.HashCode("ref-b", "123456"))
	assert.Equal(t, svc.HashCode("ref-a", "123456"), svc.HashCode("ref-a", "123456"))
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, ch := range code {
			assert.True(t, ch >= '0' && ch <= '9')
		}
	}
}
