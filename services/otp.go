package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	OTPTTL         = 5 * time.Minute
	OTPMaxAttempts = 5
	OTPRateWindow  = 10 * time.Minute
	OTPMaxRequests = 3
)

var (
	ErrOTPNotFound       = errors.New("verification code not found or already used")
	ErrOTPExpired        = errors.New("verification code expired")
	ErrOTPLocked         = errors.New("too many failed attempts")
	ErrOTPInvalid        = errors.New("incorrect verification code")
	ErrOTPMismatch       = errors.New("verification reference does not match this member")
	ErrOTPRateLimited    = errors.New("too many code requests, try again later")
	ErrOTPChannelInvalid = errors.New("unsupported delivery channel")
	ErrOTPSendFailed     = errors.New("failed to send verification code")
)

// CodeSender delivers a one-time code over one channel.
type CodeSender interface {
	Send(ctx context.Context, destination, code string) error
	// Masked renders the destination for client display.
	Masked(destination string) string
}

// OTPService issues and verifies login codes for the member app.
// Codes are 6 digits, valid for 5 minutes, bound to one member and
// phone, and stored only as an HMAC keyed with the server secret.
type OTPService struct {
	Store      ChallengeStore
	Secret     []byte
	Email      CodeSender
	SMS        CodeSender
	DevEcho    bool
	Production bool
	Now        func() time.Time
}

// HashCode binds the code to its challenge ref so a code from one
// challenge can never satisfy another.
func (s *OTPService) HashCode(ref, code string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(ref + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *OTPService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// GenerateCode returns a uniformly random 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// OTPIssued is what the request endpoint returns to the client.
type OTPIssued struct {
	Ref         string `json:"ref"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	ExpiresIn   int    `json:"expires_in"`
	// DevCode carries the plaintext code outside production when dev
	// echo is enabled. Never set in production.
	DevCode string `json:"dev_otp,omitempty"`
}

// Request issues a new challenge for the member over the chosen
// channel. At most 3 requests per member are allowed in any 10-minute
// window; superseded challenges stay valid until they expire or are
// consumed.
func (s *OTPService) Request(ctx context.Context, memberID uuid.UUID, memberNumber, phone, email, channel string) (*OTPIssued, error) {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		channel = "sms"
	}

	var sender CodeSender
	var destination string
	switch channel {
	case "sms":
		sender = s.SMS
		destination = phone
	case "email":
		sender = s.Email
		destination = email
	default:
		return nil, ErrOTPChannelInvalid
	}
	if sender == nil || destination == "" {
		return nil, ErrOTPChannelInvalid
	}

	// Rejected requests must not occupy the window, so the request is
	// only recorded once it clears the limit.
	rateKey := memberID.String() + ":" + phone
	count, err := s.Store.CountRecent(ctx, rateKey, s.now(), OTPRateWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count >= OTPMaxRequests {
		log.Warn().Str("member_id", memberID.String()).Msg("otp request rate limited")
		return nil, ErrOTPRateLimited
	}
	if err := s.Store.RecordRequest(ctx, rateKey, s.now(), OTPRateWindow); err != nil {
		return nil, fmt.Errorf("failed to record request: %w", err)
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	ref := strings.ReplaceAll(uuid.NewString(), "-", "")
	now := s.now()
	challenge := &OTPChallenge{
		Ref:          ref,
		MemberID:     memberID,
		MemberNumber: memberNumber,
		Phone:        phone,
		CodeHash:     s.HashCode(ref, code),
		Channel:      channel,
		Destination:  sender.Masked(destination),
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(OTPTTL).Unix(),
		RateKey:      rateKey,
	}
	if err := s.Store.Put(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	issued := &OTPIssued{
		Ref:         ref,
		Channel:     channel,
		Destination: challenge.Destination,
		ExpiresIn:   int(OTPTTL.Seconds()),
	}

	if err := sender.Send(ctx, destination, code); err != nil {
		log.Error().Err(err).Str("channel", channel).Str("member_id", memberID.String()).Msg("otp delivery failed")
		if s.Production || !s.DevEcho {
			_ = s.Store.Delete(ctx, ref)
			return nil, ErrOTPSendFailed
		}
		// Dev fallthrough: surface the code so local logins still work
		// without a wired provider.
		issued.DevCode = code
	} else if !s.Production && s.DevEcho {
		issued.DevCode = code
	}

	otpRequestedTotal.Inc()
	log.Info().
		Str("member_id", memberID.String()).
		Str("channel", channel).
		Str("destination", challenge.Destination).
		Msg("otp issued")
	return issued, nil
}

// Verify checks a submitted code against the challenge. A successful
// verify consumes the challenge; the same ref can never verify twice.
// A member or phone mismatch does not consume an attempt, a wrong code
// does. Once the attempt budget is spent the challenge is locked and
// destroyed, even if the next submission carries the right code.
func (s *OTPService) Verify(ctx context.Context, ref string, memberID uuid.UUID, phone, code string) error {
	c, err := s.Store.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if c == nil {
		return ErrOTPNotFound
	}

	if s.now().Unix() >= c.ExpiresAt {
		_ = s.Store.Delete(ctx, ref)
		return ErrOTPExpired
	}

	if c.MemberID != memberID {
		return ErrOTPMismatch
	}
	if phone != "" && c.Phone != "" && c.Phone != phone {
		return ErrOTPMismatch
	}

	if c.Attempts >= OTPMaxAttempts {
		_ = s.Store.Delete(ctx, ref)
		otpLockedTotal.Inc()
		return ErrOTPLocked
	}

	expected := c.CodeHash
	actual := s.HashCode(ref, strings.TrimSpace(code))
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		if _, err := s.Store.IncrementAttempts(ctx, ref); err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}
		// Even the final wrong code reports otp_invalid; the lockout
		// check above fires on whatever comes next.
		return ErrOTPInvalid
	}

	if err := s.Store.Delete(ctx, ref); err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	otpVerifiedTotal.Inc()
	log.Info().Str("member_id", memberID.String()).Msg("otp verified")
	return nil
}
