package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vcspos-server/utils"
)

// SMSCodeSender delivers login codes through a JSON HTTP gateway.
// Destination numbers are normalized to E.164 before the call.
type SMSCodeSender struct {
	ProviderURL string
	Token       string
	CountryCode string
	Client      *http.Client
}

func (s *SMSCodeSender) Configured() bool {
	return s.ProviderURL != ""
}

func (s *SMSCodeSender) Send(ctx context.Context, destination, code string) error {
	if !s.Configured() {
		return fmt.Errorf("sms provider is not configured")
	}

	payload := map[string]string{
		"to":      utils.FormatPhoneE164(destination, s.CountryCode),
		"message": fmt.Sprintf("Your login code is %s. It expires in 5 minutes.", code),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ProviderURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call sms provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Masked shows only the last four digits.
func (s *SMSCodeSender) Masked(destination string) string {
	digits := utils.NormalizePhone(destination)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
