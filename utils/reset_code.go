package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidResetCode = errors.New("reset code is invalid")
	ErrExpiredResetCode = errors.New("reset code has expired")
)

// expired codes stay readable this long so they can be told apart from
// unknown ones
const resetCodeGrace = 24 * time.Hour

const resetKeyPrefix = "spa:reset:"

// ResetTicket is what a reset code stands for
type ResetTicket struct {
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SaveResetCode stores a new code for the account and returns it
func SaveResetCode(ctx context.Context, rdb *redis.Client, accountID, email string, ttl time.Duration) (string, error) {
	code, err := GenerateResetCode()
	if err != nil {
		return "", err
	}
	ticket := ResetTicket{AccountID: accountID, Email: email, ExpiresAt: time.Now().Add(ttl).UTC()}
	payload, err := json.Marshal(ticket)
	if err != nil {
		return "", err
	}
	if err := rdb.Set(ctx, resetKeyPrefix+code, payload, ttl+resetCodeGrace).Err(); err != nil {
		return "", fmt.Errorf("failed to store reset code: %w", err)
	}
	return code, nil
}

// LookupResetCode returns the ticket of a live code
func LookupResetCode(ctx context.Context, rdb *redis.Client, code string, now time.Time) (ResetTicket, error) {
	if code == "" {
		return ResetTicket{}, ErrInvalidResetCode
	}
	raw, err := rdb.Get(ctx, resetKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return ResetTicket{}, ErrInvalidResetCode
	}
	if err != nil {
		return ResetTicket{}, fmt.Errorf("failed to read reset code: %w", err)
	}

	var ticket ResetTicket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return ResetTicket{}, ErrInvalidResetCode
	}
	if now.After(ticket.ExpiresAt) {
		return ResetTicket{}, ErrExpiredResetCode
	}
	return ticket, nil
}

// ConsumeResetCode spends a code. Only one caller can spend a given code;
// the others get ErrInvalidResetCode.
func ConsumeResetCode(ctx context.Context, rdb *redis.Client, code string) error {
	if code == "" {
		return ErrInvalidResetCode
	}
	err := rdb.GetDel(ctx, resetKeyPrefix+code).Err()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidResetCode
	}
	if err != nil {
		return fmt.Errorf("failed to spend reset code: %w", err)
	}
	return nil
}
