package redis

import (
	"context"
	"errors"
	"fmt"

	"ridebook/internal/ports"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrHoldNotFound      = errors.New("wallet hold not found")
)

// WalletStore keeps wallet balances and saga fund reservations in Redis.
// Reservations move money out of the balance into a named hold so a crash
// between saga steps never double-spends: the hold is either captured,
// released by compensation, or expires with the key TTL on the Redis side.
type WalletStore struct {
	client *redis.Client
}

// NewWalletStore creates a WalletStore on top of an existing client.
func NewWalletStore(client *redis.Client) ports.WalletStore {
	return &WalletStore{client: client}
}

func balanceKey(userID string) string      { return "wallet:balance:" + userID }
func holdKey(userID, holdID string) string { return "wallet:hold:" + userID + ":" + holdID }

// reserveScript atomically checks the balance, debits it, and records the
// hold. KEYS[1]=balance, KEYS[2]=hold, ARGV[1]=amount.
var reserveScript = redis.NewScript(`
	local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
	local amount = tonumber(ARGV[1])
	if balance < amount then
		return -1
	end
	redis.call('DECRBY', KEYS[1], amount)
	redis.call('SET', KEYS[2], amount)
	return balance - amount
`)

// releaseScript atomically moves a hold back into the balance.
// KEYS[1]=balance, KEYS[2]=hold.
var releaseScript = redis.NewScript(`
	local held = redis.call('GET', KEYS[2])
	if not held then
		return -1
	end
	redis.call('INCRBY', KEYS[1], tonumber(held))
	redis.call('DEL', KEYS[2])
	return tonumber(held)
`)

// Balance returns the current wallet balance in minor units.
func (s *WalletStore) Balance(ctx context.Context, userID string) (int64, error) {
	val, err := s.client.Get(ctx, balanceKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Credit adds amount to the wallet balance and returns the new balance.
func (s *WalletStore) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	return s.client.IncrBy(ctx, balanceKey(userID), amount).Result()
}

// Reserve atomically moves amount from the balance into a named hold.
func (s *WalletStore) Reserve(ctx context.Context, userID, holdID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("reserve amount must be positive, got %d", amount)
	}

	res, err := reserveScript.Run(ctx, s.client,
		[]string{balanceKey(userID), holdKey(userID, holdID)}, amount).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// Capture consumes a hold: the money has been charged and the reservation is done.
func (s *WalletStore) Capture(ctx context.Context, userID, holdID string) error {
	deleted, err := s.client.Del(ctx, holdKey(userID, holdID)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrHoldNotFound
	}
	return nil
}

// Release returns a hold to the balance. Releasing an unknown hold is a no-op
// so compensation stays idempotent.
func (s *WalletStore) Release(ctx context.Context, userID, holdID string) error {
	res, err := releaseScript.Run(ctx, s.client,
		[]string{balanceKey(userID), holdKey(userID, holdID)}).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		// already released or captured
		return nil
	}
	return nil
}
