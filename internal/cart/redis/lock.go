package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// TicketLock holds short-lived SetNX locks per ticket. The lock covers the
// read-validate-write window of a reservation; once the conditional update
// commits, the row status itself keeps the ticket exclusive.
type TicketLock struct {
	Client   *redis.Client
	Duration time.Duration
	Logger   *log.Logger
}

func NewTicketLock(client *redis.Client, duration time.Duration) *TicketLock {
	if duration <= 0 {
		duration = 5 * time.Minute
	}
	return &TicketLock{
		Client:   client,
		Duration: duration,
		Logger:   log.Default(),
	}
}

// LockTicket locks a single ticket for the cart.
func (r *TicketLock) LockTicket(ticketID, cartID string) (bool, error) {
	key := "ticket_lock:" + ticketID
	ok, err := r.Client.SetNX(context.Background(), key, cartID, r.Duration).Result()
	return ok, err
}

// UnlockTicket removes the lock if this cart still holds it.
func (r *TicketLock) UnlockTicket(ticketID, cartID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("ticket_lock:%s", ticketID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == cartID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// LockTickets locks the batch atomically: any ticket already locked unwinds
// the locks taken so far.
func (r *TicketLock) LockTickets(ticketIDs []string, cartID string) (bool, error) {
	locked := []string{}
	for _, ticketID := range ticketIDs {
		ok, err := r.LockTicket(ticketID, cartID)
		if err != nil {
			for _, l := range locked {
				_ = r.UnlockTicket(l, cartID)
			}
			return false, err
		}
		if !ok {
			for _, l := range locked {
				_ = r.UnlockTicket(l, cartID)
			}
			return false, nil
		}
		locked = append(locked, ticketID)
	}
	return true, nil
}

// UnlockTickets releases the batch, returning the first error seen.
func (r *TicketLock) UnlockTickets(ticketIDs []string, cartID string) error {
	var firstErr error
	for _, ticketID := range ticketIDs {
		err := r.UnlockTicket(ticketID, cartID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
