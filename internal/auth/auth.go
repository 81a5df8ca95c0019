package auth

import (
	"context"
	"errors"
	"strings"

	"squad-planner/internal/config"

	"github.com/rs/zerolog"
)

var ErrForbidden = errors.New("caller is not privileged")

// Actor identifies the caller of a write. An empty Email is anonymous.
type Actor struct {
	Email string
}

type contextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom returns the actor stored in ctx, or the anonymous actor.
func ActorFrom(ctx context.Context) Actor {
	if a, ok := ctx.Value(contextKey{}).(Actor); ok {
		return a
	}
	return Actor{}
}

// Checker decides which actors may modify stored data. It is the only place
// privilege is evaluated.
type Checker struct {
	admins map[string]struct{}
	logger zerolog.Logger
}

func NewChecker(admins []string, logger zerolog.Logger) *Checker {
	c := &Checker{admins: make(map[string]struct{}, len(admins)), logger: logger}
	for _, email := range admins {
		if email = normalize(email); email != "" {
			c.admins[email] = struct{}{}
		}
	}
	return c
}

func NewCheckerFromConfig(cfg *config.Config, logger zerolog.Logger) *Checker {
	return NewChecker(cfg.AdminEmails, logger)
}

func (c *Checker) IsPrivileged(actor Actor) bool {
	_, ok := c.admins[normalize(actor.Email)]
	return ok
}

// AssertPrivileged returns ErrForbidden unless actor is an admin.
func (c *Checker) AssertPrivileged(actor Actor) error {
	if c.IsPrivileged(actor) {
		return nil
	}
	c.logger.Warn().Str("actor", actor.Email).Msg("rejected unprivileged write")
	return ErrForbidden
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
