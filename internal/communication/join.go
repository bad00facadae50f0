package communication

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/wireflow/internal/logger"
)

var (
	// ErrDialFailed is returned when a peer process cannot be reached.
	ErrDialFailed = errors.New("failed to reach peer")

	// ErrDialCanceled is returned when dialing is canceled.
	ErrDialCanceled = errors.New("dial operation canceled")
)

// Joiner dials peer processes, retrying until they are listening.
type Joiner struct {
	numAttempts     int
	attemptInterval time.Duration
	dialer          net.Dialer

	logger zerolog.Logger
}

// NewJoiner returns an instantiated Joiner.
func NewJoiner(numAttempts int, attemptInterval time.Duration) *Joiner {
	if numAttempts < 1 {
		numAttempts = 1
	}
	return &Joiner{
		numAttempts:     numAttempts,
		attemptInterval: attemptInterval,
		dialer:          net.Dialer{Timeout: time.Second},
		logger:          logger.GetLogger("communication-join"),
	}
}

// Do dials addr until it answers, the attempts run out, or ctx is done.
func (j *Joiner) Do(ctx context.Context, addr string) (net.Conn, error) {
	var err error
	for i := 0; i < j.numAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ErrDialCanceled
		default:
		}

		var conn net.Conn
		conn, err = j.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		j.logger.Debug().Err(err).Msgf("failed to dial peer at %s", addr)

		if i+1 < j.numAttempts {
			select {
			case <-ctx.Done():
				return nil, ErrDialCanceled
			case <-time.After(j.attemptInterval):
			}
		}
	}
	j.logger.Error().Err(err).Msgf("failed to reach %s after %d attempt(s)", addr, j.numAttempts)
	return nil, fmt.Errorf("%w: %s: %v", ErrDialFailed, addr, err)
}

// Window returns the total time Do may spend retrying.
func (j *Joiner) Window() time.Duration {
	return time.Duration(j.numAttempts) * (j.attemptInterval + j.dialer.Timeout)
}
