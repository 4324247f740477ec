package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/termgate/termgate/internal/errdefs"
	"github.com/termgate/termgate/internal/families"
	"github.com/termgate/termgate/internal/logging"
)

// Handshake finalizes a freshly opened connection before it is handed to
// callers: send the family's pager-disable command, let the device settle,
// and discard whatever banner text is buffered. All three variants share
// this step. On transport failure the caller still owns the Conn and must
// close it.
func Handshake(ctx context.Context, c Conn, fam families.Family, settle time.Duration) error {
	for _, cmd := range fam.PagerOff {
		if err := c.Send([]byte(cmd + "\n")); err != nil {
			return fmt.Errorf("disable pager: %w", err)
		}
	}

	if settle <= 0 {
		settle = 2 * time.Second
	}

	// Drain until the stream stays quiet for the settle duration. The nil
	// matcher never fires, so idle expiry is the normal exit here.
	banner, err := c.ReadUntil(ctx, nil, settle)
	if err != nil && !errdefs.IsTimeout(err) {
		return fmt.Errorf("drain banner: %w", err)
	}
	if len(banner) > 0 {
		logging.L().WithField("bytes", len(banner)).Debug("discarded connect banner")
	}
	return nil
}
