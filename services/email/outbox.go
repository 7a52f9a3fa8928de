package emailsvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// outbox runs deliveries in the background and keeps count of them,
// so short-lived processes can flush pending mails before exiting.
type outbox struct {
	wg sync.WaitGroup
}

func (o *outbox) dispatch(deliver func()) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		deliver()
	}()
}

// Wait blocks until every dispatched delivery is done or ctx ends.
func (o *outbox) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for pending emails")
	}
}
