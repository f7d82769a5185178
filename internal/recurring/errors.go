package recurring

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vaidashi/delivery-orders/internal/models"
)

// StoreFailure aborts a run. Its message is the store's own, so operators see
// what Postgres said; the template and date are kept for logs.
type StoreFailure struct {
	// zero when selecting the templates failed
	RecurringOrderID int64
	Date             models.Date
	Err              error
}

func (e *StoreFailure) Error() string {
	return storeMessage(e.Err)
}

func (e *StoreFailure) Unwrap() error {
	return e.Err
}

// Context describes where the run stopped
func (e *StoreFailure) Context() string {
	if e.RecurringOrderID == 0 {
		return fmt.Sprintf("select recurring orders for %s", e.Date)
	}
	return fmt.Sprintf("materialize recurring order %d for %s", e.RecurringOrderID, e.Date)
}

// storeMessage strips the sentinels the repositories put in front of a
// driver error.
func storeMessage(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}

	for {
		multi, ok := err.(interface{ Unwrap() []error })
		if !ok {
			return err.Error()
		}
		errs := multi.Unwrap()
		if len(errs) == 0 {
			return err.Error()
		}
		err = errs[len(errs)-1]
	}
}
