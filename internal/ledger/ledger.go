package ledger

import "time"

func dateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
