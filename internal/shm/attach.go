package shm

import (
	"fmt"
	"strconv"
)

// AttachFromEnv implements spec.md §4.B's full contract: idStr is the value
// of the shm id variable (canonically __AFL_SHM_ID), already read by the
// caller; if empty, do nothing and keep the fallback
// bitmap; if present, parse and attach, returning an error the caller must
// treat as fatal (process exit status 1, per spec.md §7).
func AttachFromEnv(idStr string) error {
	if idStr == "" {
		return nil
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		return fmt.Errorf("shm: malformed shm id %q: %w", idStr, err)
	}

	return Attach(id)
}
