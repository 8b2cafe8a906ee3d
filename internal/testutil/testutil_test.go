package testutil

import (
	"context"
	"testing"

	"github.com/olegiv/ocms-l10n/internal/store"
)

func TestTestDB(t *testing.T) {
	for _, driver := range []string{store.DriverModernc, store.DriverCGO} {
		t.Run(driver, func(t *testing.T) {
			db, cleanup := TestDBWithDriver(t, driver)
			defer cleanup()

			count, err := store.New(db).CountRecords(context.Background(), "pages")
			if err != nil {
				t.Fatalf("CountRecords: %v", err)
			}
			if count != 0 {
				t.Errorf("fresh database has %d pages", count)
			}
		})
	}
}

func TestTestLogger(t *testing.T) {
	if TestLogger() == nil || TestLoggerSilent() == nil {
		t.Fatal("logger should not be nil")
	}
}
