package config

import (
	"reflect"
	"testing"
	"time"

	kit "bazaar/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	db := New().Prefix("DB_")
	if got := db.key("HOST"); got != "DB_HOST" {
		t.Fatalf("key() = %q, want %q", got, "DB_HOST")
	}
	nested := db.Prefix("RETRY_")
	if got := nested.key("ATTEMPTS"); got != "DB_RETRY_ATTEMPTS" {
		t.Fatalf("nested key() = %q", got)
	}
}

func TestMustString(t *testing.T) {
	c := New().Prefix("APP_")
	t.Setenv("APP_NAME", "  bazaar ")
	if got := c.MustString("NAME"); got != "bazaar" {
		t.Fatalf("MustString = %q, want %q", got, "bazaar")
	}
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
	t.Setenv("APP_BLANK", "   ")
	kit.MustPanic(t, func() { _ = c.MustString("BLANK") })
}

func TestMayString(t *testing.T) {
	c := New().Prefix("S3_")
	if got := c.MayString("BUCKET", "fallback"); got != "fallback" {
		t.Fatalf("MayString missing = %q", got)
	}
	t.Setenv("S3_BUCKET", " media ")
	if got := c.MayString("BUCKET", "fallback"); got != "media" {
		t.Fatalf("MayString = %q", got)
	}
}

func TestMayIntFallsBackOnGarbage(t *testing.T) {
	c := New().Prefix("DB_")
	if got := c.MayInt("PORT", 5432); got != 5432 {
		t.Fatalf("missing -> default, got %d", got)
	}
	t.Setenv("DB_PORT", "6543")
	if got := c.MayInt("PORT", 5432); got != 6543 {
		t.Fatalf("MayInt = %d", got)
	}
	t.Setenv("DB_PORT", "fifty")
	if got := c.MayInt("PORT", 5432); got != 5432 {
		t.Fatalf("invalid -> default, got %d", got)
	}
}

func TestMayInt64(t *testing.T) {
	c := New().Prefix("STORAGE_")
	t.Setenv("STORAGE_MAX_BYTES", "10485760")
	if got := c.MayInt64("MAX_BYTES", 1); got != 10485760 {
		t.Fatalf("MayInt64 = %d", got)
	}
	t.Setenv("STORAGE_MAX_BYTES", "10MB")
	if got := c.MayInt64("MAX_BYTES", 1); got != 1 {
		t.Fatalf("invalid -> default, got %d", got)
	}
}

func TestMayBool(t *testing.T) {
	c := New().Prefix("F_")
	if !c.MayBool("ON", true) {
		t.Fatalf("missing -> default true")
	}
	t.Setenv("F_ON", "false")
	if c.MayBool("ON", true) {
		t.Fatalf("MayBool should read false")
	}
	t.Setenv("F_ON", "maybe")
	if !c.MayBool("ON", true) {
		t.Fatalf("invalid -> default")
	}
}

func TestMayDuration(t *testing.T) {
	c := New().Prefix("D_")
	if got := c.MayDuration("IDLE", time.Minute); got != time.Minute {
		t.Fatalf("missing -> default, got %v", got)
	}
	t.Setenv("D_IDLE", "250ms")
	if got := c.MayDuration("IDLE", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("MayDuration = %v", got)
	}
	t.Setenv("D_IDLE", "soon")
	if got := c.MayDuration("IDLE", time.Minute); got != time.Minute {
		t.Fatalf("invalid -> default, got %v", got)
	}
}

func TestMayCSV(t *testing.T) {
	c := New()
	def := []string{"image/jpeg"}
	if got := c.MayCSV("TYPES", def); !reflect.DeepEqual(got, def) {
		t.Fatalf("missing -> default, got %v", got)
	}
	t.Setenv("TYPES", " image/png, ,image/gif ")
	if got := c.MayCSV("TYPES", def); !reflect.DeepEqual(got, []string{"image/png", "image/gif"}) {
		t.Fatalf("MayCSV = %v", got)
	}
	t.Setenv("TYPES", " , ,")
	if got := c.MayCSV("TYPES", def); !reflect.DeepEqual(got, def) {
		t.Fatalf("all-empty -> default, got %v", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("STORAGE_")
	if got := c.MayEnum("PROVIDER", "local", "local", "s3"); got != "local" {
		t.Fatalf("missing -> default, got %q", got)
	}
	t.Setenv("STORAGE_PROVIDER", "S3")
	if got := c.MayEnum("PROVIDER", "local", "local", "s3"); got != "s3" {
		t.Fatalf("case-insensitive match should normalize, got %q", got)
	}
	t.Setenv("STORAGE_PROVIDER", "ftp")
	kit.MustNotPanic(t, func() {
		if got := c.MayEnum("PROVIDER", "local", "local", "s3"); got != "local" {
			t.Fatalf("invalid -> default, got %q", got)
		}
	})
}
