package redis

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		wantErr  bool
		wantDB   int
	}{
		{"minimal", map[string]string{"address": "localhost:6379"}, false, 0},
		{"with db", map[string]string{"address": "localhost:6379", "db": "3"}, false, 3},
		{"missing address", map[string]string{}, true, 0},
		{"non-numeric db", map[string]string{"address": "localhost:6379", "db": "two"}, true, 0},
		{"negative db", map[string]string{"address": "localhost:6379", "db": "-1"}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(logr.Discard(), tt.settings)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.option.SelectDB != tt.wantDB {
				t.Errorf("expected db %d, got %d", tt.wantDB, s.option.SelectDB)
			}
			if !s.option.DisableCache {
				t.Error("expected client-side caching to be disabled")
			}
		})
	}
}

func TestKeyPrefix(t *testing.T) {
	s, err := New(logr.Discard(), map[string]string{"address": "localhost:6379", "key_prefix": "dns:"})
	if err != nil {
		t.Fatal(err)
	}

	if got := s.key("app.local"); got != "dns:app.local" {
		t.Errorf("key: got %q", got)
	}
	if got := s.domain("dns:app.local"); got != "app.local" {
		t.Errorf("domain: got %q", got)
	}
}

func TestRegistered(t *testing.T) {
	if _, err := dns.NewStore("redis", logr.Discard(), map[string]string{"address": "localhost:6379"}); err != nil {
		t.Fatalf("expected redis store to be registered: %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	// Port 1 is reserved and refuses connections.
	s, err := New(logr.Discard(), map[string]string{"address": "127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	checks := map[string]func() error{
		dns.OpList:   func() error { _, err := s.List(ctx); return err },
		dns.OpCreate: func() error { return s.Create(ctx, dns.Record{Domain: "app.local", IP: "10.0.0.1", TTL: -1}) },
		dns.OpDelete: func() error { return s.Delete(ctx, "app.local") },
	}

	for op, call := range checks {
		t.Run(op, func(t *testing.T) {
			var tf *dns.TransportFailure
			if err := call(); !errors.As(err, &tf) {
				t.Fatalf("expected TransportFailure, got %v", err)
			}
			if tf.Op != op {
				t.Errorf("expected op %q, got %q", op, tf.Op)
			}
		})
	}
}

func TestMatchPrefix(t *testing.T) {
	tests := map[string]string{
		"":        "*",
		"dns:":    "dns:*",
		"dns*:":   `dns\*:*`,
		"a?[b]":   `a\?\[b\]*`,
		`back\sl`: `back\\sl*`,
	}
	for prefix, want := range tests {
		if got := matchPrefix(prefix); got != want {
			t.Errorf("matchPrefix(%q) = %q, want %q", prefix, got, want)
		}
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"b.local", "a.local", "b.local", "c.local", "a.local"})
	want := []string{"b.local", "a.local", "c.local"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestClose_WithoutConnection(t *testing.T) {
	s, err := New(logr.Discard(), map[string]string{"address": "localhost:6379"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
