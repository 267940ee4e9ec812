package dns

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"
)

type nopStore struct{ settings map[string]string }

func (nopStore) List(context.Context) ([]Record, error) { return nil, nil }
func (nopStore) Create(context.Context, Record) error { return nil }
func (nopStore) Delete(context.Context, string) error { return nil }

func TestNewStore(t *testing.T) {
	Register("test-nop", func(_ logr.Logger, settings map[string]string) (Store, error) {
		return nopStore{settings: settings}, nil
	})

	s, err := NewStore("test-nop", logr.Discard(), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.(nopStore).settings["k"]; got != "v" {
		t.Errorf("expected settings passed through, got %q", got)
	}
}

func TestNewStore_Unknown(t *testing.T) {
	_, err := NewStore("does-not-exist", logr.Discard(), nil)
	if err == nil {
		t.Fatal("expected error for unknown store, got nil")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("expected error to name the store, got %q", err.Error())
	}
}

func TestRegister_Duplicate(t *testing.T) {
	Register("test-dup", func(logr.Logger, map[string]string) (Store, error) { return nopStore{}, nil })

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("test-dup", func(logr.Logger, map[string]string) (Store, error) { return nopStore{}, nil })
}
