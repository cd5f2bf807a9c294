package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"melobot/internal/domain"
)

type fakeSettings struct {
	values map[string]string
	err    error
}

func (s *fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.values[key], nil
}

func (s *fakeSettings) SetSetting(_ context.Context, key, value string) error {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

type fakeUsers struct {
	users map[string]*domain.User
	err   error
}

func (s *fakeUsers) GetUser(_ context.Context, username string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[username], nil
}

func (s *fakeUsers) CreateUser(_ context.Context, u domain.User) error { return nil }

func (s *fakeUsers) SetUserInstruction(_ context.Context, username, instruction string) error {
	return nil
}

func TestResolve_BuiltinDefault(t *testing.T) {
	r := NewInstructionResolver(&fakeSettings{}, &fakeUsers{}, testLogger())
	got := r.Resolve(context.Background(), "", "")
	if !strings.Contains(got, "Chatbot Musical") {
		t.Fatalf("expected built-in persona, got %q", got[:60])
	}
	if !strings.HasSuffix(got, languageDirective) {
		t.Fatal("language directive must always be appended")
	}
}

func TestResolve_GlobalOverridesBuiltin(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{
		domain.SettingSystemInstruction: "Você é um pirata.",
	}}
	r := NewInstructionResolver(settings, &fakeUsers{}, testLogger())
	got := r.Resolve(context.Background(), "", "")
	if !strings.HasPrefix(got, "Você é um pirata.") {
		t.Fatalf("global instruction not applied: %q", got[:40])
	}
	if strings.Contains(got, "Chatbot Musical") {
		t.Fatal("built-in must be replaced, not concatenated")
	}
}

func TestResolve_UserOverridesGlobal(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{
		domain.SettingSystemInstruction: "global",
	}}
	users := &fakeUsers{users: map[string]*domain.User{
		"ana": {Username: "ana", SystemInstruction: "Você é a DJ da Ana."},
	}}
	r := NewInstructionResolver(settings, users, testLogger())

	got := r.Resolve(context.Background(), "ana", "")
	if !strings.HasPrefix(got, "Você é a DJ da Ana.") {
		t.Fatalf("user instruction not applied: %q", got)
	}
	// Unknown user falls back to the global layer.
	got = r.Resolve(context.Background(), "bob", "")
	if !strings.HasPrefix(got, "global") {
		t.Fatalf("unknown user must use global layer: %q", got)
	}
}

func TestResolve_RequestOverrideWinsAll(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{
		domain.SettingSystemInstruction: "global",
	}}
	users := &fakeUsers{users: map[string]*domain.User{
		"ana": {Username: "ana", SystemInstruction: "da ana"},
	}}
	r := NewInstructionResolver(settings, users, testLogger())

	got := r.Resolve(context.Background(), "ana", "só por hoje, fale de jazz")
	if !strings.HasPrefix(got, "só por hoje, fale de jazz") {
		t.Fatalf("request override not applied: %q", got)
	}
}

func TestResolve_BlankLayersSkipped(t *testing.T) {
	settings := &fakeSettings{values: map[string]string{
		domain.SettingSystemInstruction: "   ",
	}}
	users := &fakeUsers{users: map[string]*domain.User{
		"ana": {Username: "ana", SystemInstruction: "\n\t"},
	}}
	r := NewInstructionResolver(settings, users, testLogger())

	got := r.Resolve(context.Background(), "ana", "  ")
	if !strings.Contains(got, "Chatbot Musical") {
		t.Fatalf("blank layers must fall through to built-in: %q", got[:60])
	}
}

func TestResolve_StoreFailureDegrades(t *testing.T) {
	settings := &fakeSettings{err: errors.New("db locked")}
	users := &fakeUsers{err: errors.New("db locked")}
	r := NewInstructionResolver(settings, users, testLogger())

	got := r.Resolve(context.Background(), "ana", "")
	if !strings.Contains(got, "Chatbot Musical") {
		t.Fatalf("store failure must degrade to built-in: %q", got[:60])
	}
}
