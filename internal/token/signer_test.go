package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rasinmuhammed/matrix-admin/model"
)

const testSecret = "a-secret-key-of-sufficient-length"

func TestNewSignerRejectsWeakKey(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		wantOK bool
	}{
		{"empty", "", false},
		{"fifteen chars", "123456789012345", false},
		{"sixteen chars", "1234567890123456", true},
		{"long", testSecret, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSigner(tc.secret, "")
			if tc.wantOK {
				if err != nil {
					t.Fatalf("NewSigner: %v", err)
				}
				if s == nil {
					t.Fatal("NewSigner returned nil signer")
				}
				return
			}
			if err == nil {
				t.Fatal("NewSigner accepted weak key")
			}
			if model.CodeOf(err) != model.ErrWeakKey {
				t.Errorf("code = %q, want %q", model.CodeOf(err), model.ErrWeakKey)
			}
		})
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner(testSecret, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	payload := map[string]any{"model": "user", "action": "delete", "record_id": "42"}
	tok, err := s.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	got, err := s.Verify(tok, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for k, want := range payload {
		if got[k] != want {
			t.Errorf("payload[%q] = %v, want %v", k, got[k], want)
		}
	}
	if _, ok := got["iat"]; ok {
		t.Error("verified payload still carries iat")
	}
}

func TestVerifyExpired(t *testing.T) {
	s, err := NewSigner(testSecret, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	base := time.Now()
	s.now = func() time.Time { return base }
	tok, err := s.Sign(map[string]any{"model": "user", "action": "delete"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, err := s.Verify(tok, time.Hour); err != nil {
		t.Fatalf("Verify before expiry: %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = s.Verify(tok, time.Hour)
	if err == nil {
		t.Fatal("Verify accepted expired token")
	}
	if model.CodeOf(err) != model.ErrTokenExpired {
		t.Errorf("code = %q, want %q", model.CodeOf(err), model.ErrTokenExpired)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, err := NewSigner(testSecret, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	tok, err := s.CreateCapabilityToken("user", ActionDelete, "", "7")
	if err != nil {
		t.Fatalf("CreateCapabilityToken: %v", err)
	}

	// Flipping any single character must invalidate the token.
	for i := 0; i < len(tok); i++ {
		mutated := []byte(tok)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == tok {
			continue
		}
		if _, err := s.Verify(string(mutated), 0); err == nil {
			t.Fatalf("Verify accepted token mutated at index %d", i)
		}
	}
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	a, _ := NewSigner(testSecret, "")
	b, _ := NewSigner("another-secret-key-entirely", "")
	c, _ := NewSigner(testSecret, "different-salt")

	tok, err := a.CreateCapabilityToken("user", ActionDelete, "", "7")
	if err != nil {
		t.Fatalf("CreateCapabilityToken: %v", err)
	}

	if _, err := b.Verify(tok, 0); model.CodeOf(err) != model.ErrTokenInvalid {
		t.Errorf("different secret: code = %q, want %q", model.CodeOf(err), model.ErrTokenInvalid)
	}
	if _, err := c.Verify(tok, 0); model.CodeOf(err) != model.ErrTokenInvalid {
		t.Errorf("different salt: code = %q, want %q", model.CodeOf(err), model.ErrTokenInvalid)
	}
}

func TestMatchRequest(t *testing.T) {
	s, err := NewSigner(testSecret, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	tok, err := s.CreateCapabilityToken("user", ActionDelete, "", "7")
	if err != nil {
		t.Fatalf("CreateCapabilityToken: %v", err)
	}
	payload, err := s.Verify(tok, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	tests := []struct {
		name     string
		model    string
		action   string
		recordID string
		wantOK   bool
	}{
		{"exact match", "user", ActionDelete, "7", true},
		{"different record", "user", ActionDelete, "8", false},
		{"different action", "user", ActionUpdate, "7", false},
		{"different model", "article", ActionDelete, "7", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := MatchRequest(payload, tc.model, tc.action, tc.recordID)
			if tc.wantOK && err != nil {
				t.Fatalf("MatchRequest: %v", err)
			}
			if !tc.wantOK {
				if err == nil {
					t.Fatal("MatchRequest accepted mismatched request")
				}
				if model.CodeOf(err) != model.ErrTokenMismatch {
					t.Errorf("code = %q, want %q", model.CodeOf(err), model.ErrTokenMismatch)
				}
			}
		})
	}
}

func TestCapabilityTokenOptionalClaims(t *testing.T) {
	s, err := NewSigner(testSecret, "")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	tok, err := s.CreateCapabilityToken("content", ActionLoadFragment, "article", "")
	if err != nil {
		t.Fatalf("CreateCapabilityToken: %v", err)
	}
	payload, err := s.Verify(tok, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if got := Subtype(payload); got != "article" {
		t.Errorf("Subtype = %q, want %q", got, "article")
	}
	if _, ok := payload[ClaimRecordID]; ok {
		t.Error("empty record_id claim was serialized")
	}
	if ID(payload) == "" {
		t.Error("token carries no unique ID")
	}
}

func TestMemoryReplayGuard(t *testing.T) {
	g := NewMemoryReplayGuard()
	ctx := context.Background()

	if err := g.Consume(ctx, "tok-1", time.Minute); err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	err := g.Consume(ctx, "tok-1", time.Minute)
	if model.CodeOf(err) != model.ErrTokenReplayed {
		t.Errorf("code = %q, want %q", model.CodeOf(err), model.ErrTokenReplayed)
	}
	if err := g.Consume(ctx, "tok-2", time.Minute); err != nil {
		t.Fatalf("Consume of fresh ID: %v", err)
	}

	// Spent entries expire with their TTL.
	base := time.Now()
	g.now = func() time.Time { return base.Add(2 * time.Minute) }
	if err := g.Consume(ctx, "tok-1", time.Minute); err != nil {
		t.Fatalf("Consume after TTL: %v", err)
	}
}

func TestRedisReplayGuard(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer srv.Close()

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	g := NewRedisReplayGuard(client, "")
	ctx := context.Background()

	if err := g.Consume(ctx, "tok-1", time.Minute); err != nil {
		t.Fatalf("first Consume: %v", err)
	}
	err = g.Consume(ctx, "tok-1", time.Minute)
	if model.CodeOf(err) != model.ErrTokenReplayed {
		t.Errorf("code = %q, want %q", model.CodeOf(err), model.ErrTokenReplayed)
	}

	srv.FastForward(2 * time.Minute)
	if err := g.Consume(ctx, "tok-1", time.Minute); err != nil {
		t.Fatalf("Consume after TTL: %v", err)
	}
}
