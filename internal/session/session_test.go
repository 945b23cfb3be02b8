package session

import (
	"testing"
	"time"
)

func TestSession_MarkConnected(t *testing.T) {
	s := newSession()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if first := s.markConnected(t0); !first {
		t.Error("first markConnected should report first connection")
	}
	if !s.InitialConnectionAt().Equal(t0) {
		t.Errorf("InitialConnectionAt = %v, want %v", s.InitialConnectionAt(), t0)
	}
	if !s.LastConnectionAt().IsZero() {
		t.Errorf("LastConnectionAt = %v, want zero", s.LastConnectionAt())
	}

	s.setConnected(false)
	t1 := t0.Add(time.Minute)
	if first := s.markConnected(t1); first {
		t.Error("second markConnected reported first connection")
	}
	if !s.LastConnectionAt().Equal(t1) {
		t.Errorf("LastConnectionAt = %v, want %v", s.LastConnectionAt(), t1)
	}
	if s.ConnectionErrorCount() != 1 {
		t.Errorf("ConnectionErrorCount = %d, want 1", s.ConnectionErrorCount())
	}
}

func TestSession_ClaimsMergeInPlace(t *testing.T) {
	s := newSession()
	s.mergeClaims(map[string]any{"sub": "u1", "role": "admin"})
	s.mergeClaims(map[string]any{"role": "viewer", "duration": 60.0})

	claims := s.Claims()
	if claims["sub"] != "u1" || claims["role"] != "viewer" || claims["duration"] != 60.0 {
		t.Errorf("Claims() = %v", claims)
	}

	claims["sub"] = "mutated"
	if v, _ := s.Claim("sub"); v != "u1" {
		t.Errorf("Claims() copy leaked into session: sub = %v", v)
	}
}

func TestTokenDuration(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   time.Duration
	}{
		{"seconds", map[string]any{"duration": 60.0}, time.Minute},
		{"fractional", map[string]any{"duration": 1.5}, 1500 * time.Millisecond},
		{"missing", map[string]any{}, 0},
		{"negative", map[string]any{"duration": -5.0}, 0},
		{"wrong type", map[string]any{"duration": "60"}, 0},
		{"nil claims", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenDuration(tt.claims); got != tt.want {
				t.Errorf("tokenDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeClaims(t *testing.T) {
	claims, err := decodeClaims(makeToken(t, map[string]any{"sub": "u1", "duration": 30}))
	if err != nil {
		t.Fatalf("decodeClaims failed: %v", err)
	}
	if claims["sub"] != "u1" || claims["duration"] != 30.0 {
		t.Errorf("claims = %v", claims)
	}

	if _, err := decodeClaims("vvvv"); err == nil {
		t.Error("expected error for opaque token")
	}
}

func TestObservers_RemoveIsIdempotent(t *testing.T) {
	var o observers[func()]
	calls := 0
	removeA := o.add(func() { calls++ })
	o.add(func() { calls += 10 })

	removeA()
	removeA()

	for _, fn := range o.snapshot() {
		fn()
	}
	if calls != 10 {
		t.Errorf("calls = %d, want 10", calls)
	}
	if o.len() != 1 {
		t.Errorf("len = %d, want 1", o.len())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateDisconnected:   "DISCONNECTED",
		StateConnecting:     "CONNECTING",
		StateAuthenticating: "AUTHENTICATING",
		StateConnected:      "CONNECTED",
		StateLoggedOut:      "LOGGED_OUT",
		State(99):           "UNKNOWN",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
