package challenge

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"pushauth/backend/internal/challenge/domain"
	challengerepo "pushauth/backend/internal/challenge/repository"
	"pushauth/backend/internal/device"
	devicedomain "pushauth/backend/internal/device/domain"
	devicerepo "pushauth/backend/internal/device/repository"
	"pushauth/backend/internal/notify"
	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/security"
	"pushauth/backend/internal/session"
	"pushauth/backend/internal/signature"
	"pushauth/backend/internal/telemetry"
	userdomain "pushauth/backend/internal/user/domain"
	userrepo "pushauth/backend/internal/user/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentPush struct {
	address string
	payload notify.Payload
}

// recordingDispatcher implements notify.Dispatcher for tests.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (d *recordingDispatcher) Send(_ context.Context, address string, p notify.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentPush{address: address, payload: p})
	return d.err
}

func (d *recordingDispatcher) last(t *testing.T) sentPush {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		t.Fatal("nothing dispatched")
	}
	return d.sent[len(d.sent)-1]
}

// eventRecorder implements telemetry.EventEmitter for tests.
type eventRecorder struct {
	ch chan *telemetry.Event
}

func (r *eventRecorder) Emit(_ context.Context, ev *telemetry.Event) error {
	r.ch <- ev
	return nil
}

type fixture struct {
	m          *Manager
	clock      *fakeClock
	challenges *challengerepo.MemoryRepository
	devices    *devicerepo.MemoryRepository
	registry   *device.Registry
	push       *recordingDispatcher
	issuer     *session.Issuer
}

func newFixture(t *testing.T, configure ...func(*Deps, *Options)) *fixture {
	t.Helper()
	ctx := context.Background()
	users := userrepo.NewMemoryRepository()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, id := range []string{"u1", "u2"} {
		if err := users.Create(ctx, &userdomain.User{ID: id, Email: id + "@example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	f := &fixture{
		clock:      &fakeClock{t: now},
		challenges: challengerepo.NewMemoryRepository(),
		devices:    devicerepo.NewMemoryRepository(),
		push:       &recordingDispatcher{},
		issuer:     session.NewIssuer(tokens, 0),
	}
	f.registry = device.NewRegistry(f.devices, users, signature.DefaultRegistry(), nil)
	deps := Deps{
		Challenges: f.challenges,
		Devices:    f.registry,
		Dispatcher: f.push,
		Verifier:   signature.DefaultRegistry(),
		Issuer:     f.issuer,
	}
	opts := Options{Now: f.clock.Now}
	for _, c := range configure {
		c(&deps, &opts)
	}
	f.m = NewManager(deps, opts)
	return f
}

// link registers a device with a fresh key for userID and gives it a push address.
func (f *fixture) link(t *testing.T, userID string, alg signature.Algorithm) (string, *signature.TestSigner) {
	t.Helper()
	ctx := context.Background()
	s, err := signature.NewTestSigner(alg)
	if err != nil {
		t.Fatalf("NewTestSigner: %v", err)
	}
	id, err := f.registry.Link(ctx, userID, devicedomain.PublicKey{Algorithm: alg, Key: s.PublicKey}, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := f.registry.RegisterPushAddress(ctx, id, "fcm-token-"+id); err != nil {
		t.Fatalf("RegisterPushAddress: %v", err)
	}
	return id, s
}

func (f *fixture) status(t *testing.T, id string) *domain.Challenge {
	t.Helper()
	c, err := f.m.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return c
}

var testAlgorithms = []signature.Algorithm{signature.Ed25519, signature.MLDSA65}

func TestManager_CreateVerifyApproves(t *testing.T) {
	for _, alg := range testAlgorithms {
		t.Run(string(alg), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			deviceID, signer := f.link(t, "u1", alg)

			c, err := f.m.Create(ctx, "u1", deviceID, "")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if c.Status != domain.StatusPending || len(c.Nonce) != NonceSize || c.Action != domain.DefaultAction {
				t.Fatalf("created challenge = %+v", c)
			}
			if !c.ExpiresAt.Equal(c.CreatedAt.Add(DefaultTTL)) {
				t.Errorf("ExpiresAt = %v, want CreatedAt+%v", c.ExpiresAt, DefaultTTL)
			}

			cred, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), nil)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if cred.UserID != "u1" || cred.DeviceID != deviceID || cred.ChallengeID != c.ID {
				t.Errorf("credential = %+v", cred)
			}
			claims, err := f.issuer.Validate(cred.Token)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if claims.Subject != "u1" || claims.DeviceID != deviceID || claims.ChallengeID != c.ID {
				t.Errorf("claims = %+v", claims)
			}

			got := f.status(t, c.ID)
			if got.Status != domain.StatusApproved || got.VerifiedAt == nil || !got.VerifiedAt.Equal(f.clock.Now()) {
				t.Errorf("stored = %+v", got)
			}
			d, _ := f.registry.Get(ctx, deviceID)
			if d.LastSeenAt == nil {
				t.Error("device last seen not updated")
			}
		})
	}
}

func TestManager_CreateDispatchesPayload(t *testing.T) {
	f := newFixture(t)
	deviceID, _ := f.link(t, "u1", signature.Ed25519)

	c, err := f.m.Create(context.Background(), "u1", deviceID, "wire-transfer")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p := f.push.last(t)
	if p.address != "fcm-token-"+deviceID {
		t.Errorf("address = %q", p.address)
	}
	if p.payload.Title != "Authentication Request" || p.payload.Body != "Approve login attempt for wire-transfer" {
		t.Errorf("payload = %+v", p.payload)
	}
	want := map[string]string{
		"challengeId": c.ID,
		"challenge":   hex.EncodeToString(c.Nonce),
		"action":      "wire-transfer",
		"timestamp":   strconv.FormatInt(c.CreatedAt.UnixMilli(), 10),
	}
	for k, v := range want {
		if p.payload.Data[k] != v {
			t.Errorf("data[%s] = %q, want %q", k, p.payload.Data[k], v)
		}
	}
}

func TestManager_InvalidSignatureDenies(t *testing.T) {
	for _, alg := range testAlgorithms {
		t.Run(string(alg), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			deviceID, signer := f.link(t, "u1", alg)

			// Tampered signature.
			c, err := f.m.Create(ctx, "u1", deviceID, "")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			sig := signer.Sign(c.Nonce)
			sig[0] ^= 0xff
			if _, err := f.m.Verify(ctx, c.ID, sig, nil); !errors.Is(err, apperr.ErrSignatureInvalid) {
				t.Fatalf("tampered: err = %v, want ErrSignatureInvalid", err)
			}
			if got := f.status(t, c.ID); got.Status != domain.StatusDenied || got.VerifiedAt == nil {
				t.Errorf("tampered: stored = %+v", got)
			}

			// Signature from a different key.
			other, err := signature.NewTestSigner(alg)
			if err != nil {
				t.Fatalf("NewTestSigner: %v", err)
			}
			c2, err := f.m.Create(ctx, "u1", deviceID, "")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := f.m.Verify(ctx, c2.ID, other.Sign(c2.Nonce), nil); !errors.Is(err, apperr.ErrSignatureInvalid) {
				t.Fatalf("wrong key: err = %v, want ErrSignatureInvalid", err)
			}
			if got := f.status(t, c2.ID); got.Status != domain.StatusDenied {
				t.Errorf("wrong key: status = %s", got.Status)
			}

			// A denied challenge cannot be retried with a good signature.
			if _, err := f.m.Verify(ctx, c2.ID, signer.Sign(c2.Nonce), nil); !errors.Is(err, apperr.ErrChallengeAlreadyResolved) {
				t.Errorf("retry after denial: err = %v, want ErrChallengeAlreadyResolved", err)
			}
		})
	}
}

func TestManager_SecondVerifyAlreadyResolved(t *testing.T) {
	for _, alg := range testAlgorithms {
		t.Run(string(alg), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			deviceID, signer := f.link(t, "u1", alg)
			c, err := f.m.Create(ctx, "u1", deviceID, "")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			sig := signer.Sign(c.Nonce)
			if _, err := f.m.Verify(ctx, c.ID, sig, nil); err != nil {
				t.Fatalf("first Verify: %v", err)
			}
			if _, err := f.m.Verify(ctx, c.ID, sig, nil); !errors.Is(err, apperr.ErrChallengeAlreadyResolved) {
				t.Errorf("second Verify err = %v, want ErrChallengeAlreadyResolved", err)
			}
		})
	}
}

func TestManager_ExpiredChallenge(t *testing.T) {
	for _, alg := range testAlgorithms {
		t.Run(string(alg), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			deviceID, signer := f.link(t, "u1", alg)
			c, err := f.m.Create(ctx, "u1", deviceID, "")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			f.clock.Advance(DefaultTTL + time.Second)

			if _, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), nil); !errors.Is(err, apperr.ErrChallengeExpired) {
				t.Fatalf("Verify err = %v, want ErrChallengeExpired", err)
			}
			got := f.status(t, c.ID)
			if got.Status != domain.StatusExpired || got.VerifiedAt == nil {
				t.Errorf("stored = %+v", got)
			}
			if !got.ExpiresAt.Equal(c.ExpiresAt) {
				t.Error("ExpiresAt changed")
			}
			if _, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), nil); !errors.Is(err, apperr.ErrChallengeExpired) {
				t.Errorf("second Verify err = %v, want ErrChallengeExpired", err)
			}
		})
	}
}

func TestManager_VerifyAtExactExpiry(t *testing.T) {
	f := newFixture(t, func(_ *Deps, o *Options) { o.TTL = time.Minute })
	ctx := context.Background()
	deviceID, signer := f.link(t, "u1", signature.Ed25519)
	c, err := f.m.Create(ctx, "u1", deviceID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), nil); err != nil {
		t.Errorf("Verify at ExpiresAt: %v", err)
	}
}

func TestManager_ConcurrentVerifySingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID, signer := f.link(t, "u1", signature.Ed25519)
	c, err := f.m.Create(ctx, "u1", deviceID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sig := signer.Sign(c.Nonce)

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		resolved int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.m.Verify(ctx, c.ID, sig, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrChallengeAlreadyResolved):
				resolved++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	if wins != 1 || resolved != n-1 {
		t.Errorf("wins = %d, already resolved = %d; want 1 and %d", wins, resolved, n-1)
	}
}

func TestManager_DistinctNonces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID, _ := f.link(t, "u1", signature.Ed25519)

	const n = 200
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		c, err := f.m.Create(ctx, "u1", deviceID, "")
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		if len(c.Nonce) != NonceSize {
			t.Fatalf("nonce length = %d", len(c.Nonce))
		}
		if seen[string(c.Nonce)] {
			t.Fatalf("nonce repeated after %d challenges", i)
		}
		seen[string(c.Nonce)] = true
	}
}

func TestManager_CreateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID, _ := f.link(t, "u1", signature.Ed25519)

	noPush, err := f.registry.Link(ctx, "u1", devicedomain.PublicKey{Algorithm: signature.Ed25519, Key: make([]byte, 32)}, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	testCases := []struct {
		name     string
		userID   string
		deviceID string
		want     error
	}{
		{"unknown device", "u1", "missing", apperr.ErrDeviceNotFound},
		{"empty device", "u1", "", apperr.ErrDeviceNotFound},
		{"device of another user", "u2", deviceID, apperr.ErrDeviceNotFound},
		{"no push address", "u1", noPush, apperr.ErrPushNotConfigured},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := f.m.Create(ctx, tc.userID, tc.deviceID, "")
			if !errors.Is(err, tc.want) || c != nil {
				t.Errorf("Create = %v, %v; want nil, %v", c, err, tc.want)
			}
		})
	}
}

func TestManager_DispatchFailureKeepsChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID, signer := f.link(t, "u1", signature.Ed25519)
	f.push.err = notify.ErrSubscriptionGone

	c, err := f.m.Create(ctx, "u1", deviceID, "")
	if !errors.Is(err, apperr.ErrDispatchFailure) {
		t.Fatalf("Create err = %v, want ErrDispatchFailure", err)
	}
	if !errors.Is(err, notify.ErrSubscriptionGone) {
		t.Errorf("dispatch cause lost: %v", err)
	}
	if c == nil || c.ID == "" {
		t.Fatal("challenge not returned on dispatch failure")
	}
	if got := f.status(t, c.ID); got.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	pending, err := f.m.ListPending(ctx, deviceID)
	if err != nil || len(pending) != 1 || pending[0].ID != c.ID {
		t.Fatalf("ListPending = %v, %v", pending, err)
	}
	if _, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), nil); err != nil {
		t.Errorf("Verify after polling: %v", err)
	}
}

func TestManager_KeyMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID, signer := f.link(t, "u1", signature.Ed25519)
	other, _ := signature.NewTestSigner(signature.Ed25519)
	c, err := f.m.Create(ctx, "u1", deviceID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.m.Verify(ctx, c.ID, other.Sign(c.Nonce), other.PublicKey); !errors.Is(err, apperr.ErrKeyMismatch) {
		t.Fatalf("Verify err = %v, want ErrKeyMismatch", err)
	}
	if got := f.status(t, c.ID); got.Status != domain.StatusPending {
		t.Errorf("key mismatch must not resolve the challenge, status = %s", got.Status)
	}
	if _, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), signer.PublicKey); err != nil {
		t.Errorf("Verify with matching claimed key: %v", err)
	}
}

func TestManager_VerifyNotFound(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"", "missing"} {
		if _, err := f.m.Verify(context.Background(), id, []byte("sig"), nil); !errors.Is(err, apperr.ErrChallengeNotFound) {
			t.Errorf("Verify(%q) err = %v, want ErrChallengeNotFound", id, err)
		}
	}
	if _, err := f.m.Get(context.Background(), "missing"); !errors.Is(err, apperr.ErrChallengeNotFound) {
		t.Errorf("Get err = %v", err)
	}
}

func TestManager_InjectedVerifier(t *testing.T) {
	var calls []signature.Algorithm
	f := newFixture(t, func(d *Deps, _ *Options) {
		d.Verifier = signature.VerifierFunc(func(message, sig, _ []byte, alg signature.Algorithm) bool {
			calls = append(calls, alg)
			return string(sig) == "ok:"+hex.EncodeToString(message)
		})
	})
	ctx := context.Background()
	deviceID, _ := f.link(t, "u1", signature.MLDSA65)
	c, err := f.m.Create(ctx, "u1", deviceID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.m.Verify(ctx, c.ID, []byte("ok:"+c.NonceHex()), nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(calls) != 1 || calls[0] != signature.MLDSA65 {
		t.Errorf("verifier calls = %v", calls)
	}
}

func TestManager_NonceCollisionPanics(t *testing.T) {
	fixed := bytes.Repeat([]byte{7}, NonceSize)
	f := newFixture(t, func(_ *Deps, o *Options) { o.Nonce = func() []byte { return fixed } })
	ctx := context.Background()
	deviceID, _ := f.link(t, "u1", signature.Ed25519)
	if _, err := f.m.Create(ctx, "u1", deviceID, ""); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	defer func() {
		r := recover()
		var inv *apperr.InvariantError
		if err, ok := r.(error); !ok || !errors.As(err, &inv) {
			t.Fatalf("recovered %v, want *apperr.InvariantError", r)
		}
	}()
	_, _ = f.m.Create(ctx, "u1", deviceID, "")
	t.Fatal("Create with a repeated nonce did not panic")
}

func TestManager_SweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deviceID, signer := f.link(t, "u1", signature.Ed25519)

	var ids []string
	for i := 0; i < 5; i++ {
		c, err := f.m.Create(ctx, "u1", deviceID, "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, c.ID)
	}
	// One is resolved before expiry and must be left alone.
	first := f.status(t, ids[0])
	if _, err := f.m.Verify(ctx, first.ID, signer.Sign(first.Nonce), nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if n, err := f.m.SweepExpired(ctx, 10); err != nil || n != 0 {
		t.Fatalf("early sweep = %d, %v", n, err)
	}
	f.clock.Advance(DefaultTTL + time.Second)
	if pending, _ := f.m.ListPending(ctx, deviceID); len(pending) != 0 {
		t.Errorf("ListPending returned %d expired challenges", len(pending))
	}

	n, err := NewSweeper(f.m, time.Minute, 2).SweepOnce(ctx)
	if err != nil || n != 4 {
		t.Fatalf("SweepOnce = %d, %v; want 4", n, err)
	}
	if got := f.status(t, ids[0]); got.Status != domain.StatusApproved {
		t.Errorf("approved challenge swept: %s", got.Status)
	}
	for _, id := range ids[1:] {
		if got := f.status(t, id); got.Status != domain.StatusExpired {
			t.Errorf("challenge %s status = %s, want expired", id, got.Status)
		}
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(f.m, time.Millisecond, 0).Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManager_EmitsLifecycleEvents(t *testing.T) {
	rec := &eventRecorder{ch: make(chan *telemetry.Event, 8)}
	f := newFixture(t, func(d *Deps, _ *Options) { d.Telemetry = rec })
	ctx := context.Background()
	deviceID, signer := f.link(t, "u1", signature.Ed25519)
	c, err := f.m.Create(ctx, "u1", deviceID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.m.Verify(ctx, c.ID, signer.Sign(c.Nonce), nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	got := map[string]*telemetry.Event{}
	for len(got) < 2 {
		select {
		case ev := <-rec.ch:
			got[ev.EventType] = ev
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}
	for _, typ := range []string{telemetry.EventChallengeCreated, telemetry.EventChallengeApproved} {
		ev, ok := got[typ]
		if !ok {
			t.Fatalf("missing %s event", typ)
		}
		if ev.ChallengeID != c.ID || ev.DeviceID != deviceID || ev.UserID != "u1" {
			t.Errorf("%s event = %+v", typ, ev)
		}
	}
}

// failingRepo reports a store outage on every call.
type failingRepo struct{}

var errStoreDown = errors.New("connection refused")

func (failingRepo) GetByID(context.Context, string) (*domain.Challenge, error) { return nil, errStoreDown }
func (failingRepo) Create(context.Context, *domain.Challenge) error          { return errStoreDown }
func (failingRepo) ListPendingByDevice(context.Context, string) ([]*domain.Challenge, error) {
	return nil, errStoreDown
}
func (failingRepo) ListExpiredPending(context.Context, time.Time, int) ([]*domain.Challenge, error) {
	return nil, errStoreDown
}
func (failingRepo) Transition(context.Context, string, domain.Status, domain.Status, time.Time) (bool, error) {
	return false, errStoreDown
}

func TestManager_StoreUnavailable(t *testing.T) {
	f := newFixture(t, func(d *Deps, _ *Options) { d.Challenges = failingRepo{} })
	ctx := context.Background()
	deviceID, _ := f.link(t, "u1", signature.Ed25519)

	if _, err := f.m.Create(ctx, "u1", deviceID, ""); !errors.Is(err, apperr.ErrStoreUnavailable) || !errors.Is(err, errStoreDown) {
		t.Errorf("Create err = %v", err)
	}
	if _, err := f.m.Verify(ctx, "c1", nil, nil); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("Verify err = %v", err)
	}
	if _, err := f.m.ListPending(ctx, deviceID); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("ListPending err = %v", err)
	}
	if _, err := f.m.SweepExpired(ctx, 10); !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Errorf("SweepExpired err = %v", err)
	}
}
