// Package challenge runs the challenge lifecycle: it creates single-use nonces for a user's device,
// pushes them out, and verifies the signed response exactly once before minting a step-up credential.
package challenge

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pushauth/backend/internal/challenge/domain"
	challengerepo "pushauth/backend/internal/challenge/repository"
	devicedomain "pushauth/backend/internal/device/domain"
	"pushauth/backend/internal/notify"
	"pushauth/backend/internal/platform/apperr"
	"pushauth/backend/internal/session"
	"pushauth/backend/internal/signature"
	"pushauth/backend/internal/telemetry"
)

const instrumentationName = "pushauth/backend/internal/challenge"

// DefaultTTL is how long a challenge stays answerable when Options.TTL is unset.
const DefaultTTL = 5 * time.Minute

const pushTitle = "Authentication Request"

// Outcomes recorded on the challenges.resolved counter.
const (
	OutcomeApproved = "approved"
	OutcomeDenied   = "denied"
	OutcomeExpired  = "expired"
)

// DeviceDirectory is the part of the device registry the manager needs.
type DeviceDirectory interface {
	Get(ctx context.Context, deviceID string) (*devicedomain.Device, error)
	Touch(ctx context.Context, deviceID string) error
}

// CredentialIssuer mints the credential returned by a successful Verify.
type CredentialIssuer interface {
	Mint(userID, deviceID, challengeID string) (*session.Credential, error)
}

// Deps are the collaborators of a Manager. Telemetry, Tracer and Meter are optional.
type Deps struct {
	Challenges challengerepo.Repository
	Devices    DeviceDirectory
	Dispatcher notify.Dispatcher
	Verifier   signature.Verifier
	Issuer     CredentialIssuer
	Telemetry  telemetry.EventEmitter
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// Options tune a Manager. Zero values select the defaults.
type Options struct {
	// TTL is the challenge lifetime; default DefaultTTL.
	TTL time.Duration
	// Now is the clock; default time.Now.
	Now func() time.Time
	// Nonce generates challenge nonces; default NewNonce.
	Nonce func() []byte
	// NewID generates challenge ids; default random UUIDs.
	NewID func() string
}

// Manager owns the challenge state machine. It holds no lock across store or dispatch calls; the
// store's conditional transition is what makes resolution exactly-once.
type Manager struct {
	challenges challengerepo.Repository
	devices    DeviceDirectory
	dispatcher notify.Dispatcher
	verifier   signature.Verifier
	issuer     CredentialIssuer
	events     telemetry.EventEmitter
	tracer     trace.Tracer

	created          metric.Int64Counter
	resolved         metric.Int64Counter
	dispatchFailures metric.Int64Counter

	ttl   time.Duration
	now   func() time.Time
	nonce func() []byte
	newID func() string
}

// NewManager returns a Manager. Challenges, Devices, Dispatcher, Verifier and Issuer are required.
func NewManager(deps Deps, opts Options) *Manager {
	m := &Manager{
		challenges: deps.Challenges,
		devices:    deps.Devices,
		dispatcher: deps.Dispatcher,
		verifier:   deps.Verifier,
		issuer:     deps.Issuer,
		events:     deps.Telemetry,
		tracer:     deps.Tracer,
		ttl:        opts.TTL,
		now:        opts.Now,
		nonce:      opts.Nonce,
		newID:      opts.NewID,
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(instrumentationName)
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.nonce == nil {
		m.nonce = NewNonce
	}
	if m.newID == nil {
		m.newID = func() string { return uuid.New().String() }
	}
	// Instrument creation only fails for invalid names; the returned no-op counters are still usable.
	m.created, _ = meter.Int64Counter("challenges.created",
		metric.WithDescription("Challenges created"))
	m.resolved, _ = meter.Int64Counter("challenges.resolved",
		metric.WithDescription("Challenges moved to a terminal state, by outcome"))
	m.dispatchFailures, _ = meter.Int64Counter("challenges.dispatch_failures",
		metric.WithDescription("Push notifications that could not be delivered"))
	return m
}

// TTL returns the challenge lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create issues a pending challenge for deviceID, which must belong to userID and have a push
// address, and pushes it to the device. If the push fails the challenge is still returned, together
// with an error wrapping apperr.ErrDispatchFailure; it stays pending and can be polled.
func (m *Manager) Create(ctx context.Context, userID, deviceID, action string) (*domain.Challenge, error) {
	ctx, span := m.tracer.Start(ctx, "challenge.Create", trace.WithAttributes(
		attribute.String("device.id", deviceID),
	))
	defer span.End()

	d, err := m.devices.Get(ctx, deviceID)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !d.OwnedBy(userID) {
		return nil, spanError(span, apperr.ErrDeviceNotFound)
	}
	if !d.HasPushAddress() {
		return nil, spanError(span, apperr.ErrPushNotConfigured)
	}
	if action == "" {
		action = domain.DefaultAction
	}

	now := m.now().UTC()
	c := &domain.Challenge{
		ID:        m.newID(),
		UserID:    userID,
		DeviceID:  d.ID,
		Nonce:     m.nonce(),
		Action:    action,
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.challenges.Create(ctx, c); err != nil {
		if errors.Is(err, challengerepo.ErrDuplicate) {
			apperr.Invariant("challenge %s collides with a stored id or nonce", c.ID)
		}
		return nil, spanError(span, apperr.Wrap(apperr.ErrStoreUnavailable, err))
	}
	span.SetAttributes(attribute.String("challenge.id", c.ID), attribute.String("challenge.action", action))
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	m.emit(ctx, telemetry.EventChallengeCreated, c, map[string]any{"action": action, "expiresAt": c.ExpiresAt})

	if err := m.dispatcher.Send(ctx, d.PushAddress, pushPayload(c)); err != nil {
		log.Printf("challenge: dispatch of %s to device %s failed: %v", c.ID, d.ID, err)
		m.dispatchFailures.Add(ctx, 1)
		m.emit(ctx, telemetry.EventChallengeDispatchFailed, c, map[string]any{"error": err.Error()})
		return c, spanError(span, apperr.Wrap(apperr.ErrDispatchFailure, err))
	}
	return c, nil
}

// Verify checks signature over the challenge nonce against the device's registered key and resolves
// the challenge. claimedPublicKey, when non-empty, must equal the registered key. On approval it
// returns a freshly minted credential; exactly one concurrent Verify can succeed per challenge.
func (m *Manager) Verify(ctx context.Context, challengeID string, sig, claimedPublicKey []byte) (*session.Credential, error) {
	ctx, span := m.tracer.Start(ctx, "challenge.Verify", trace.WithAttributes(
		attribute.String("challenge.id", challengeID),
	))
	defer span.End()

	c, err := m.load(ctx, challengeID)
	if err != nil {
		return nil, spanError(span, err)
	}
	now := m.now().UTC()
	if c.ExpiredAt(now) {
		if c.Status == domain.StatusPending {
			if _, err := m.expire(ctx, c, now); err != nil {
				return nil, spanError(span, err)
			}
		}
		return nil, spanError(span, apperr.ErrChallengeExpired)
	}
	if c.Status != domain.StatusPending {
		return nil, spanError(span, apperr.ErrChallengeAlreadyResolved)
	}

	d, err := m.devices.Get(ctx, c.DeviceID)
	if err != nil {
		return nil, spanError(span, err)
	}
	key := d.PublicKey
	if len(claimedPublicKey) > 0 && subtle.ConstantTimeCompare(claimedPublicKey, key.Key) != 1 {
		m.emit(ctx, telemetry.EventChallengeKeyMismatch, c, nil)
		return nil, spanError(span, apperr.ErrKeyMismatch)
	}
	span.SetAttributes(attribute.String("signature.algorithm", string(key.Algorithm)))

	valid := m.verifier.Verify(c.Nonce, sig, key.Key, key.Algorithm)
	to, outcome, event := domain.StatusDenied, OutcomeDenied, telemetry.EventChallengeDenied
	if valid {
		to, outcome, event = domain.StatusApproved, OutcomeApproved, telemetry.EventChallengeApproved
	}
	applied, err := m.challenges.Transition(ctx, c.ID, domain.StatusPending, to, now)
	if err != nil {
		return nil, spanError(span, apperr.Wrap(apperr.ErrStoreUnavailable, err))
	}
	if !applied {
		return nil, spanError(span, apperr.ErrChallengeAlreadyResolved)
	}
	m.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.emit(ctx, event, c, map[string]any{"algorithm": key.Algorithm})
	if err := m.devices.Touch(ctx, d.ID); err != nil {
		log.Printf("challenge: touch device %s: %v", d.ID, err)
	}
	if !valid {
		return nil, spanError(span, apperr.ErrSignatureInvalid)
	}

	cred, err := m.issuer.Mint(c.UserID, c.DeviceID, c.ID)
	if err != nil {
		return nil, spanError(span, apperr.Wrap(apperr.ErrIssuerUnavailable, err))
	}
	return cred, nil
}

// Get returns the challenge for id as stored.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Challenge, error) {
	return m.load(ctx, id)
}

// ListPending returns the device's challenges that are still pending and unexpired, oldest first.
// Devices that missed a push poll this.
func (m *Manager) ListPending(ctx context.Context, deviceID string) ([]*domain.Challenge, error) {
	list, err := m.challenges.ListPendingByDevice(ctx, deviceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	now := m.now().UTC()
	out := list[:0]
	for _, c := range list {
		if !c.ExpiredAt(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// SweepExpired moves up to limit pending challenges past their expiry to expired and returns how many
// it transitioned. Challenges resolved concurrently are skipped.
func (m *Manager) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := m.now().UTC()
	list, err := m.challenges.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	n := 0
	for _, c := range list {
		applied, err := m.expire(ctx, c, now)
		if err != nil {
			return n, err
		}
		if applied {
			n++
		}
	}
	return n, nil
}

func (m *Manager) expire(ctx context.Context, c *domain.Challenge, now time.Time) (bool, error) {
	applied, err := m.challenges.Transition(ctx, c.ID, domain.StatusPending, domain.StatusExpired, now)
	if err != nil {
		return false, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	if applied {
		m.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", OutcomeExpired)))
		m.emit(ctx, telemetry.EventChallengeExpired, c, nil)
	}
	return applied, nil
}

func (m *Manager) load(ctx context.Context, id string) (*domain.Challenge, error) {
	if id == "" {
		return nil, apperr.ErrChallengeNotFound
	}
	c, err := m.challenges.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	if c == nil {
		return nil, apperr.ErrChallengeNotFound
	}
	return c, nil
}

func (m *Manager) emit(ctx context.Context, eventType string, c *domain.Challenge, metadata any) {
	if m.events == nil {
		return
	}
	ev := telemetry.NewEvent(eventType, "challenge_manager", metadata)
	ev.UserID = c.UserID
	ev.DeviceID = c.DeviceID
	ev.ChallengeID = c.ID
	telemetry.EmitAsync(m.events, ctx, ev)
}

func pushPayload(c *domain.Challenge) notify.Payload {
	return notify.Payload{
		Title: pushTitle,
		Body:  "Approve login attempt for " + c.Action,
		Data: map[string]string{
			"challengeId": c.ID,
			"challenge":   c.NonceHex(),
			"action":      c.Action,
			"timestamp":   strconv.FormatInt(c.CreatedAt.UnixMilli(), 10),
		},
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperr.CodeOf(err))
	return err
}
