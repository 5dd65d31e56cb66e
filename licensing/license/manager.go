package license

import (
	"context"
	"fmt"
	"sync"

	"github.com/LerianStudio/lib-licensing/licensing/internal/nilcheck"
	"github.com/LerianStudio/lib-licensing/licensing/log"
)

// Handler is invoked with a human-readable reason when no valid license was found.
type Handler func(ctx context.Context, reason string)

// Manager runs the startup license check for one application.
type Manager struct {
	verifier   *Verifier
	store      KeyStore
	packageID  string
	debuggable bool
	logger     log.Logger
	handler    Handler
	mu         sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(m *Manager)

// WithManagerLogger sets the logger the default handler writes to. Nil loggers are ignored.
func WithManagerLogger(logger log.Logger) ManagerOption {
	return func(m *Manager) {
		if !nilcheck.Interface(logger) {
			m.logger = logger
		}
	}
}

// WithDebuggable lowers the missing-license notice from error to info, as for
// debug builds where a license is not expected.
func WithDebuggable(debuggable bool) ManagerOption {
	return func(m *Manager) {
		m.debuggable = debuggable
	}
}

// WithHandler replaces the default handler. Nil handlers are ignored.
func WithHandler(handler Handler) ManagerOption {
	return func(m *Manager) {
		if handler != nil {
			m.handler = handler
		}
	}
}

// NewManager creates a manager checking the keys in store for packageID.
func NewManager(verifier *Verifier, store KeyStore, packageID string, opts ...ManagerOption) *Manager {
	m := &Manager{
		verifier:  verifier,
		store:     store,
		packageID: packageID,
		logger:    log.NewNop(),
	}

	m.handler = m.DefaultHandler

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// PurchaseMessage is the notice logged when packageID has no valid license.
func PurchaseMessage(packageID string) string {
	return fmt.Sprintf(
		"a valid license key is required to use this plugin in release mode without watermarks "+
			"(application id: %q); add your license key to the plugin configuration", packageID)
}

// DefaultHandler logs reason at info for debuggable builds and at error otherwise.
// It never stops the host.
func (m *Manager) DefaultHandler(ctx context.Context, reason string) {
	if m == nil || nilcheck.Interface(m.logger) {
		return
	}

	level := log.LevelError
	if m.debuggable {
		level = log.LevelInfo
	}

	m.logger.Log(ctx, level, reason, log.String("package", m.packageID))
}

// SetHandler updates the handler. It should be called during startup, before Validate.
func (m *Manager) SetHandler(handler Handler) {
	if m == nil || handler == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handler = handler
}

// Validate loads the stored keys and checks them. When none is valid the
// handler receives the purchase notice. The returned error reports why the
// check could not run (store failure, misconfiguration); it is nil for a plain
// "no valid license".
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	if m == nil || m.verifier == nil || m.store == nil {
		return false, ErrManagerNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	keys, err := m.store.LicenseKeys(ctx)
	if err != nil {
		log.SafeError(m.logger, ctx, "license keys could not be loaded", err, !m.debuggable)
		m.invokeHandler(ctx)

		return false, fmt.Errorf("load license keys: %w", err)
	}

	ok, err := m.verifier.Check(ctx, m.packageID, keys)
	if err != nil {
		m.invokeHandler(ctx)

		return false, err
	}

	if !ok {
		m.invokeHandler(ctx)

		return false, nil
	}

	m.logger.Log(ctx, log.LevelDebug, "license key validated", log.String("package", m.packageID))

	return true, nil
}

// ValidateWithError is Validate reporting an invalid license as
// ErrLicenseValidationFailed. It does not invoke the handler.
func (m *Manager) ValidateWithError(ctx context.Context) error {
	if m == nil || m.verifier == nil || m.store == nil {
		return ErrManagerNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	keys, err := m.store.LicenseKeys(ctx)
	if err != nil {
		return fmt.Errorf("load license keys: %w", err)
	}

	ok, err := m.verifier.Check(ctx, m.packageID, keys)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: no valid key for %q", ErrLicenseValidationFailed, m.packageID)
	}

	return nil
}

func (m *Manager) invokeHandler(ctx context.Context) {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	if handler == nil {
		return
	}

	handler(ctx, PurchaseMessage(m.packageID))
}
