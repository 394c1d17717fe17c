package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/logging"
	"github.com/diewo77/go-pharmacy/internal/metrics"
	"github.com/diewo77/go-pharmacy/validation"
)

// Loader assembles the current content of a document.
type Loader interface {
	Load(ctx context.Context, ref Ref) (*document.Document, error)
}

// Renderer turns an assembled document into the artifact that is dispatched.
type Renderer interface {
	Render(doc *document.Document) ([]byte, error)
}

// Message is what the dispatch collaborator transmits.
type Message struct {
	Ref        Ref
	AdminID    uint
	SupplierID uint
	Number     string
	Recipient  string
	Subject    string
	Filename   string
	Artifact   []byte
}

// Dispatcher transmits a rendered document. It is irreversible.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// ArtifactStore keeps rendered artifacts so a failed dispatch can be retried
// without rendering again. Get returns ok=false when nothing is stored.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// StatusStore reads and persists document status through the backend.
type StatusStore interface {
	Status(ctx context.Context, ref Ref) (Status, error)
	SaveStatus(ctx context.Context, ref Ref, s Status) error
}

// Deps are the collaborators shared by every machine of a registry.
type Deps struct {
	Loader     Loader
	Renderer   Renderer
	Dispatcher Dispatcher
	Artifacts  ArtifactStore
	Store      StatusStore
}

// ArtifactKey is where the rendered artifact of ref is retained.
func ArtifactKey(ref Ref) string {
	return fmt.Sprintf("artifacts/%s/%d.pdf", ref.Kind, ref.ID)
}

// Machine is the state machine of one document. It is safe for concurrent use;
// at most one send is in flight at a time.
type Machine struct {
	ref  Ref
	deps *Deps
	reg  *Registry

	mu       sync.Mutex
	status   Status
	inFlight bool
}

func (m *Machine) Ref() Ref { return m.ref }

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// InFlight reports whether a send is pending.
func (m *Machine) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Editable reports whether line items and header may still change.
func (m *Machine) Editable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusNotInitiated && !m.inFlight
}

// Initiate moves not_initiated → initiated. No side effect besides the status.
func (m *Machine) Initiate(ctx context.Context) error {
	return m.move(ctx, StatusNotInitiated, StatusInitiated)
}

// Revert moves initiated → not_initiated and drops any retained artifact, so
// the next send renders the edited content.
func (m *Machine) Revert(ctx context.Context) error {
	if err := m.move(ctx, StatusInitiated, StatusNotInitiated); err != nil {
		return err
	}
	if m.deps.Artifacts != nil {
		if err := m.deps.Artifacts.Delete(ctx, ArtifactKey(m.ref)); err != nil {
			logging.LogKV("warn", "artifact delete failed", map[string]interface{}{"doc": m.ref.String(), "error": err.Error()})
		}
	}
	return nil
}

func (m *Machine) move(ctx context.Context, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return ErrDispatchInFlight
	}
	if m.status != from {
		return transitionErr(m.status, to)
	}
	if err := m.deps.Store.SaveStatus(ctx, m.ref, to); err != nil {
		return fmt.Errorf("save status %s: %w", to, err)
	}
	m.status = to
	return nil
}

// Preview assembles and renders the document without any side effect.
func (m *Machine) Preview(ctx context.Context) (*document.Document, []byte, error) {
	doc, err := m.deps.Loader.Load(ctx, m.ref)
	if err != nil {
		return nil, nil, err
	}
	out, err := m.deps.Renderer.Render(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", m.ref, err)
	}
	return doc, out, nil
}

// BeginSend runs the steps before dispatch: re-authentication, assembly and
// rendering, recipient resolution. The returned Pending holds the machine's
// single in-flight slot until it is dispatched or cancelled.
//
// fallbackRecipient is used only when the counterparty has no email on file
// and is never written back.
func (m *Machine) BeginSend(ctx context.Context, auth Authenticator, fallbackRecipient string) (*Pending, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		m.count(metrics.OutcomeRejected)
		return nil, ErrDispatchInFlight
	}
	if m.status != StatusInitiated {
		from := m.status
		m.mu.Unlock()
		return nil, transitionErr(from, StatusSent)
	}
	m.inFlight = true
	m.mu.Unlock()

	keep := false
	defer func() {
		if !keep {
			m.release()
		}
	}()

	tok, err := m.authenticate(ctx, auth)
	if err != nil {
		m.count(metrics.OutcomeAuthError)
		return nil, err
	}

	doc, artifact, err := m.artifact(ctx)
	if err != nil {
		return nil, err
	}

	recipient, err := resolveRecipient(doc, fallbackRecipient)
	if err != nil {
		return nil, err
	}

	keep = true
	return &Pending{m: m, token: tok, Doc: doc, Artifact: artifact, Recipient: recipient}, nil
}

// Send is BeginSend followed by Dispatch.
func (m *Machine) Send(ctx context.Context, auth Authenticator, fallbackRecipient string) (*Pending, error) {
	p, err := m.BeginSend(ctx, auth, fallbackRecipient)
	if err != nil {
		return nil, err
	}
	return p, p.Dispatch(ctx)
}

func (m *Machine) authenticate(ctx context.Context, auth Authenticator) (*AuthToken, error) {
	if auth == nil {
		return nil, apperr.Auth("credentials required", nil)
	}
	tok, err := auth.Authenticate(ctx, m.ref)
	if err != nil {
		if apperr.IsAuth(err) {
			return nil, err
		}
		return nil, apperr.Auth("re-authentication failed", err)
	}
	if err := tok.consume(m.ref); err != nil {
		return nil, err
	}
	return tok, nil
}

// artifact loads the document and returns the retained artifact, rendering
// and retaining it first when there is none.
func (m *Machine) artifact(ctx context.Context) (*document.Document, []byte, error) {
	doc, err := m.deps.Loader.Load(ctx, m.ref)
	if err != nil {
		return nil, nil, err
	}
	key := ArtifactKey(m.ref)
	if m.deps.Artifacts != nil {
		data, ok, err := m.deps.Artifacts.Get(ctx, key)
		if err != nil {
			logging.LogKV("warn", "artifact lookup failed", map[string]interface{}{"doc": m.ref.String(), "error": err.Error()})
		} else if ok {
			return doc, data, nil
		}
	}
	data, err := m.deps.Renderer.Render(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("render %s: %w", m.ref, err)
	}
	if m.deps.Artifacts != nil {
		if err := m.deps.Artifacts.Put(ctx, key, data); err != nil {
			return nil, nil, fmt.Errorf("retain artifact %s: %w", m.ref, err)
		}
	}
	return doc, data, nil
}

func resolveRecipient(doc *document.Document, fallback string) (string, error) {
	recipient := strings.TrimSpace(doc.Header.CounterpartyEmail)
	if recipient == "" {
		recipient = strings.TrimSpace(fallback)
	}
	if recipient == "" {
		return "", apperr.Validation("recipient", apperr.ReasonRequired)
	}
	v := validation.Violations{}
	validation.Email("recipient", recipient, v)
	if err := v.Err(); err != nil {
		return "", err
	}
	return recipient, nil
}

func (m *Machine) release() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *Machine) count(outcome string) {
	metrics.DispatchAttempts.WithLabelValues(string(m.ref.Kind), outcome).Inc()
}

// Pending is a send that passed authentication and rendering and awaits
// dispatch. It may be cancelled until Dispatch is called.
type Pending struct {
	m     *Machine
	token *AuthToken

	Doc       *document.Document
	Artifact  []byte
	Recipient string

	mu   sync.Mutex
	done bool
}

// Cancel abandons the send. The token stays consumed; nothing else happens.
func (p *Pending) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	p.m.release()
	p.m.count(metrics.OutcomeCancelled)
}

// Dispatch transmits the artifact. Once sent is persisted the status becomes
// sent and the artifact is released; on any failure the status stays
// initiated and the artifact stays retained. There is no automatic retry.
func (p *Pending) Dispatch(ctx context.Context) error {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return ErrCancelled
	}
	p.done = true
	p.mu.Unlock()

	m := p.m
	defer m.release()

	h := p.Doc.Header
	msg := Message{
		Ref:        m.ref,
		AdminID:    p.token.AdminID,
		SupplierID: h.CounterpartyID,
		Number:     h.Number,
		Recipient:  p.Recipient,
		Subject:    fmt.Sprintf("%s %s", h.Kind.Title(), h.Number),
		Filename:   fmt.Sprintf("%s-%s.pdf", strings.ReplaceAll(string(h.Kind), "_", "-"), h.Number),
		Artifact:   p.Artifact,
	}

	start := time.Now()
	err := m.deps.Dispatcher.Dispatch(ctx, msg)
	metrics.DispatchDuration.WithLabelValues(string(m.ref.Kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		m.count(metrics.OutcomeFailed)
		logging.LogKV("error", "dispatch failed", map[string]interface{}{
			"doc":       m.ref.String(),
			"admin_id":  msg.AdminID,
			"recipient": msg.Recipient,
			"error":     err.Error(),
		})
		if apperr.IsDispatch(err) {
			return err
		}
		return apperr.Dispatch(p.Recipient, err)
	}

	// The machine moves to sent only after sent is stored; a failed save
	// leaves it initiated with the artifact retained.
	if err := m.deps.Store.SaveStatus(ctx, m.ref, StatusSent); err != nil {
		m.count(metrics.OutcomeUnsaved)
		logging.LogKV("error", "dispatched but status not saved", map[string]interface{}{
			"doc":       m.ref.String(),
			"admin_id":  msg.AdminID,
			"recipient": msg.Recipient,
			"error":     err.Error(),
		})
		return fmt.Errorf("%s dispatched but status not saved: %w", m.ref, err)
	}

	m.mu.Lock()
	m.status = StatusSent
	m.mu.Unlock()
	m.count(metrics.OutcomeSent)
	logging.LogKV("info", "document dispatched", map[string]interface{}{
		"doc":         m.ref.String(),
		"admin_id":    msg.AdminID,
		"supplier_id": msg.SupplierID,
		"recipient":   msg.Recipient,
		"token":       p.token.ID,
	})

	if m.deps.Artifacts != nil {
		if err := m.deps.Artifacts.Delete(ctx, ArtifactKey(m.ref)); err != nil {
			logging.LogKV("warn", "artifact delete failed", map[string]interface{}{"doc": m.ref.String(), "error": err.Error()})
		}
	}
	if m.reg != nil {
		m.reg.retire(m)
	}
	return nil
}
