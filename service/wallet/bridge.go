package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/soltrade/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Bridge message types. Requests flow server to browser, results and
// notifications flow browser to server.
const (
	msgHello      = "hello"
	msgConnect    = "connect"
	msgDisconnect = "disconnect"
	msgSign       = "sign"
	msgResult     = "result"

	// rejectedError is what the browser reports when the user declines a prompt.
	rejectedError = "rejected"
)

// BridgeMessage is the JSON frame exchanged with the browser page that holds
// the real wallet extension.
type BridgeMessage struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	PublicKey   string `json:"public_key,omitempty"`
	Transaction string `json:"transaction,omitempty"` // base64 wire format
	Error       string `json:"error,omitempty"`
}

type pendingRequest struct {
	conn *websocket.Conn
	ch   chan BridgeMessage
}

// Bridge is a Provider that forwards wallet operations over a websocket to a
// browser page running the user's wallet extension.
type Bridge struct {
	timeout time.Duration
	logger  *slog.Logger
	events  chan Event

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]pendingRequest
	publicKey solanago.PublicKey
	trusted   bool
}

// NewBridge creates a bridge. timeout bounds each round trip to the browser,
// which includes the time the user spends on the wallet prompt.
func NewBridge(timeout time.Duration, logger *slog.Logger) *Bridge {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Bridge{
		timeout: timeout,
		logger:  logger,
		events:  make(chan Event, 16),
		pending: make(map[string]pendingRequest),
	}
}

func (b *Bridge) Name() string { return "bridge" }

// Attached reports whether a browser page is currently connected.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

func (b *Bridge) PublicKey() (solanago.PublicKey, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publicKey, b.trusted && b.conn != nil
}

// Attach serves conn until it closes. A newer page replaces an older one.
func (b *Bridge) Attach(ctx context.Context, conn *websocket.Conn) error {
	b.mu.Lock()
	previous := b.conn
	b.conn = conn
	b.mu.Unlock()

	if previous != nil {
		b.logger.InfoContext(ctx, "replacing wallet bridge page")
		previous.Close()
	}
	b.logger.InfoContext(ctx, "wallet bridge page attached")

	defer b.detach(ctx, conn)

	for {
		var msg BridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		b.handle(ctx, msg)
	}
}

func (b *Bridge) Connect(ctx context.Context) (solanago.PublicKey, error) {
	resp, err := b.request(ctx, BridgeMessage{Type: msgConnect})
	if err != nil {
		return solanago.PublicKey{}, err
	}
	if resp.Error != "" {
		return solanago.PublicKey{}, fmt.Errorf("wallet refused connection: %s", resp.Error)
	}

	key, err := solanago.PublicKeyFromBase58(resp.PublicKey)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("wallet returned invalid public key %q: %w", resp.PublicKey, err)
	}

	b.mu.Lock()
	b.publicKey = key
	b.trusted = true
	b.mu.Unlock()
	return key, nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	if b.Attached() {
		resp, err := b.request(ctx, BridgeMessage{Type: msgDisconnect})
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("wallet disconnect failed: %s", resp.Error)
		}
	}

	b.mu.Lock()
	b.publicKey = solanago.PublicKey{}
	b.trusted = false
	b.mu.Unlock()
	return nil
}

func (b *Bridge) SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	payload, err := solana.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}

	resp, err := b.request(ctx, BridgeMessage{Type: msgSign, Transaction: payload})
	if err != nil {
		return nil, err
	}
	switch resp.Error {
	case "":
	case rejectedError:
		return nil, ErrSigningRejected
	default:
		return nil, errors.New(resp.Error)
	}

	signed, err := solana.DecodeTransaction(resp.Transaction)
	if err != nil {
		return nil, fmt.Errorf("wallet returned an undecodable transaction: %w", err)
	}
	return signed, nil
}

func (b *Bridge) Events() <-chan Event {
	return b.events
}

// request sends msg to the attached page and waits for its result.
func (b *Bridge) request(ctx context.Context, msg BridgeMessage) (BridgeMessage, error) {
	msg.ID = uuid.NewString()
	ch := make(chan BridgeMessage, 1)

	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return BridgeMessage{}, ErrWalletUnavailable
	}
	b.pending[msg.ID] = pendingRequest{conn: conn, ch: ch}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, msg.ID)
		b.mu.Unlock()
	}()

	b.writeMu.Lock()
	err := conn.WriteJSON(msg)
	b.writeMu.Unlock()
	if err != nil {
		return BridgeMessage{}, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case resp, ok := <-ch:
		if !ok {
			return BridgeMessage{}, fmt.Errorf("%w: bridge page closed", ErrWalletUnavailable)
		}
		return resp, nil
	case <-ctx.Done():
		return BridgeMessage{}, fmt.Errorf("wallet did not answer %s request: %w", msg.Type, ctx.Err())
	}
}

func (b *Bridge) handle(ctx context.Context, msg BridgeMessage) {
	switch msg.Type {
	case msgResult:
		b.mu.Lock()
		p, ok := b.pending[msg.ID]
		if ok {
			delete(b.pending, msg.ID)
			p.ch <- msg
		}
		b.mu.Unlock()
		if !ok {
			b.logger.WarnContext(ctx, "bridge result for unknown request", "id", msg.ID)
		}

	case msgHello, msgConnect:
		if msg.PublicKey == "" {
			return
		}
		key, err := solanago.PublicKeyFromBase58(msg.PublicKey)
		if err != nil {
			b.logger.WarnContext(ctx, "bridge sent invalid public key", "public_key", msg.PublicKey, "error", err)
			return
		}
		b.mu.Lock()
		b.publicKey = key
		b.trusted = true
		b.mu.Unlock()
		b.emit(ctx, Event{Kind: EventConnect, PublicKey: key})

	case msgDisconnect:
		b.mu.Lock()
		b.publicKey = solanago.PublicKey{}
		b.trusted = false
		b.mu.Unlock()
		b.emit(ctx, Event{Kind: EventDisconnect})

	default:
		b.logger.WarnContext(ctx, "unknown bridge message type", "type", msg.Type)
	}
}

func (b *Bridge) detach(ctx context.Context, conn *websocket.Conn) {
	b.mu.Lock()
	for id, p := range b.pending {
		if p.conn == conn {
			delete(b.pending, id)
			close(p.ch)
		}
	}
	current := b.conn == conn
	if current {
		b.conn = nil
		b.trusted = false
		b.publicKey = solanago.PublicKey{}
	}
	b.mu.Unlock()

	conn.Close()
	if current {
		b.logger.InfoContext(ctx, "wallet bridge page detached")
		b.emit(ctx, Event{Kind: EventDisconnect})
	}
}

func (b *Bridge) emit(ctx context.Context, ev Event) {
	select {
	case b.events <- ev:
	default:
		b.logger.WarnContext(ctx, "dropping wallet event, listener is not keeping up", "kind", string(ev.Kind))
	}
}
