// Package matrix is the optional chat gateway: it syncs the configured rooms
// and hands text messages to the command layer.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/StackOverflowed512/AI-Secretary/common/retry"
)

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms the assistant listens in. Messages from any other room are
	// ignored.
	Rooms []string
	// DB persists the sync position. When nil an in-memory store is used
	// and room history is replayed on every restart.
	DB     *sql.DB
	Logger *slog.Logger
}

// MessageHandler processes incoming Matrix messages
type MessageHandler func(ctx context.Context, evt *event.Event)

// Client wraps the mautrix client.
type Client struct {
	client     *mautrix.Client
	config     *Config
	logger     *slog.Logger
	rooms      map[string]struct{}
	stopCh     chan struct{}
	msgHandler MessageHandler
}

// New creates a Matrix client. It does not contact the homeserver.
func New(config *Config) (*Client, error) {
	if config.Homeserver == "" || config.UserID == "" || config.AccessToken == "" {
		return nil, errors.New("matrix: homeserver, user id and access token are required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		logger: logger,
		rooms:  make(map[string]struct{}, len(config.Rooms)),
		stopCh: make(chan struct{}),
	}
	for _, r := range config.Rooms {
		c.rooms[r] = struct{}{}
	}

	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		logger.Info("matrix: using persistent sync store")
	} else {
		logger.Warn("matrix: no database configured, history will replay on restart")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing in the background.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.Rooms {
		err := retry.Do(ctx, retry.Startup, func(ctx context.Context) error {
			return c.joinRoom(ctx, id.RoomID(roomID))
		})
		if err != nil {
			return fmt.Errorf("matrix: join %s: %w", roomID, err)
		}
	}

	// Sync with exponential back-off so a transient homeserver error does
	// not leave the gateway deaf.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			err := c.client.Sync()
			if err == nil {
				return
			}
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.Error("matrix: sync stopped, reconnecting", "err", err, "backoff", backoff)
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
		}
	}()

	return nil
}

// Stop stops syncing. It is safe to call once.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendNotice posts a notice, which clients render less prominently than a
// normal message and bots conventionally ignore.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("matrix: send notice: %w", err)
	}
	return nil
}

// ReplyNotice posts message as a notice replying to eventID.
func (c *Client) ReplyNotice(ctx context.Context, roomID, eventID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(eventID)},
		},
	}
	if _, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("matrix: send reply: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator while an answer is prepared.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("matrix: set typing: %w", err)
	}
	return nil
}

// IsWatchedRoom reports whether roomID is one of the configured rooms.
func (c *Client) IsWatchedRoom(roomID string) bool {
	_, ok := c.rooms[roomID]
	return ok
}

// UserID returns the client's own MXID.
func (c *Client) UserID() string {
	return c.config.UserID
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if !Accept(evt, c.config.UserID, c.IsWatchedRoom) {
		return
	}
	if c.msgHandler != nil {
		c.msgHandler(ctx, evt)
	}
}

// Accept reports whether evt should reach the message handler: a plain text
// message, not sent by self, in a watched room.
func Accept(evt *event.Event, self string, watched func(roomID string) bool) bool {
	if evt == nil || evt.Sender == id.UserID(self) {
		return false
	}
	msg := evt.Content.AsMessage()
	if msg == nil || msg.MsgType != event.MsgText {
		return false
	}
	return watched(evt.RoomID.String())
}

func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when already joined.
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("matrix: join refused, assuming already a member", "room", roomID)
			return nil
		}
		if errors.Is(err, mautrix.MUnknownToken) || errors.Is(err, mautrix.MNotFound) {
			return retry.Permanent(err)
		}
		c.logger.Warn("matrix: join failed", "room", roomID, "err", err)
		return err
	}
	return nil
}
