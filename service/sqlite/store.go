// Package sqlite provides a durable core.Service backed by SQLite through the
// pure-Go modernc.org/sqlite driver. The schema is migrated on Open and all
// timestamps are stored as RFC 3339 text with nanosecond precision.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/service"
)

// Options configures a Store.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Dispatcher handles SendToAgents. May be attached later via AttachDispatcher.
	Dispatcher service.Dispatcher

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time

	// NewID generates entity ids. Defaults to core.NewID.
	NewID func() string
}

// Store implements core.Service on a SQLite database.
type Store struct {
	db   *sql.DB
	opts Options

	mu         sync.RWMutex
	dispatcher service.Dispatcher
}

var _ core.Service = (*Store)(nil)

// Open opens (or creates) the database at path and migrates the schema.
// ":memory:" opens a private in-memory database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  core.NewID,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, opts: opts, dispatcher: opts.Dispatcher}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// AttachDispatcher sets the pipeline used by SendToAgents.
func (s *Store) AttachDispatcher(d service.Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		chat_mode TEXT NOT NULL DEFAULT 'manual',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS conversation_agents (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 0,
		display_order INTEGER NOT NULL,
		added_at TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		color TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_agents_conversation ON conversation_agents(conversation_id, is_active);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]core.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, chat_mode, created_at, updated_at FROM conversations`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []core.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListMessages returns the messages of a conversation in creation order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, conversation_id, role, content, agent_id, created_at
	FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []core.Message{}
	for rows.Next() {
		var (
			m         core.Message
			role      string
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.AgentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = core.Role(role)
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// ListConversationAgents returns the active participations of a conversation in turn order.
func (s *Store) ListConversationAgents(ctx context.Context, conversationID string) ([]core.ConversationAgent, error) {
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, conversation_id, agent_id, enabled, display_order, added_at, is_active, color
	FROM conversation_agents WHERE conversation_id = ? AND is_active = 1`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation agents: %w", err)
	}
	defer rows.Close()

	out := []core.ConversationAgent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversation agents: %w", err)
	}
	return chatmode.SortByTurnOrder(out), nil
}

// CreateConversation creates a manual-mode conversation.
func (s *Store) CreateConversation(ctx context.Context, title string) (core.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Conversation{}, core.NewValidationError("title", "must not be empty")
	}

	now := s.opts.Now()
	c := core.Conversation{
		ID:        s.opts.NewID(),
		Title:     title,
		ChatMode:  core.ChatModeManual,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO conversations (id, title, chat_mode, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, string(c.ChatMode), formatTime(now), formatTime(now))
	if err != nil {
		return core.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// CreateMessage appends a message to a conversation. An empty role defaults to user.
func (s *Store) CreateMessage(ctx context.Context, msg core.NewMessage) (core.Message, error) {
	if err := service.ValidateNewMessage(&msg); err != nil {
		return core.Message{}, err
	}

	now := s.opts.Now()
	m := core.Message{
		ID:             s.opts.NewID(),
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		AgentID:        msg.AgentID,
		CreatedAt:      now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(now), m.ConversationID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return conversationNotFound(m.ConversationID)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, agent_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, string(m.Role), m.Content, m.AgentID, formatTime(now))
		return err
	})
	if err != nil {
		return core.Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// SendToAgents hands a persisted message to the attached dispatcher.
func (s *Store) SendToAgents(ctx context.Context, conversationID, messageID string) error {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE id = ? AND conversation_id = ?`, messageID, conversationID).Scan(&n)
	if err != nil {
		return fmt.Errorf("send to agents: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %q in conversation %q: %w", messageID, conversationID, core.ErrNotFound)
	}

	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil {
		s.opts.Logger.Warn("no dispatcher attached; message not sent", "conversation_id", conversationID, "message_id", messageID)
		return nil
	}
	return d.Dispatch(ctx, conversationID, messageID)
}

// AddAgent creates a disabled participation at the end of the turn order.
func (s *Store) AddAgent(ctx context.Context, conversationID, agentID string) (core.ConversationAgent, error) {
	if strings.TrimSpace(agentID) == "" {
		return core.ConversationAgent{}, core.NewValidationError("agent_id", "must not be empty")
	}

	var a core.ConversationAgent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE id = ?`, conversationID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return conversationNotFound(conversationID)
		}

		var total, dup int
		if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN agent_id = ? AND is_active = 1 THEN 1 ELSE 0 END), 0)
		FROM conversation_agents WHERE conversation_id = ?`, agentID, conversationID).Scan(&total, &dup); err != nil {
			return err
		}
		if dup > 0 {
			return core.NewValidationError("agent_id", "already in conversation")
		}

		a = core.ConversationAgent{
			ID:             s.opts.NewID(),
			ConversationID: conversationID,
			AgentID:        agentID,
			DisplayOrder:   total,
			AddedAt:        s.opts.Now(),
			IsActive:       true,
			Color:          service.ColorFor(total),
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_agents (id, conversation_id, agent_id, enabled, display_order, added_at, is_active, color)
		VALUES (?, ?, ?, 0, ?, ?, 1, ?)`,
			a.ID, a.ConversationID, a.AgentID, a.DisplayOrder, formatTime(a.AddedAt), a.Color)
		return err
	})
	if err != nil {
		return core.ConversationAgent{}, fmt.Errorf("add agent: %w", err)
	}
	return a, nil
}

// RemoveAgent soft-deletes the active participation of agentID.
func (s *Store) RemoveAgent(ctx context.Context, conversationID, agentID string) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE conversation_agents SET is_active = 0, enabled = 0
	WHERE conversation_id = ? AND agent_id = ? AND is_active = 1`, conversationID, agentID)
	if err != nil {
		return fmt.Errorf("remove agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %q in conversation %q: %w", agentID, conversationID, core.ErrNotFound)
	}
	return nil
}

// UpdateConversationAgent applies a partial update to an active participation.
func (s *Store) UpdateConversationAgent(ctx context.Context, id string, update core.AgentUpdate) (core.ConversationAgent, error) {
	var a core.ConversationAgent
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if update.Enabled != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE conversation_agents SET enabled = ? WHERE id = ? AND is_active = 1`, boolInt(*update.Enabled), id); err != nil {
				return err
			}
		}
		row := tx.QueryRowContext(ctx, `
		SELECT id, conversation_id, agent_id, enabled, display_order, added_at, is_active, color
		FROM conversation_agents WHERE id = ? AND is_active = 1`, id)
		var err error
		a, err = scanAgent(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("conversation agent %q: %w", id, core.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return core.ConversationAgent{}, fmt.Errorf("update conversation agent: %w", err)
	}
	return a, nil
}

// UpdateConversation applies a partial update to a conversation.
func (s *Store) UpdateConversation(ctx context.Context, id string, update core.ConversationUpdate) (core.Conversation, error) {
	if err := service.ValidateConversationUpdate(update); err != nil {
		return core.Conversation{}, err
	}

	var c core.Conversation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id, title, chat_mode, created_at, updated_at FROM conversations WHERE id = ?`, id)
		var err error
		c, err = scanConversation(row)
		if errors.Is(err, sql.ErrNoRows) {
			return conversationNotFound(id)
		}
		if err != nil {
			return err
		}
		if update.Title != nil {
			c.Title = strings.TrimSpace(*update.Title)
		}
		if update.ChatMode != nil {
			c.ChatMode = *update.ChatMode
		}
		c.UpdatedAt = s.opts.Now()
		_, err = tx.ExecContext(ctx, `UPDATE conversations SET title = ?, chat_mode = ?, updated_at = ? WHERE id = ?`,
			c.Title, string(c.ChatMode), formatTime(c.UpdatedAt), id)
		return err
	})
	if err != nil {
		return core.Conversation{}, fmt.Errorf("update conversation: %w", err)
	}
	return c, nil
}

func (s *Store) requireConversation(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("lookup conversation: %w", err)
	}
	if n == 0 {
		return conversationNotFound(id)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
