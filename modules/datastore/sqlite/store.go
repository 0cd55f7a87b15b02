package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// SetConfig applies a config delta for ref, creating the entity if it does
// not exist, and emits the corresponding create/modify event to watchers.
// This is the operator-facing write path (northbound agents call it); the
// reconciler only ever reads config.
func (m *Module) SetConfig(ctx context.Context, ref transponder.Ref, delta transponder.ConfigDelta) error {
	if err := m.open(); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	err = tx.QueryRowContext(ctx,
		"SELECT count(*) FROM config_leaves WHERE module=? AND kind=? AND name=?",
		ref.Module, string(ref.Kind), ref.Name).Scan(&existing)
	if err != nil {
		return fmt.Errorf("sqlite: probing config: %w", err)
	}

	for leaf, value := range delta.Set {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO config_leaves (module, kind, name, leaf, value) VALUES (?,?,?,?,?)
			 ON CONFLICT (module, kind, name, leaf) DO UPDATE SET value=excluded.value,
			 updated_at=strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
			ref.Module, string(ref.Kind), ref.Name, leaf, value)
		if err != nil {
			return fmt.Errorf("sqlite: writing config leaf %s: %w", leaf, err)
		}
	}
	for _, leaf := range delta.Unset {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM config_leaves WHERE module=? AND kind=? AND name=? AND leaf=?",
			ref.Module, string(ref.Kind), ref.Name, leaf)
		if err != nil {
			return fmt.Errorf("sqlite: removing config leaf %s: %w", leaf, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}

	op := datastore.OpModify
	if existing == 0 {
		op = datastore.OpCreate
	}
	m.broadcast(datastore.ChangeEvent{Ref: ref, Op: op, Delta: delta})
	return nil
}

// DeleteConfig removes the entity's config subtree and emits a delete event.
func (m *Module) DeleteConfig(ctx context.Context, ref transponder.Ref) error {
	if err := m.open(); err != nil {
		return err
	}

	_, err := m.db.ExecContext(ctx,
		"DELETE FROM config_leaves WHERE module=? AND kind=? AND name=?",
		ref.Module, string(ref.Kind), ref.Name)
	if err != nil {
		return fmt.Errorf("sqlite: deleting config: %w", err)
	}

	m.broadcast(datastore.ChangeEvent{Ref: ref, Op: datastore.OpDelete})
	return nil
}

// Config implements datastore.Store.
func (m *Module) Config(ctx context.Context) ([]datastore.ConfigEntry, error) {
	if err := m.open(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx,
		"SELECT module, kind, name, leaf, value FROM config_leaves ORDER BY module, kind, name, leaf")
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading config: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byRef := make(map[transponder.Ref]map[string]string)
	var order []transponder.Ref
	for rows.Next() {
		var module, kind, name, leaf, value string
		if err := rows.Scan(&module, &kind, &name, &leaf, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scanning config row: %w", err)
		}
		ref := transponder.Ref{Module: module, Kind: transponder.EntityKind(kind), Name: name}
		if _, ok := byRef[ref]; !ok {
			byRef[ref] = make(map[string]string)
			order = append(order, ref)
		}
		byRef[ref][leaf] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating config rows: %w", err)
	}

	entries := make([]datastore.ConfigEntry, 0, len(order))
	for _, ref := range order {
		entries = append(entries, datastore.ConfigEntry{Ref: ref, Config: byRef[ref]})
	}
	return entries, nil
}

// Watch implements datastore.Store. Each watcher gets its own buffered
// channel; events are delivered in write order.
func (m *Module) Watch(ctx context.Context) (<-chan datastore.ChangeEvent, error) {
	if err := m.open(); err != nil {
		return nil, err
	}
	return m.fanout.Watch(ctx)
}

// CommitState implements datastore.Store. The entity's state subtree is
// replaced whole in one transaction; readers never observe a partial state.
func (m *Module) CommitState(ctx context.Context, ref transponder.Ref, leaves map[string]string) error {
	if err := m.open(); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %s", datastore.ErrCommitFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM state_leaves WHERE module=? AND kind=? AND name=?",
		ref.Module, string(ref.Kind), ref.Name)
	if err != nil {
		return fmt.Errorf("%w: clearing state: %s", datastore.ErrCommitFailed, err)
	}

	for leaf, value := range leaves {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO state_leaves (module, kind, name, leaf, value) VALUES (?,?,?,?,?)",
			ref.Module, string(ref.Kind), ref.Name, leaf, value)
		if err != nil {
			return fmt.Errorf("%w: writing leaf %s: %s", datastore.ErrCommitFailed, leaf, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %s", datastore.ErrCommitFailed, err)
	}
	return nil
}

// DeleteState implements datastore.Store.
func (m *Module) DeleteState(ctx context.Context, ref transponder.Ref) error {
	if err := m.open(); err != nil {
		return err
	}

	_, err := m.db.ExecContext(ctx,
		"DELETE FROM state_leaves WHERE module=? AND kind=? AND name=?",
		ref.Module, string(ref.Kind), ref.Name)
	if err != nil {
		return fmt.Errorf("sqlite: deleting state: %w", err)
	}
	return nil
}

// State returns the published state leaves for ref, or false when the
// entity has no published state.
func (m *Module) State(ctx context.Context, ref transponder.Ref) (map[string]string, bool, error) {
	if err := m.open(); err != nil {
		return nil, false, err
	}

	rows, err := m.db.QueryContext(ctx,
		"SELECT leaf, value FROM state_leaves WHERE module=? AND kind=? AND name=?",
		ref.Module, string(ref.Kind), ref.Name)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: reading state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	leaves := make(map[string]string)
	for rows.Next() {
		var leaf, value string
		if err := rows.Scan(&leaf, &value); err != nil {
			return nil, false, fmt.Errorf("sqlite: scanning state row: %w", err)
		}
		leaves[leaf] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("sqlite: iterating state rows: %w", err)
	}
	if len(leaves) == 0 {
		return nil, false, nil
	}
	return leaves, true, nil
}

// RejectConfig implements datastore.Store.
func (m *Module) RejectConfig(ctx context.Context, ref transponder.Ref, delta transponder.ConfigDelta, cause error) error {
	if err := m.open(); err != nil {
		return err
	}

	raw, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("sqlite: encoding rejected delta: %w", err)
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO rejections (module, kind, name, delta, cause) VALUES (?,?,?,?,?)",
		ref.Module, string(ref.Kind), ref.Name, string(raw), cause.Error())
	if err != nil {
		return fmt.Errorf("sqlite: recording rejection: %w", err)
	}
	return nil
}

// Publish implements datastore.Store. Old rows beyond NotificationLimit
// are pruned on insert.
func (m *Module) Publish(ctx context.Context, n transponder.Notification) error {
	if err := m.open(); err != nil {
		return err
	}

	keys, err := json.Marshal(n.Keys)
	if err != nil {
		return fmt.Errorf("sqlite: encoding notification keys: %w", err)
	}
	state, err := json.Marshal(n.State)
	if err != nil {
		return fmt.Errorf("sqlite: encoding notification state: %w", err)
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO notifications (id, event, module, kind, name, keys, state) VALUES (?,?,?,?,?,?,?)",
		n.ID, n.Event, n.Ref.Module, string(n.Ref.Kind), n.Ref.Name, string(keys), string(state))
	if err != nil {
		return fmt.Errorf("sqlite: storing notification: %w", err)
	}

	if limit := m.config.NotificationLimit; limit > 0 {
		_, err = m.db.ExecContext(ctx,
			`DELETE FROM notifications WHERE id NOT IN
			 (SELECT id FROM notifications ORDER BY created_at DESC, id DESC LIMIT ?)`, limit)
		if err != nil {
			return fmt.Errorf("sqlite: pruning notifications: %w", err)
		}
	}
	return nil
}

func (m *Module) broadcast(evt datastore.ChangeEvent) {
	m.fanout.Broadcast(evt)
}

func (m *Module) open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.db == nil {
		return datastore.ErrClosed
	}
	return nil
}
