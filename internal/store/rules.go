package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelf/internal/rules"
)

const ruleColumns = "id, name, enabled, conditions_json, exclusions_json, action, destination, sort_order, created_at"

// SaveRule validates and inserts a new rule, returning the stored copy.
func (s *Store) SaveRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error) {
	if rule == nil {
		return nil, errors.New("rule is nil")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	conditionsJSON, err := rules.EncodeConditions(rule.Conditions)
	if err != nil {
		return nil, err
	}
	exclusionsJSON, err := rules.EncodeConditions(rule.Exclusions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO rules (
            name, enabled, conditions_json, exclusions_json,
            action, destination, sort_order, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name,
		boolToInt(rule.Enabled),
		conditionsJSON,
		exclusionsJSON,
		string(rule.Action),
		nullableString(rule.Destination),
		rule.SortOrder,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRule(ctx, id)
}

// UpdateRule persists changes to an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule *rules.Rule) error {
	if rule == nil {
		return errors.New("rule is nil")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	conditionsJSON, err := rules.EncodeConditions(rule.Conditions)
	if err != nil {
		return err
	}
	exclusionsJSON, err := rules.EncodeConditions(rule.Exclusions)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE rules
         SET name = ?, enabled = ?, conditions_json = ?, exclusions_json = ?,
             action = ?, destination = ?, sort_order = ?, updated_at = ?
         WHERE id = ?`,
		rule.Name,
		boolToInt(rule.Enabled),
		conditionsJSON,
		exclusionsJSON,
		string(rule.Action),
		nullableString(rule.Destination),
		rule.SortOrder,
		formatTime(time.Now().UTC()),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d not found", rule.ID)
	}
	return nil
}

// GetRule fetches a rule by identifier. Missing rows return nil.
func (s *Store) GetRule(ctx context.Context, id int64) (*rules.Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRuleRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// ListRules returns every stored rule in evaluation order.
func (s *Store) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY sort_order, created_at, id`)
}

// EnabledRules returns the active ruleset in evaluation order. The scan
// pipeline snapshots this once per run so every file in a scan sees the same
// rules.
func (s *Store) EnabledRules(ctx context.Context) ([]rules.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE enabled = 1 ORDER BY sort_order, created_at, id`)
}

func (s *Store) queryRules(ctx context.Context, query string) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var ruleset []rules.Rule
	for rows.Next() {
		rule, err := scanRuleRow(rows)
		if err != nil {
			return nil, err
		}
		ruleset = append(ruleset, *rule)
	}
	return ruleset, rows.Err()
}

// SetRuleEnabled toggles a rule without touching its definition.
func (s *Store) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set rule enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d not found", id)
	}
	return nil
}

// DeleteRule removes a rule by identifier.
func (s *Store) DeleteRule(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanRuleRow(scanner interface{ Scan(dest ...any) error }) (*rules.Rule, error) {
	var (
		id             int64
		name           string
		enabled        int
		conditionsJSON string
		exclusionsJSON string
		action         string
		destination    sql.NullString
		sortOrder      int
		createdRaw     string
	)

	if err := scanner.Scan(
		&id,
		&name,
		&enabled,
		&conditionsJSON,
		&exclusionsJSON,
		&action,
		&destination,
		&sortOrder,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	conditions, err := rules.DecodeConditions(conditionsJSON)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", id, err)
	}
	exclusions, err := rules.DecodeConditions(exclusionsJSON)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", id, err)
	}

	rule := &rules.Rule{
		ID:          id,
		Name:        name,
		Enabled:     enabled != 0,
		Conditions:  conditions,
		Exclusions:  exclusions,
		Action:      rules.ActionType(action),
		Destination: destination.String,
		SortOrder:   sortOrder,
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		rule.CreatedAt = t
	}
	return rule, nil
}
