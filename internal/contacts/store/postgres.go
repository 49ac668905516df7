package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aegis/internal/contacts/models"
	id "aegis/pkg/domain"
	"aegis/pkg/platform/sentinel"
)

// PostgresStore persists trusted contacts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, contact *models.TrustedContact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	query := `
		INSERT INTO trusted_contacts (id, user_id, name, phone, email, relationship, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			relationship = EXCLUDED.relationship,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		contact.ID.String(),
		contact.UserID.String(),
		contact.Name,
		contact.Phone,
		nullString(contact.Email),
		contact.Relationship,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID, contactID id.ContactID) (*models.TrustedContact, error) {
	query := `
		SELECT id, user_id, name, phone, email, relationship, created_at, updated_at
		FROM trusted_contacts
		WHERE user_id = $1 AND id = $2
	`
	contact, err := scanContact(s.db.QueryRowContext(ctx, query, userID.String(), contactID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.TrustedContact, error) {
	query := `
		SELECT id, user_id, name, phone, email, relationship, created_at, updated_at
		FROM trusted_contacts
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.TrustedContact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, contactID id.ContactID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM trusted_contacts WHERE user_id = $1 AND id = $2`,
		userID.String(), contactID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trusted_contacts WHERE user_id = $1`,
		userID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.TrustedContact, error) {
	var (
		contact   models.TrustedContact
		rawID     string
		rawUserID string
		email     sql.NullString
	)
	if err := row.Scan(&rawID, &rawUserID, &contact.Name, &contact.Phone, &email, &contact.Relationship, &contact.CreatedAt, &contact.UpdatedAt); err != nil {
		return nil, err
	}
	contactID, err := id.ParseContactID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse contact id: %w", err)
	}
	contact.ID = contactID
	contact.UserID = id.UserID(rawUserID)
	contact.Email = email.String
	return &contact, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
