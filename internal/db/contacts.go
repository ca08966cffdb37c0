package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"alivecheck-backend/internal/models"
)

const contactColumns = `id, subject_id, type, name, linked_subject_id, address, phone_number, chat_id, created_at`

// CreateContact registers an escalation target for a subject.
func (d *DB) CreateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
	INSERT INTO contacts (id, subject_id, type, name, linked_subject_id, address, phone_number, chat_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING created_at`

	err := d.Pool.QueryRow(ctx, query,
		c.ID, c.SubjectID, c.Type, c.Name, c.LinkedSubjectID, c.Address, c.PhoneNumber, c.ChatID,
	).Scan(&c.CreatedAt)
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to create contact: %w", err)
	}
	return c, nil
}

// ListContacts returns a subject's contacts of one type.
func (d *DB) ListContacts(ctx context.Context, subjectID string, ctype models.ContactType) ([]models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE subject_id = $1 AND type = $2 ORDER BY created_at`
	rows, err := d.Pool.Query(ctx, query, subjectID, ctype)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts for subject %s: %w", subjectID, err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		err := rows.Scan(
			&c.ID,
			&c.SubjectID,
			&c.Type,
			&c.Name,
			&c.LinkedSubjectID,
			&c.Address,
			&c.PhoneNumber,
			&c.ChatID,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
