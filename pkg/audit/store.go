package audit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides append-only operations for governance events.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Append writes a new event and returns its id. ID and CreatedAt are
// filled in when empty.
func (s *Store) Append(ctx context.Context, event *EventRecord) (string, error) {
	if event.OrgID == "" || event.Action == "" {
		return "", errors.New("governance event needs an organization and an action")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return "", fmt.Errorf("append governance event: %w", err)
	}
	return event.ID, nil
}

// GetByID returns one event of an organization.
// Returns nil, nil if not found.
func (s *Store) GetByID(ctx context.Context, orgID, id string) (*EventRecord, error) {
	var record EventRecord
	err := s.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get governance event: %w", err)
	}
	return &record, nil
}

// List returns paginated events matching filter, newest first. Events
// sharing a timestamp are ordered by id, so pageToken, which encodes the
// (created_at, id) of the last event returned, resumes exactly after it.
func (s *Store) List(ctx context.Context, filter ListFilter, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	if filter.OrgID == "" {
		return nil, "", 0, errors.New("organization is required")
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&EventRecord{}).Where("org_id = ?", filter.OrgID)
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.TargetType != "" {
			q = q.Where("target_type = ?", filter.TargetType)
		}
		if filter.TargetID != "" {
			q = q.Where("target_id = ?", filter.TargetID)
		}
		return q
	}

	var totalSize int64
	if err := scoped().Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count governance events: %w", err)
	}

	query := scoped().Order("created_at DESC").Order("id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		after, id, err := decodePageToken(pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", after, after, id)
	}

	var records []EventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list governance events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = encodePageToken(records[pageSize-1])
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

func encodePageToken(last EventRecord) string {
	raw := last.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + last.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodePageToken(token string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return time.Time{}, "", errors.New("missing event id")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", err
	}
	return t, id, nil
}
