package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/notedesk/internal/models"
	"github.com/desertthunder/notedesk/internal/shared"
)

const recordColumns = `id, sequence, resource, user_id, title, category, priority, pinned, archived, data, created_at, updated_at, deleted_at`

// jsonFields are filters answered from the record document rather than a column.
var jsonFields = map[string]bool{
	"folder_id":   true,
	"parent_id":   true,
	"note_id":     true,
	"shared_with": true,
	"permission":  true,
	"model":       true,
}

// sortColumns maps sort keys to SQL expressions.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"title":      "title",
	"name":       "title",
	"note_title": "title",
	"model":      "title",
	"user_id":    "user_id",
	"priority":   "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END",
	"note_count": "CAST(json_extract(data, '$.note_count') AS INTEGER)",
	"expires_at": "json_extract(data, '$.expires_at')",
}

// Criteria selects one page of records of a resource.
type Criteria struct {
	Resource models.Resource
	Filters  map[string]string
	Page     int
	PageSize int
}

// ListResult is one page of records and the number of records matching the criteria.
type ListResult struct {
	Records []*models.Record
	Total   int
}

// RecordRepository stores admin records with soft delete support.
type RecordRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRecordRepository creates a new RecordRepository with the given database connection
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new record with generated ID and sequence
func (r *RecordRepository) Create(rec *models.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	sequence, err := NextSequence(r.db, "records")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode record data: %w", err)
	}

	rec.ID = shared.GenerateID()
	rec.Sequence = sequence

	query := `
		INSERT INTO records (id, sequence, resource, user_id, title, category, priority, pinned, archived, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID,
		rec.Sequence,
		string(rec.Resource),
		rec.UserID,
		rec.Title,
		rec.Category,
		rec.Priority,
		rec.Pinned,
		rec.Archived,
		string(data),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// Get retrieves a record by ID, excluding soft-deleted records
func (r *RecordRepository) Get(resource models.Resource, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE resource = ? AND id = ? AND deleted_at IS NULL`

	rec, err := scanRecord(r.db.QueryRow(query, string(resource), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", shared.ErrNotFound, resource, id)
	}
	return rec, err
}

// Update writes the record's current state
func (r *RecordRepository) Update(rec *models.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode record data: %w", err)
	}

	rec.UpdatedAt = r.now()

	query := `
		UPDATE records
		SET user_id = ?, title = ?, category = ?, priority = ?, pinned = ?, archived = ?, data = ?, updated_at = ?
		WHERE resource = ? AND id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.UserID,
		rec.Title,
		rec.Category,
		rec.Priority,
		rec.Pinned,
		rec.Archived,
		string(data),
		rec.UpdatedAt,
		string(rec.Resource),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	return expectRow(result, rec.Resource, rec.ID)
}

// Delete soft-deletes a record by ID
func (r *RecordRepository) Delete(resource models.Resource, id string) error {
	query := `
		UPDATE records
		SET deleted_at = ?
		WHERE resource = ? AND id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, r.now(), string(resource), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return expectRow(result, resource, id)
}

func expectRow(result sql.Result, resource models.Resource, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, resource, id)
	}
	return nil
}

// List returns one page of records matching c, excluding soft-deleted records
func (r *RecordRepository) List(c Criteria) (*ListResult, error) {
	where, args, err := r.where(c)
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM records WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	order, err := orderBy(c.Filters["sort"])
	if err != nil {
		return nil, err
	}

	page, size := max(c.Page, 1), c.PageSize
	if size <= 0 {
		size = 20
	}

	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	rows, err := r.db.Query(query, append(args, size, (page-1)*size)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	result := &ListResult{Total: total, Records: []*models.Record{}}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

func (r *RecordRepository) where(c Criteria) (string, []any, error) {
	clauses := []string{"resource = ?", "deleted_at IS NULL"}
	args := []any{string(c.Resource)}

	for name, value := range c.Filters {
		if value == "" {
			continue
		}
		switch name {
		case "sort":
		case "search":
			clauses = append(clauses, "(title LIKE ? OR data LIKE ?)")
			pattern := "%" + value + "%"
			args = append(args, pattern, pattern)
		case "user_id", "category", "priority":
			clauses = append(clauses, name+" = ?")
			args = append(args, value)
		case "from":
			clauses = append(clauses, "substr(created_at, 1, 10) >= ?")
			args = append(args, value)
		case "to":
			clauses = append(clauses, "substr(created_at, 1, 10) <= ?")
			args = append(args, value)
		case "enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return "", nil, fmt.Errorf("%w: enabled must be true or false, got %q", shared.ErrInvalidArgument, value)
			}
			clauses = append(clauses, "json_extract(data, '$.enabled') = ?")
			args = append(args, b)
		case "status":
			clause, arg, err := r.status(c.Resource, value)
			if err != nil {
				return "", nil, err
			}
			if clause != "" {
				clauses = append(clauses, clause)
				args = append(args, arg...)
			}
		default:
			if !jsonFields[name] {
				return "", nil, fmt.Errorf("%w: unknown filter %q", shared.ErrInvalidArgument, name)
			}
			clauses = append(clauses, "json_extract(data, ?) = ?")
			args = append(args, "$."+name, value)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// status interprets the status filter: archive state for most resources, expiry for shares.
func (r *RecordRepository) status(resource models.Resource, value string) (string, []any, error) {
	const expiry = "json_extract(data, '$.expires_at')"

	switch {
	case value == "all":
		return "", nil, nil
	case resource == models.ResourceSharedNotes && value == "active":
		return "(" + expiry + " IS NULL OR " + expiry + " > ?)", []any{r.now().Format(time.RFC3339)}, nil
	case resource == models.ResourceSharedNotes && value == "expired":
		return expiry + " <= ?", []any{r.now().Format(time.RFC3339)}, nil
	case value == "active":
		return "archived = 0", nil, nil
	case value == "archived":
		return "archived = 1", nil, nil
	}
	return "", nil, fmt.Errorf("%w: unknown status %q for %s", shared.ErrInvalidArgument, value, resource)
}

func orderBy(sort string) (string, error) {
	if sort == "" {
		return "sequence ASC", nil
	}
	dir := "ASC"
	key := sort
	if strings.HasPrefix(sort, "-") {
		dir, key = "DESC", sort[1:]
	}
	col, ok := sortColumns[key]
	if !ok {
		return "", fmt.Errorf("%w: unknown sort %q", shared.ErrInvalidArgument, sort)
	}
	return col + " " + dir + ", sequence " + dir, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a [models.Record]
func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec       models.Record
		resource  string
		data      string
		deletedAt sql.NullTime
	)

	err := row.Scan(&rec.ID, &rec.Sequence, &resource, &rec.UserID, &rec.Title, &rec.Category, &rec.Priority,
		&rec.Pinned, &rec.Archived, &data, &rec.CreatedAt, &rec.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Resource = models.Resource(resource)
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return nil, fmt.Errorf("failed to decode record data: %w", err)
	}
	if deletedAt.Valid {
		rec.DeletedAt = &deletedAt.Time
	}

	return &rec, nil
}
