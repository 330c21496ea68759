package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError wraps a gateway failure with an operation-scoped code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew      = "catalog.service.new"
	opCreateDirector  = "catalog.create_director"
	opGetDirector     = "catalog.get_director"
	opListDirectors   = "catalog.list_directors"
	opUpdateDirector  = "catalog.update_director"
	opDeleteDirector  = "catalog.delete_director"
	opCreateDVD       = "catalog.create_dvd"
	opGetDVD          = "catalog.get_dvd"
	opListDVDs        = "catalog.list_dvds"
	opUpdateDVD       = "catalog.update_dvd"
	opDeleteDVD       = "catalog.delete_dvd"
)

const directorJoinClause = "JOIN directors ON dvds.director_id = directors.id"

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig carries the injected dependencies for the gateway.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the synchronous gateway to the system of record. All operations
// return a definitive success or failure before the caller proceeds.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and returns a gateway.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// CreateDirector inserts a director row and returns it with the
// store-assigned identifier.
func (s *Service) CreateDirector(ctx context.Context, input DirectorInput) (Director, error) {
	now := s.clock().UTC()
	row := Director{
		Name:      input.Name,
		Surname:   input.Surname,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opCreateDirector, "insert_failed", err)
		return Director{}, newServiceError(opCreateDirector, "insert_failed", err)
	}
	return row, nil
}

// GetDirector loads one director row by its wire identifier.
func (s *Service) GetDirector(ctx context.Context, id string) (Director, error) {
	rowID, err := parseID(id)
	if err != nil {
		return Director{}, newServiceError(opGetDirector, "invalid_id", ErrNotFound)
	}

	var row Director
	err = s.db.WithContext(ctx).Where("id = ?", rowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Director{}, newServiceError(opGetDirector, "missing_row", ErrNotFound)
	}
	if err != nil {
		s.logError(opGetDirector, "query_failed", err, zap.String("director_id", id))
		return Director{}, newServiceError(opGetDirector, "query_failed", err)
	}
	return row, nil
}

// ListDirectors returns every director row.
func (s *Service) ListDirectors(ctx context.Context) ([]Director, error) {
	var rows []Director
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		s.logError(opListDirectors, "query_failed", err)
		return nil, newServiceError(opListDirectors, "query_failed", err)
	}
	return rows, nil
}

// UpdateDirector applies the input to an existing row. A zero affected count
// is surfaced as ErrNotFound; the caller must perform no further side effects.
func (s *Service) UpdateDirector(ctx context.Context, id string, input DirectorInput) (Director, error) {
	rowID, err := parseID(id)
	if err != nil {
		return Director{}, newServiceError(opUpdateDirector, "invalid_id", ErrNotFound)
	}

	result := s.db.WithContext(ctx).Model(&Director{}).Where("id = ?", rowID).Updates(map[string]any{
		"name":       input.Name,
		"surname":    input.Surname,
		"updated_at": s.clock().UTC(),
	})
	if result.Error != nil {
		s.logError(opUpdateDirector, "update_failed", result.Error, zap.String("director_id", id))
		return Director{}, newServiceError(opUpdateDirector, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Director{}, newServiceError(opUpdateDirector, "missing_row", ErrNotFound)
	}

	return s.GetDirector(ctx, id)
}

// DeleteDirector removes the row. Deletion in the record store is hard; the
// replica keeps a soft-deleted copy.
func (s *Service) DeleteDirector(ctx context.Context, id string) error {
	rowID, err := parseID(id)
	if err != nil {
		return newServiceError(opDeleteDirector, "invalid_id", ErrNotFound)
	}

	result := s.db.WithContext(ctx).Where("id = ?", rowID).Delete(&Director{})
	if result.Error != nil {
		s.logError(opDeleteDirector, "delete_failed", result.Error, zap.String("director_id", id))
		return newServiceError(opDeleteDirector, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteDirector, "missing_row", ErrNotFound)
	}
	return nil
}

// CreateDVD inserts a dvd row and returns the committed read view with the
// director's name joined in. New dvds start available.
func (s *Service) CreateDVD(ctx context.Context, input DVDInput) (DVDView, error) {
	directorID, err := parseID(input.DirectorID)
	if err != nil {
		return DVDView{}, newServiceError(opCreateDVD, "invalid_director_id", err)
	}

	now := s.clock().UTC()
	row := DVD{
		Title:       input.Title,
		Genre:       input.Genre,
		DirectorID:  directorID,
		ReleaseDate: input.ReleaseDate,
		Copies:      input.Copies,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opCreateDVD, "insert_failed", err, zap.String("director_id", input.DirectorID))
		return DVDView{}, newServiceError(opCreateDVD, "insert_failed", err)
	}

	return s.GetDVD(ctx, row.StringID())
}

// dvdJoinRow is the scan target for the dvd/director join.
type dvdJoinRow struct {
	ID              uint      `gorm:"column:id"`
	Title           string    `gorm:"column:title"`
	Genre           string    `gorm:"column:genre"`
	DirectorID      uint      `gorm:"column:director_id"`
	ReleaseDate     time.Time `gorm:"column:release_date"`
	Copies          int       `gorm:"column:copies"`
	Available       bool      `gorm:"column:available"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
	DirectorName    string    `gorm:"column:director_name"`
	DirectorSurname string    `gorm:"column:director_surname"`
}

func (r dvdJoinRow) view() DVDView {
	return DVDView{
		ID:              DVD{ID: r.ID}.StringID(),
		Title:           r.Title,
		Genre:           r.Genre,
		DirectorID:      Director{ID: r.DirectorID}.StringID(),
		DirectorName:    r.DirectorName,
		DirectorSurname: r.DirectorSurname,
		ReleaseDate:     r.ReleaseDate,
		Copies:          r.Copies,
		Available:       r.Available,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (s *Service) joinQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("dvds").
		Select("dvds.*, directors.name AS director_name, directors.surname AS director_surname").
		Joins(directorJoinClause)
}

// GetDVD loads one dvd read view by its wire identifier.
func (s *Service) GetDVD(ctx context.Context, id string) (DVDView, error) {
	rowID, err := parseID(id)
	if err != nil {
		return DVDView{}, newServiceError(opGetDVD, "invalid_id", ErrNotFound)
	}

	var row dvdJoinRow
	err = s.joinQuery(ctx).Where("dvds.id = ?", rowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DVDView{}, newServiceError(opGetDVD, "missing_row", ErrNotFound)
	}
	if err != nil {
		s.logError(opGetDVD, "query_failed", err, zap.String("dvd_id", id))
		return DVDView{}, newServiceError(opGetDVD, "query_failed", err)
	}
	return row.view(), nil
}

// ListDVDs returns the read view of every dvd row.
func (s *Service) ListDVDs(ctx context.Context) ([]DVDView, error) {
	var rows []dvdJoinRow
	if err := s.joinQuery(ctx).Order("dvds.id ASC").Find(&rows).Error; err != nil {
		s.logError(opListDVDs, "query_failed", err)
		return nil, newServiceError(opListDVDs, "query_failed", err)
	}

	views := make([]DVDView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

// UpdateDVD applies the input to an existing row and returns the refreshed
// view. A zero affected count is surfaced as ErrNotFound.
func (s *Service) UpdateDVD(ctx context.Context, id string, input DVDInput) (DVDView, error) {
	rowID, err := parseID(id)
	if err != nil {
		return DVDView{}, newServiceError(opUpdateDVD, "invalid_id", ErrNotFound)
	}
	directorID, err := parseID(input.DirectorID)
	if err != nil {
		return DVDView{}, newServiceError(opUpdateDVD, "invalid_director_id", err)
	}

	result := s.db.WithContext(ctx).Model(&DVD{}).Where("id = ?", rowID).Updates(map[string]any{
		"title":        input.Title,
		"genre":        input.Genre,
		"director_id":  directorID,
		"release_date": input.ReleaseDate,
		"copies":       input.Copies,
		"updated_at":   s.clock().UTC(),
	})
	if result.Error != nil {
		s.logError(opUpdateDVD, "update_failed", result.Error, zap.String("dvd_id", id))
		return DVDView{}, newServiceError(opUpdateDVD, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return DVDView{}, newServiceError(opUpdateDVD, "missing_row", ErrNotFound)
	}

	return s.GetDVD(ctx, id)
}

// DeleteDVD removes the row from the record store.
func (s *Service) DeleteDVD(ctx context.Context, id string) error {
	rowID, err := parseID(id)
	if err != nil {
		return newServiceError(opDeleteDVD, "invalid_id", ErrNotFound)
	}

	result := s.db.WithContext(ctx).Where("id = ?", rowID).Delete(&DVD{})
	if result.Error != nil {
		s.logError(opDeleteDVD, "delete_failed", result.Error, zap.String("dvd_id", id))
		return newServiceError(opDeleteDVD, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDeleteDVD, "missing_row", ErrNotFound)
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog gateway error", attrs...)
}
