package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/skanjila/neo4j-spatial/pkg/telemetry"
)

// DBConfig holds the connection parameters for GormStore's backing
// database. A host large enough to need the R-tree durable across
// process restarts picks one of these drivers instead of MemoryStore.
type DBConfig struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	MaxConns int
}

// DBType enumerates the SQL backends GormStore supports.
type DBType string

const (
	DBTypePostgres DBType = "postgres"
	DBTypeMySQL    DBType = "mysql"
	DBTypeSQLite   DBType = "sqlite"
)

// gormVertex is the vertex table: an opaque, property-free row whose
// only job is to hand out stable IDs and anchor foreign keys.
type gormVertex struct {
	ID uint64 `gorm:"primaryKey"`
}

func (gormVertex) TableName() string { return "rtree_vertices" }

// gormProperty stores one key/value pair per row, JSON-encoded so a
// property can hold any of the scalar or slice types the core writes
// (bbox arrays, counts, query strings).
type gormProperty struct {
	VertexID uint64 `gorm:"primaryKey;column:vertex_id"`
	Key      string `gorm:"primaryKey;column:prop_key"`
	Value    string `gorm:"column:prop_value"`
}

func (gormProperty) TableName() string { return "rtree_properties" }

// gormEdge is a single typed, directed edge. Unlike MemoryStore's
// adjacency maps, fan-out here is answered with an indexed query rather
// than a pointer chase.
type gormEdge struct {
	ID   uint64 `gorm:"primaryKey"`
	Src  uint64 `gorm:"column:src;index:idx_rtree_edges_out,priority:1"`
	Dst  uint64 `gorm:"column:dst;index:idx_rtree_edges_in,priority:1"`
	Type string `gorm:"column:edge_type;index:idx_rtree_edges_out,priority:2;index:idx_rtree_edges_in,priority:2"`
}

func (gormEdge) TableName() string { return "rtree_edges" }

// NewGormDB opens a pooled GORM connection per cfg, enabling OpenTelemetry
// tracing when the process has it switched on and migrating the three
// tables GormStore needs.
func NewGormDB(cfg *DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch DBType(cfg.Type) {
	case DBTypePostgres, DBType("postgresql"):
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
		)
		dialector = postgres.Open(dsn)
	case DBTypeMySQL:
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		)
		dialector = mysql.Open(dsn)
	case DBTypeSQLite:
		dialector = sqlite.Open(cfg.Database)
	default:
		return nil, fmt.Errorf("graph: unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("graph: open database: %w", err)
	}

	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("graph: enable telemetry: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("graph: underlying sql.DB: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("graph: ping database: %w", err)
	}

	if err := db.AutoMigrate(&gormVertex{}, &gormProperty{}, &gormEdge{}); err != nil {
		return nil, fmt.Errorf("graph: migrate schema: %w", err)
	}

	return db, nil
}

// GormStore is the SQL-backed Store, durable across process restarts.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-open, already-migrated *gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Begin implements Store by opening a real database transaction; the
// returned Txn owns it until Finish commits or rolls it back.
func (s *GormStore) Begin(ctx context.Context) (Txn, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("graph: begin transaction: %w", tx.Error)
	}
	return &gormTxn{tx: tx}, nil
}

// GetVertexByID implements Store.
func (s *GormStore) GetVertexByID(ctx context.Context, id VertexID) (bool, error) {
	var v gormVertex
	err := s.db.WithContext(ctx).Where("id = ?", uint64(id)).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("graph: lookup vertex: %w", err)
	}
	return true, nil
}

type gormTxn struct {
	tx      *gorm.DB
	success bool
	done    bool
}

func (t *gormTxn) CreateVertex(ctx context.Context) (VertexID, error) {
	v := gormVertex{}
	if err := t.tx.WithContext(ctx).Create(&v).Error; err != nil {
		return 0, fmt.Errorf("graph: create vertex: %w", err)
	}
	return VertexID(v.ID), nil
}

func (t *gormTxn) DeleteVertex(ctx context.Context, v VertexID) error {
	if err := t.tx.WithContext(ctx).Where("vertex_id = ?", uint64(v)).Delete(&gormProperty{}).Error; err != nil {
		return fmt.Errorf("graph: delete vertex properties: %w", err)
	}
	res := t.tx.WithContext(ctx).Where("id = ?", uint64(v)).Delete(&gormVertex{})
	if res.Error != nil {
		return fmt.Errorf("graph: delete vertex: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("graph: delete non-existent vertex %d", v)
	}
	return nil
}

func (t *gormTxn) VertexExists(ctx context.Context, v VertexID) (bool, error) {
	var count int64
	if err := t.tx.WithContext(ctx).Model(&gormVertex{}).Where("id = ?", uint64(v)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("graph: check vertex exists: %w", err)
	}
	return count > 0, nil
}

func (t *gormTxn) GetProp(ctx context.Context, v VertexID, key string) (any, bool, error) {
	var p gormProperty
	err := t.tx.WithContext(ctx).Where("vertex_id = ? AND prop_key = ?", uint64(v), key).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("graph: get prop %q: %w", key, err)
	}
	var val any
	if err := json.Unmarshal([]byte(p.Value), &val); err != nil {
		return nil, false, fmt.Errorf("graph: decode prop %q: %w", key, err)
	}
	return val, true, nil
}

func (t *gormTxn) SetProp(ctx context.Context, v VertexID, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("graph: encode prop %q: %w", key, err)
	}
	p := gormProperty{VertexID: uint64(v), Key: key, Value: string(raw)}
	err = t.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vertex_id"}, {Name: "prop_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"prop_value"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("graph: set prop %q: %w", key, err)
	}
	return nil
}

func (t *gormTxn) HasProp(ctx context.Context, v VertexID, key string) (bool, error) {
	var count int64
	err := t.tx.WithContext(ctx).Model(&gormProperty{}).
		Where("vertex_id = ? AND prop_key = ?", uint64(v), key).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("graph: has prop %q: %w", key, err)
	}
	return count > 0, nil
}

func (t *gormTxn) RemoveProp(ctx context.Context, v VertexID, key string) error {
	err := t.tx.WithContext(ctx).Where("vertex_id = ? AND prop_key = ?", uint64(v), key).Delete(&gormProperty{}).Error
	if err != nil {
		return fmt.Errorf("graph: remove prop %q: %w", key, err)
	}
	return nil
}

func (t *gormTxn) Connect(ctx context.Context, src, dst VertexID, et EdgeType) (EdgeID, error) {
	e := gormEdge{Src: uint64(src), Dst: uint64(dst), Type: string(et)}
	if err := t.tx.WithContext(ctx).Create(&e).Error; err != nil {
		return 0, fmt.Errorf("graph: connect: %w", err)
	}
	return EdgeID(e.ID), nil
}

func (t *gormTxn) IterateOut(ctx context.Context, v VertexID, et EdgeType) ([]Edge, error) {
	var rows []gormEdge
	err := t.tx.WithContext(ctx).Where("src = ? AND edge_type = ?", uint64(v), string(et)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("graph: iterate out: %w", err)
	}
	return toEdges(rows), nil
}

func (t *gormTxn) IterateIn(ctx context.Context, v VertexID, et EdgeType) ([]Edge, error) {
	var rows []gormEdge
	err := t.tx.WithContext(ctx).Where("dst = ? AND edge_type = ?", uint64(v), string(et)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("graph: iterate in: %w", err)
	}
	return toEdges(rows), nil
}

func toEdges(rows []gormEdge) []Edge {
	out := make([]Edge, 0, len(rows))
	for _, r := range rows {
		out = append(out, Edge{ID: EdgeID(r.ID), Src: VertexID(r.Src), Dst: VertexID(r.Dst), Type: EdgeType(r.Type)})
	}
	return out
}

func (t *gormTxn) SingleOut(ctx context.Context, v VertexID, et EdgeType) (Edge, error) {
	edges, err := t.IterateOut(ctx, v, et)
	if err != nil {
		return Edge{}, err
	}
	switch len(edges) {
	case 0:
		return Edge{}, ErrNoSuchEdge
	case 1:
		return edges[0], nil
	default:
		return Edge{}, fmt.Errorf("graph: vertex %d has %d outgoing %s edges, want exactly one", v, len(edges), et)
	}
}

func (t *gormTxn) SingleIn(ctx context.Context, v VertexID, et EdgeType) (Edge, error) {
	edges, err := t.IterateIn(ctx, v, et)
	if err != nil {
		return Edge{}, err
	}
	switch len(edges) {
	case 0:
		return Edge{}, ErrNoSuchEdge
	case 1:
		return edges[0], nil
	default:
		return Edge{}, fmt.Errorf("graph: vertex %d has %d incoming %s edges, want exactly one", v, len(edges), et)
	}
}

func (t *gormTxn) DeleteEdge(ctx context.Context, id EdgeID) error {
	res := t.tx.WithContext(ctx).Where("id = ?", uint64(id)).Delete(&gormEdge{})
	if res.Error != nil {
		return fmt.Errorf("graph: delete edge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("graph: delete non-existent edge %d", id)
	}
	return nil
}

func (t *gormTxn) Success() { t.success = true }

func (t *gormTxn) Finish(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if t.success {
		return t.tx.Commit().Error
	}
	return t.tx.Rollback().Error
}
