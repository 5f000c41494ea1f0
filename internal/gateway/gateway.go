// Package gateway 远端数据网关：按集合名读写记录，不包含业务逻辑。
// 底层错误原样返回给调用方，重试由上层决定。
package gateway

import (
	"color_academy_backend/internal/model"
	"color_academy_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	CollectionImages        = "images"
	CollectionSolver        = "solver"
	CollectionSavedFormulas = "saved_formulas"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidID         = errors.New("record id must be a string")
)

// Record 以 JSON 字段名为 key
type Record map[string]interface{}

// Filter 等值过滤条件，key 同 Record
type Filter map[string]interface{}

type Ack struct {
	ID string `json:"id"`
}

type Gateway interface {
	Read(ctx context.Context, collection string, filter Filter) ([]Record, error)
	Write(ctx context.Context, collection string, record Record) (Ack, error)
}

type collection struct {
	name     string
	newModel func() interface{}
	columns  map[string]string // json 名 / 字段名 / 列名 → 列名
	jsonName map[string]string // 列名 → json 名
}

// GormGateway 白名单集合映射到 gorm 模型
type GormGateway struct {
	DB          *gorm.DB
	collections map[string]*collection
}

func NewGormGateway(db *gorm.DB) (*GormGateway, error) {
	g := &GormGateway{DB: db, collections: make(map[string]*collection)}

	protos := map[string]interface{}{
		CollectionImages:        &model.Image{},
		CollectionSolver:        &model.SolverEntry{},
		CollectionSavedFormulas: &model.SavedFormula{},
	}
	for name, proto := range protos {
		c, err := buildCollection(db, name, proto)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
		g.collections[name] = c
	}
	return g, nil
}

func buildCollection(db *gorm.DB, name string, proto interface{}) (*collection, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(proto); err != nil {
		return nil, err
	}

	typ := reflect.TypeOf(proto).Elem()
	c := &collection{
		name:     name,
		newModel: func() interface{} { return reflect.New(typ).Interface() },
		columns:  make(map[string]string),
		jsonName: make(map[string]string),
	}

	for _, f := range stmt.Schema.Fields {
		if f.DBName == "" || f.DBName == "deleted_at" {
			continue
		}
		jsonName := strings.Split(f.Tag.Get("json"), ",")[0]
		if jsonName == "-" {
			// 不对外暴露的列
			continue
		}
		if jsonName == "" {
			jsonName = f.DBName
		}
		c.columns[jsonName] = f.DBName
		c.columns[f.Name] = f.DBName
		c.columns[f.DBName] = f.DBName
		c.jsonName[f.DBName] = jsonName
	}
	return c, nil
}

// Collections 已注册的集合名
func (g *GormGateway) Collections() []string {
	names := make([]string, 0, len(g.collections))
	for name := range g.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *GormGateway) lookup(name string) (*collection, error) {
	c, ok := g.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

func (c *collection) column(key string) (string, error) {
	col, ok := c.columns[key]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, c.name, key)
	}
	return col, nil
}

func (g *GormGateway) Read(ctx context.Context, name string, filter Filter) ([]Record, error) {
	ctx, span := tracing.Tracer.Start(ctx, "gateway.read", trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	c, err := g.lookup(name)
	if err != nil {
		return nil, err
	}

	where := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		col, err := c.column(k)
		if err != nil {
			return nil, err
		}
		where[col] = v
	}

	tx := g.DB.WithContext(ctx).Model(c.newModel())
	if len(where) > 0 {
		tx = tx.Where(where)
	}

	var rows []map[string]interface{}
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(row))
		for col, v := range row {
			key, ok := c.jsonName[col]
			if !ok {
				continue
			}
			rec[key] = v
		}
		records = append(records, rec)
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

func (g *GormGateway) Write(ctx context.Context, name string, record Record) (Ack, error) {
	ctx, span := tracing.Tracer.Start(ctx, "gateway.write", trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	c, err := g.lookup(name)
	if err != nil {
		return Ack{}, err
	}

	values := make(map[string]interface{}, len(record)+3)
	for k, v := range record {
		col, err := c.column(k)
		if err != nil {
			return Ack{}, err
		}
		values[col] = v
	}

	var id string
	switch v := values["id"].(type) {
	case nil:
	case string:
		id = v
	default:
		return Ack{}, fmt.Errorf("%w: got %T", ErrInvalidID, v)
	}
	if id == "" {
		id = model.GenerateUUID()
		values["id"] = id
	}
	now := time.Now()
	if _, ok := values["created_at"]; !ok {
		values["created_at"] = now
	}
	values["updated_at"] = now

	if err := g.DB.WithContext(ctx).Model(c.newModel()).Create(values).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Ack{}, err
	}
	return Ack{ID: id}, nil
}
