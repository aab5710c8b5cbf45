package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"letter-portal/logic/routing"
)

// DirectoryRepo 只读解析组织单元 (department / division / deputy)
type DirectoryRepo struct {
	db *gorm.DB
}

func NewDirectoryRepo(db *gorm.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

type unitRow struct {
	ID   int64  `gorm:"column:id"`
	Name string `gorm:"column:name"`
}

// Resolve returns the display name of unit, or NOT_FOUND.
func (r *DirectoryRepo) Resolve(ctx context.Context, unit routing.Unit) (string, error) {
	names, err := r.ResolveAll(ctx, []routing.Unit{unit})
	if err != nil {
		return "", err
	}
	return names[unit], nil
}

// ResolveAll 批量解析, 每种类型一次 IN 查询. 任一单元不存在即返回 NOT_FOUND
func (r *DirectoryRepo) ResolveAll(ctx context.Context, units []routing.Unit) (map[routing.Unit]string, error) {
	byKind := make(map[routing.UnitKind][]int64)
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		byKind[u.Kind] = append(byKind[u.Kind], u.ID)
	}

	names := make(map[routing.Unit]string, len(units))
	for kind, ids := range byKind {
		table, err := unitTable(kind)
		if err != nil {
			return nil, err
		}
		var found []unitRow
		err = r.db.WithContext(ctx).
			Table(table).
			Select("id, name").
			Where("id IN ?", ids).
			Scan(&found).Error
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", kind, err)
		}
		for _, row := range found {
			names[routing.Unit{Kind: kind, ID: row.ID}] = row.Name
		}
	}

	for _, u := range units {
		if _, ok := names[u]; !ok {
			return nil, routing.NotFound("%s %d does not exist", u.Kind, u.ID)
		}
	}
	return names, nil
}

// DirectorySeed 组织架构初始数据
type DirectorySeed struct {
	Departments []Department `yaml:"departments"`
	Divisions   []Division   `yaml:"divisions"`
	Deputies    []Deputy     `yaml:"deputies"`
}

// Upsert writes the seed by id; existing names are overwritten.
func (r *DirectoryRepo) Upsert(ctx context.Context, seed *DirectorySeed) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 每次插入都从 tx 新建语句, 复用同一条链会沿用第一次的表名
		upsert := func() *gorm.DB {
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name"}),
			})
		}
		if len(seed.Departments) > 0 {
			if err := upsert().Create(&seed.Departments).Error; err != nil {
				return fmt.Errorf("seed departments: %w", err)
			}
		}
		if len(seed.Divisions) > 0 {
			if err := upsert().Create(&seed.Divisions).Error; err != nil {
				return fmt.Errorf("seed divisions: %w", err)
			}
		}
		if len(seed.Deputies) > 0 {
			if err := upsert().Create(&seed.Deputies).Error; err != nil {
				return fmt.Errorf("seed deputies: %w", err)
			}
		}
		return nil
	})
}

func unitTable(kind routing.UnitKind) (string, error) {
	switch kind {
	case routing.KindDepartment:
		return Department{}.TableName(), nil
	case routing.KindDivision:
		return Division{}.TableName(), nil
	case routing.KindDeputy:
		return Deputy{}.TableName(), nil
	}
	return "", routing.InvalidArgument("unknown unit kind %q", string(kind))
}
