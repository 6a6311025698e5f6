package database

import (
	"fmt"

	"wileywidget/config"
	"wileywidget/logger"
	"wileywidget/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Models 参与自动迁移的全部模型
func Models() []any {
	return []any{
		&models.User{},
		&models.Fund{},
		&models.Department{},
		&models.BudgetPeriod{},
		&models.MunicipalAccount{},
		&models.BudgetEntry{},
		&models.Transaction{},
		&models.Vendor{},
		&models.Invoice{},
		&models.UtilityCustomer{},
		&models.AuditEntry{},
	}
}

// Dialector 根据驱动构建 gorm 方言
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.Charset)
		return mysql.Open(dsn), nil
	case "postgres":
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBName, sslmode)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "wileywidget.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}

// Open 打开数据库连接并配置连接池
func Open(cfg config.DatabaseConfig, l *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(l, logger.MapGormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// Init 初始化全局数据库连接，完成迁移和基础数据初始化
func Init(cfg *config.Config, l *zap.Logger) error {
	db, err := Open(cfg.Database, l)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	if err := Seed(db); err != nil {
		return err
	}
	DB = db
	l.Info("数据库初始化成功", zap.String("driver", cfg.Database.Driver))
	return nil
}

// Migrate 自动迁移数据库表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}
	return nil
}

// Seed 初始化基础数据（仅当表为空时）
func Seed(db *gorm.DB) error {
	var fundCount int64
	if err := db.Model(&models.Fund{}).Count(&fundCount).Error; err != nil {
		return fmt.Errorf("统计已有数据失败: %w", err)
	}
	if fundCount == 0 {
		funds := []models.Fund{
			{Code: "100", Name: "General Fund", Type: models.FundTypeGeneral, IsActive: true},
			{Code: "200", Name: "Special Revenue Fund", Type: models.FundTypeSpecialRevenue, IsActive: true},
			{Code: "400", Name: "Utility Enterprise Fund", Type: models.FundTypeEnterprise, IsActive: true},
		}
		if err := db.Create(&funds).Error; err != nil {
			return fmt.Errorf("初始化基金失败: %w", err)
		}
	}

	var deptCount int64
	if err := db.Model(&models.Department{}).Count(&deptCount).Error; err != nil {
		return fmt.Errorf("统计已有数据失败: %w", err)
	}
	if deptCount == 0 {
		var enterprise models.Fund
		if err := db.Where("type = ?", models.FundTypeEnterprise).First(&enterprise).Error; err != nil {
			return fmt.Errorf("查询企业基金失败: %w", err)
		}
		// 默认企业型部门及当前每户月费率
		defaults := []struct {
			Code string
			Name string
			Rate string
		}{
			{"WTR", models.DepartmentWater, "45.00"},
			{"SWR", models.DepartmentSewer, "38.50"},
			{"TRH", models.DepartmentTrash, "22.00"},
			{"APT", models.DepartmentApartments, "650.00"},
		}
		var depts []models.Department
		for _, d := range defaults {
			fundID := enterprise.ID
			depts = append(depts, models.Department{
				Code:         d.Code,
				Name:         d.Name,
				FundID:       &fundID,
				IsEnterprise: true,
				CurrentRate:  decimal.RequireFromString(d.Rate),
			})
		}
		if err := db.Create(&depts).Error; err != nil {
			return fmt.Errorf("初始化部门失败: %w", err)
		}
	}
	return nil
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}
