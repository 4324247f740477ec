package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/termgate/termgate/internal/config"
)

var DB *gorm.DB

func Init() error {
	dbPath := config.Cfg.DatabasePath
	dbDir := filepath.Dir(dbPath)
	if dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if err := DB.AutoMigrate(&Profile{}, &CatalogCommand{}, &Macro{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := seedCatalog(); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if err := seedMacros(); err != nil {
		return fmt.Errorf("seed macros: %w", err)
	}

	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// seedCatalog inserts the built-in command reference. Each row is checked
// individually so upgrades can add commands without disturbing user edits.
// Destructive commands are listed on purpose; the execution deny-list is the
// enforcement point, not the catalog.
func seedCatalog() error {
	for _, c := range defaultCatalog() {
		var count int64
		DB.Model(&CatalogCommand{}).
			Where("category = ? AND command = ?", c.Category, c.Command).
			Count(&count)
		if count == 0 {
			if err := DB.Create(&c).Error; err != nil {
				return fmt.Errorf("seed command %q: %w", c.Command, err)
			}
		}
	}
	return nil
}

func seedMacros() error {
	for _, m := range defaultMacros() {
		var count int64
		DB.Model(&Macro{}).Where("name = ?", m.Name).Count(&count)
		if count == 0 {
			if err := DB.Create(&m).Error; err != nil {
				return fmt.Errorf("seed macro %q: %w", m.Name, err)
			}
		}
	}
	return nil
}

// Profile helpers

func CreateProfile(p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return DB.Create(p).Error
}

func GetProfile(id string) (*Profile, error) {
	var p Profile
	if err := DB.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func GetProfileByName(name string) (*Profile, error) {
	var p Profile
	if err := DB.Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func ListProfiles() ([]Profile, error) {
	var profiles []Profile
	if err := DB.Order("name").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func UpdateProfile(p *Profile) error {
	return DB.Save(p).Error
}

func DeleteProfile(id string) error {
	return DB.Delete(&Profile{}, "id = ?", id).Error
}

// Catalog helpers

func ListCatalog() ([]CatalogCommand, error) {
	var cmds []CatalogCommand
	if err := DB.Order("category, id").Find(&cmds).Error; err != nil {
		return nil, err
	}
	return cmds, nil
}

func ListCatalogByCategory(category string) ([]CatalogCommand, error) {
	var cmds []CatalogCommand
	if err := DB.Where("category = ?", category).Order("id").Find(&cmds).Error; err != nil {
		return nil, err
	}
	return cmds, nil
}

func CatalogCategories() ([]string, error) {
	var categories []string
	err := DB.Model(&CatalogCommand{}).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).Error
	return categories, err
}

func CreateCatalogCommand(c *CatalogCommand) error {
	return DB.Create(c).Error
}

func DeleteCatalogCommand(id uint) error {
	return DB.Delete(&CatalogCommand{}, id).Error
}

// Macro helpers

func ListMacros() ([]Macro, error) {
	var macros []Macro
	if err := DB.Order("name").Find(&macros).Error; err != nil {
		return nil, err
	}
	return macros, nil
}

func GetMacro(id uint) (*Macro, error) {
	var m Macro
	if err := DB.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func GetMacroByName(name string) (*Macro, error) {
	var m Macro
	if err := DB.Where("name = ?", name).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func CreateMacro(m *Macro) error {
	return DB.Create(m).Error
}

func UpdateMacro(m *Macro) error {
	return DB.Save(m).Error
}

func DeleteMacro(id uint) error {
	return DB.Delete(&Macro{}, id).Error
}
