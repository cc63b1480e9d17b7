// internal/db/migrations.go
package db

import (
	"fmt"

	"devmon/internal/models"

	"gorm.io/gorm"
)

// Migrate brings the schema up to date: legacy table names first, then
// maintenance de-duplication (required before the unique index can exist),
// then AutoMigrate of all models.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := MigrateLegacyTables(db); err != nil {
		return err
	}
	if err := DedupeMaintenance(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// legacy singular table names -> current names
var legacyTables = [][2]string{
	{"device", "devices"},
	{"event", "events"},
}

// MigrateLegacyTables renames singular tables left by the first schema revision.
func MigrateLegacyTables(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	dialect := db.Dialector.Name()
	m := db.Migrator()

	for _, t := range legacyTables {
		oldName, newName := t[0], t[1]
		if !m.HasTable(oldName) || m.HasTable(newName) {
			continue
		}
		if err := m.RenameTable(oldName, newName); err != nil {
			var e error
			switch dialect {
			case "mysql":
				e = db.Exec(fmt.Sprintf("RENAME TABLE `%s` TO `%s`", oldName, newName)).Error
			case "postgres":
				e = db.Exec(fmt.Sprintf(`ALTER TABLE "%s" RENAME TO "%s"`, oldName, newName)).Error
			case "sqlite":
				e = db.Exec(fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, oldName, newName)).Error
			default:
				e = err
			}
			if e != nil {
				return fmt.Errorf("rename %s -> %s: %w", oldName, newName, e)
			}
		}
	}
	return nil
}

// DedupeMaintenance keeps only the newest maintenance row per device when the
// unique index on device_id is not there yet.
func DedupeMaintenance(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	m := db.Migrator()
	if !m.HasTable(&models.Maintenance{}) || m.HasIndex(&models.Maintenance{}, "DeviceID") {
		return nil
	}

	// derived table: MySQL refuses a subquery on the table being deleted from
	q := `DELETE FROM maintenance WHERE id NOT IN (
		SELECT id FROM (SELECT MAX(id) AS id FROM maintenance GROUP BY device_id) AS keep_rows
	)`
	if err := db.Exec(q).Error; err != nil {
		return fmt.Errorf("dedupe maintenance: %w", err)
	}
	return nil
}
