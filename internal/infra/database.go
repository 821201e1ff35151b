package infra

import (
	"fmt"

	"cimbrasys/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the GORM connection (pgx driver) and migrates the schema.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies the SQL that
// AutoMigrate cannot express. Safe to run on every start.
func RunMigrations(db *gorm.DB) error {
	if err := applyPatches(db, preMigrationPatches); err != nil {
		return fmt.Errorf("pre-migration patches: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.Autenticado{},
		&model.Cliente{},
		&model.LoteMaterial{},
		&model.Contrato{},
		&model.ContratoMaterial{},
		&model.Asignacion{},
		&model.Devolucion{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applyPatches(db, schemaPatches); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

type patch struct{ descr, sql string }

// preMigrationPatches run before AutoMigrate: column defaults reference them.
var preMigrationPatches = []patch{
	{"pgcrypto for gen_random_uuid", `CREATE EXTENSION IF NOT EXISTS pgcrypto`},
	{"lot code sequence", `CREATE SEQUENCE IF NOT EXISTS inventario_codigo_seq`},
	{"contract number sequence", `CREATE SEQUENCE IF NOT EXISTS contratos_numero_seq`},
}

var schemaPatches = []patch{
	// FIFO candidate scan of contract creation
	{"partial index on available lots", `
CREATE INDEX IF NOT EXISTS idx_inventario_disponibles
    ON inventario (tipo_material, fecha_registro, codigo)
    WHERE estado = 'Disponible' AND cantidad > 0`},
	{"allocated never exceeds registered", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_inventario_cantidad_registrada') THEN
    ALTER TABLE inventario
      ADD CONSTRAINT chk_inventario_cantidad_registrada CHECK (cantidad <= cantidad_registrada);
  END IF;
END $$`},
	{"positive allocation quantity", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_asignaciones_cantidad') THEN
    ALTER TABLE asignaciones ADD CONSTRAINT chk_asignaciones_cantidad CHECK (cantidad > 0);
  END IF;
END $$`},
}

func applyPatches(db *gorm.DB, patches []patch) error {
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
