package seed

import (
	"database/sql"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var defaultCatalog []byte

// ProductType is a catalogue entry for the product_type table.
type ProductType struct {
	Name        string  `yaml:"name"`
	Coefficient float64 `yaml:"coefficient"`
}

// MaterialType is a catalogue entry for the material_type table.
type MaterialType struct {
	Name        string  `yaml:"name"`
	LossPercent float64 `yaml:"loss_percent"`
}

// Workshop is a catalogue entry for the workshop table.
type Workshop struct {
	Name         string `yaml:"name"`
	WorkshopType string `yaml:"workshop_type"`
	WorkersCount int    `yaml:"workers_count"`
}

// Catalog is the reference data loaded at startup.
type Catalog struct {
	ProductTypes  []ProductType  `yaml:"product_types"`
	MaterialTypes []MaterialType `yaml:"material_types"`
	Workshops     []Workshop     `yaml:"workshops"`
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Skipped int
}

// DefaultCatalog returns the catalogue bundled with the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a YAML catalogue and checks its values.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode reference catalogue: %w", err)
	}

	for _, pt := range c.ProductTypes {
		if pt.Name == "" {
			return Catalog{}, fmt.Errorf("product type without name")
		}
		if pt.Coefficient <= 0 {
			return Catalog{}, fmt.Errorf("product type %q: coefficient must be greater than 0", pt.Name)
		}
	}
	for _, mt := range c.MaterialTypes {
		if mt.Name == "" {
			return Catalog{}, fmt.Errorf("material type without name")
		}
		if mt.LossPercent < 0 {
			return Catalog{}, fmt.Errorf("material type %q: loss_percent must not be negative", mt.Name)
		}
	}
	for _, w := range c.Workshops {
		if w.Name == "" {
			return Catalog{}, fmt.Errorf("workshop without name")
		}
	}

	return c, nil
}

// Run inserts every catalogue row missing by name. Existing rows are left
// untouched, so coefficients edited by an administrator survive restarts.
func Run(db *sql.DB, c Catalog) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, pt := range c.ProductTypes {
		if err := ensureRow(tx, &stats, "product_type", pt.Name,
			`INSERT INTO product_type (name, coefficient) VALUES (?, ?)`, pt.Name, pt.Coefficient); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	for _, mt := range c.MaterialTypes {
		if err := ensureRow(tx, &stats, "material_type", mt.Name,
			`INSERT INTO material_type (name, loss_percent) VALUES (?, ?)`, mt.Name, mt.LossPercent); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	for _, w := range c.Workshops {
		if err := ensureRow(tx, &stats, "workshop", w.Name,
			`INSERT INTO workshop (name, workshop_type, workers_count) VALUES (?, ?, ?)`, w.Name, w.WorkshopType, w.WorkersCount); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

// table is always one of the fixed names above, never user input.
func ensureRow(tx *sql.Tx, stats *Stats, table, name, insert string, args ...any) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE name = ? LIMIT 1)`
	if err := tx.QueryRow(query, name).Scan(&exists); err != nil {
		return fmt.Errorf("check %s %q existence: %w", table, name, err)
	}
	if exists {
		stats.Skipped++
		return nil
	}

	if _, err := tx.Exec(insert, args...); err != nil {
		return fmt.Errorf("insert %s %q: %w", table, name, err)
	}
	stats.Inserts++
	return nil
}
