package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/koustreak/nlsql/internal/errs"
)

// sentinelTable marks a database that has already been seeded.
const sentinelTable = "customers"

var sampleDDL = []string{
	`CREATE TABLE customers (
		customer_id TEXT PRIMARY KEY,
		company_name TEXT NOT NULL,
		contact_name TEXT,
		contact_title TEXT,
		address TEXT,
		city TEXT,
		region TEXT,
		postal_code TEXT,
		country TEXT,
		phone TEXT,
		fax TEXT
	)`,
	`CREATE TABLE products (
		product_id INTEGER PRIMARY KEY,
		product_name TEXT NOT NULL,
		supplier_id INTEGER,
		category_id INTEGER,
		quantity_per_unit TEXT,
		unit_price REAL,
		units_in_stock INTEGER,
		units_on_order INTEGER,
		reorder_level INTEGER,
		discontinued INTEGER
	)`,
	`CREATE TABLE categories (
		category_id INTEGER PRIMARY KEY,
		category_name TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE orders (
		order_id INTEGER PRIMARY KEY,
		customer_id TEXT,
		employee_id INTEGER,
		order_date TEXT,
		required_date TEXT,
		shipped_date TEXT,
		ship_via INTEGER,
		freight REAL,
		ship_name TEXT,
		ship_address TEXT,
		ship_city TEXT,
		ship_region TEXT,
		ship_postal_code TEXT,
		ship_country TEXT,
		FOREIGN KEY (customer_id) REFERENCES customers (customer_id)
	)`,
}

type seedTable struct {
	insert string
	rows   [][]any
}

// Categories precede products and customers precede orders so foreign
// keys resolve while inserting.
var sampleData = []seedTable{
	{
		insert: `INSERT INTO customers
			(customer_id, company_name, contact_name, contact_title, address, city, region, postal_code, country, phone, fax)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rows: [][]any{
			{"ALFKI", "Alfreds Futterkiste", "Maria Anders", "Sales Representative", "Obere Str. 57", "Berlin", nil, "12209", "Germany", "030-0074321", "030-0076545"},
			{"ANATR", "Ana Trujillo Emparedados y helados", "Ana Trujillo", "Owner", "Avda. de la Constitución 2222", "México D.F.", nil, "05021", "Mexico", "(5) 555-4729", "(5) 555-3745"},
			{"ANTON", "Antonio Moreno Taquería", "Antonio Moreno", "Owner", "Mataderos 2312", "México D.F.", nil, "05023", "Mexico", "(5) 555-3932", nil},
			{"AROUT", "Around the Horn", "Thomas Hardy", "Sales Representative", "120 Hanover Sq.", "London", nil, "WA1 1DP", "UK", "(171) 555-7788", "(171) 555-6750"},
			{"BERGS", "Berglunds snabbköp", "Christina Berglund", "Order Administrator", "Berguvsvägen 8", "Luleå", nil, "S-958 22", "Sweden", "0921-12 34 65", "0921-12 34 67"},
			{"BLAUS", "Blauer See Delikatessen", "Hanna Moos", "Sales Representative", "Forsterstr. 57", "Mannheim", nil, "68306", "Germany", "0621-08460", "0621-08924"},
		},
	},
	{
		insert: `INSERT INTO categories (category_id, category_name, description) VALUES (?, ?, ?)`,
		rows: [][]any{
			{1, "Beverages", "Soft drinks, coffees, teas, beers, and ales"},
			{2, "Condiments", "Sweet and savory sauces, relishes, spreads, and seasonings"},
			{3, "Dairy Products", "Cheeses"},
			{4, "Grains/Cereals", "Breads, crackers, pasta, and cereal"},
			{5, "Meat/Poultry", "Prepared meats"},
		},
	},
	{
		insert: `INSERT INTO products
			(product_id, product_name, supplier_id, category_id, quantity_per_unit, unit_price, units_in_stock, units_on_order, reorder_level, discontinued)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rows: [][]any{
			{1, "Chai", 1, 1, "10 boxes x 20 bags", 18.00, 39, 0, 10, 0},
			{2, "Chang", 1, 1, "24 - 12 oz bottles", 19.00, 17, 40, 25, 0},
			{3, "Aniseed Syrup", 1, 2, "12 - 550 ml bottles", 10.00, 13, 70, 25, 0},
			{4, "Chef Antons Cajun Seasoning", 2, 2, "48 - 6 oz jars", 22.00, 53, 0, 0, 0},
			{5, "Chef Antons Gumbo Mix", 2, 2, "36 boxes", 21.35, 0, 0, 0, 1},
		},
	},
	{
		insert: `INSERT INTO orders
			(order_id, customer_id, employee_id, order_date, required_date, shipped_date, ship_via, freight, ship_name, ship_address, ship_city, ship_region, ship_postal_code, ship_country)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rows: [][]any{
			{10248, "ALFKI", 5, "1996-07-04", "1996-08-01", "1996-07-16", 3, 32.38, "Alfreds Futterkiste", "Obere Str. 57", "Berlin", nil, "12209", "Germany"},
			{10249, "ANATR", 6, "1996-07-05", "1996-08-16", "1996-07-10", 1, 11.61, "Ana Trujillo Emparedados y helados", "Avda. de la Constitución 2222", "México D.F.", nil, "05021", "Mexico"},
		},
	},
}

// seed creates and fills the sample tables in a single transaction unless
// the sentinel table already exists. It reports whether anything was written.
func seed(ctx context.Context, db *sql.DB) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, mapError(err, "failed to begin seed transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	err = tx.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", sentinelTable,
	).Scan(&name)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, mapError(err, "failed to check for sample tables")
	}

	for _, ddl := range sampleDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return false, mapError(err, "failed to create sample table")
		}
	}

	for _, t := range sampleData {
		stmt, err := tx.PrepareContext(ctx, t.insert)
		if err != nil {
			return false, mapError(err, "failed to prepare sample insert")
		}
		for _, row := range t.rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				_ = stmt.Close()
				return false, mapError(err, "failed to insert sample row")
			}
		}
		_ = stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return false, errs.Wrap(errs.ErrKindQueryFailed, "failed to commit sample data", err)
	}
	return true, nil
}
