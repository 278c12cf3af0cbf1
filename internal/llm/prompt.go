package llm

import (
	"fmt"

	"github.com/koustreak/nlsql/internal/database"
)

// dialectHints are the per-dialect rules embedded in the system prompt.
type dialectHints struct {
	TextSearch  string
	LimitSyntax database.LimitSyntax
	Examples    string
}

const commonExamples = `Question: "Show customers from Germany"
SQL: SELECT company_name, contact_name, city FROM customers WHERE country = 'Germany'

%s

Question: "List products by category"
SQL: SELECT p.product_name, c.category_name, p.unit_price FROM products p JOIN categories c ON p.category_id = c.category_id ORDER BY c.category_name

Question: "How many customers are there?"
SQL: SELECT COUNT(*) as customer_count FROM customers`

func examples(d database.Dialect, head, search string) string {
	return fmt.Sprintf("EXAMPLE QUERIES FOR %s:\n%s\n\n%s", d, head, fmt.Sprintf(commonExamples, search))
}

const limitHead = `Question: "Show me all customers"
SQL: SELECT * FROM customers LIMIT 50

Question: "What are the most expensive products?"
SQL: SELECT product_name, unit_price FROM products ORDER BY unit_price DESC LIMIT 10`

var hints = map[database.Dialect]dialectHints{
	database.DialectSQLite: {
		TextSearch:  "Use LIKE for text searches (SQLite doesn't have ILIKE)",
		LimitSyntax: database.LimitSyntaxLimit,
		Examples: examples(database.DialectSQLite, limitHead,
			`Question: "Find customers with 'market' in company name"
SQL: SELECT company_name, contact_name FROM customers WHERE company_name LIKE '%market%'`),
	},
	database.DialectPostgreSQL: {
		TextSearch:  "Use ILIKE for case-insensitive text searches, LIKE for case-sensitive",
		LimitSyntax: database.LimitSyntaxLimit,
		Examples: examples(database.DialectPostgreSQL, limitHead,
			`Question: "Find customers with 'market' in company name"
SQL: SELECT company_name, contact_name FROM customers WHERE company_name ILIKE '%market%'`),
	},
	database.DialectMySQL: {
		TextSearch:  "Use LIKE for text searches, use LOWER() for case-insensitive searches",
		LimitSyntax: database.LimitSyntaxLimit,
		Examples: examples(database.DialectMySQL, limitHead,
			`Question: "Find customers with 'market' in company name (case-insensitive)"
SQL: SELECT company_name, contact_name FROM customers WHERE LOWER(company_name) LIKE LOWER('%market%')`),
	},
	database.DialectSQLServer: {
		TextSearch:  "Use LIKE for text searches, use LOWER() for case-insensitive searches",
		LimitSyntax: database.LimitSyntaxTop,
		Examples: examples(database.DialectSQLServer, `Question: "Show me all customers"
SQL: SELECT TOP 50 * FROM customers

Question: "What are the most expensive products?"
SQL: SELECT TOP 10 product_name, unit_price FROM products ORDER BY unit_price DESC`,
			`Question: "Find customers with 'market' in company name (case-insensitive)"
SQL: SELECT company_name, contact_name FROM customers WHERE LOWER(company_name) LIKE LOWER('%market%')`),
	},
	database.DialectOracle: {
		TextSearch:  "Use LIKE for text searches, use UPPER() or LOWER() for case-insensitive searches",
		LimitSyntax: database.LimitSyntaxRownum,
		Examples: examples(database.DialectOracle, `Question: "Show me all customers"
SQL: SELECT * FROM customers WHERE ROWNUM <= 50

Question: "What are the most expensive products?"
SQL: SELECT * FROM (SELECT product_name, unit_price FROM products ORDER BY unit_price DESC) WHERE ROWNUM <= 10`,
			`Question: "Find customers with 'market' in company name (case-insensitive)"
SQL: SELECT company_name, contact_name FROM customers WHERE UPPER(company_name) LIKE UPPER('%market%')`),
	},
}

// hintsFor returns the hints for d, falling back to SQLite for unknown dialects.
func hintsFor(d database.Dialect) dialectHints {
	if h, ok := hints[d]; ok {
		return h
	}
	return hints[database.DialectSQLite]
}

// SystemPrompt renders the instructions sent ahead of the question.
func SystemPrompt(schema string, d database.Dialect) string {
	h := hintsFor(d)
	return fmt.Sprintf(`You are an expert SQL developer. Convert natural language questions to %[1]s queries using ONLY the provided database schema.

IMPORTANT DATABASE SCHEMA:
%[2]s

CRITICAL RULES:
1. ONLY use table and column names that exist in the schema above
2. Only generate SELECT queries
3. Use proper %[1]s syntax
4. Return ONLY the SQL query, no explanations or markdown
5. Use INNER JOIN or LEFT JOIN when combining tables
6. %[3]s
7. Use %[4]s for queries that might return many results
8. If a question asks for data that doesn't exist in the schema, return a simple query on available data

%[5]s

REMEMBER: Only use columns and tables that exist in the schema provided above!
`, d, schema, h.TextSearch, h.LimitSyntax, h.Examples)
}

// UserPrompt renders the question turn.
func UserPrompt(question string) string {
	return fmt.Sprintf("Question: %s\nSQL:", question)
}
