package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/nlsql/internal/errs"
)

func TestSelectBuilder(t *testing.T) {
	tests := []struct {
		name    string
		builder *SelectBuilder
		want    string
	}{
		{
			name:    "sqlite limit",
			builder: Select("customers", DialectSQLite).Limit(10),
			want:    `SELECT * FROM "customers" LIMIT 10`,
		},
		{
			name:    "mysql backticks",
			builder: Select("orders", DialectMySQL).Columns("order_id", "customer_id").OrderBy("order_id", Desc).Limit(5),
			want:    "SELECT `order_id`, `customer_id` FROM `orders` ORDER BY `order_id` DESC LIMIT 5",
		},
		{
			name:    "postgres no limit",
			builder: Select("products", DialectPostgreSQL).OrderBy("product_name", Asc),
			want:    `SELECT * FROM "products" ORDER BY "product_name" ASC`,
		},
		{
			name:    "sql server top",
			builder: Select("customers", DialectSQLServer).Columns("customer_id").Limit(20),
			want:    `SELECT TOP 20 [customer_id] FROM [customers]`,
		},
		{
			name:    "oracle rownum",
			builder: Select("customers", DialectOracle).Limit(3),
			want:    `SELECT * FROM "customers" WHERE ROWNUM <= 3`,
		},
		{
			name:    "oracle rownum ordered",
			builder: Select("customers", DialectOracle).OrderBy("city", Asc).Limit(3),
			want:    `SELECT * FROM (SELECT * FROM "customers" ORDER BY "city" ASC) WHERE ROWNUM <= 3`,
		},
		{
			name:    "embedded quote escaped",
			builder: Select(`we"ird`, DialectSQLite),
			want:    `SELECT * FROM "we""ird"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.builder.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectBuilder_Errors(t *testing.T) {
	_, err := Select("", DialectSQLite).Build()
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Select("t", DialectSQLite).Limit(-1).Build()
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Select("t", Dialect("DB2")).Build()
	assert.True(t, errs.IsUnsupportedDialect(err))
}
