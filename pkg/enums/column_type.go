package enums

// ColumnType is the type vocabulary of the downstream tabular store.
type ColumnType string

const (
	ColumnTypeBool       ColumnType = "Bool"
	ColumnTypeChoice     ColumnType = "Choice"
	ColumnTypeChoiceList ColumnType = "ChoiceList"
	ColumnTypeDate       ColumnType = "Date"
	ColumnTypeDateTime   ColumnType = "DateTime"
	ColumnTypeInt        ColumnType = "Int"
	ColumnTypeNumeric    ColumnType = "Numeric"
	ColumnTypeText       ColumnType = "Text"
)
