package parserstate

// Row mirrors the persisted ParserStateRow of spec.md §3. Field names use
// gorm's default snake_case column mapping, following the style of
// storage/database/db_manager.go's typed accessor pairs.
type Row struct {
	Chain                string `gorm:"primary_key;column:chain"`
	CurrentBlock         int64  `gorm:"column:current_block"`
	LatestBlock          int64  `gorm:"column:latest_block"`
	AwaitBlocks          int32  `gorm:"column:await_blocks"`
	TimeoutBetweenBlocks int64  `gorm:"column:timeout_between_blocks"`
	QueueBehindBlocks    int32  `gorm:"column:queue_behind_blocks"`
	ParallelBlocks       int32  `gorm:"column:parallel_blocks"`
	IsEnabled            bool   `gorm:"column:is_enabled"`
}

// TableName pins the gorm table name to the one named in spec.md §6.
func (Row) TableName() string { return "parser_state" }

// DefaultRow is used when Init finds no existing row for a chain, per
// spec.md §4.8 ("if no row exists, create one with defaults").
func DefaultRow(chain string) Row {
	return Row{
		Chain:                chain,
		CurrentBlock:         0,
		LatestBlock:          0,
		AwaitBlocks:          0,
		TimeoutBetweenBlocks: 3000,
		QueueBehindBlocks:    0,
		ParallelBlocks:       1,
		IsEnabled:            true,
	}
}

func (r Row) clone() Row { return r }
