package model

const (
	TableBlock = "blocks"
)

type Block struct {
	Hash     string `gorm:"primaryKey"`
	Number   int64  `gorm:"uniqueIndex"`
	PrevHash string

	// Unix time in seconds
	Timestamp int64

	TxCount int
}

func (Block) TableName() string {
	return TableBlock
}
