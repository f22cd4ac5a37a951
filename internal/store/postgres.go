package store

import (
	"context"

	"optionsql/internal/model"
	"optionsql/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres is a Sink writing the ticker and optionchains tables.
type Postgres struct {
	db        *gorm.DB
	batchSize int
}

// Open connects to Postgres.
func Open(opt Option) (*Postgres, error) {
	db, err := opt.open()
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return &Postgres{db: db, batchSize: opt.batchSize()}, nil
}

// NewPostgres wraps an existing connection.
func NewPostgres(db *gorm.DB, batchSize int) (*Postgres, error) {
	if db == nil {
		return nil, exception.ErrStoreNilDB
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Postgres{db: db, batchSize: batchSize}, nil
}

// Migrate creates or updates both tables.
func (p *Postgres) Migrate(ctx context.Context) error {
	return p.db.WithContext(ctx).AutoMigrate(&TickerRow{}, &OptionChainRow{})
}

// Exec runs a raw SQL script. Scripts without arguments may hold several
// statements.
func (p *Postgres) Exec(ctx context.Context, sql string) error {
	return p.db.WithContext(ctx).Exec(sql).Error
}

// Save upserts the ticker row and inserts the chain rows in one transaction.
// Chain rows already stored for the same ticker, expiration and strike are
// kept as they are.
func (p *Postgres) Save(ctx context.Context, snap model.TickerSnapshot) error {
	ticker := NewTickerRow(snap)
	chain := NewOptionChainRows(snap)

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker_symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_price", "segment", "iv_historical_low", "iv_historical_high", "updated_at"}),
		}).Create(&ticker).Error
		if err != nil {
			return errors.Wrap(err, "upsert ticker")
		}

		if len(chain) == 0 {
			return nil
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker_symbol"}, {Name: "expiration_date"}, {Name: "strike_price"}},
			DoNothing: true,
		}).CreateInBatches(&chain, p.batchSize).Error
		if err != nil {
			return errors.Wrap(err, "insert option chain")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "save %s", snap.Ticker.Symbol)
	}

	logs.Infof("stored %s, option rows: %d", snap.Ticker.Symbol, len(chain))
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
