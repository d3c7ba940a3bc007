package storages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/syscalls"
	_ "modernc.org/sqlite"
)

const schema = `
create table if not exists cells (
	source integer not null,
	place integer not null,
	idx integer not null,
	data blob,
	primary key (source, place, idx)
);
create table if not exists group_indices (
	source integer not null,
	pos integer not null,
	idx integer not null,
	primary key (source, pos)
)
`

// Store keeps transaction cell data in SQLite.
type Store struct {
	db *sql.DB
}

var _ loaders.DataSource = new(Store)

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{
		db: db,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{tx: tx}, nil
}

func (s *Store) Put(ctx context.Context, tx Tx, source syscalls.Source, place syscalls.Place, index uint64, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := tx.Exec(ctx,
		`insert or replace into cells (source, place, idx, data) values (?, ?, ?, ?)`,
		int64(source), int64(place), int64(index), data,
	)
	if err != nil {
		return fmt.Errorf("put cell: %w", err)
	}
	return nil
}

// Import stores every piece of data and the group indices of tx in one transaction.
func (s *Store) Import(ctx context.Context, data *loaders.TxData) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if err := data.Cells(func(source syscalls.Source, place syscalls.Place, index uint64, bs []byte) error {
		return s.Put(ctx, tx, source, place, index, bs)
	}); err != nil {
		return err
	}

	for _, group := range []struct {
		source  syscalls.Source
		indices []uint64
	}{
		{syscalls.SourceGroupInput, data.GroupInputs},
		{syscalls.SourceGroupOutput, data.GroupOutputs},
	} {
		for pos, idx := range group.indices {
			if _, err := tx.Exec(ctx,
				`insert or replace into group_indices (source, pos, idx) values (?, ?, ?)`,
				int64(group.source), int64(pos), int64(idx),
			); err != nil {
				return fmt.Errorf("put group index: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *Store) Load(source syscalls.Source, place syscalls.Place, index uint64) ([]byte, error) {
	ctx := context.Background()

	switch source {
	case syscalls.SourceInput, syscalls.SourceOutput, syscalls.SourceCellDep:
	case syscalls.SourceGroupInput, syscalls.SourceGroupOutput:
		var idx int64
		err := s.db.QueryRowContext(ctx,
			`select idx from group_indices where source = ? and pos = ?`,
			int64(source), int64(index),
		).Scan(&idx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, loaders.ErrIndexOutOfBound
		}
		if err != nil {
			return nil, fmt.Errorf("load group index: %w", err)
		}
		index = uint64(idx)
		if source == syscalls.SourceGroupInput {
			source = syscalls.SourceInput
		} else {
			source = syscalls.SourceOutput
		}
	default:
		return nil, loaders.ErrIndexOutOfBound
	}

	switch place {
	case syscalls.PlaceCellData:
	case syscalls.PlaceWitness:
		// witnesses are indexed by transaction position only
		source = syscalls.SourceInput
	default:
		return nil, loaders.ErrIndexOutOfBound
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`select data from cells where source = ? and place = ? and idx = ?`,
		int64(source), int64(place), int64(index),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loaders.ErrIndexOutOfBound
	}
	if err != nil {
		return nil, fmt.Errorf("load cell: %w", err)
	}
	return data, nil
}
