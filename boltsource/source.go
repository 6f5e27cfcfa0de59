// Package boltsource is a bolt-backed Source: one bucket per relation, rows
// stored under order-preserving keys so range scans come back in correlation
// key order. It is the reference backend for tests and embedded use.
package boltsource

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"slices"

	"github.com/openkvlab/boltdb"

	"github.com/splitquery/splitquery"
)

// Command descriptors are interpreted as range scans: Text names the
// relation, ArgStart/ArgEnd optionally bound the scan, Columns restricts the
// fields each row carries.
const (
	// ArgStart holds the inclusive lower key bound, as splitquery.ToKey bytes.
	ArgStart = "start"
	// ArgEnd holds the exclusive upper key bound.
	ArgEnd = "end"
)

type Source struct {
	db   *boltdb.DB
	maUn splitquery.MarshalUnmarshaler
}

type Options = boltdb.Options

// Open opens (or creates) the backing database. A nil maUn means the
// msgpack codec.
func Open(maUn splitquery.MarshalUnmarshaler, path string, mode os.FileMode, options *Options) (*Source, error) {
	if maUn == nil {
		maUn = splitquery.MsgpackMaUn
	}
	db, err := boltdb.Open(path, mode, options)
	if err != nil {
		return nil, err
	}
	return &Source{db: db, maUn: maUn}, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

// Put appends a row to relation under key (order-preserving bytes, see
// splitquery.ToKey). Rows sharing a key keep insertion order: the stored key
// gets a per-bucket sequence suffix, which also keeps distinct logical keys
// ordered because the encoding is self-delimiting.
func (s *Source) Put(relation string, key []byte, row map[string]any) error {
	return s.db.Update(func(tx *boltdb.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(relation))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		full := make([]byte, 0, len(key)+8)
		full = append(full, key...)
		full = binary.BigEndian.AppendUint64(full, seq)
		val, err := s.maUn.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put(full, val)
	})
}

// Open starts a range scan over the relation the descriptor names. The
// returned reader holds a read transaction until closed.
func (s *Source) Open(ctx context.Context, cmd *splitquery.CommandDescriptor) (splitquery.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, err
	}
	b := tx.Bucket([]byte(cmd.Text))
	if b == nil {
		tx.Rollback()
		return nil, ErrRelationNotFound(cmd.Text)
	}
	var start, end []byte
	for _, a := range cmd.Args {
		switch a.Name {
		case ArgStart:
			start, _ = a.Value.([]byte)
		case ArgEnd:
			end, _ = a.Value.([]byte)
		}
	}
	return &reader{
		tx:      tx,
		cur:     b.Cursor(),
		maUn:    s.maUn,
		start:   start,
		end:     end,
		columns: cmd.Columns,
	}, nil
}

type reader struct {
	tx      *boltdb.Tx
	cur     *boltdb.Cursor
	maUn    splitquery.MarshalUnmarshaler
	start   []byte
	end     []byte
	columns []string
	row     splitquery.MapRow
	started bool
	closed  bool
}

func (r *reader) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.closed {
		return false, ErrReaderClosed
	}
	var k, v []byte
	if !r.started {
		r.started = true
		if r.start != nil {
			k, v = r.cur.Seek(r.start)
		} else {
			k, v = r.cur.First()
		}
	} else {
		k, v = r.cur.Next()
	}
	if k == nil {
		return false, nil
	}
	if r.end != nil && bytes.Compare(k, r.end) >= 0 {
		return false, nil
	}
	var m map[string]any
	if err := r.maUn.Unmarshal(v, &m); err != nil {
		return false, err
	}
	if len(r.columns) > 0 {
		for field := range m {
			if !slices.Contains(r.columns, field) {
				delete(m, field)
			}
		}
	}
	r.row = splitquery.MapRow(m)
	return true, nil
}

func (r *reader) Row() splitquery.Row {
	return r.row
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.tx.Rollback()
}
