package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowforge/flowplan/fingerprint"
	"github.com/flowforge/flowplan/internal/concurrency"
	"github.com/flowforge/flowplan/modelmeta"
	"github.com/flowforge/flowplan/snapshot"
)

// getSnapshotsConcurrency bounds fan-out for SQLiteStore.GetSnapshots;
// sql.DB pools its own connections so this is safe to run well above 1
// (SPEC_FULL.md §2: golang.org/x/sync errgroup for the batch fetch).
const getSnapshotsConcurrency = 8

// SQLiteStore is a ReadWriter backed by modernc.org/sqlite, for
// durability across process restarts (SPEC_FULL.md §4, grounded in the
// teacher's adapter/sqlite3 connection setup). Environment and snapshot
// records are stored as JSON documents rather than a normalized
// relational schema — the state contract of spec.md §6 is a small,
// whole-object read/write API, not a query surface, so there is
// nothing for a relational schema to buy here (see DESIGN.md).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLiteStore at path
// and ensures its schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS environments (
	name TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_by_name ON snapshots(name);
`
	_, err := s.db.Exec(ddl)
	return err
}

// snapshotDoc is the JSON-serializable projection of snapshot.Snapshot:
// snapshot.Snapshot.Parents is a map keyed by the non-string snapshot.ID
// struct, which encoding/json cannot use as an object key, so Parents
// round-trips through a plain slice here.
type snapshotDoc struct {
	Name             string
	Kind             int
	Fingerprint      fingerprint.Fingerprint
	Version          string
	PreviousVersions []snapshot.DataVersion
	IndirectVersions map[string][]snapshot.DataVersion
	Parents          []snapshot.ID
	PhysicalSchema   string
	CreatedTS        int64
	UnpausedTS       *int64
}

func toDoc(s *snapshot.Snapshot) snapshotDoc {
	parents := make([]snapshot.ID, 0, len(s.Parents))
	for id := range s.Parents {
		parents = append(parents, id)
	}
	return snapshotDoc{
		Name:             s.Name,
		Kind:             int(s.Kind),
		Fingerprint:      s.Fingerprint,
		Version:          s.Version,
		PreviousVersions: s.PreviousVersions,
		IndirectVersions: s.IndirectVersions,
		Parents:          parents,
		PhysicalSchema:   s.PhysicalSchema,
		CreatedTS:        s.CreatedTS,
		UnpausedTS:       s.UnpausedTS,
	}
}

func fromDoc(d snapshotDoc) *snapshot.Snapshot {
	parents := make(map[snapshot.ID]bool, len(d.Parents))
	for _, id := range d.Parents {
		parents[id] = true
	}
	return &snapshot.Snapshot{
		Name:             d.Name,
		Kind:             modelmeta.Kind(d.Kind),
		Fingerprint:      d.Fingerprint,
		Version:          d.Version,
		PreviousVersions: d.PreviousVersions,
		IndirectVersions: d.IndirectVersions,
		Parents:          parents,
		PhysicalSchema:   d.PhysicalSchema,
		CreatedTS:        d.CreatedTS,
		UnpausedTS:       d.UnpausedTS,
	}
}

func (s *SQLiteStore) GetEnvironment(name string) (*Environment, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM environments WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: get environment %q: %w", name, err)
	}
	var env Environment
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, false, errf("GetEnvironment", "corrupt record for %q: %v", name, err)
	}
	return &env, true, nil
}

func (s *SQLiteStore) GetSnapshots(ids []snapshot.ID) (map[snapshot.ID]*snapshot.Snapshot, error) {
	type found struct {
		id   snapshot.ID
		snap *snapshot.Snapshot
	}
	results, err := concurrency.MapWithError(ids, getSnapshotsConcurrency, func(id snapshot.ID) (found, error) {
		var data string
		err := s.db.QueryRow(`SELECT data FROM snapshots WHERE snapshot_id = ?`, id.String()).Scan(&data)
		if err == sql.ErrNoRows {
			return found{}, nil
		}
		if err != nil {
			return found{}, fmt.Errorf("state: get snapshot %s: %w", id, err)
		}
		var doc snapshotDoc
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return found{}, errf("GetSnapshots", "corrupt record for %s: %v", id, err)
		}
		snap := fromDoc(doc)
		if snap.ID() != id {
			return found{}, errf("GetSnapshots", "stored snapshot for %s has fingerprint mismatch with its id", id.Name)
		}
		return found{id: id, snap: snap}, nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[snapshot.ID]*snapshot.Snapshot, len(ids))
	for _, r := range results {
		if r.snap != nil {
			out[r.id] = r.snap
		}
	}
	return out, nil
}

func (s *SQLiteStore) GetSnapshotsByName(names []string, excludeExternal bool) ([]*snapshot.Snapshot, error) {
	var out []*snapshot.Snapshot
	for _, name := range names {
		rows, err := s.db.Query(`SELECT data FROM snapshots WHERE name = ?`, name)
		if err != nil {
			return nil, fmt.Errorf("state: get snapshots by name %q: %w", name, err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var data string
				if err := rows.Scan(&data); err != nil {
					return err
				}
				var doc snapshotDoc
				if err := json.Unmarshal([]byte(data), &doc); err != nil {
					return err
				}
				if excludeExternal && modelmeta.Kind(doc.Kind) == modelmeta.KindEmbedded {
					continue
				}
				out = append(out, fromDoc(doc))
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("state: get snapshots by name %q: %w", name, err)
		}
	}
	return out, nil
}

func (s *SQLiteStore) PushSnapshots(snaps []*snapshot.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, snap := range snaps {
		id := snap.ID()
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM snapshots WHERE snapshot_id = ?`, id.String()).Scan(&exists)
		if err == nil {
			continue // already persisted
		}
		if err != sql.ErrNoRows {
			return err
		}

		cp := snap.Copy()
		if cp.CreatedTS == 0 {
			cp.CreatedTS = time.Now().UnixNano()
		}
		data, err := json.Marshal(toDoc(cp))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO snapshots (snapshot_id, name, data) VALUES (?, ?, ?)`, id.String(), snap.Name, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Promote(env *Environment, noGaps bool) error {
	if noGaps {
		for _, info := range env.Snapshots {
			var exists int
			err := s.db.QueryRow(`SELECT 1 FROM snapshots WHERE snapshot_id = ?`, info.ID().String()).Scan(&exists)
			if err == sql.ErrNoRows {
				return errf("Promote", "no_gaps requested but snapshot %s is not yet persisted", info.Name)
			}
			if err != nil {
				return err
			}
		}
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO environments (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data`, env.Name, string(data))
	return err
}

func (s *SQLiteStore) DeleteEnvironment(name string) error {
	_, err := s.db.Exec(`DELETE FROM environments WHERE name = ?`, name)
	return err
}
