// Package persistence provides SQLite-based pet state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/petmind/internal/pet"
)

// DB wraps a SQLite connection and implements pet.Repository.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pets (
		id TEXT PRIMARY KEY,
		happiness INTEGER NOT NULL,
		energy INTEGER NOT NULL,
		trust INTEGER NOT NULL,
		curiosity INTEGER NOT NULL,
		hp INTEGER NOT NULL,
		attack INTEGER NOT NULL,
		defense INTEGER NOT NULL,
		speed INTEGER NOT NULL,
		bond INTEGER NOT NULL,
		experience INTEGER NOT NULL,
		core_traits_json TEXT NOT NULL,
		memory_json TEXT NOT NULL,
		last_update TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS traits (
		id TEXT PRIMARY KEY,
		pet_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		effect_value INTEGER NOT NULL,
		special_mechanism TEXT NOT NULL DEFAULT '',
		is_negative INTEGER NOT NULL,
		rarity TEXT NOT NULL,
		acquisition_time TEXT NOT NULL,
		is_active INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS behavior_records (
		id TEXT PRIMARY KEY,
		pet_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_target TEXT NOT NULL,
		keywords_json TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_traits_pet ON traits(pet_id);
	CREATE INDEX IF NOT EXISTS idx_behavior_pet ON behavior_records(pet_id, timestamp);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type petRow struct {
	ID             string `db:"id"`
	Happiness      int    `db:"happiness"`
	Energy         int    `db:"energy"`
	Trust          int    `db:"trust"`
	Curiosity      int    `db:"curiosity"`
	HP             int    `db:"hp"`
	Attack         int    `db:"attack"`
	Defense        int    `db:"defense"`
	Speed          int    `db:"speed"`
	Bond           int    `db:"bond"`
	Experience     int    `db:"experience"`
	CoreTraitsJSON string `db:"core_traits_json"`
	MemoryJSON     string `db:"memory_json"`
	LastUpdate     string `db:"last_update"`
}

type traitRow struct {
	ID               string `db:"id"`
	PetID            string `db:"pet_id"`
	Name             string `db:"name"`
	Type             string `db:"type"`
	EffectValue      int    `db:"effect_value"`
	SpecialMechanism string `db:"special_mechanism"`
	IsNegative       int    `db:"is_negative"`
	Rarity           string `db:"rarity"`
	AcquisitionTime  string `db:"acquisition_time"`
	IsActive         int    `db:"is_active"`
}

type behaviorRow struct {
	ID           string `db:"id"`
	PetID        string `db:"pet_id"`
	ActionType   string `db:"action_type"`
	ActionTarget string `db:"action_target"`
	KeywordsJSON string `db:"keywords_json"`
	Timestamp    string `db:"timestamp"`
}

// GetPet loads a pet by id. A pet that has never been saved comes back
// default-constructed, per the repository contract.
func (db *DB) GetPet(id string) (*pet.State, error) {
	var row petRow
	err := db.conn.Get(&row, "SELECT * FROM pets WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return pet.NewState(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pet %s: %w", id, err)
	}

	st := &pet.State{
		ID: row.ID,
		Stats: pet.Stats{
			Happiness:  row.Happiness,
			Energy:     row.Energy,
			Trust:      row.Trust,
			Curiosity:  row.Curiosity,
			HP:         row.HP,
			Attack:     row.Attack,
			Defense:    row.Defense,
			Speed:      row.Speed,
			Bond:       row.Bond,
			Experience: row.Experience,
		},
	}
	if err := json.Unmarshal([]byte(row.CoreTraitsJSON), &st.CoreTraits); err != nil {
		return nil, fmt.Errorf("decode core traits for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(row.MemoryJSON), &st.Memories); err != nil {
		return nil, fmt.Errorf("decode memories for %s: %w", id, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, row.LastUpdate); err == nil {
		st.LastUpdate = ts
	}

	traits, err := db.loadTraits(id)
	if err != nil {
		return nil, err
	}
	st.Traits = traits

	return st, nil
}

func (db *DB) loadTraits(petID string) ([]pet.Trait, error) {
	var rows []traitRow
	err := db.conn.Select(&rows,
		"SELECT * FROM traits WHERE pet_id = ? ORDER BY acquisition_time", petID)
	if err != nil {
		return nil, fmt.Errorf("load traits for %s: %w", petID, err)
	}

	out := make([]pet.Trait, 0, len(rows))
	for _, r := range rows {
		t := pet.Trait{
			ID:               r.ID,
			PetID:            r.PetID,
			Name:             r.Name,
			Type:             pet.TraitType(r.Type),
			EffectValue:      r.EffectValue,
			SpecialMechanism: r.SpecialMechanism,
			IsNegative:       r.IsNegative != 0,
			Rarity:           r.Rarity,
			IsActive:         r.IsActive != 0,
		}
		if ts, err := time.Parse(time.RFC3339Nano, r.AcquisitionTime); err == nil {
			t.AcquisitionTime = ts
		}
		out = append(out, t)
	}
	return out, nil
}

// SavePet writes the pet's scalar state, core traits, and memory stream.
// Traits are persisted separately via AppendTrait.
func (db *DB) SavePet(st *pet.State) error {
	coreJSON, err := json.Marshal(st.CoreTraits)
	if err != nil {
		return fmt.Errorf("encode core traits: %w", err)
	}
	memJSON, err := json.Marshal(st.Memories)
	if err != nil {
		return fmt.Errorf("encode memories: %w", err)
	}
	if st.Memories == nil {
		memJSON = []byte("[]")
	}

	_, err = db.conn.Exec(`INSERT OR REPLACE INTO pets
		(id, happiness, energy, trust, curiosity, hp, attack, defense, speed,
		 bond, experience, core_traits_json, memory_json, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Stats.Happiness, st.Stats.Energy, st.Stats.Trust, st.Stats.Curiosity,
		st.Stats.HP, st.Stats.Attack, st.Stats.Defense, st.Stats.Speed,
		st.Stats.Bond, st.Stats.Experience,
		string(coreJSON), string(memJSON),
		st.LastUpdate.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save pet %s: %w", st.ID, err)
	}
	return nil
}

// AppendBehavior appends one immutable behavior record.
func (db *DB) AppendBehavior(r pet.BehaviorRecord) error {
	keywords, err := json.Marshal(r.KeywordsAdded)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	if r.KeywordsAdded == nil {
		keywords = []byte("[]")
	}

	_, err = db.conn.Exec(`INSERT INTO behavior_records
		(id, pet_id, action_type, action_target, keywords_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.PetID, r.ActionType, r.ActionTarget,
		string(keywords), r.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append behavior %s: %w", r.ID, err)
	}
	return nil
}

// AppendTrait persists one solidified trait.
func (db *DB) AppendTrait(t pet.Trait) error {
	isNeg, isActive := 0, 0
	if t.IsNegative {
		isNeg = 1
	}
	if t.IsActive {
		isActive = 1
	}

	_, err := db.conn.Exec(`INSERT INTO traits
		(id, pet_id, name, type, effect_value, special_mechanism,
		 is_negative, rarity, acquisition_time, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PetID, t.Name, string(t.Type), t.EffectValue, t.SpecialMechanism,
		isNeg, t.Rarity, t.AcquisitionTime.Format(time.RFC3339Nano), isActive,
	)
	if err != nil {
		return fmt.Errorf("append trait %s: %w", t.ID, err)
	}
	return nil
}

// PetHistory returns up to limit behavior records for a pet, newest first.
func (db *DB) PetHistory(petID string, limit int) ([]pet.BehaviorRecord, error) {
	var rows []behaviorRow
	err := db.conn.Select(&rows,
		"SELECT * FROM behavior_records WHERE pet_id = ? ORDER BY timestamp DESC LIMIT ?",
		petID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", petID, err)
	}

	out := make([]pet.BehaviorRecord, 0, len(rows))
	for _, r := range rows {
		rec := pet.BehaviorRecord{
			ID:           r.ID,
			PetID:        r.PetID,
			ActionType:   r.ActionType,
			ActionTarget: r.ActionTarget,
		}
		if r.KeywordsJSON != "" {
			_ = json.Unmarshal([]byte(r.KeywordsJSON), &rec.KeywordsAdded)
		}
		if ts, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ pet.Repository = (*DB)(nil)
