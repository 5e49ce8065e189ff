package pet

// Repository abstracts pet storage. The SQLite implementation lives in
// internal/persistence; tests use in-memory fakes.
type Repository interface {
	// GetPet loads a pet by id, returning a default-constructed pet when
	// none exists yet.
	GetPet(id string) (*State, error)

	// SavePet writes the full pet state. Called once per pipeline run.
	SavePet(s *State) error

	// AppendBehavior appends an immutable behavior record to the
	// pet's history.
	AppendBehavior(r BehaviorRecord) error

	// AppendTrait persists a solidified trait.
	AppendTrait(t Trait) error

	// PetHistory returns up to limit of the most recent behavior
	// records, newest first.
	PetHistory(petID string, limit int) ([]BehaviorRecord, error)
}
