package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Memories() MemoryRepository
	Cases() CaseRepository
	Rules() RuleRepository

	// Close releases backend resources. Safe to call more than once.
	Close() error
}
