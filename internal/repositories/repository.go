package repositories

import "context"

// Repository aggregates the per-domain repositories behind one handle.
type Repository interface {
	Assessment() AssessmentRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	User() UserRepository
	Dashboard() DashboardRepository

	// WithTransaction runs fn against a transactional view of the
	// repository. The transaction commits when fn returns nil.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
