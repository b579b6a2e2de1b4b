package database

// AccountRepository is the persistence surface consumed by the API layer.
// Rooms, chat messages and documents are intentionally absent: they only
// ever exist in connected clients' memory and in transit through the relay.
type AccountRepository interface {
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetAccountByUsername(username string) (User, error)
	Close() error
}
